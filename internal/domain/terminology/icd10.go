package terminology

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// icd10Pattern accepts a category (letter + two digits) optionally
	// followed by a one or two digit subdivision, with or without the period.
	icd10Pattern    = regexp.MustCompile(`^[A-Z][0-9]{2}(\.?[0-9]{1,2})?$`)
	categoryPattern = regexp.MustCompile(`^[A-Z][0-9]{2}$`)
)

// chapters is the WHO ICD-10 (2019) chapter table.
var chapters = []Chapter{
	{"I", "A00", "B99", "Certain infectious and parasitic diseases"},
	{"II", "C00", "D48", "Neoplasms"},
	{"III", "D50", "D89", "Diseases of the blood and blood-forming organs"},
	{"IV", "E00", "E90", "Endocrine, nutritional and metabolic diseases"},
	{"V", "F00", "F99", "Mental and behavioural disorders"},
	{"VI", "G00", "G99", "Diseases of the nervous system"},
	{"VII", "H00", "H59", "Diseases of the eye and adnexa"},
	{"VIII", "H60", "H95", "Diseases of the ear and mastoid process"},
	{"IX", "I00", "I99", "Diseases of the circulatory system"},
	{"X", "J00", "J99", "Diseases of the respiratory system"},
	{"XI", "K00", "K93", "Diseases of the digestive system"},
	{"XII", "L00", "L99", "Diseases of the skin and subcutaneous tissue"},
	{"XIII", "M00", "M99", "Diseases of the musculoskeletal system and connective tissue"},
	{"XIV", "N00", "N99", "Diseases of the genitourinary system"},
	{"XV", "O00", "O99", "Pregnancy, childbirth and the puerperium"},
	{"XVI", "P00", "P96", "Certain conditions originating in the perinatal period"},
	{"XVII", "Q00", "Q99", "Congenital malformations, deformations and chromosomal abnormalities"},
	{"XVIII", "R00", "R99", "Symptoms, signs and abnormal clinical and laboratory findings"},
	{"XIX", "S00", "T98", "Injury, poisoning and certain other consequences of external causes"},
	{"XX", "V01", "Y98", "External causes of morbidity and mortality"},
	{"XXI", "Z00", "Z99", "Factors influencing health status and contact with health services"},
	{"XXII", "U00", "U85", "Codes for special purposes"},
}

// NormalizeICD10 inserts the period after the category of a four-character
// code that lacks one ("C188" -> "C18.8"). Every other input is returned as is.
func NormalizeICD10(code string) string {
	if len(code) == 4 && code[3] != '.' {
		for i := 0; i < 4; i++ {
			if code[i] == '.' {
				return code
			}
		}
		return code[:3] + "." + code[3:]
	}
	return code
}

// Resolve looks code up in repo. The code is tried in its dotted form first
// and then without the period, so tables keyed either way resolve "C188" and
// "C18.8" alike.
func Resolve(ctx context.Context, repo ICD10Repository, code string) (*ICD10Code, error) {
	if !icd10Pattern.MatchString(code) {
		return nil, fmt.Errorf("invalid ICD-10 code: %q", code)
	}
	dotted := NormalizeICD10(code)
	found, err := repo.GetByCode(ctx, dotted)
	if errors.Is(err, ErrCodeNotFound) {
		if undotted := strings.Replace(dotted, ".", "", 1); undotted != dotted {
			found, err = repo.GetByCode(ctx, undotted)
		}
	}
	if err != nil {
		return nil, err
	}
	return found, nil
}

// IsValidICD10 reports whether code is a category or subdivision of the WHO
// ICD-10 classification. Codes are accepted with or without the period.
func IsValidICD10(code string) bool {
	_, err := LookupICD10(code)
	return err == nil
}

// LookupICD10 resolves code against the embedded WHO table.
func LookupICD10(code string) (*ICD10Code, error) {
	return Resolve(context.Background(), WHO(), code)
}

func chapterOf(category string) (Chapter, bool) {
	if !categoryPattern.MatchString(category) {
		return Chapter{}, false
	}
	for _, ch := range chapters {
		if ch.Contains(category) {
			return ch, true
		}
	}
	return Chapter{}, false
}
