package terminology

// SystemICD10 is the code system URI for WHO ICD-10 diagnosis codes.
const SystemICD10 = "http://hl7.org/fhir/sid/icd-10"

// ICD10Code is a WHO ICD-10 category or subdivision resolved against a code
// table. Code is always in the dotted form ("C18.8").
type ICD10Code struct {
	Code         string `json:"code"`
	Category     string `json:"category"`
	Chapter      string `json:"chapter"`
	Title        string `json:"title"`
	ChapterTitle string `json:"chapter_title"`
	SystemURI    string `json:"system_uri"`
}

// Chapter is a contiguous block of three-character ICD-10 categories.
type Chapter struct {
	Number string
	First  string
	Last   string
	Title  string
}

// Contains reports whether a three-character category falls inside the chapter.
func (c Chapter) Contains(category string) bool {
	return category >= c.First && category <= c.Last
}
