package terminology

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

//go:embed icd10_who.txt
var whoCodes string

// Table is an in-memory ICD10Repository holding every category and
// subdivision of a code list.
type Table struct {
	codes   map[string]*ICD10Code
	ordered []*ICD10Code
}

var who = sync.OnceValue(func() *Table {
	t, err := ParseTable(strings.NewReader(whoCodes))
	if err != nil {
		panic(fmt.Sprintf("terminology: embedded ICD-10 table: %v", err))
	}
	return t
})

// WHO returns the embedded WHO ICD-10 (2019) code table.
func WHO() *Table { return who() }

// ParseTable reads a code list of "category|subdivisions|title" lines. The
// subdivisions field lists the valid fourth characters, "-" when there are
// none. A "first-last" category expands to every category of the block.
// Blank lines and lines starting with '#' are skipped.
func ParseTable(r io.Reader) (*Table, error) {
	t := &Table{codes: make(map[string]*ICD10Code)}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.Split(text, "|")
		if len(fields) != 3 {
			return nil, fmt.Errorf("line %d: expected 3 fields, got %d", line, len(fields))
		}
		categories, err := expandCategories(fields[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		for _, category := range categories {
			if err := t.add(category, fields[1], fields[2]); err != nil {
				return nil, fmt.Errorf("line %d: %w", line, err)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(t.ordered, func(i, j int) bool { return t.ordered[i].Code < t.ordered[j].Code })
	return t, nil
}

func expandCategories(field string) ([]string, error) {
	first, last, isRange := strings.Cut(field, "-")
	if !isRange {
		last = first
	}
	if !categoryPattern.MatchString(first) || !categoryPattern.MatchString(last) {
		return nil, fmt.Errorf("invalid category %q", field)
	}
	if first[0] != last[0] || first > last {
		return nil, fmt.Errorf("invalid category range %q", field)
	}
	var out []string
	for n := int(first[1]-'0')*10 + int(first[2]-'0'); ; n++ {
		category := fmt.Sprintf("%c%02d", first[0], n)
		out = append(out, category)
		if category == last {
			return out, nil
		}
	}
}

func (t *Table) add(category, subdivisions, title string) error {
	ch, ok := chapterOf(category)
	if !ok {
		return fmt.Errorf("category %s is outside every chapter", category)
	}
	if _, dup := t.codes[category]; dup {
		return fmt.Errorf("duplicate category %s", category)
	}
	entry := func(code string) {
		c := &ICD10Code{
			Code:         code,
			Category:     category,
			Chapter:      ch.Number,
			Title:        title,
			ChapterTitle: ch.Title,
			SystemURI:    SystemICD10,
		}
		t.codes[code] = c
		t.ordered = append(t.ordered, c)
	}
	entry(category)
	if subdivisions == "-" {
		return nil
	}
	for _, d := range subdivisions {
		if d < '0' || d > '9' {
			return fmt.Errorf("category %s: invalid subdivision %q", category, d)
		}
		entry(category + "." + string(d))
	}
	return nil
}

// Len returns the number of codes in the table.
func (t *Table) Len() int { return len(t.ordered) }

// Codes returns every code of the table ordered by code.
func (t *Table) Codes() []*ICD10Code {
	out := make([]*ICD10Code, len(t.ordered))
	for i, c := range t.ordered {
		cp := *c
		out[i] = &cp
	}
	return out
}

// GetByCode returns the entry stored under code exactly as given.
func (t *Table) GetByCode(_ context.Context, code string) (*ICD10Code, error) {
	c, ok := t.codes[code]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrCodeNotFound, code)
	}
	cp := *c
	return &cp, nil
}

// Search returns codes starting with query or whose title contains it,
// ignoring case.
func (t *Table) Search(_ context.Context, query string, limit int) ([]*ICD10Code, error) {
	if limit <= 0 {
		limit = 20
	}
	q := strings.ToUpper(strings.TrimSpace(query))
	var results []*ICD10Code
	for _, c := range t.ordered {
		if len(results) == limit {
			break
		}
		if strings.HasPrefix(c.Code, q) || strings.Contains(strings.ToUpper(c.Title), q) {
			cp := *c
			results = append(results, &cp)
		}
	}
	return results, nil
}
