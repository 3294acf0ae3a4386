package extract

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Mapping relates stats-panel row labels (lower-cased, trimmed) to Record
// fields. It is configuration data rather than code: the panel taxonomy
// belongs to a third-party page and is the part most likely to need
// revision without a schema change.
type Mapping map[string]Field

// DefaultMapping returns the label table observed on contributor profiles.
// "videos", "captions" and "q&a" are deliberately unmapped — out of schema.
// Two labels may map to the same field; Counts combines them by maximum.
func DefaultMapping() Mapping {
	return Mapping{
		"reviews":            FieldReviews,
		"ratings":            FieldRatings,
		"answers":            FieldQuestions,
		"edits":              FieldEdits,
		"reported incorrect": FieldFacts,
		"facts checked":      FieldFacts,
		"places added":       FieldPlacesAdded,
		"roads added":        FieldRoadsAdded,
		"photos":             FieldPhotos,
	}
}

// LoadMapping reads a YAML label→field override, e.g.:
//
//	reviews: reviews
//	facts checked: facts
//
// Field names must match the Record schema; unknown names are rejected so a
// typo does not silently drop a label.
func LoadMapping(path string) (Mapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("extract: read mapping: %w", err)
	}

	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("extract: parse mapping: %w", err)
	}

	m := make(Mapping, len(raw))
	for label, name := range raw {
		f := Field(name)
		if !validField(f) {
			return nil, fmt.Errorf("extract: unknown field %q for label %q", name, label)
		}
		m[normalizeLabel(label)] = f
	}
	return m, nil
}

// Counts is the structured extractor: it maps panel rows through the label
// table. Labels outside the table are ignored. When two labels resolve to
// the same field the larger value wins.
func Counts(rows []Row, m Mapping) Record {
	var rec Record
	for _, row := range rows {
		f, ok := m[normalizeLabel(row.Label)]
		if !ok {
			continue
		}
		p := rec.field(f)
		if p == nil {
			continue
		}
		if v := ParseCount(row.Value); v > *p {
			*p = v
		}
	}
	return rec
}

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func validField(f Field) bool {
	var r Record
	return r.field(f) != nil
}
