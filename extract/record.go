// Package extract turns rendered contributor pages into structured
// statistics records. Everything here is pure: functions operate on row
// lists and body text captured by the session driver and never touch the
// network or the browser.
package extract

import (
	"strconv"
	"strings"
)

// Record is the output schema. Counts are non-negative integers; an absent
// value is 0, never null. Name is nil when no display name was found.
// Level and Points are always text-derived — the stats panel does not
// expose them reliably.
type Record struct {
	Name        *string `json:"name"`
	Level       int     `json:"level"`
	Points      int     `json:"points"`
	Reviews     int     `json:"reviews"`
	Ratings     int     `json:"ratings"`
	Questions   int     `json:"questions"`
	Facts       int     `json:"facts"`
	Edits       int     `json:"edits"`
	PlacesAdded int     `json:"placesAdded"`
	RoadsAdded  int     `json:"roadsAdded"`
	Photos      int     `json:"photos"`
}

// Row is one structured stats-panel row: the text of its label sub-element
// and the text of its value sub-element.
type Row struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Field names a numeric count in Record addressable through a Mapping.
type Field string

const (
	FieldReviews     Field = "reviews"
	FieldRatings     Field = "ratings"
	FieldQuestions   Field = "questions"
	FieldFacts       Field = "facts"
	FieldEdits       Field = "edits"
	FieldPlacesAdded Field = "placesAdded"
	FieldRoadsAdded  Field = "roadsAdded"
	FieldPhotos      Field = "photos"
)

// countFields lists every mappable count, in schema order. Level and Points
// are deliberately absent: they have no structured source.
var countFields = []Field{
	FieldReviews, FieldRatings, FieldQuestions, FieldFacts,
	FieldEdits, FieldPlacesAdded, FieldRoadsAdded, FieldPhotos,
}

// field returns the storage for a Field, or nil for an unknown one.
func (r *Record) field(f Field) *int {
	switch f {
	case FieldReviews:
		return &r.Reviews
	case FieldRatings:
		return &r.Ratings
	case FieldQuestions:
		return &r.Questions
	case FieldFacts:
		return &r.Facts
	case FieldEdits:
		return &r.Edits
	case FieldPlacesAdded:
		return &r.PlacesAdded
	case FieldRoadsAdded:
		return &r.RoadsAdded
	case FieldPhotos:
		return &r.Photos
	}
	return nil
}

// AllCountsZero reports whether every mappable count is 0. The session
// driver uses it to decide whether a late-hydration re-read is worth it.
func (r *Record) AllCountsZero() bool {
	for _, f := range countFields {
		if *r.field(f) != 0 {
			return false
		}
	}
	return true
}

// ParseCount strips every non-digit character and parses the remainder as a
// non-negative integer. Unparsable or empty input yields 0.
func ParseCount(s string) int {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return 0
	}
	n, err := strconv.Atoi(b.String())
	if err != nil || n < 0 {
		return 0
	}
	return n
}
