package extract

import "regexp"

// The text extractor works on the page's visible body text. It is looser
// than the structured panel but always computable once the page has
// hydrated, and it is the only source for level and points.

// proximityWindow bounds how far a label may sit from its number. Matching
// across more than this many characters produces garbage pairings.
const proximityWindow = "{0,40}"

var (
	// "Local Guide · Level 7" — the separator varies (middle dot, bullet,
	// pipe, nothing), so anything non-numeric within the window is allowed.
	levelRe = regexp.MustCompile(`(?i)local\s+guide[^0-9]` + proximityWindow + `?level\s*(\d+)`)

	// "1,234 points" / "1234 pts", else "Points ... 1,234".
	pointsAfterRe  = regexp.MustCompile(`(?i)(\d[\d,.]*)\s*(?:points|pts)\b`)
	pointsBeforeRe = regexp.MustCompile(`(?i)\b(?:points|pts)\b[^0-9]` + proximityWindow + `?(\d[\d,.]*)`)
)

// labelPattern is the generic label-proximity matcher for one count field:
// a number immediately followed by the label, else the label followed by a
// number within the window.
type labelPattern struct {
	field  Field
	after  *regexp.Regexp
	before *regexp.Regexp
}

var labelPatterns = buildLabelPatterns()

func buildLabelPatterns() []labelPattern {
	// Label fragments are regexps so multi-word labels pluralize correctly.
	fragments := []struct {
		field Field
		expr  string
	}{
		{FieldReviews, `reviews?`},
		{FieldRatings, `ratings?`},
		{FieldQuestions, `answers?`},
		{FieldFacts, `facts?(?:\s+checked)?`},
		{FieldEdits, `edits?`},
		{FieldPlacesAdded, `places?\s+added`},
		{FieldRoadsAdded, `roads?\s+added`},
		{FieldPhotos, `photos?`},
	}

	out := make([]labelPattern, 0, len(fragments))
	for _, fr := range fragments {
		out = append(out, labelPattern{
			field:  fr.field,
			after:  regexp.MustCompile(`(?i)(\d[\d,.]*)\s*` + fr.expr + `\b`),
			before: regexp.MustCompile(`(?i)\b` + fr.expr + `\b[^0-9]` + proximityWindow + `?(\d[\d,.]*)`),
		})
	}
	return out
}

// FromText extracts a best-effort Record from visible body text. Fields
// without a match stay 0.
func FromText(text string) Record {
	var rec Record

	if m := levelRe.FindStringSubmatch(text); m != nil {
		rec.Level = ParseCount(m[1])
	}
	if m := pointsAfterRe.FindStringSubmatch(text); m != nil {
		rec.Points = ParseCount(m[1])
	} else if m := pointsBeforeRe.FindStringSubmatch(text); m != nil {
		rec.Points = ParseCount(m[1])
	}

	for _, lp := range labelPatterns {
		p := rec.field(lp.field)
		if m := lp.after.FindStringSubmatch(text); m != nil {
			*p = ParseCount(m[1])
		} else if m := lp.before.FindStringSubmatch(text); m != nil {
			*p = ParseCount(m[1])
		}
	}
	return rec
}
