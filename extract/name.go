package extract

import (
	"regexp"
	"strings"
)

// nameScanLines bounds the heuristic scan: display names render near the
// top of the page; anything deeper is review text.
const nameScanLines = 50

// nameRe matches a capitalized two-or-three word sequence. Unicode letters
// are allowed after the initial capital so non-ASCII names survive.
var nameRe = regexp.MustCompile(`^[A-Z][\p{L}'.\-]*(?: [A-Z][\p{L}'.\-]*){1,2}$`)

// boilerplate lists phrases that match the name shape but never are one.
var boilerplate = map[string]bool{
	"google maps":        true,
	"local guide":        true,
	"sign in":            true,
	"search google maps": true,
	"write a review":     true,
	"add a photo":        true,
	"edit profile":       true,
}

// GuessName scans the first lines of visible text for a plausible display
// name. It is the fallback when none of the heading selectors produced one.
// Returns "" when nothing qualifies.
func GuessName(text string) string {
	lines := strings.Split(text, "\n")
	if len(lines) > nameScanLines {
		lines = lines[:nameScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || boilerplate[strings.ToLower(line)] {
			continue
		}
		if nameRe.MatchString(line) {
			return line
		}
	}
	return ""
}
