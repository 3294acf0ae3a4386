// Package profile normalizes raw contributor identifiers into canonical
// profile URLs and derives the candidate URL variants tried against them.
package profile

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidIdentifier rejects input that is neither a contributor id nor a
// contributor profile URL. It surfaces before any browser work happens.
var ErrInvalidIdentifier = errors.New("profile: invalid identifier")

const (
	// pathMarker is the canonical path segment every profile URL contains.
	pathMarker = "/maps/contrib/"

	// urlTemplate expands a raw numeric contributor id.
	urlTemplate = "https://www.google.com/maps/contrib/%s"

	// minIDDigits is the shortest numeric input accepted as a raw id.
	minIDDigits = 10

	// localeQuery forces an English/US rendering, which lowers the
	// probability of landing on a consent interstitial.
	localeQuery = "hl=en&gl=US"

	// subPath is the alternate rendering shell appended to the base URL.
	subPath = "/reviews"
)

// Identifier is the canonical absolute URL of a contributor profile.
// Immutable once created; always contains the /maps/contrib/ segment.
type Identifier struct {
	url string
}

// Normalize turns raw user input into an Identifier. It accepts either a
// numeric string of at least ten digits (expanded through the canonical URL
// template) or a string already containing the canonical path segment
// (https scheme prepended when absent, trailing slashes stripped).
// Everything else is rejected with ErrInvalidIdentifier.
func Normalize(raw string) (Identifier, error) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, "/")
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: empty input", ErrInvalidIdentifier)
	}

	if isDigits(s) {
		if len(s) < minIDDigits {
			return Identifier{}, fmt.Errorf("%w: numeric id needs at least %d digits", ErrInvalidIdentifier, minIDDigits)
		}
		return Identifier{url: fmt.Sprintf(urlTemplate, s)}, nil
	}

	if strings.Contains(s, pathMarker) {
		if !strings.Contains(s, "://") {
			s = "https://" + s
		}
		return Identifier{url: s}, nil
	}

	return Identifier{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, raw)
}

// URL returns the canonical profile URL.
func (id Identifier) URL() string { return id.url }

// CacheKey keys the result cache and the in-flight registry. Slow-mode
// executions are cached separately from normal ones.
func (id Identifier) CacheKey(slow bool) string {
	if slow {
		return id.url + "|slow"
	}
	return id.url
}

// Candidates returns the URL variants to try, in priority order. The order
// is a fallback chain, not a set of equivalents: locale-qualified variants
// come first because a consent wall aborts the whole chain and forcing the
// locale makes one less likely.
func (id Identifier) Candidates() []string {
	return []string{
		id.url + "?" + localeQuery,
		id.url + subPath + "?" + localeQuery,
		id.url,
		id.url + subPath,
	}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
