package scrape

import (
	"context"
	"errors"
	"fmt"

	"github.com/guidescope/guidescope/profile"
	"github.com/guidescope/guidescope/scrape/internal/browser"
)

// Failure classes. Consent walls are structural: the interstitial gates the
// whole chain, so no other candidate is worth trying. Navigation and panel
// timeouts are soft: they drive the candidate retry machine.
var (
	ErrConsentWall       = errors.New("scrape: consent wall")
	ErrNavigationTimeout = errors.New("scrape: navigation timeout")
	ErrPanelTimeout      = errors.New("scrape: stats panel timeout")
	ErrExecutionTimeout  = errors.New("scrape: execution deadline exceeded")
)

// ErrBinaryNotFound is re-exported so callers outside this package can
// classify it without reaching into internal packages.
var ErrBinaryNotFound = browser.ErrBinaryNotFound

// ExhaustedError is the single aggregated error surfaced when the candidate
// chain gives up. Last carries the final underlying failure.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("scrape: exhausted after %d attempt(s): %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Classify maps an error to the machine-readable failure class used at the
// request boundary. Returns "" for nil.
func Classify(err error) string {
	if err == nil {
		return ""
	}
	var ex *ExhaustedError
	switch {
	case errors.Is(err, profile.ErrInvalidIdentifier):
		return "invalid_identifier"
	case errors.Is(err, browser.ErrBinaryNotFound):
		return "binary_not_found"
	case errors.Is(err, ErrExecutionTimeout):
		return "execution_timeout"
	case errors.As(err, &ex):
		return "exhausted"
	case errors.Is(err, ErrConsentWall):
		return "consent_wall"
	case errors.Is(err, ErrNavigationTimeout):
		return "navigation_timeout"
	case errors.Is(err, ErrPanelTimeout):
		return "panel_timeout"
	case errors.Is(err, context.DeadlineExceeded):
		return "execution_timeout"
	default:
		return "internal"
	}
}

// retryable reports whether a failure is in the timeout / missing-markup
// class that justifies falling back to the next candidate URL.
func retryable(err error) bool {
	return errors.Is(err, ErrNavigationTimeout) || errors.Is(err, ErrPanelTimeout)
}
