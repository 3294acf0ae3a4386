package scrape

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/guidescope/guidescope/profile"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"invalid identifier", fmt.Errorf("wrap: %w", profile.ErrInvalidIdentifier), "invalid_identifier"},
		{"binary not found", ErrBinaryNotFound, "binary_not_found"},
		{"execution timeout", fmt.Errorf("%w (budget 60s)", ErrExecutionTimeout), "execution_timeout"},
		{"context deadline", context.DeadlineExceeded, "execution_timeout"},
		{"consent wall", ErrConsentWall, "consent_wall"},
		{"navigation timeout", ErrNavigationTimeout, "navigation_timeout"},
		{"panel timeout", ErrPanelTimeout, "panel_timeout"},
		{"unknown", errors.New("boom"), "internal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

// Exhaustion wraps its last cause, but classifies as exhausted, not as the
// cause's own class.
func TestClassifyExhaustedBeatsCause(t *testing.T) {
	err := &ExhaustedError{Attempts: 2, Last: ErrPanelTimeout}
	if got := Classify(err); got != "exhausted" {
		t.Errorf("Classify = %q, want exhausted", got)
	}
	if !errors.Is(err, ErrPanelTimeout) {
		t.Error("exhaustion must still unwrap to its cause")
	}
}

func TestRetryable(t *testing.T) {
	if !retryable(ErrNavigationTimeout) || !retryable(ErrPanelTimeout) {
		t.Error("timeouts must be retryable")
	}
	if retryable(ErrConsentWall) || retryable(errors.New("boom")) {
		t.Error("only the timeout class is retryable")
	}
}

func TestParseMode(t *testing.T) {
	if ParseMode("slow") != ModeSlow {
		t.Error(`ParseMode("slow") != ModeSlow`)
	}
	for _, s := range []string{"", "normal", "fast", "SLOW"} {
		if ParseMode(s) != ModeNormal {
			t.Errorf("ParseMode(%q) != ModeNormal", s)
		}
	}
}
