package scrape

import (
	"context"
	"errors"

	"github.com/guidescope/guidescope/extract"
)

// attemptState names the candidate retry machine's states. Retry policy is
// data — the classifier in errors.go decides transitions, the loop below
// only walks them.
type attemptState int

const (
	statePending attemptState = iota
	stateAttempting
	stateRetrying
	stateSucceeded
	stateExhausted
)

func (s attemptState) String() string {
	switch s {
	case statePending:
		return "pending"
	case stateAttempting:
		return "attempting"
	case stateRetrying:
		return "retrying"
	case stateSucceeded:
		return "succeeded"
	case stateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Attempter performs one scrape attempt against one candidate URL. The
// production implementation is the rod session driver; tests inject fakes.
type Attempter interface {
	Attempt(ctx context.Context, candidate string, b Budget) (*extract.Record, error)
}

// runCandidates drives attempts over the priority-ordered candidate URLs.
// Transitions:
//
//   - consent wall → exhausted immediately; the interstitial gates every
//     variant, trying another is futile
//   - timeout / missing-markup failure on the first candidate → retrying
//     with the next
//   - any other failure, or any failure past the first candidate →
//     exhausted with the last observed cause
//   - success (including an accepted all-zero record) → succeeded, carrying
//     the candidate actually used
func (s *Service) runCandidates(ctx context.Context, candidates []string, b Budget) (*extract.Record, string, error) {
	state := statePending
	var last error
	attempts := 0

	for i, cand := range candidates {
		state = stateAttempting
		attempts++
		s.logger.Debug("scrape: candidate", "state", state.String(), "url", cand, "attempt", attempts)

		rec, err := s.attempter.Attempt(ctx, cand, b)
		if err == nil {
			state = stateSucceeded
			s.logger.Debug("scrape: candidate", "state", state.String(), "url", cand)
			return rec, cand, nil
		}
		last = err

		if errors.Is(err, ErrConsentWall) {
			break
		}
		if i == 0 && retryable(err) && len(candidates) > 1 {
			state = stateRetrying
			s.logger.Warn("scrape: candidate failed, trying next",
				"state", state.String(), "url", cand, "error", err)
			continue
		}
		break
	}

	state = stateExhausted
	s.logger.Warn("scrape: candidates exhausted",
		"state", state.String(), "attempts", attempts, "error", last)
	return nil, "", &ExhaustedError{Attempts: attempts, Last: last}
}
