package scrape

import "time"

// Mode selects the timeout budget of an execution. Slow mode trades longer
// waits for a better chance on pages that hydrate sluggishly.
type Mode string

const (
	ModeNormal Mode = "normal"
	ModeSlow   Mode = "slow"
)

// ParseMode maps the request boundary's mode flag. Anything but "slow"
// (including empty) is normal mode.
func ParseMode(s string) Mode {
	if s == string(ModeSlow) {
		return ModeSlow
	}
	return ModeNormal
}

// Budget bundles the bounded waits of one attempt plus the deadline guard
// around the whole execution. The nudge and settle waits are documented
// heuristics, not correctness guarantees: they cover hydration that has no
// deterministic readiness signal.
type Budget struct {
	Nav     time.Duration // navigation, initial markup only
	Panel   time.Duration // first wait for the stats panel rows
	Nudge   time.Duration // shorter re-wait after the scroll nudge
	Settle  time.Duration // pause before the all-zero re-read
	Overall time.Duration // deadline guard for the whole execution
}

var budgets = map[Mode]Budget{
	ModeNormal: {
		Nav:     25 * time.Second,
		Panel:   8 * time.Second,
		Nudge:   3 * time.Second,
		Settle:  1200 * time.Millisecond,
		Overall: 60 * time.Second,
	},
	ModeSlow: {
		Nav:     45 * time.Second,
		Panel:   15 * time.Second,
		Nudge:   6 * time.Second,
		Settle:  2500 * time.Millisecond,
		Overall: 150 * time.Second,
	},
}
