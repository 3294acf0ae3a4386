package scrape

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/guidescope/guidescope/extract"
	"github.com/guidescope/guidescope/profile"
)

// countingAttempter succeeds on every attempt and counts executions, holding
// each one open for delay so concurrency is observable.
type countingAttempter struct {
	delay time.Duration
	execs atomic.Int64

	mu      sync.Mutex
	current int
	peak    int
}

func (a *countingAttempter) Attempt(ctx context.Context, _ string, _ Budget) (*extract.Record, error) {
	a.execs.Add(1)

	a.mu.Lock()
	a.current++
	if a.current > a.peak {
		a.peak = a.current
	}
	a.mu.Unlock()
	defer func() {
		a.mu.Lock()
		a.current--
		a.mu.Unlock()
	}()

	if a.delay > 0 {
		select {
		case <-time.After(a.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return &extract.Record{Level: 7, Points: 1234, Reviews: 42}, nil
}

func TestStatsCacheHit(t *testing.T) {
	att := &countingAttempter{}
	s := newTestService(t, Config{}, att)
	ctx := context.Background()

	first, err := s.Stats(ctx, "123456789012", ModeNormal)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	second, err := s.Stats(ctx, "123456789012", ModeNormal)
	if err != nil {
		t.Fatalf("Stats (cached): %v", err)
	}

	if n := att.execs.Load(); n != 1 {
		t.Errorf("executions = %d, want 1", n)
	}
	if !first.FetchedAt.Equal(second.FetchedAt) {
		t.Error("cache hit must return the stored result, FetchedAt differs")
	}
	if second.Record.Reviews != 42 {
		t.Errorf("cached record corrupted: %+v", second.Record)
	}
}

func TestStatsCacheKeyedByMode(t *testing.T) {
	att := &countingAttempter{}
	s := newTestService(t, Config{}, att)
	ctx := context.Background()

	if _, err := s.Stats(ctx, "123456789012", ModeNormal); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stats(ctx, "123456789012", ModeSlow); err != nil {
		t.Fatal(err)
	}
	if n := att.execs.Load(); n != 2 {
		t.Errorf("executions = %d, want 2 (normal and slow are distinct keys)", n)
	}
}

func TestStatsCacheExpiry(t *testing.T) {
	att := &countingAttempter{}
	s := newTestService(t, Config{TTL: 10 * time.Millisecond}, att)
	ctx := context.Background()

	if _, err := s.Stats(ctx, "123456789012", ModeNormal); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	if _, err := s.Stats(ctx, "123456789012", ModeNormal); err != nil {
		t.Fatal(err)
	}
	if n := att.execs.Load(); n != 2 {
		t.Errorf("executions = %d, want 2 after expiry", n)
	}
}

func TestStatsInFlightDedup(t *testing.T) {
	att := &countingAttempter{delay: 150 * time.Millisecond}
	s := newTestService(t, Config{}, att)
	ctx := context.Background()

	const callers = 5
	var wg sync.WaitGroup
	errs := make([]error, callers)
	results := make([]*Result, callers)
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.Stats(ctx, "123456789012", ModeNormal)
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("caller %d: %v", i, err)
		}
	}
	if n := att.execs.Load(); n != 1 {
		t.Errorf("executions = %d, want 1 (concurrent callers join one execution)", n)
	}
	for i := 1; i < callers; i++ {
		if !results[i].FetchedAt.Equal(results[0].FetchedAt) {
			t.Errorf("caller %d got a different result than caller 0", i)
		}
	}
}

func TestStatsLimiterBoundsConcurrency(t *testing.T) {
	att := &countingAttempter{delay: 80 * time.Millisecond}
	s := newTestService(t, Config{Limit: 1}, att)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("10000000000%d", i)
			if _, err := s.Stats(ctx, id, ModeNormal); err != nil {
				t.Errorf("Stats(%s): %v", id, err)
			}
		}()
	}
	wg.Wait()

	att.mu.Lock()
	peak := att.peak
	att.mu.Unlock()
	if peak != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak)
	}
	if n := att.execs.Load(); n != 4 {
		t.Errorf("executions = %d, want 4 (distinct identifiers)", n)
	}
}

func TestStatsInvalidIdentifier(t *testing.T) {
	att := &countingAttempter{}
	s := newTestService(t, Config{}, att)

	_, err := s.Stats(context.Background(), "not a profile", ModeNormal)
	if !errors.Is(err, profile.ErrInvalidIdentifier) {
		t.Fatalf("err = %v, want ErrInvalidIdentifier", err)
	}
	if n := att.execs.Load(); n != 0 {
		t.Errorf("invalid input must not reach the attempter, executions = %d", n)
	}
}

// brokenAttempter reports a fatal environment problem from its pre-check.
type brokenAttempter struct {
	countingAttempter
}

func (a *brokenAttempter) Check() error { return ErrBinaryNotFound }

func TestStatsPrecheckShortCircuits(t *testing.T) {
	att := &brokenAttempter{}
	s := newTestService(t, Config{}, att)

	_, err := s.Stats(context.Background(), "123456789012", ModeNormal)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Fatalf("err = %v, want ErrBinaryNotFound", err)
	}
	if n := att.execs.Load(); n != 0 {
		t.Errorf("pre-check failure must not consume a slot, executions = %d", n)
	}
}

// blockingAttempter holds every attempt open until its context expires.
type blockingAttempter struct{}

func (blockingAttempter) Attempt(ctx context.Context, _ string, _ Budget) (*extract.Record, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestStatsDeadlineGuard(t *testing.T) {
	s := newTestService(t, Config{}, blockingAttempter{})
	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	_, err := s.Stats(ctx, "123456789012", ModeNormal)
	if !errors.Is(err, ErrExecutionTimeout) {
		t.Fatalf("err = %v, want ErrExecutionTimeout", err)
	}
	if got := Classify(err); got != "execution_timeout" {
		t.Errorf("Classify = %q, want execution_timeout", got)
	}
}

// failOnceAttempter fails its first execution and succeeds afterwards.
type failOnceAttempter struct {
	execs atomic.Int64
}

func (a *failOnceAttempter) Attempt(context.Context, string, Budget) (*extract.Record, error) {
	if a.execs.Add(1) == 1 {
		return nil, ErrConsentWall
	}
	return &extract.Record{Level: 3}, nil
}

func TestStatsFailuresNotCached(t *testing.T) {
	att := &failOnceAttempter{}
	s := newTestService(t, Config{}, att)
	ctx := context.Background()

	_, err := s.Stats(ctx, "123456789012", ModeNormal)
	if err == nil {
		t.Fatal("expected first call to fail")
	}
	var ex *ExhaustedError
	if !errors.As(err, &ex) {
		t.Fatalf("err = %v, want ExhaustedError", err)
	}

	res, err := s.Stats(ctx, "123456789012", ModeNormal)
	if err != nil {
		t.Fatalf("second call should re-execute, got %v", err)
	}
	if res.Record.Level != 3 {
		t.Errorf("record = %+v, want the retried result", res.Record)
	}
}
