// Package scrape orchestrates contributor-stats extraction: identifier
// normalization, a TTL result cache with in-flight de-duplication, bounded
// concurrency, and a candidate retry machine over isolated browser
// sessions.
package scrape

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/codeGROOVE-dev/sfcache"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/localfs"
	"github.com/codeGROOVE-dev/sfcache/pkg/store/null"

	"github.com/guidescope/guidescope/extract"
	"github.com/guidescope/guidescope/history"
	"github.com/guidescope/guidescope/profile"
)

// Config configures the Service.
type Config struct {
	// Limit bounds simultaneous scrape executions. Excess requests queue
	// in admission order. Default: 2.
	Limit int

	// TTL is the result cache lifetime. Only successes are cached;
	// expired entries are evicted lazily on lookup. Default: 5m.
	TTL time.Duration

	// CacheDir persists cached results on disk. Empty = memory only.
	CacheDir string

	// History, when non-nil, receives a row per successful extraction.
	// Logging failures never fail a request.
	History *history.Store

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Limit <= 0 {
		c.Limit = 2
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is the externally visible outcome of a successful extraction:
// the record, the candidate URL that actually produced it, and when.
type Result struct {
	Record    extract.Record `json:"record"`
	URL       string         `json:"url"`
	FetchedAt time.Time      `json:"fetchedAt"`
}

// Service is the orchestrator behind the single externally-facing
// operation. Create one per process with New.
type Service struct {
	cfg       Config
	attempter Attempter
	cache     *sfcache.TieredCache[string, []byte]
	sem       chan struct{}
	logger    *slog.Logger
}

// New creates a Service around an Attempter (the rod Driver in production,
// fakes in tests).
func New(cfg Config, att Attempter) (*Service, error) {
	cfg.defaults()

	var cache *sfcache.TieredCache[string, []byte]
	var err error
	if cfg.CacheDir != "" {
		if err := os.MkdirAll(cfg.CacheDir, 0o750); err != nil {
			return nil, fmt.Errorf("scrape: cache dir: %w", err)
		}
		store, serr := localfs.New[string, []byte]("guidescope", cfg.CacheDir)
		if serr != nil {
			return nil, fmt.Errorf("scrape: cache store: %w", serr)
		}
		cache, err = sfcache.NewTiered[string, []byte](store, sfcache.TTL(cfg.TTL))
	} else {
		cache, err = sfcache.NewTiered[string, []byte](null.New[string, []byte](), sfcache.TTL(cfg.TTL))
	}
	if err != nil {
		return nil, fmt.Errorf("scrape: cache: %w", err)
	}

	return &Service{
		cfg:       cfg,
		attempter: att,
		cache:     cache,
		sem:       make(chan struct{}, cfg.Limit),
		logger:    cfg.Logger,
	}, nil
}

// checker is implemented by attempters that can report fatal environment
// problems (a missing browser binary) before any work is admitted.
type checker interface {
	Check() error
}

// Stats resolves raw input to a cached or freshly scraped Result.
//
// Flow: normalize → fatal-environment pre-check → cache lookup keyed by
// identifier and mode, where concurrent requests for the same key join the
// same pending execution → limiter-gated candidate chain under a deadline
// guard. Failures propagate to every joined caller and are never cached.
func (s *Service) Stats(ctx context.Context, raw string, mode Mode) (*Result, error) {
	id, err := profile.Normalize(raw)
	if err != nil {
		return nil, err
	}

	// InvalidIdentifier and BinaryNotFound surface before a concurrency
	// slot or cache entry is touched.
	if c, ok := s.attempter.(checker); ok {
		if err := c.Check(); err != nil {
			return nil, err
		}
	}

	b, ok := budgets[mode]
	if !ok {
		b = budgets[ModeNormal]
	}

	key := id.CacheKey(mode == ModeSlow)
	data, err := s.cache.GetSet(ctx, key, func(ctx context.Context) ([]byte, error) {
		res, err := s.execute(ctx, id, b)
		if err != nil {
			return nil, err
		}
		return json.Marshal(res)
	})
	if err != nil {
		return nil, err
	}

	var res Result
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("scrape: decode cached result: %w", err)
	}
	return &res, nil
}

// execute runs one real scrape under the limiter and the deadline guard.
func (s *Service) execute(ctx context.Context, id profile.Identifier, b Budget) (*Result, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-s.sem }()

	ctx, cancel := context.WithTimeout(ctx, b.Overall)
	defer cancel()

	rec, used, err := s.runCandidates(ctx, id.Candidates(), b)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w (budget %s): %v", ErrExecutionTimeout, b.Overall, err)
		}
		return nil, err
	}

	res := &Result{Record: *rec, URL: used, FetchedAt: time.Now().UTC()}
	s.recordHistory(ctx, id, res)
	return res, nil
}

func (s *Service) recordHistory(ctx context.Context, id profile.Identifier, res *Result) {
	if s.cfg.History == nil {
		return
	}
	raw, err := json.Marshal(res.Record)
	if err != nil {
		return
	}
	entry := history.Entry{
		ProfileURL:   id.URL(),
		CandidateURL: res.URL,
		Record:       raw,
		FetchedAt:    res.FetchedAt,
	}
	if err := s.cfg.History.Record(ctx, entry); err != nil {
		s.logger.Warn("scrape: history record failed", "url", id.URL(), "error", err)
	}
}
