// Package stats derives aggregate building statistics for the most recently
// reported viewport. The aggregate query scans a large table, so results are
// memoized by a rounded viewport key and only recomputed when the viewport
// actually changes.
package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"buildings-viewer/internal/geo"
	"buildings-viewer/internal/metrics"
	"buildings-viewer/internal/viewstate"
)

// Querier is the aggregate query the service runs against the store.
type Querier interface {
	ViewportStats(ctx context.Context, west, south, east, north float64) (geo.ViewStats, error)
}

// Result is the current aggregate plus the viewport it was computed for.
// Bounds is nil when no view was ever reported.
type Result struct {
	geo.ViewStats
	Bounds *viewstate.View `json:"bounds"`
}

// Options are the policy knobs for memoization and recomputation.
type Options struct {
	BoundsPrecision int
	ZoomPrecision   int
	QueryTimeout    time.Duration
	PollInterval    time.Duration
	CacheTTL        time.Duration
}

// Service polls the view-state register and recomputes the aggregate when
// the rounded viewport key changes. A Redis client, when present, shares
// computed aggregates across restarts and replicas; it is strictly an
// optimization.
type Service struct {
	store    Querier
	register *viewstate.Register
	redis    *redis.Client
	opts     Options

	mu      sync.Mutex
	haveKey bool
	lastKey viewstate.Key
	last    geo.ViewStats
}

func New(store Querier, register *viewstate.Register, redisClient *redis.Client, opts Options) *Service {
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 1500 * time.Millisecond
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	return &Service{
		store:    store,
		register: register,
		redis:    redisClient,
		opts:     opts,
	}
}

// Current returns the aggregate for the registered viewport, recomputing only
// when the rounded key differs from the last one used. A failed recompute
// degrades to empty stats and leaves the memo untouched, so the next call
// retries.
func (s *Service) Current(ctx context.Context) Result {
	view, ok := s.register.Get()
	if !ok {
		return Result{}
	}

	key := view.Key(s.opts.BoundsPrecision, s.opts.ZoomPrecision)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.haveKey && s.lastKey == key {
		return Result{ViewStats: s.last, Bounds: &view}
	}

	if cached, ok := s.cacheGet(ctx, key); ok {
		s.remember(key, cached)
		return Result{ViewStats: cached, Bounds: &view}
	}

	qctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	computed, err := s.store.ViewportStats(qctx, view.West, view.South, view.East, view.North)
	if err != nil {
		log.Printf("viewport stats recompute failed: %v", err)
		return Result{Bounds: &view}
	}
	metrics.StatsRecomputesTotal.Inc()

	s.remember(key, computed)
	s.cacheSet(ctx, key, computed)
	return Result{ViewStats: computed, Bounds: &view}
}

// Run polls the register until ctx is cancelled, keeping the memoized
// aggregate warm so readers of Current never wait on the store for a
// viewport that was already seen.
func (s *Service) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Current(ctx)
		}
	}
}

func (s *Service) remember(key viewstate.Key, stats geo.ViewStats) {
	s.lastKey = key
	s.last = stats
	s.haveKey = true
}

func cacheKey(k viewstate.Key) string {
	return fmt.Sprintf("stats:%v:%v:%v:%v:%v", k.North, k.South, k.East, k.West, k.Zoom)
}

func (s *Service) cacheGet(ctx context.Context, key viewstate.Key) (geo.ViewStats, bool) {
	if s.redis == nil {
		return geo.ViewStats{}, false
	}
	raw, err := s.redis.Get(ctx, cacheKey(key)).Bytes()
	if err != nil {
		return geo.ViewStats{}, false
	}
	var stats geo.ViewStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return geo.ViewStats{}, false
	}
	return stats, true
}

func (s *Service) cacheSet(ctx context.Context, key viewstate.Key, stats geo.ViewStats) {
	if s.redis == nil {
		return
	}
	raw, err := json.Marshal(stats)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, cacheKey(key), raw, s.opts.CacheTTL).Err(); err != nil {
		log.Printf("stats cache write failed: %v", err)
	}
}
