package redis

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/learnloop/learnloop-hub/internal/domain/leaderboard"
	"github.com/learnloop/learnloop-hub/pkg/circuitbreaker"
	"github.com/learnloop/learnloop-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CACHED WINDOW READER
// Cache-aside decorator for leaderboard.WindowReader. Windows may lag the
// ledger by one TTL and are never invalidated on writes. Class windows are
// keyed by class id, not by roster, so a membership change also shows after
// one TTL. Identical concurrent misses share one database read and Redis
// faults trip a breaker so reads fall through to the source.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultWindowTTL is how long a cached window is served.
const DefaultWindowTTL = 30 * time.Second

// CacheToggle decides per call whether the cache is used.
type CacheToggle func() bool

// CachedWindowReader implements leaderboard.WindowReader over a source reader.
type CachedWindowReader struct {
	source  leaderboard.WindowReader
	cache   *Cache
	ttl     time.Duration
	breaker *circuitbreaker.CircuitBreaker
	group   singleflight.Group
	enabled CacheToggle
	log     *logger.Logger
}

var _ leaderboard.WindowReader = (*CachedWindowReader)(nil)

// CachedWindowReaderOption configures a CachedWindowReader.
type CachedWindowReaderOption func(*CachedWindowReader)

// WithTTL sets the cache TTL.
func WithTTL(ttl time.Duration) CachedWindowReaderOption {
	return func(r *CachedWindowReader) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithToggle lets a feature flag bypass the cache.
func WithToggle(enabled CacheToggle) CachedWindowReaderOption {
	return func(r *CachedWindowReader) {
		if enabled != nil {
			r.enabled = enabled
		}
	}
}

// WithBreaker replaces the default cache breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) CachedWindowReaderOption {
	return func(r *CachedWindowReader) {
		if cb != nil {
			r.breaker = cb
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) CachedWindowReaderOption {
	return func(r *CachedWindowReader) {
		if log != nil {
			r.log = log
		}
	}
}

// NewCachedWindowReader wraps source with cache.
func NewCachedWindowReader(source leaderboard.WindowReader, cache *Cache, opts ...CachedWindowReaderOption) *CachedWindowReader {
	r := &CachedWindowReader{
		source:  source,
		cache:   cache,
		ttl:     DefaultWindowTTL,
		enabled: func() bool { return true },
		log:     logger.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.Component("leaderboard_cache"))
	if r.breaker == nil {
		r.breaker = circuitbreaker.CacheBreaker(IsMiss, func(name string, from, to circuitbreaker.State) {
			r.log.Warn("cache breaker state changed",
				logger.String("breaker", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		})
	}
	return r
}

// ReadLeaderboardWindow implements leaderboard.WindowReader.
func (r *CachedWindowReader) ReadLeaderboardWindow(ctx context.Context, q leaderboard.WindowQuery) (*leaderboard.Window, error) {
	if !r.enabled() {
		return r.source.ReadLeaderboardWindow(ctx, q)
	}

	key := LeaderboardWindowKey(q.CacheKey())

	if w, ok := r.lookup(ctx, key); ok {
		return w, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		w, err := r.source.ReadLeaderboardWindow(ctx, q)
		if err != nil {
			return nil, err
		}
		r.store(ctx, key, w)
		return w, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*leaderboard.Window), nil
}

// lookup returns a cached window. Any failure, including an open breaker,
// counts as a miss.
func (r *CachedWindowReader) lookup(ctx context.Context, key string) (*leaderboard.Window, bool) {
	var w leaderboard.Window
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Get(ctx, key, &w)
	})
	if err != nil {
		if !IsMiss(err) && !circuitbreaker.IsRejected(err) {
			r.log.Warn("leaderboard cache read failed", logger.String("key", key), logger.Err(err))
		}
		return nil, false
	}
	if w.Entries == nil {
		w.Entries = []leaderboard.Entry{}
	}
	return &w, true
}

func (r *CachedWindowReader) store(ctx context.Context, key string, w *leaderboard.Window) {
	err := r.breaker.Execute(ctx, func(ctx context.Context) error {
		return r.cache.Set(ctx, key, w, r.ttl)
	})
	if err != nil && !circuitbreaker.IsRejected(err) && !errors.Is(err, context.Canceled) {
		r.log.Warn("leaderboard cache write failed", logger.String("key", key), logger.Err(err))
	}
}
