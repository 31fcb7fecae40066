// Package data implements the stale-while-revalidate sync layer that sits
// between the resource accessors and the network.
//
// A read serves whatever is cached immediately and revalidates in a
// detached background task; with nothing cached it blocks on the network
// and falls back to stale data, then a static default, then failure.
// Mutations always go to the network and invalidate the cache keys that
// depend on them.
package data

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/cache"
	"github.com/washbay/washbay-cli/internal/clock"
)

// Requester performs one backend call. *api.Client satisfies it.
type Requester interface {
	Do(ctx context.Context, req api.Request) (*api.Response, error)
}

// Syncer owns the shared state of all resources: the cache, the network
// client, write epochs, and the detached background refreshes.
type Syncer struct {
	cache   *cache.Cache
	client  Requester
	clock   clock.Clock
	logger  *slog.Logger
	metrics *Metrics

	wg sync.WaitGroup

	mu     sync.Mutex
	epochs map[string]uint64 // bumped on invalidation, guards cache writes
	realms map[string]*Realm
}

// Option configures a Syncer.
type Option func(*Syncer)

// WithClock sets the clock used for latency and capture timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Syncer) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Syncer) { s.logger = l }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(s *Syncer) { s.metrics = m }
}

// NewSyncer creates a Syncer over c and client.
func NewSyncer(c *cache.Cache, client Requester, opts ...Option) *Syncer {
	s := &Syncer{
		cache:   c,
		client:  client,
		clock:   clock.Real(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		metrics: NewMetrics(),
		epochs:  make(map[string]uint64),
		realms:  make(map[string]*Realm),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Cache returns the underlying cache.
func (s *Syncer) Cache() *cache.Cache { return s.cache }

// Metrics returns the metrics collector.
func (s *Syncer) Metrics() *Metrics { return s.metrics }

// Wait blocks until every detached background refresh has finished.
func (s *Syncer) Wait() {
	s.wg.Wait()
}

// Realm returns the named realm, creating it on first use.
func (s *Syncer) Realm(name string) *Realm {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.realms[name]
	if !ok {
		r = newRealm(name, s)
		s.realms[name] = r
	}
	return r
}

func (s *Syncer) epoch(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epochs[key]
}

// Invalidate removes the cache entries for keys. Fetches issued before
// the call will not write their results for these keys.
func (s *Syncer) Invalidate(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		s.epochs[key]++
	}
	return s.cache.Invalidate(keys...)
}

// writeIfCurrent writes payload unless key was invalidated after epoch
// was read. It reports whether the write happened.
//
// Overlapping fetches issued in the same epoch all write; the last one to
// get here wins.
func (s *Syncer) writeIfCurrent(key string, epoch uint64, payload any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epochs[key] != epoch {
		return false, nil
	}
	return true, s.cache.Write(key, payload)
}
