package data

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/output"
)

// DecodeFunc turns a response payload into a typed, normalized value.
type DecodeFunc[T any] func(payload json.RawMessage) (T, error)

// ResourceConfig declares one network-backed resource.
type ResourceConfig[T any] struct {
	Name     string
	Endpoint string
	CacheKey string
	TTL      time.Duration
	Timeout  time.Duration

	// Default is served when the fetch fails and nothing is cached.
	// Nil means the resource has no default.
	Default *T

	// SessionScoped keys are invalidated on logout and login.
	SessionScoped bool

	// Decode normalizes the payload. Nil decodes the payload as JSON.
	Decode DecodeFunc[T]
}

// Resource is a typed, cache-backed read of one endpoint.
type Resource[T any] struct {
	syncer *Syncer
	cfg    ResourceConfig[T]
}

// NewResource registers cfg with s.
func NewResource[T any](s *Syncer, cfg ResourceConfig[T]) *Resource[T] {
	if cfg.CacheKey == "" {
		cfg.CacheKey = cfg.Name
	}
	if cfg.SessionScoped {
		s.Realm(RealmSession).Register(cfg.CacheKey)
	}
	return &Resource[T]{syncer: s, cfg: cfg}
}

// Config returns the resource declaration.
func (r *Resource[T]) Config() ResourceConfig[T] { return r.cfg }

// Fetch reads the resource.
//
// Unless forceRefresh is set, a cached entry of any age is returned at once
// and a detached refresh is started; the caller never waits on it. With
// nothing cached, or when forced, Fetch blocks on the network and falls
// back to stale data, then the default, then failure.
func (r *Resource[T]) Fetch(ctx context.Context, forceRefresh bool) Result[T] {
	if !forceRefresh {
		if v, capturedAt, ok := r.cached(); ok {
			r.refreshInBackground(ctx)
			res := Result[T]{
				Success:    true,
				Data:       v,
				Source:     SourceCache,
				CapturedAt: capturedAt,
				Refreshing: true,
			}
			r.record(EventServed, res.Source, 0)
			return res
		}
	}
	return r.blocking(ctx)
}

// FetchIfFresh serves the cache only while it is younger than the TTL,
// without touching the network. Otherwise it behaves like a forced Fetch.
func (r *Resource[T]) FetchIfFresh(ctx context.Context) Result[T] {
	e, ok := r.syncer.cache.Entry(r.cfg.CacheKey)
	if ok && e.IsFresh(r.syncer.clock.Now(), r.cfg.TTL) {
		if v, err := r.decodeCached(e.Data); err == nil {
			r.record(EventServed, SourceCache, 0)
			return Result[T]{Success: true, Data: v, Source: SourceCache, CapturedAt: e.CapturedAt()}
		}
	}
	return r.blocking(ctx)
}

// cached returns the decoded cache entry. An entry that no longer decodes
// into T is treated as absent.
func (r *Resource[T]) cached() (T, time.Time, bool) {
	var zero T
	e, ok := r.syncer.cache.Entry(r.cfg.CacheKey)
	if !ok {
		return zero, time.Time{}, false
	}
	v, err := r.decodeCached(e.Data)
	if err != nil {
		r.syncer.logger.Debug("cached entry unreadable", "resource", r.cfg.Name, "error", err)
		return zero, time.Time{}, false
	}
	return v, e.CapturedAt(), true
}

func (r *Resource[T]) decodeCached(data json.RawMessage) (T, error) {
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}

// blocking performs BLOCKING_FETCH with the fallback chain.
func (r *Resource[T]) blocking(ctx context.Context) Result[T] {
	epoch := r.syncer.epoch(r.cfg.CacheKey)
	start := r.syncer.clock.Now()

	v, err := r.fetch(ctx)
	elapsed := r.syncer.clock.Now().Sub(start)
	if err == nil {
		now := r.syncer.clock.Now()
		r.store(epoch, v)
		r.record(EventServed, SourceNetwork, elapsed)
		return Result[T]{Success: true, Data: v, Source: SourceNetwork, CapturedAt: now}
	}

	if stale, capturedAt, ok := r.cached(); ok {
		r.syncer.logger.Warn("serving stale data", "resource", r.cfg.Name, "error", err.Message, "captured_at", capturedAt)
		r.record(EventServed, SourceStale, elapsed)
		return Result[T]{Success: true, Data: stale, Err: err, Source: SourceStale, CapturedAt: capturedAt}
	}

	if r.cfg.Default != nil {
		r.syncer.logger.Warn("serving default data", "resource", r.cfg.Name, "error", err.Message)
		r.record(EventServed, SourceDefault, elapsed)
		return Result[T]{Success: true, Data: *r.cfg.Default, Err: err, Source: SourceDefault}
	}

	r.record(EventFailed, SourceNone, elapsed)
	return failure[T](err)
}

// refreshInBackground starts a detached fetch. Cancelling ctx does not stop
// it; only the request timeout does. Failure leaves the cache untouched.
func (r *Resource[T]) refreshInBackground(ctx context.Context) {
	epoch := r.syncer.epoch(r.cfg.CacheKey)
	ctx = context.WithoutCancel(ctx)

	r.syncer.wg.Add(1)
	go func() {
		defer r.syncer.wg.Done()

		start := r.syncer.clock.Now()
		v, err := r.fetch(ctx)
		elapsed := r.syncer.clock.Now().Sub(start)
		if err != nil {
			r.syncer.logger.Debug("background refresh failed", "resource", r.cfg.Name, "error", err.Message)
			r.record(EventBackgroundFailed, SourceNone, elapsed)
			return
		}
		if r.store(epoch, v) {
			r.record(EventBackgroundOK, SourceNetwork, elapsed)
		} else {
			r.record(EventBackgroundDropped, SourceNetwork, elapsed)
		}
	}()
}

// store writes v if the key was not invalidated since epoch. Storage
// failures are logged; the fetched data is still returned to the caller.
func (r *Resource[T]) store(epoch uint64, v T) bool {
	wrote, err := r.syncer.writeIfCurrent(r.cfg.CacheKey, epoch, v)
	if err != nil {
		r.syncer.logger.Warn("cache write failed", "resource", r.cfg.Name, "error", err)
		return false
	}
	if !wrote {
		r.syncer.logger.Debug("discarding fetch after invalidation", "resource", r.cfg.Name)
	}
	return wrote
}

// fetch performs the network call and normalizes the payload.
func (r *Resource[T]) fetch(ctx context.Context) (T, *output.Error) {
	var zero T
	resp, err := r.syncer.client.Do(ctx, api.Request{
		Method:  http.MethodGet,
		Path:    r.cfg.Endpoint,
		Timeout: r.cfg.Timeout,
	})
	if err != nil {
		return zero, output.AsError(err)
	}

	v, err := decode(r.cfg.Decode, resp.Data())
	if err != nil {
		return zero, output.ErrNetwork(fmt.Errorf("%s: unreadable payload: %w", r.cfg.Name, err))
	}
	return v, nil
}

func (r *Resource[T]) record(t EventType, src Source, d time.Duration) {
	r.syncer.metrics.Record(Event{
		Timestamp: r.syncer.clock.Now(),
		Resource:  r.cfg.Name,
		Type:      t,
		Source:    src,
		Duration:  d,
	})
}

func decode[T any](fn DecodeFunc[T], payload json.RawMessage) (T, error) {
	if fn != nil {
		return fn(payload)
	}
	var v T
	if len(payload) == 0 {
		return v, nil
	}
	err := json.Unmarshal(payload, &v)
	return v, err
}
