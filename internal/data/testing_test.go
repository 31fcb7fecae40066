package data

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/cache"
	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/kv"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// fakeClient answers requests through a swappable handler and records them.
type fakeClient struct {
	mu      sync.Mutex
	calls   []api.Request
	handler func(ctx context.Context, req api.Request) (*api.Response, error)
}

func (f *fakeClient) Do(ctx context.Context, req api.Request) (*api.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	h := f.handler
	f.mu.Unlock()
	return h(ctx, req)
}

func (f *fakeClient) setHandler(h func(ctx context.Context, req api.Request) (*api.Response, error)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) lastCall() api.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

func respond(body string) func(context.Context, api.Request) (*api.Response, error) {
	return func(context.Context, api.Request) (*api.Response, error) {
		return jsonResponse(body), nil
	}
}

func fail(err error) func(context.Context, api.Request) (*api.Response, error) {
	return func(context.Context, api.Request) (*api.Response, error) {
		return nil, err
	}
}

func jsonResponse(body string) *api.Response {
	return &api.Response{StatusCode: http.StatusOK, Body: []byte(body)}
}

type harness struct {
	clock  *clock.Fake
	store  *kv.Memory
	cache  *cache.Cache
	client *fakeClient
	syncer *Syncer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clk := clock.NewFake(t0)
	store := kv.NewMemory()
	c := cache.New(store, cache.WithClock(clk))
	client := &fakeClient{handler: respond(`[]`)}
	s := NewSyncer(c, client, WithClock(clk))
	t.Cleanup(s.Wait)
	return &harness{clock: clk, store: store, cache: c, client: client, syncer: s}
}

func (h *harness) bookings(def *[]string) *Resource[[]string] {
	return NewResource(h.syncer, ResourceConfig[[]string]{
		Name:          "bookings",
		Endpoint:      "/bookings/my",
		CacheKey:      "bookings",
		TTL:           60 * time.Second,
		Timeout:       10 * time.Second,
		Default:       def,
		SessionScoped: true,
	})
}
