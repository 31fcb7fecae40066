// Package cache stores the last successful payload of each network-backed
// resource together with the time it was captured.
package cache

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/kv"
	"github.com/washbay/washbay-cli/internal/output"
)

// KeyPrefix namespaces cache entries inside the shared state store.
const KeyPrefix = "cache:"

// Entry is the persisted form of a cached resource.
type Entry struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"` // unix milliseconds
}

// CapturedAt returns the entry timestamp as a time.
func (e Entry) CapturedAt() time.Time {
	return time.UnixMilli(e.Timestamp).UTC()
}

// Age returns how long ago the entry was captured, relative to now.
func (e Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.CapturedAt())
}

// IsFresh reports whether the entry is younger than ttl.
func (e Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// Cache is a TTL-aware view over a kv.Store.
//
// Cache holds no lock of its own. Two writers racing on the same key resolve
// as last-writer-wins at the storage primitive.
type Cache struct {
	store  kv.Store
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock sets the time source. Defaults to the system clock.
func WithClock(c clock.Clock) Option {
	return func(cc *Cache) { cc.clock = c }
}

// WithLogger sets the logger used for dropped or unreadable entries.
func WithLogger(l *slog.Logger) Option {
	return func(cc *Cache) { cc.logger = l }
}

// New returns a Cache over store.
func New(store kv.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  store,
		clock:  clock.Real(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func storageKey(key string) string {
	return KeyPrefix + key
}

// Entry returns the raw entry for key. Malformed values and read failures
// are reported as absent.
func (c *Cache) Entry(key string) (Entry, bool) {
	raw, ok, err := c.store.Get(storageKey(key))
	if err != nil {
		c.logger.Debug("cache read failed", "key", key, "error", err)
		return Entry{}, false
	}
	if !ok {
		return Entry{}, false
	}

	var e Entry
	if err := json.Unmarshal(raw, &e); err != nil || len(e.Data) == 0 {
		c.logger.Debug("cache entry malformed", "key", key)
		return Entry{}, false
	}
	return e, true
}

// ReadFresh returns the payload only if it was captured less than ttl ago.
func (c *Cache) ReadFresh(key string, ttl time.Duration) (json.RawMessage, bool) {
	e, ok := c.Entry(key)
	if !ok || !e.IsFresh(c.clock.Now(), ttl) {
		return nil, false
	}
	return e.Data, true
}

// ReadImmediate returns the payload regardless of age.
func (c *Cache) ReadImmediate(key string) (json.RawMessage, bool) {
	e, ok := c.Entry(key)
	if !ok {
		return nil, false
	}
	return e.Data, true
}

// Write stores payload stamped with the current time. The stored timestamp
// never moves backwards: a clock reading behind the existing entry keeps
// the existing timestamp.
func (c *Cache) Write(key string, payload any) error {
	data, err := marshalPayload(payload)
	if err != nil {
		return output.ErrStorage("encode", err)
	}

	ts := c.clock.Now().UnixMilli()
	if prev, ok := c.Entry(key); ok && prev.Timestamp > ts {
		ts = prev.Timestamp
	}

	raw, err := json.Marshal(Entry{Data: data, Timestamp: ts})
	if err != nil {
		return output.ErrStorage("encode", err)
	}
	if err := c.store.Set(storageKey(key), raw); err != nil {
		return output.ErrStorage("write", err)
	}
	return nil
}

// Invalidate removes the entries for keys. Every key is attempted; the
// failures are joined.
func (c *Cache) Invalidate(keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := c.store.Remove(storageKey(key)); err != nil {
			errs = append(errs, err)
		}
	}
	if err := errors.Join(errs...); err != nil {
		return output.ErrStorage("invalidate", err)
	}
	return nil
}

// Keys lists the resource keys currently cached, when the store can enumerate.
func (c *Cache) Keys() ([]string, error) {
	lister, ok := c.store.(kv.Lister)
	if !ok {
		return nil, nil
	}
	keys, err := lister.Keys(KeyPrefix)
	if err != nil {
		return nil, output.ErrStorage("list", err)
	}
	for i, k := range keys {
		keys[i] = strings.TrimPrefix(k, KeyPrefix)
	}
	return keys, nil
}

func marshalPayload(payload any) (json.RawMessage, error) {
	switch p := payload.(type) {
	case json.RawMessage:
		if !json.Valid(p) {
			return nil, errors.New("invalid JSON payload")
		}
		return p, nil
	case []byte:
		if !json.Valid(p) {
			return nil, errors.New("invalid JSON payload")
		}
		return json.RawMessage(p), nil
	default:
		return json.Marshal(payload)
	}
}
