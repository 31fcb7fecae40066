package data

import (
	"context"
	"slices"
	"sync"
)

// RealmSession groups every cache key that belongs to the signed-in user.
const RealmSession = "session"

// Realm is a named group of cache keys with a shared lifecycle.
// Tearing a realm down invalidates all of its keys at once.
type Realm struct {
	mu     sync.RWMutex
	name   string
	keys   map[string]struct{}
	syncer *Syncer
}

func newRealm(name string, s *Syncer) *Realm {
	return &Realm{name: name, keys: make(map[string]struct{}), syncer: s}
}

// Name returns the realm's identifier.
func (r *Realm) Name() string { return r.name }

// Register adds cache keys to the realm.
func (r *Realm) Register(keys ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, k := range keys {
		r.keys[k] = struct{}{}
	}
}

// Keys returns the registered keys, sorted.
func (r *Realm) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.keys))
	for k := range r.keys {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Teardown invalidates every key in the realm. Keys stay registered so
// the realm can be reused by the next session. The signature matches
// session.ClearHook.
func (r *Realm) Teardown(ctx context.Context) error {
	keys := r.Keys()
	if len(keys) == 0 {
		return nil
	}
	r.syncer.logger.Debug("realm teardown", "realm", r.name, "keys", keys)
	return r.syncer.Invalidate(keys...)
}
