// Package kv provides the durable key/value primitives the sync layer
// persists through. Every backend offers per-call durability only: a Set or
// Remove is complete when it returns, and there are no multi-key transactions.
package kv

import "fmt"

// Store is a get/set/remove map of opaque byte strings.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value for key. A missing key is ok=false with a nil error.
	Get(key string) (value []byte, ok bool, err error)
	Set(key string, value []byte) error
	// Remove deletes key. Removing a missing key is not an error.
	Remove(key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys(prefix string) ([]string, error)
}

// Closer is implemented by stores holding OS resources.
type Closer interface {
	Close() error
}

// Error describes a failed storage primitive.
type Error struct {
	Op      string // "get", "set", "remove", "open"
	Backend string
	Key     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Cause)
	}
	return fmt.Sprintf("%s %s %q: %v", e.Backend, e.Op, e.Key, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Cause
}
