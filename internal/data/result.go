package data

import (
	"time"

	"github.com/washbay/washbay-cli/internal/output"
)

// Source identifies where a Result's data came from.
type Source int

const (
	SourceNone    Source = iota // no data
	SourceNetwork               // fetched just now
	SourceCache                 // cached entry, served without waiting on the network
	SourceStale                 // cached entry served because the fetch failed
	SourceDefault               // static default served because the fetch failed and nothing was cached
)

func (s Source) String() string {
	switch s {
	case SourceNone:
		return "none"
	case SourceNetwork:
		return "network"
	case SourceCache:
		return "cache"
	case SourceStale:
		return "stale"
	case SourceDefault:
		return "default"
	default:
		return "unknown"
	}
}

// Fallback reports whether the data stands in for a failed fetch.
func (s Source) Fallback() bool {
	return s == SourceStale || s == SourceDefault
}

// Result is the uniform outcome of every accessor. Accessors never return
// a Go error; failure is Success=false with Err set.
//
// Err is also set when a fallback made Success true, so callers can still
// react to the underlying failure (for example a 401).
type Result[T any] struct {
	Success    bool
	Data       T
	Err        *output.Error
	Source     Source
	CapturedAt time.Time // zero for defaults and failures

	// Refreshing is true when a detached background refresh was started.
	Refreshing bool
}

func failure[T any](err *output.Error) Result[T] {
	return Result[T]{Err: err, Source: SourceNone}
}
