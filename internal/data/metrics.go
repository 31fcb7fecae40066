package data

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// EventType classifies sync events.
type EventType int

const (
	EventServed           EventType = iota // an accessor returned data
	EventFailed                            // an accessor returned failure
	EventBackgroundOK                      // detached refresh wrote the cache
	EventBackgroundFailed                  // detached refresh failed; cache untouched
	EventBackgroundDropped                 // detached refresh discarded after invalidation
	EventMutation                          // a mutation completed
)

// Event records a single sync event.
type Event struct {
	Timestamp time.Time
	Resource  string
	Type      EventType
	Source    Source
	Duration  time.Duration
}

// Stats holds aggregate statistics for a single resource.
type Stats struct {
	Served            map[Source]int
	Failures          int
	BackgroundOK      int
	BackgroundFailed  int
	BackgroundDropped int
	Mutations         int
	NetworkTime       time.Duration
	NetworkCalls      int
}

// AvgLatency is the mean duration of calls that touched the network.
func (s *Stats) AvgLatency() time.Duration {
	if s.NetworkCalls == 0 {
		return 0
	}
	return s.NetworkTime / time.Duration(s.NetworkCalls)
}

const maxEvents = 100

// Metrics collects sync telemetry for --stats.
type Metrics struct {
	mu     sync.Mutex
	events []Event // ring buffer, last maxEvents
	stats  map[string]*Stats
}

// NewMetrics creates an empty metrics collector.
func NewMetrics() *Metrics {
	return &Metrics{stats: make(map[string]*Stats)}
}

// Record adds an event.
func (m *Metrics) Record(e Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events = append(m.events, e)
	if len(m.events) > maxEvents {
		m.events = m.events[len(m.events)-maxEvents:]
	}

	st, ok := m.stats[e.Resource]
	if !ok {
		st = &Stats{Served: make(map[Source]int)}
		m.stats[e.Resource] = st
	}
	switch e.Type {
	case EventServed:
		st.Served[e.Source]++
	case EventFailed:
		st.Failures++
	case EventBackgroundOK:
		st.BackgroundOK++
	case EventBackgroundFailed:
		st.BackgroundFailed++
	case EventBackgroundDropped:
		st.BackgroundDropped++
	case EventMutation:
		st.Mutations++
	}
	if e.Duration > 0 {
		st.NetworkCalls++
		st.NetworkTime += e.Duration
	}
}

// Events returns a copy of the recent events, oldest first.
func (m *Metrics) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Stats returns a copy of the statistics for resource.
func (m *Metrics) Stats(resource string) Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.stats[resource]
	if !ok {
		return Stats{Served: map[Source]int{}}
	}
	cp := *st
	cp.Served = make(map[Source]int, len(st.Served))
	for k, v := range st.Served {
		cp.Served[k] = v
	}
	return cp
}

// Summary renders one line per resource, sorted by name.
func (m *Metrics) Summary() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.stats))
	for name := range m.stats {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		st := m.stats[name]
		var parts []string
		for _, src := range []Source{SourceNetwork, SourceCache, SourceStale, SourceDefault} {
			if n := st.Served[src]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %d", src, n))
			}
		}
		if st.Failures > 0 {
			parts = append(parts, fmt.Sprintf("failed %d", st.Failures))
		}
		if st.Mutations > 0 {
			parts = append(parts, fmt.Sprintf("mutations %d", st.Mutations))
		}
		if n := st.BackgroundOK + st.BackgroundFailed + st.BackgroundDropped; n > 0 {
			parts = append(parts, fmt.Sprintf("refresh ok %d/%d", st.BackgroundOK, n))
		}
		if st.NetworkCalls > 0 {
			parts = append(parts, fmt.Sprintf("avg %s", st.AvgLatency().Round(time.Millisecond)))
		}
		lines = append(lines, name+": "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, " | ")
}
