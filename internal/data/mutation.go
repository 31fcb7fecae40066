package data

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/output"
)

// MutationConfig declares one write endpoint.
type MutationConfig struct {
	Name     string
	Method   string
	Endpoint string // may contain {name} placeholders
	Timeout  time.Duration

	// Invalidates lists the cache keys removed after a successful call.
	Invalidates []string

	// Idempotent calls carry a fresh Idempotency-Key so a repeated command
	// after a timeout cannot apply twice.
	Idempotent bool

	// ReadOnly marks an uncached read sent through the mutation path, such
	// as loading the profile. It is recorded as a served read.
	ReadOnly bool
}

// Mutation is a typed write. It never reads the cache and never falls back.
type Mutation[T any] struct {
	syncer *Syncer
	cfg    MutationConfig
	decode DecodeFunc[T]
}

// NewMutation creates a mutation. A nil decode unmarshals the payload as JSON.
func NewMutation[T any](s *Syncer, cfg MutationConfig, decode DecodeFunc[T]) *Mutation[T] {
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	return &Mutation[T]{syncer: s, cfg: cfg, decode: decode}
}

// Config returns the mutation declaration.
func (m *Mutation[T]) Config() MutationConfig { return m.cfg }

// Run performs the call once. On success the dependent keys are invalidated;
// on failure the cache is untouched and validation details are kept in Err.
func (m *Mutation[T]) Run(ctx context.Context, params map[string]string, body any) Result[T] {
	req := api.Request{
		Method:  m.cfg.Method,
		Path:    expandPath(m.cfg.Endpoint, params),
		Body:    body,
		Timeout: m.cfg.Timeout,
	}
	if m.cfg.Idempotent {
		req.Header = http.Header{"Idempotency-Key": {uuid.NewString()}}
	}

	start := m.syncer.clock.Now()
	resp, err := m.syncer.client.Do(ctx, req)
	elapsed := m.syncer.clock.Now().Sub(start)
	if err != nil {
		m.record(EventFailed, SourceNone, elapsed)
		return failure[T](output.AsError(err))
	}

	if len(m.cfg.Invalidates) > 0 {
		if err := m.syncer.Invalidate(m.cfg.Invalidates...); err != nil {
			m.syncer.logger.Warn("invalidation after mutation failed", "mutation", m.cfg.Name, "keys", m.cfg.Invalidates, "error", err)
		}
	}

	var v T
	if resp.StatusCode != http.StatusNoContent {
		decoded, err := decode(m.decode, resp.Data())
		if err != nil {
			// the write happened; only the echo is unusable
			m.syncer.logger.Warn("mutation response unreadable", "mutation", m.cfg.Name, "error", err)
		} else {
			v = decoded
		}
	}

	if m.cfg.ReadOnly {
		m.record(EventServed, SourceNetwork, elapsed)
	} else {
		m.record(EventMutation, SourceNone, elapsed)
	}
	return Result[T]{Success: true, Data: v, Source: SourceNetwork, CapturedAt: m.syncer.clock.Now()}
}

func (m *Mutation[T]) record(t EventType, src Source, d time.Duration) {
	m.syncer.metrics.Record(Event{
		Timestamp: m.syncer.clock.Now(),
		Resource:  m.cfg.Name,
		Type:      t,
		Source:    src,
		Duration:  d,
	})
}

func expandPath(endpoint string, params map[string]string) string {
	if len(params) == 0 {
		return endpoint
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", url.PathEscape(v))
	}
	return strings.NewReplacer(pairs...).Replace(endpoint)
}
