// Package session holds the authenticated identity: the bearer token and
// the signed-in user's profile.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/kv"
	"github.com/washbay/washbay-cli/internal/output"
)

// Storage keys.
const (
	TokenKey = "session-token"
	UserKey  = "session-user"
)

// TokenEnv overrides the stored token when set.
const TokenEnv = "WASHBAY_TOKEN"

// Profile is the signed-in user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"` // "customer" or "owner"
}

// IsOwner reports whether the user manages a service center.
func (p Profile) IsOwner() bool {
	return p.Role == "owner"
}

// ClearHook runs after Clear removes the session. Hooks receive the
// context passed to Clear.
type ClearHook func(ctx context.Context) error

// Store persists the session. The token goes to the secrets backend, the
// profile to the state backend; they may be the same kv.Store.
type Store struct {
	secrets kv.Store
	state   kv.Store
	clock   clock.Clock
	logger  *slog.Logger
	getenv  func(string) string

	mu    sync.Mutex
	hooks []ClearHook
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for token expiry checks.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithGetenv replaces os.Getenv for the token override.
func WithGetenv(fn func(string) string) Option {
	return func(s *Store) { s.getenv = fn }
}

// NewStore creates a session store.
func NewStore(secrets, state kv.Store, opts ...Option) *Store {
	s := &Store{
		secrets: secrets,
		state:   state,
		clock:   clock.Real(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		getenv:  os.Getenv,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OnClear registers a hook that runs on every Clear.
func (s *Store) OnClear(hook ClearHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

// SetToken stores the bearer token.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return output.ErrUsage("token must not be empty")
	}
	if err := s.secrets.Set(TokenKey, []byte(token)); err != nil {
		return output.ErrStorage("write", err)
	}
	return nil
}

// Token returns the bearer token. An absent or expired token is ok=false
// with a nil error. TokenEnv wins over the stored token and survives Clear.
func (s *Store) Token(ctx context.Context) (string, bool, error) {
	if env := strings.TrimSpace(s.getenv(TokenEnv)); env != "" {
		return env, true, nil
	}

	raw, ok, err := s.secrets.Get(TokenKey)
	if err != nil {
		return "", false, output.ErrStorage("read", err)
	}
	token := strings.TrimSpace(string(raw))
	if !ok || token == "" {
		return "", false, nil
	}

	if exp, ok := Expiry(token); ok && !s.clock.Now().Before(exp) {
		s.logger.Debug("stored token expired", "expired_at", exp)
		return "", false, nil
	}
	return token, true, nil
}

// TokenSource reports whether the active token came from the environment.
func (s *Store) TokenSource() string {
	if strings.TrimSpace(s.getenv(TokenEnv)) != "" {
		return "env"
	}
	return "store"
}

// Expiry extracts the exp claim of a JWT bearer token. The signature is
// not verified; the server remains the authority. Opaque tokens report
// ok=false and never expire client-side.
func Expiry(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// SetUser stores the signed-in profile.
func (s *Store) SetUser(p Profile) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return output.ErrStorage("encode", err)
	}
	if err := s.state.Set(UserKey, raw); err != nil {
		return output.ErrStorage("write", err)
	}
	return nil
}

// ClearUser removes the stored profile and leaves the token in place.
func (s *Store) ClearUser() error {
	if err := s.state.Remove(UserKey); err != nil {
		return output.ErrStorage("remove", err)
	}
	return nil
}

// User returns the signed-in profile. A malformed stored profile reads as absent.
func (s *Store) User() (Profile, bool, error) {
	raw, ok, err := s.state.Get(UserKey)
	if err != nil {
		return Profile{}, false, output.ErrStorage("read", err)
	}
	if !ok {
		return Profile{}, false, nil
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Debug("stored profile malformed", "error", err)
		return Profile{}, false, nil
	}
	return p, true, nil
}

// Clear removes the token and the profile, then runs the clear hooks.
// Every step is attempted even if an earlier one fails.
func (s *Store) Clear(ctx context.Context) error {
	var errs []error
	if err := s.secrets.Remove(TokenKey); err != nil {
		errs = append(errs, err)
	}
	if err := s.state.Remove(UserKey); err != nil {
		errs = append(errs, err)
	}

	s.mu.Lock()
	hooks := append([]ClearHook(nil), s.hooks...)
	s.mu.Unlock()
	for _, hook := range hooks {
		if err := hook(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if err := errors.Join(errs...); err != nil {
		return output.ErrStorage("clear", err)
	}
	return nil
}
