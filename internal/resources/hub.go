// Package resources exposes the typed accessors the CLI consumes. Each read
// is a data.Resource with its own endpoint, cache key, TTL, timeout and
// default; each write is a data.Mutation that invalidates a fixed list of
// cache keys on success.
package resources

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/washbay/washbay-cli/internal/data"
	"github.com/washbay/washbay-cli/internal/normalize"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/session"
)

type loginPayload struct {
	Token string          `json:"token"`
	User  session.Profile `json:"user"`
}

// Hub is the single entry point for network-backed data.
type Hub struct {
	syncer  *data.Syncer
	session *session.Store
	logger  *slog.Logger
	timings map[string]Timing

	bookings       *data.Resource[[]Booking]
	serviceCenters *data.Resource[[]ServiceCenter]
	alerts         *data.Resource[[]Alert]
	ownerBookings  *data.Resource[[]OwnerBooking]

	login         *data.Mutation[loginPayload]
	whoami        *data.Mutation[session.Profile]
	createBooking *data.Mutation[Booking]
	cancelBooking *data.Mutation[Booking]
	editProfile   *data.Mutation[session.Profile]
}

// Option configures a Hub.
type Option func(*Hub)

// WithTimings overrides per-resource TTLs and timeouts.
func WithTimings(t map[string]Timing) Option {
	return func(h *Hub) { h.timings = mergeTimings(t) }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

func listOf[T any](resource string) data.DecodeFunc[[]T] {
	return func(payload json.RawMessage) ([]T, error) {
		return normalize.List[T](resource, payload)
	}
}

func oneOf[T any](resource string) data.DecodeFunc[T] {
	return func(payload json.RawMessage) (T, error) {
		return normalize.One[T](resource, payload)
	}
}

// NewHub declares every resource on s. Clearing sess tears down the
// session realm, so logout invalidates every session-scoped key.
func NewHub(s *data.Syncer, sess *session.Store, opts ...Option) *Hub {
	h := &Hub{
		syncer:  s,
		session: sess,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		timings: DefaultTimings(),
	}
	for _, opt := range opts {
		opt(h)
	}

	noBookings := []Booking{}
	noCenters := []ServiceCenter{}
	noAlerts := []Alert{}

	h.bookings = data.NewResource(s, data.ResourceConfig[[]Booking]{
		Name:          KeyBookings,
		Endpoint:      "/bookings/my",
		CacheKey:      KeyBookings,
		TTL:           h.timings[KeyBookings].TTL,
		Timeout:       h.timings[KeyBookings].Timeout,
		Default:       &noBookings,
		SessionScoped: true,
		Decode:        listOf[Booking](KeyBookings),
	})
	h.serviceCenters = data.NewResource(s, data.ResourceConfig[[]ServiceCenter]{
		Name:          KeyServiceCenters,
		Endpoint:      "/service-centers",
		CacheKey:      KeyServiceCenters,
		TTL:           h.timings[KeyServiceCenters].TTL,
		Timeout:       h.timings[KeyServiceCenters].Timeout,
		Default:       &noCenters,
		SessionScoped: true,
		Decode:        listOf[ServiceCenter](KeyServiceCenters),
	})
	h.alerts = data.NewResource(s, data.ResourceConfig[[]Alert]{
		Name:          KeyAlerts,
		Endpoint:      "/alerts",
		CacheKey:      KeyAlerts,
		TTL:           h.timings[KeyAlerts].TTL,
		Timeout:       h.timings[KeyAlerts].Timeout,
		Default:       &noAlerts,
		SessionScoped: true,
		Decode:        listOf[Alert](KeyAlerts),
	})
	h.ownerBookings = data.NewResource(s, data.ResourceConfig[[]OwnerBooking]{
		Name:          KeyOwnerBookings,
		Endpoint:      "/owner/bookings",
		CacheKey:      KeyOwnerBookings,
		TTL:           h.timings[KeyOwnerBookings].TTL,
		Timeout:       h.timings[KeyOwnerBookings].Timeout,
		SessionScoped: true,
		Decode:        listOf[OwnerBooking](KeyOwnerBookings),
	})

	h.login = data.NewMutation(s, data.MutationConfig{
		Name:     OpLogin,
		Method:   http.MethodPost,
		Endpoint: "/auth/login",
		Timeout:  h.timings[OpLogin].Timeout,
	}, oneOf[loginPayload]("session"))
	h.whoami = data.NewMutation(s, data.MutationConfig{
		Name:     OpWhoami,
		Method:   http.MethodGet,
		Endpoint: "/profile",
		Timeout:  h.timings[OpWhoami].Timeout,
		ReadOnly: true,
	}, oneOf[session.Profile]("profile"))
	h.createBooking = data.NewMutation(s, data.MutationConfig{
		Name:        OpCreateBooking,
		Method:      http.MethodPost,
		Endpoint:    "/bookings",
		Timeout:     h.timings[OpCreateBooking].Timeout,
		Invalidates: []string{KeyBookings, KeyOwnerBookings},
		Idempotent:  true,
	}, oneOf[Booking](KeyBookings))
	h.cancelBooking = data.NewMutation(s, data.MutationConfig{
		Name:        OpCancelBooking,
		Method:      http.MethodPost,
		Endpoint:    "/bookings/{id}/cancel",
		Timeout:     h.timings[OpCancelBooking].Timeout,
		Invalidates: []string{KeyBookings, KeyOwnerBookings},
	}, oneOf[Booking](KeyBookings))
	h.editProfile = data.NewMutation(s, data.MutationConfig{
		Name:     OpEditProfile,
		Method:   http.MethodPut,
		Endpoint: "/profile",
		Timeout:  h.timings[OpEditProfile].Timeout,
	}, oneOf[session.Profile]("profile"))

	sess.OnClear(s.Realm(data.RealmSession).Teardown)
	return h
}

// Syncer returns the underlying sync layer.
func (h *Hub) Syncer() *data.Syncer { return h.syncer }

// Session returns the session store.
func (h *Hub) Session() *session.Store { return h.session }

// Timing returns the effective timing of a resource or mutation.
func (h *Hub) Timing(name string) Timing { return h.timings[name] }

// Reads

// Bookings returns the signed-in customer's bookings.
func (h *Hub) Bookings(ctx context.Context, force bool) data.Result[[]Booking] {
	return h.bookings.Fetch(ctx, force)
}

// BookingsIfFresh returns cached bookings only while within their TTL.
func (h *Hub) BookingsIfFresh(ctx context.Context) data.Result[[]Booking] {
	return h.bookings.FetchIfFresh(ctx)
}

// ServiceCenters returns the centers accepting bookings.
func (h *Hub) ServiceCenters(ctx context.Context, force bool) data.Result[[]ServiceCenter] {
	return h.serviceCenters.Fetch(ctx, force)
}

// ServiceCentersIfFresh returns cached centers only while within their TTL.
func (h *Hub) ServiceCentersIfFresh(ctx context.Context) data.Result[[]ServiceCenter] {
	return h.serviceCenters.FetchIfFresh(ctx)
}

// Alerts returns the signed-in user's notices.
func (h *Hub) Alerts(ctx context.Context, force bool) data.Result[[]Alert] {
	return h.alerts.Fetch(ctx, force)
}

// AlertsIfFresh returns cached alerts only while within their TTL.
func (h *Hub) AlertsIfFresh(ctx context.Context) data.Result[[]Alert] {
	return h.alerts.FetchIfFresh(ctx)
}

// OwnerBookings returns bookings across the owner's centers. It has no
// default: with no network and no cache it fails.
func (h *Hub) OwnerBookings(ctx context.Context, force bool) data.Result[[]OwnerBooking] {
	return h.ownerBookings.Fetch(ctx, force)
}

// OwnerBookingsIfFresh returns cached owner bookings only while within their TTL.
func (h *Hub) OwnerBookingsIfFresh(ctx context.Context) data.Result[[]OwnerBooking] {
	return h.ownerBookings.FetchIfFresh(ctx)
}

// Mutations

// Login exchanges credentials for a session. The previous identity's
// session-scoped cache is torn down before the new one is stored.
func (h *Hub) Login(ctx context.Context, creds Credentials) data.Result[session.Profile] {
	res := h.login.Run(ctx, nil, creds)
	if !res.Success {
		return data.Result[session.Profile]{Err: res.Err}
	}
	if res.Data.Token == "" {
		return data.Result[session.Profile]{Err: output.ErrAPI(http.StatusOK, "Login response did not include a token")}
	}
	if err := h.startSession(ctx, res.Data.Token, res.Data.User); err != nil {
		return data.Result[session.Profile]{Err: output.AsError(err)}
	}
	return data.Result[session.Profile]{Success: true, Data: res.Data.User, Source: data.SourceNetwork, CapturedAt: res.CapturedAt}
}

// LoginWithToken adopts an existing bearer token and loads its profile.
func (h *Hub) LoginWithToken(ctx context.Context, token string) data.Result[session.Profile] {
	if err := h.startSession(ctx, token, session.Profile{}); err != nil {
		return data.Result[session.Profile]{Err: output.AsError(err)}
	}

	res := h.whoami.Run(ctx, nil, nil)
	if !res.Success {
		// an unusable token must not linger
		if err := h.session.Clear(ctx); err != nil {
			h.logger.Warn("clearing rejected token failed", "error", err)
		}
		return res
	}
	if err := h.session.SetUser(res.Data); err != nil {
		return data.Result[session.Profile]{Err: output.AsError(err)}
	}
	return res
}

// Profile reloads the signed-in profile and stores it as the session user.
func (h *Hub) Profile(ctx context.Context) data.Result[session.Profile] {
	res := h.whoami.Run(ctx, nil, nil)
	if res.Success {
		if err := h.session.SetUser(res.Data); err != nil {
			h.logger.Warn("storing profile failed", "error", err)
		}
	}
	return res
}

func (h *Hub) startSession(ctx context.Context, token string, user session.Profile) error {
	if err := h.syncer.Realm(data.RealmSession).Teardown(ctx); err != nil {
		h.logger.Warn("session realm teardown failed", "error", err)
	}
	// the previous account's profile must not outlive its token
	if err := h.session.ClearUser(); err != nil {
		return err
	}
	if err := h.session.SetToken(token); err != nil {
		return err
	}
	if user.ID == "" {
		return nil
	}
	return h.session.SetUser(user)
}

// Logout clears the session and every session-scoped cache key.
func (h *Hub) Logout(ctx context.Context) error {
	return h.session.Clear(ctx)
}

// CreateBooking books a slot and invalidates both booking lists.
func (h *Hub) CreateBooking(ctx context.Context, req BookingRequest) data.Result[Booking] {
	return h.createBooking.Run(ctx, nil, req)
}

// CancelBooking cancels booking id and invalidates both booking lists.
func (h *Hub) CancelBooking(ctx context.Context, id string) data.Result[Booking] {
	if id == "" {
		return data.Result[Booking]{Err: output.ErrUsage("booking id is required")}
	}
	return h.cancelBooking.Run(ctx, map[string]string{"id": id}, nil)
}

// EditProfile updates the profile and stores the result as the session user.
func (h *Hub) EditProfile(ctx context.Context, update ProfileUpdate) data.Result[session.Profile] {
	res := h.editProfile.Run(ctx, nil, update)
	if !res.Success {
		return res
	}

	profile := res.Data
	if profile.ID == "" {
		// server sent no echo; apply the update locally
		current, _, err := h.session.User()
		if err != nil {
			h.logger.Warn("reading stored profile failed", "error", err)
		}
		profile = applyUpdate(current, update)
	}
	if err := h.session.SetUser(profile); err != nil {
		h.logger.Warn("storing edited profile failed", "error", err)
		res.Err = output.AsError(err)
	}
	res.Data = profile
	return res
}

func applyUpdate(p session.Profile, u ProfileUpdate) session.Profile {
	if u.Name != "" {
		p.Name = u.Name
	}
	if u.Email != "" {
		p.Email = u.Email
	}
	if u.Phone != "" {
		p.Phone = u.Phone
	}
	return p
}

// Cache maintenance

// CacheStatus describes one cached resource.
type CacheStatus struct {
	Key        string        `json:"key"`
	Cached     bool          `json:"cached"`
	Fresh      bool          `json:"fresh"`
	Age        time.Duration `json:"-"`
	AgeSeconds float64       `json:"age_seconds,omitempty"`
	TTLSeconds float64       `json:"ttl_seconds"`
	CapturedAt *time.Time    `json:"captured_at,omitempty"`
}

// CacheStatus reports the age and freshness of every cached resource.
func (h *Hub) CacheStatus(now time.Time) []CacheStatus {
	keys := ReadKeys()
	out := make([]CacheStatus, 0, len(keys))
	for _, key := range keys {
		ttl := h.timings[key].TTL
		st := CacheStatus{Key: key, TTLSeconds: ttl.Seconds()}
		if e, ok := h.syncer.Cache().Entry(key); ok {
			at := e.CapturedAt()
			st.Cached = true
			st.Age = e.Age(now)
			st.AgeSeconds = st.Age.Round(time.Millisecond).Seconds()
			st.Fresh = e.IsFresh(now, ttl)
			st.CapturedAt = &at
		}
		out = append(out, st)
	}
	return out
}

// ClearCache invalidates every cached resource.
func (h *Hub) ClearCache() error {
	return h.syncer.Invalidate(ReadKeys()...)
}
