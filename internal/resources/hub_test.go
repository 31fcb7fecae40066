package resources

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/washbay/washbay-cli/internal/api"
	"github.com/washbay/washbay-cli/internal/cache"
	"github.com/washbay/washbay-cli/internal/clock"
	"github.com/washbay/washbay-cli/internal/data"
	"github.com/washbay/washbay-cli/internal/kv"
	"github.com/washbay/washbay-cli/internal/output"
	"github.com/washbay/washbay-cli/internal/session"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// routeClient answers by "METHOD path".
type routeClient struct {
	mu     sync.Mutex
	routes map[string]func(api.Request) (*api.Response, error)
	calls  []api.Request
}

func (c *routeClient) Do(_ context.Context, req api.Request) (*api.Response, error) {
	c.mu.Lock()
	c.calls = append(c.calls, req)
	h, ok := c.routes[req.Method+" "+req.Path]
	c.mu.Unlock()
	if !ok {
		return nil, output.ErrNotFound(http.StatusNotFound, "no route "+req.Method+" "+req.Path)
	}
	return h(req)
}

func (c *routeClient) on(method, path, body string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[method+" "+path] = func(api.Request) (*api.Response, error) {
		return &api.Response{StatusCode: http.StatusOK, Body: []byte(body)}, nil
	}
}

func (c *routeClient) fail(method, path string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.routes[method+" "+path] = func(api.Request) (*api.Response, error) { return nil, err }
}

func (c *routeClient) count(method, path string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, r := range c.calls {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

func (c *routeClient) last(method, path string) api.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.calls) - 1; i >= 0; i-- {
		if c.calls[i].Method == method && c.calls[i].Path == path {
			return c.calls[i]
		}
	}
	return api.Request{}
}

type fixture struct {
	hub     *Hub
	client  *routeClient
	clock   *clock.Fake
	state   *kv.Memory
	secrets *kv.Memory
	cache   *cache.Cache
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	clk := clock.NewFake(t0)
	state, secrets := kv.NewMemory(), kv.NewMemory()
	c := cache.New(state, cache.WithClock(clk))
	client := &routeClient{routes: map[string]func(api.Request) (*api.Response, error){}}
	s := data.NewSyncer(c, client, data.WithClock(clk))
	t.Cleanup(s.Wait)
	sess := session.NewStore(secrets, state, session.WithClock(clk), session.WithGetenv(func(string) string { return "" }))
	return &fixture{hub: NewHub(s, sess, opts...), client: client, clock: clk, state: state, secrets: secrets, cache: c}
}

func (f *fixture) seed(t *testing.T, key string, v any) {
	t.Helper()
	require.NoError(t, f.cache.Write(key, v))
}

func TestBookingsNormalizesPayload(t *testing.T) {
	f := newFixture(t)
	f.client.on(http.MethodGet, "/bookings/my", `{"bookings":[
		{"_id":42,"service_center":{"id":"c1","name":"Downtown"},"service":{"name":"Full wash"},"status":"CONFIRMED","scheduledAt":"2026-03-02T10:00:00Z","amount":"25.5"}
	]}`)

	res := f.hub.Bookings(context.Background(), false)
	require.True(t, res.Success)
	assert.Equal(t, data.SourceNetwork, res.Source)
	require.Len(t, res.Data, 1)
	b := res.Data[0]
	assert.Equal(t, "42", b.ID)
	assert.Equal(t, "c1", b.CenterID)
	assert.Equal(t, "Downtown", b.CenterName)
	assert.Equal(t, "Full wash", b.Service)
	assert.Equal(t, "confirmed", b.Status)
	assert.InDelta(t, 25.5, b.Price, 0.001)
}

func TestBookingsDefaultWhenOffline(t *testing.T) {
	f := newFixture(t)
	f.client.fail(http.MethodGet, "/bookings/my", output.ErrTimeout(10*time.Second))

	res := f.hub.Bookings(context.Background(), false)
	require.True(t, res.Success)
	assert.Equal(t, data.SourceDefault, res.Source)
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
	require.NotNil(t, res.Err)
	assert.Equal(t, output.CodeTimeout, res.Err.Code)
}

func TestOwnerBookingsHasNoDefault(t *testing.T) {
	f := newFixture(t)
	f.client.fail(http.MethodGet, "/owner/bookings", output.ErrNetwork(assert.AnError))

	res := f.hub.OwnerBookings(context.Background(), false)
	assert.False(t, res.Success)
	assert.Equal(t, data.SourceNone, res.Source)
	require.NotNil(t, res.Err)
	assert.Equal(t, output.CodeNetwork, res.Err.Code)
}

func TestServiceCentersServedFromCacheThenRefreshed(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyServiceCenters, []ServiceCenter{{ID: "c1", Name: "Old"}})
	f.client.on(http.MethodGet, "/service-centers", `[{"id":"c1","name":"New","open":true}]`)

	res := f.hub.ServiceCenters(context.Background(), false)
	require.True(t, res.Success)
	assert.Equal(t, data.SourceCache, res.Source)
	assert.Equal(t, "Old", res.Data[0].Name)

	f.hub.Syncer().Wait()
	again := f.hub.ServiceCentersIfFresh(context.Background())
	require.True(t, again.Success)
	assert.Equal(t, "New", again.Data[0].Name)
}

func TestAlertsIfFreshRespectsTTL(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyAlerts, []Alert{{ID: "a1", Title: "Closed Sunday"}})

	assert.True(t, f.hub.AlertsIfFresh(context.Background()).Success)

	assert.Zero(t, f.client.count(http.MethodGet, "/alerts"))

	f.clock.Advance(31 * time.Second)
	f.client.fail(http.MethodGet, "/alerts", output.ErrTimeout(8*time.Second))
	res := f.hub.AlertsIfFresh(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, data.SourceStale, res.Source)
	assert.Equal(t, 1, f.client.count(http.MethodGet, "/alerts"))
	assert.Equal(t, 8*time.Second, f.client.last(http.MethodGet, "/alerts").Timeout)
}

func TestTimingOverrides(t *testing.T) {
	f := newFixture(t, WithTimings(map[string]Timing{KeyAlerts: {TTL: 5 * time.Minute}}))
	assert.Equal(t, 5*time.Minute, f.hub.Timing(KeyAlerts).TTL)
	assert.Equal(t, 8*time.Second, f.hub.Timing(KeyAlerts).Timeout)
	assert.Equal(t, 60*time.Second, f.hub.Timing(KeyBookings).TTL)

	f.seed(t, KeyAlerts, []Alert{{ID: "a1"}})
	f.clock.Advance(time.Minute)
	assert.True(t, f.hub.AlertsIfFresh(context.Background()).Success)
}

func TestCreateBookingInvalidatesBookingLists(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyBookings, []Booking{{ID: "b0"}})
	f.seed(t, KeyOwnerBookings, []OwnerBooking{{ID: "b0"}})
	f.seed(t, KeyServiceCenters, []ServiceCenter{{ID: "c1"}})
	f.client.on(http.MethodPost, "/bookings", `{"booking":{"id":"b1","status":"pending"}}`)

	res := f.hub.CreateBooking(context.Background(), BookingRequest{CenterID: "c1", Service: "basic", ScheduledAt: "2026-03-02T10:00:00Z"})
	require.True(t, res.Success)
	assert.Equal(t, "b1", res.Data.ID)

	_, ok := f.cache.Entry(KeyBookings)
	assert.False(t, ok)
	_, ok = f.cache.Entry(KeyOwnerBookings)
	assert.False(t, ok)
	_, ok = f.cache.Entry(KeyServiceCenters)
	assert.True(t, ok, "unrelated keys survive")

	sent := f.client.last(http.MethodPost, "/bookings")
	assert.NotEmpty(t, sent.Header.Get("Idempotency-Key"))
	assert.Equal(t, 30*time.Second, sent.Timeout)
}

func TestCreateBookingValidationLeavesCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyBookings, []Booking{{ID: "b0"}})
	f.client.fail(http.MethodPost, "/bookings", output.ErrValidation(http.StatusUnprocessableEntity, "", map[string][]string{"scheduled_at": {"is taken"}}))

	res := f.hub.CreateBooking(context.Background(), BookingRequest{CenterID: "c1"})
	assert.False(t, res.Success)
	require.NotNil(t, res.Err)
	assert.Equal(t, output.CodeValidation, res.Err.Code)
	assert.Equal(t, []string{"is taken"}, res.Err.Fields["scheduled_at"])

	_, ok := f.cache.Entry(KeyBookings)
	assert.True(t, ok)
}

func TestCancelBooking(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyBookings, []Booking{{ID: "b 1"}})
	f.client.on(http.MethodPost, "/bookings/b%201/cancel", ``)

	res := f.hub.CancelBooking(context.Background(), "b 1")
	require.True(t, res.Success)
	_, ok := f.cache.Entry(KeyBookings)
	assert.False(t, ok)

	empty := f.hub.CancelBooking(context.Background(), "")
	assert.False(t, empty.Success)
	assert.Equal(t, output.CodeUsage, empty.Err.Code)
}

func TestLoginStoresSessionAndTearsDownPreviousCache(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyBookings, []Booking{{ID: "someone-elses"}})
	f.client.on(http.MethodPost, "/auth/login", `{"accessToken":"tok-1","user":{"id":7,"fullName":"Ana","email":"ana@example.com","role":"OWNER"}}`)

	res := f.hub.Login(context.Background(), Credentials{Email: "ana@example.com", Password: "pw"})
	require.True(t, res.Success)
	assert.Equal(t, "7", res.Data.ID)
	assert.True(t, res.Data.IsOwner())

	tok, ok, err := f.hub.Session().Token(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok-1", tok)

	user, ok, err := f.hub.Session().User()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ana", user.Name)

	_, cached := f.cache.Entry(KeyBookings)
	assert.False(t, cached)
}

func TestLoginWithoutUserDropsPreviousProfile(t *testing.T) {
	f := newFixture(t)
	f.client.on(http.MethodPost, "/auth/login", `{"token":"tok-A","user":{"id":"u-alice","name":"Alice","role":"customer"}}`)
	require.True(t, f.hub.Login(context.Background(), Credentials{Email: "alice@example.com", Password: "pw"}).Success)

	f.client.on(http.MethodPost, "/auth/login", `{"token":"tok-B"}`)
	require.True(t, f.hub.Login(context.Background(), Credentials{Email: "bo@example.com", Password: "pw"}).Success)

	tok, ok, err := f.hub.Session().Token(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "tok-B", tok)

	_, present, err := f.hub.Session().User()
	require.NoError(t, err)
	assert.False(t, present)
}

func TestLoginWithoutTokenFails(t *testing.T) {
	f := newFixture(t)
	f.client.on(http.MethodPost, "/auth/login", `{"user":{"id":1}}`)

	res := f.hub.Login(context.Background(), Credentials{Email: "a", Password: "b"})
	assert.False(t, res.Success)
	_, ok, _ := f.hub.Session().Token(context.Background())
	assert.False(t, ok)
}

func TestLoginRejected(t *testing.T) {
	f := newFixture(t)
	f.client.fail(http.MethodPost, "/auth/login", output.ErrAuth("Invalid email or password"))

	res := f.hub.Login(context.Background(), Credentials{Email: "a", Password: "b"})
	assert.False(t, res.Success)
	assert.True(t, res.Err.IsAuth())
}

func TestLoginWithToken(t *testing.T) {
	f := newFixture(t)
	f.client.on(http.MethodGet, "/profile", `{"user":{"id":"u1","name":"Bo"}}`)

	res := f.hub.LoginWithToken(context.Background(), "tok-2")
	require.True(t, res.Success)
	assert.Equal(t, "Bo", res.Data.Name)
	user, ok, _ := f.hub.Session().User()
	require.True(t, ok)
	assert.Equal(t, "u1", user.ID)
}

func TestLoginWithRejectedTokenClearsIt(t *testing.T) {
	f := newFixture(t)
	f.client.fail(http.MethodGet, "/profile", output.ErrAuth("Token expired"))

	res := f.hub.LoginWithToken(context.Background(), "bad")
	assert.False(t, res.Success)
	_, ok, _ := f.hub.Session().Token(context.Background())
	assert.False(t, ok)
}

func TestLogoutClearsSessionScopedKeys(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.Session().SetToken("tok"))
	require.NoError(t, f.hub.Session().SetUser(session.Profile{ID: "u1"}))
	for _, key := range ReadKeys() {
		f.seed(t, key, []string{})
	}

	require.NoError(t, f.hub.Logout(context.Background()))

	for _, key := range ReadKeys() {
		_, ok := f.cache.Entry(key)
		assert.False(t, ok, key)
	}
	_, ok, _ := f.hub.Session().Token(context.Background())
	assert.False(t, ok)
	_, ok, _ = f.hub.Session().User()
	assert.False(t, ok)
}

func TestEditProfileUsesEcho(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.Session().SetUser(session.Profile{ID: "u1", Name: "Old"}))
	f.client.on(http.MethodPut, "/profile", `{"id":"u1","name":"New","phone":"555"}`)

	res := f.hub.EditProfile(context.Background(), ProfileUpdate{Name: "New", Phone: "555"})
	require.True(t, res.Success)
	user, _, _ := f.hub.Session().User()
	assert.Equal(t, "New", user.Name)
	assert.Equal(t, "555", user.Phone)

	var body ProfileUpdate
	raw, err := json.Marshal(f.client.last(http.MethodPut, "/profile").Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, "New", body.Name)
}

func TestEditProfileWithoutEchoMergesLocally(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.hub.Session().SetUser(session.Profile{ID: "u1", Name: "Old", Email: "a@example.com"}))
	f.client.on(http.MethodPut, "/profile", ``)

	res := f.hub.EditProfile(context.Background(), ProfileUpdate{Name: "New"})
	require.True(t, res.Success)
	assert.Equal(t, session.Profile{ID: "u1", Name: "New", Email: "a@example.com"}, res.Data)
}

func TestCacheStatusAndClear(t *testing.T) {
	f := newFixture(t)
	f.seed(t, KeyBookings, []Booking{})
	f.clock.Advance(90 * time.Second)
	f.seed(t, KeyAlerts, []Alert{})

	status := f.hub.CacheStatus(f.clock.Now())
	require.Len(t, status, len(ReadKeys()))
	byKey := map[string]CacheStatus{}
	for _, s := range status {
		byKey[s.Key] = s
	}
	assert.True(t, byKey[KeyBookings].Cached)
	assert.False(t, byKey[KeyBookings].Fresh)
	assert.InDelta(t, 90, byKey[KeyBookings].AgeSeconds, 0.001)
	assert.True(t, byKey[KeyAlerts].Fresh)
	assert.False(t, byKey[KeyServiceCenters].Cached)

	require.NoError(t, f.hub.ClearCache())
	for _, s := range f.hub.CacheStatus(f.clock.Now()) {
		assert.False(t, s.Cached, s.Key)
	}
}

func TestProfileRefreshStoresUser(t *testing.T) {
	f := newFixture(t)
	f.client.on(http.MethodGet, "/profile", `{"profile":{"user_id":9,"full_name":"Cy","role":"Owner"}}`)

	res := f.hub.Profile(context.Background())
	require.True(t, res.Success)
	assert.Equal(t, session.Profile{ID: "9", Name: "Cy", Role: "owner"}, res.Data)

	user, ok, _ := f.hub.Session().User()
	require.True(t, ok)
	assert.Equal(t, "Cy", user.Name)

	st := f.hub.Syncer().Metrics().Stats(OpWhoami)
	assert.Equal(t, 0, st.Mutations)
	assert.Equal(t, 1, st.Served[data.SourceNetwork])
}
