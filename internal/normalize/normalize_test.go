package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type booking struct {
	ID          string  `json:"id"`
	CenterID    string  `json:"center_id"`
	CenterName  string  `json:"center_name"`
	Service     string  `json:"service"`
	Status      string  `json:"status"`
	ScheduledAt string  `json:"scheduled_at"`
	Vehicle     string  `json:"vehicle"`
	Price       float64 `json:"price"`
}

func TestEverySchemaCompiles(t *testing.T) {
	names := Resources()
	assert.ElementsMatch(t, []string{
		"alerts", "bookings", "owner-bookings", "profile", "service-centers", "session",
	}, names)

	for _, name := range names {
		s, err := Lookup(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, s.Resource)
		assert.NotEmpty(t, s.Description)
	}
}

func TestUnknownResource(t *testing.T) {
	_, err := List[booking]("nope", json.RawMessage(`[]`))
	assert.ErrorContains(t, err, `no schema for resource "nope"`)
}

func TestBookingsAlternateFieldNames(t *testing.T) {
	canonical := `[{"id":"b1","center_id":"c1","center_name":"Main St","service":"Full wash","status":"CONFIRMED","scheduled_at":"2026-03-02T10:00:00Z","vehicle":"ABC-123","price":25}]`
	camel := `{"bookings":[{"_id":7,"serviceCenterId":"c1","serviceCenterName":"Main St","serviceType":"Full wash","status":"confirmed","scheduledAt":"2026-03-02T10:00:00Z","car":{"plate":"ABC-123"},"amount":"25"}]}`
	nested := `{"items":[{"booking_id":"b9","service_center":{"id":"c1","name":"Main St"},"package":{"name":"Full wash"},"state":"Confirmed","slot":"2026-03-02T10:00:00Z","vehicle_plate":"ABC-123","total":25.0}]}`

	want := booking{
		CenterID:    "c1",
		CenterName:  "Main St",
		Service:     "Full wash",
		Status:      "confirmed",
		ScheduledAt: "2026-03-02T10:00:00Z",
		Vehicle:     "ABC-123",
		Price:       25,
	}

	for name, tc := range map[string]struct {
		payload string
		id      string
	}{
		"canonical": {canonical, "b1"},
		"camel":     {camel, "7"},
		"nested":    {nested, "b9"},
		"string center": {
			`[{"id":"b3","center":"c1","center_name":"Main St","service":"Full wash","status":"confirmed","scheduled_at":"2026-03-02T10:00:00Z","vehicle":"ABC-123","price":25}]`,
			"b3",
		},
		"string service_center": {
			`[{"id":"b4","service_center":"Main St","center_id":"c1","center_name":"Main St","service":"Full wash","status":"confirmed","scheduled_at":"2026-03-02T10:00:00Z","vehicle":"ABC-123","price":25}]`,
			"b4",
		},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := List[booking]("bookings", json.RawMessage(tc.payload))
			require.NoError(t, err)
			require.Len(t, got, 1)
			w := want
			w.ID = tc.id
			assert.Equal(t, w, got[0])
		})
	}
}

func TestListDefaultsAndNonObjects(t *testing.T) {
	got, err := List[booking]("bookings", json.RawMessage(`[{"id":"b1"}, "junk", 3]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "pending", got[0].Status)
	assert.Equal(t, float64(0), got[0].Price)

	for _, payload := range []string{`null`, `{}`, `"text"`, ``} {
		got, err := List[booking]("bookings", json.RawMessage(payload))
		require.NoError(t, err, payload)
		assert.Empty(t, got, payload)
		assert.NotNil(t, got, payload)
	}
}

func TestServiceCenters(t *testing.T) {
	payload := `{"centers":[{"id":1,"title":"Harbor","location":{"street":"1 Dock Rd","city":"Bayview"},"avg_rating":"4.5","is_open":false,"services":[{"name":"Rinse"},"Wax"]}]}`

	got, err := List[map[string]any]("service-centers", json.RawMessage(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	c := got[0]
	assert.Equal(t, "1", c["id"])
	assert.Equal(t, "Harbor", c["name"])
	assert.Equal(t, "1 Dock Rd", c["address"])
	assert.Equal(t, "Bayview", c["city"])
	assert.Equal(t, 4.5, c["rating"])
	assert.Equal(t, false, c["open"])
	assert.Equal(t, []any{"Rinse", "Wax"}, c["services"])

	// location as a plain address string
	got, err = List[map[string]any]("service-centers", json.RawMessage(`[{"id":1,"name":"Harbor","location":"1 Dock Rd"},{"id":2,"name":"Pier","location":{"city":"Bayview"}}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1 Dock Rd", got[0]["address"])
	assert.Equal(t, "", got[0]["city"])
	assert.Equal(t, "Bayview", got[1]["city"])
}

func TestOwnerBookingsStringNestedFields(t *testing.T) {
	got, err := List[map[string]any]("owner-bookings", json.RawMessage(`[{"id":"o1","center":"c7","customer":"Dana"},{"id":"o2","center":{"id":"c8","name":"Pier"},"user":{"name":"Lee"}}]`))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c7", got[0]["center_id"])
	assert.Equal(t, "", got[0]["center_name"])
	assert.Equal(t, "Dana", got[0]["customer_name"])
	assert.Equal(t, "c8", got[1]["center_id"])
	assert.Equal(t, "Pier", got[1]["center_name"])
	assert.Equal(t, "Lee", got[1]["customer_name"])
}

func TestAlerts(t *testing.T) {
	payload := `{"notifications":[{"id":"a1","subject":"Slot moved","body":"Now at 11:00","severity":"WARNING","is_read":true}]}`
	got, err := List[map[string]any]("alerts", json.RawMessage(payload))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Slot moved", got[0]["title"])
	assert.Equal(t, "Now at 11:00", got[0]["message"])
	assert.Equal(t, "warning", got[0]["level"])
	assert.Equal(t, true, got[0]["read"])
}

func TestOneUnwrapsSingleKey(t *testing.T) {
	type profile struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Role string `json:"role"`
	}

	got, err := One[profile]("profile", json.RawMessage(`{"user":{"user_id":42,"fullName":"Dana","role":"OWNER"}}`))
	require.NoError(t, err)
	assert.Equal(t, profile{ID: "42", Name: "Dana", Role: "owner"}, got)

	got, err = One[profile]("profile", json.RawMessage(`{"id":"u1","name":"Sam"}`))
	require.NoError(t, err)
	assert.Equal(t, profile{ID: "u1", Name: "Sam", Role: "customer"}, got)

	_, err = One[profile]("profile", json.RawMessage(`[1,2]`))
	assert.ErrorContains(t, err, "expected an object")
}

func TestSession(t *testing.T) {
	type user struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	type login struct {
		Token string `json:"token"`
		User  user   `json:"user"`
	}

	got, err := One[login]("session", json.RawMessage(`{"accessToken":"t-1","profile":{"_id":"u1","email":"d@example.com"}}`))
	require.NoError(t, err)
	assert.Equal(t, login{Token: "t-1", User: user{ID: "u1", Email: "d@example.com"}}, got)

	got, err = One[login]("session", json.RawMessage(`{"token":"t-2","user":"u2"}`))
	require.NoError(t, err)
	assert.Equal(t, login{Token: "t-2"}, got)
}

func TestInvalidNumberFails(t *testing.T) {
	_, err := List[booking]("bookings", json.RawMessage(`[{"id":"b1","price":"twelve"}]`))
	assert.Error(t, err)
}
