package resources

import "time"

// Resource and mutation names. Read names double as cache keys.
const (
	KeyBookings       = "bookings"
	KeyServiceCenters = "service-centers"
	KeyAlerts         = "alerts"
	KeyOwnerBookings  = "owner-bookings"

	OpLogin         = "login"
	OpWhoami        = "whoami"
	OpCreateBooking = "create-booking"
	OpCancelBooking = "cancel-booking"
	OpEditProfile   = "edit-profile"
)

// Timing is the cache lifetime and network budget of one resource.
// TTL is ignored for mutations.
type Timing struct {
	TTL     time.Duration
	Timeout time.Duration
}

// DefaultTimings returns the built-in timing of every resource and mutation.
func DefaultTimings() map[string]Timing {
	return map[string]Timing{
		KeyBookings:       {TTL: 60 * time.Second, Timeout: 10 * time.Second},
		KeyServiceCenters: {TTL: 5 * time.Minute, Timeout: 8 * time.Second},
		KeyAlerts:         {TTL: 30 * time.Second, Timeout: 8 * time.Second},
		KeyOwnerBookings:  {TTL: 60 * time.Second, Timeout: 10 * time.Second},

		OpLogin:         {Timeout: 15 * time.Second},
		OpWhoami:        {Timeout: 10 * time.Second},
		OpCreateBooking: {Timeout: 30 * time.Second},
		OpCancelBooking: {Timeout: 15 * time.Second},
		OpEditProfile:   {Timeout: 15 * time.Second},
	}
}

// mergeTimings overlays non-zero fields of overrides onto the defaults.
func mergeTimings(overrides map[string]Timing) map[string]Timing {
	out := DefaultTimings()
	for name, o := range overrides {
		t := out[name]
		if o.TTL > 0 {
			t.TTL = o.TTL
		}
		if o.Timeout > 0 {
			t.Timeout = o.Timeout
		}
		out[name] = t
	}
	return out
}

// ReadKeys lists every cached resource.
func ReadKeys() []string {
	return []string{KeyAlerts, KeyBookings, KeyOwnerBookings, KeyServiceCenters}
}
