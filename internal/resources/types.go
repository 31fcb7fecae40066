package resources

// Booking is one of the signed-in customer's bookings.
type Booking struct {
	ID          string  `json:"id"`
	CenterID    string  `json:"center_id"`
	CenterName  string  `json:"center_name"`
	Service     string  `json:"service"`
	Status      string  `json:"status"`
	ScheduledAt string  `json:"scheduled_at"`
	Vehicle     string  `json:"vehicle"`
	Price       float64 `json:"price"`
	CreatedAt   string  `json:"created_at,omitempty"`
}

// OwnerBooking is a booking at a center the signed-in owner manages.
type OwnerBooking struct {
	ID           string  `json:"id"`
	CenterID     string  `json:"center_id"`
	CenterName   string  `json:"center_name"`
	CustomerName string  `json:"customer_name"`
	Service      string  `json:"service"`
	Status       string  `json:"status"`
	ScheduledAt  string  `json:"scheduled_at"`
	Price        float64 `json:"price"`
}

// ServiceCenter is a location accepting bookings.
type ServiceCenter struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	City     string   `json:"city"`
	Phone    string   `json:"phone,omitempty"`
	Rating   float64  `json:"rating"`
	Open     bool     `json:"open"`
	Services []string `json:"services"`
}

// Alert is a notice for the signed-in user.
type Alert struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Level     string `json:"level"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at,omitempty"`
}

// BookingRequest is the body of a booking creation.
type BookingRequest struct {
	CenterID    string `json:"center_id"`
	Service     string `json:"service"`
	ScheduledAt string `json:"scheduled_at"`
	Vehicle     string `json:"vehicle,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// ProfileUpdate is the body of a profile edit. Empty fields are left unchanged.
type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// Credentials is the body of a login.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
