package domain

import "time"

// DriverStatus represents the duty state of a driver.
type DriverStatus string

const (
	StatusActive   DriverStatus = "active"
	StatusInactive DriverStatus = "inactive"
	StatusBreak    DriverStatus = "break"
)

// Valid reports whether s is one of the known duty states.
func (s DriverStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBreak:
		return true
	}
	return false
}

// StaleAfter is the freshness window: a driver whose last update is older
// than this is considered stale.
const StaleAfter = 2 * time.Minute

// Coordinates is a geographic point in floating-point degrees.
type Coordinates struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// Valid reports whether the pair is a plausible WGS84 position.
func (c Coordinates) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180
}

// Delivery is the job currently assigned to a driver. It is owned by the
// driver record and disappears when the assignment is cleared or the
// driver is removed.
type Delivery struct {
	ID      string `json:"id" bson:"id"`
	Address string `json:"address" bson:"address"`
	// ETA is the estimated arrival as an ISO-8601 timestamp string.
	ETA string `json:"eta" bson:"eta"`
}

// Driver is the per-driver state tracked by the fleet store.
type Driver struct {
	ID       string       `json:"id"`
	Name     string       `json:"name"`
	Vehicle  string       `json:"vehicle"`
	Status   DriverStatus `json:"status"`
	Location Coordinates  `json:"location"`
	// PrevLocation is the location immediately prior to the latest
	// update, used as the animation start point. Nil until the driver
	// has moved once.
	PrevLocation    *Coordinates `json:"prevLocation,omitempty"`
	Phone           string       `json:"phone,omitempty"`
	CurrentDelivery *Delivery    `json:"currentDelivery,omitempty"`
	// LastUpdate is zero when no timestamped update has been received.
	LastUpdate time.Time `json:"-"`
}

// IsStale reports whether the driver's last update is older than
// StaleAfter. A driver that never reported a timestamped update is never
// stale. Pure; safe to call on every render.
func (d Driver) IsStale(now time.Time) bool {
	if d.LastUpdate.IsZero() {
		return false
	}
	return now.Sub(d.LastUpdate) > StaleAfter
}
