package model

// Candidate is one driver returned by the matching service for a point and
// radius. DriverID identifies the driver record, UserID the account the
// real-time channel is keyed by; both travel together through a dispatch.
type Candidate struct {
	DriverID    string
	UserID      string
	DisplayName string
	Location    Point
	VehicleType string
	IsVIP       bool
	Rating      float64
}
