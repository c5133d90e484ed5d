package events

import "time"

// Known event types; Kind is free-form so new device firmware can report
// types the server has not seen yet.
const (
	KindHardBrake  = "hard_brake"
	KindRapidAccel = "rapid_accel"
	KindIdleStart  = "idle_start"
	KindIdleEnd    = "idle_end"
)

type Event struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	VehicleID string    `json:"vehicle_id"`
	Kind      string    `json:"kind"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedKmh  float64   `json:"speed_kmh"`
	CreatedAt time.Time `json:"created_at"`
}
