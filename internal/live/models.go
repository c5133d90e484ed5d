package live

import "time"

// Fix is one raw position report from a vehicle, arriving via NATS or the
// HTTP ingest endpoint.
type Fix struct {
	VehicleID string    `json:"vehicle_id"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	SpeedKmh  float64   `json:"speed_kmh"`
	Event     string    `json:"event,omitempty"`
	TripEnd   bool      `json:"trip_end,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
