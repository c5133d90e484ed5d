package vehicle

import "time"

type Vehicle struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Plate          string    `json:"plate"`
	FleetID        string    `json:"fleet_id"`
	IdleSpeedKmh   float64   `json:"idle_speed_kmh"`
	MovingSpeedKmh float64   `json:"moving_speed_kmh"`
	FastSpeedKmh   float64   `json:"fast_speed_kmh"`
	CreatedAt      time.Time `json:"created_at"`
}
