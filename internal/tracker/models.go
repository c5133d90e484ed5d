package tracker

import "time"

const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

type Position struct {
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

type Metrics struct {
	DistanceM       float64        `json:"distance_m"`
	CurrentSpeedKmh float64        `json:"current_speed_kmh"`
	AvgSpeedKmh     float64        `json:"avg_speed_kmh"`
	MaxSpeedKmh     float64        `json:"max_speed_kmh"`
	IdleSeconds     float64        `json:"idle_seconds"`
	EventCounts     map[string]int `json:"event_counts,omitempty"`
}

// Snapshot is one server view of a live trip. Treated as immutable once
// constructed; supersession is decided purely by Sequence.
type Snapshot struct {
	TransactionID string     `json:"transaction_id"`
	Sequence      int64      `json:"sequence"`
	Status        string     `json:"status"`
	Coordinates   []Position `json:"coordinates"`
	Metrics       Metrics    `json:"metrics"`
}

func (s Snapshot) Active() bool { return s.Status == StatusActive }

// PollResponse is the poll-fallback reply shape.
type PollResponse struct {
	Status    string    `json:"status"`
	HasUpdate bool      `json:"hasUpdate"`
	Trip      *Snapshot `json:"trip,omitempty"`
}

// Frame is the unsolicited push message shape.
type Frame struct {
	Trip Snapshot `json:"trip"`
}
