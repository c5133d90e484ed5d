package events

import (
	"context"
	"errors"

	"backend-fleettrack/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) Append(ctx context.Context, input Event) (Event, error) {
	if input.TripID == "" || input.Kind == "" {
		return Event{}, errors.New("events: trip_id and kind required")
	}
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO trip_events (id, trip_id, vehicle_id, kind, lat, lon, speed_kmh)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, input.ID, input.TripID, input.VehicleID, input.Kind, input.Lat, input.Lon, input.SpeedKmh)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Event{}, err
	}
	return input, nil
}

func (s *Service) ListByTrip(ctx context.Context, tripID string) ([]Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, trip_id, vehicle_id, kind, lat, lon, speed_kmh, created_at
		FROM trip_events WHERE trip_id=$1
		ORDER BY created_at
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.ID, &e.TripID, &e.VehicleID, &e.Kind, &e.Lat, &e.Lon, &e.SpeedKmh, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// CountsByTrip returns kind -> occurrences for one trip, the same shape the
// live snapshot carries in Metrics.EventCounts.
func (s *Service) CountsByTrip(ctx context.Context, tripID string) (map[string]int, error) {
	rows, err := s.db.Query(ctx, `
		SELECT kind, COUNT(*)
		FROM trip_events WHERE trip_id=$1
		GROUP BY kind
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, nil
}
