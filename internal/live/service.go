package live

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"backend-fleettrack/internal/db"
	"backend-fleettrack/internal/shared/geo"
	"backend-fleettrack/internal/tracker"

	"github.com/google/uuid"
)

// Broadcaster pushes a serialized frame to every subscriber of a vehicle.
// *stream.Hub satisfies it.
type Broadcaster interface {
	Broadcast(vehicleID string, payload []byte)
}

// FixObserver is notified of each accepted position pair; the coverage
// broker uses it to match traversed segments.
type FixObserver interface {
	ObserveFix(vehicleID string, prev, curr tracker.Position)
}

// TripGauge mirrors the number of vehicles with a live trip into metrics.
type TripGauge interface {
	ActiveTripsSet(n float64)
}

type noopGauge struct{}

func (noopGauge) ActiveTripsSet(float64) {}

var ErrNoActiveTrip = errors.New("live: no active trip")

type liveTrip struct {
	snapshot  tracker.Snapshot
	startedAt time.Time
}

// Service owns the current trip per vehicle: it assigns monotonic sequence
// numbers, derives trip metrics from the raw fix stream, persists points, and
// broadcasts each snapshot frame.
type Service struct {
	db           db.Querier
	hub          Broadcaster
	idleSpeedKmh float64

	mu        sync.Mutex
	trips     map[string]*liveTrip
	observers []FixObserver
	gauge     TripGauge
}

func NewService(querier db.Querier, hub Broadcaster, idleSpeedKmh float64) *Service {
	if idleSpeedKmh <= 0 {
		idleSpeedKmh = 2
	}
	return &Service{
		db:           querier,
		hub:          hub,
		idleSpeedKmh: idleSpeedKmh,
		trips:        make(map[string]*liveTrip),
		gauge:        noopGauge{},
	}
}

func (s *Service) SetTripGauge(g TripGauge) {
	if g == nil {
		g = noopGauge{}
	}
	s.mu.Lock()
	s.gauge = g
	s.mu.Unlock()
}

func (s *Service) AddObserver(o FixObserver) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, o)
}

// Append ingests one fix and returns the resulting snapshot.
func (s *Service) Append(ctx context.Context, fix Fix) (tracker.Snapshot, error) {
	if fix.VehicleID == "" {
		return tracker.Snapshot{}, errors.New("live: fix without vehicle id")
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = time.Now()
	}

	s.mu.Lock()
	trip, ok := s.trips[fix.VehicleID]
	if !ok {
		trip = &liveTrip{
			snapshot: tracker.Snapshot{
				TransactionID: uuid.NewString(),
				Status:        tracker.StatusActive,
				Metrics:       tracker.Metrics{EventCounts: map[string]int{}},
			},
			startedAt: fix.Timestamp,
		}
		s.trips[fix.VehicleID] = trip
		s.gauge.ActiveTripsSet(float64(len(s.trips)))
		s.mu.Unlock()

		if err := s.insertTrip(ctx, fix.VehicleID, trip); err != nil {
			s.dropTrip(fix.VehicleID)
			return tracker.Snapshot{}, err
		}
		s.mu.Lock()
	}

	var prev *tracker.Position
	if n := len(trip.snapshot.Coordinates); n > 0 {
		p := trip.snapshot.Coordinates[n-1]
		prev = &p
	}

	pos := tracker.Position{Lat: fix.Lat, Lon: fix.Lon, Timestamp: fix.Timestamp}
	s.updateMetrics(trip, prev, pos, fix)
	trip.snapshot.Sequence++
	trip.snapshot.Coordinates = append(trip.snapshot.Coordinates, pos)
	if fix.Event != "" {
		trip.snapshot.Metrics.EventCounts[fix.Event]++
	}

	snap := snapshotCopy(trip.snapshot)
	observers := append([]FixObserver(nil), s.observers...)
	s.mu.Unlock()

	if err := s.insertPoint(ctx, snap.TransactionID, pos, snap.Metrics.CurrentSpeedKmh); err != nil {
		return tracker.Snapshot{}, err
	}

	s.broadcast(fix.VehicleID, snap)
	if prev != nil {
		for _, o := range observers {
			o.ObserveFix(fix.VehicleID, *prev, pos)
		}
	}

	if fix.TripEnd {
		return s.Complete(ctx, fix.VehicleID)
	}
	return snap, nil
}

// Complete ends the vehicle's current trip: one completed frame is broadcast,
// then the live state is dropped.
func (s *Service) Complete(ctx context.Context, vehicleID string) (tracker.Snapshot, error) {
	s.mu.Lock()
	trip, ok := s.trips[vehicleID]
	if !ok {
		s.mu.Unlock()
		return tracker.Snapshot{}, ErrNoActiveTrip
	}
	delete(s.trips, vehicleID)
	s.gauge.ActiveTripsSet(float64(len(s.trips)))
	trip.snapshot.Sequence++
	trip.snapshot.Status = tracker.StatusCompleted
	snap := snapshotCopy(trip.snapshot)
	s.mu.Unlock()

	_, err := s.db.Exec(ctx, `
		UPDATE live_trips
		SET ended_at=$2, distance_m=$3, max_speed_kmh=$4
		WHERE id=$1
	`, snap.TransactionID, time.Now(), snap.Metrics.DistanceM, snap.Metrics.MaxSpeedKmh)
	if err != nil {
		return tracker.Snapshot{}, err
	}

	s.broadcast(vehicleID, snap)
	return snap, nil
}

// Poll answers the delta request: hasUpdate only when the current sequence is
// strictly beyond the client's.
func (s *Service) Poll(vehicleID string, lastSequence int64) tracker.PollResponse {
	s.mu.Lock()
	defer s.mu.Unlock()

	trip, ok := s.trips[vehicleID]
	if !ok || trip.snapshot.Sequence <= lastSequence {
		return tracker.PollResponse{Status: "success"}
	}
	snap := snapshotCopy(trip.snapshot)
	return tracker.PollResponse{Status: "success", HasUpdate: true, Trip: &snap}
}

func (s *Service) updateMetrics(trip *liveTrip, prev *tracker.Position, pos tracker.Position, fix Fix) {
	m := &trip.snapshot.Metrics

	speed := fix.SpeedKmh
	if prev != nil {
		legM := geo.HaversineKm(prev.Lat, prev.Lon, pos.Lat, pos.Lon) * 1000
		m.DistanceM += legM
		if dt := pos.Timestamp.Sub(prev.Timestamp).Seconds(); dt > 0 {
			if speed <= 0 {
				speed = legM / dt * 3.6
			}
			if speed < s.idleSpeedKmh {
				m.IdleSeconds += dt
			}
		}
	}
	m.CurrentSpeedKmh = speed
	if speed > m.MaxSpeedKmh {
		m.MaxSpeedKmh = speed
	}
	if elapsed := pos.Timestamp.Sub(trip.startedAt).Seconds(); elapsed > 0 {
		m.AvgSpeedKmh = m.DistanceM / elapsed * 3.6
	}
}

func (s *Service) insertTrip(ctx context.Context, vehicleID string, trip *liveTrip) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO live_trips (id, vehicle_id, started_at)
		VALUES ($1,$2,$3)
	`, trip.snapshot.TransactionID, vehicleID, trip.startedAt)
	return err
}

func (s *Service) insertPoint(ctx context.Context, tripID string, pos tracker.Position, speedKmh float64) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO track_points (trip_id, lat, lon, speed_kmh, recorded_at)
		VALUES ($1,$2,$3,$4,$5)
	`, tripID, pos.Lat, pos.Lon, speedKmh, pos.Timestamp)
	return err
}

func (s *Service) dropTrip(vehicleID string) {
	s.mu.Lock()
	delete(s.trips, vehicleID)
	s.gauge.ActiveTripsSet(float64(len(s.trips)))
	s.mu.Unlock()
}

func (s *Service) broadcast(vehicleID string, snap tracker.Snapshot) {
	if s.hub == nil {
		return
	}
	payload, _ := json.Marshal(tracker.Frame{Trip: snap})
	s.hub.Broadcast(vehicleID, payload)
}

func snapshotCopy(s tracker.Snapshot) tracker.Snapshot {
	out := s
	out.Coordinates = append([]tracker.Position(nil), s.Coordinates...)
	counts := make(map[string]int, len(s.Metrics.EventCounts))
	for k, v := range s.Metrics.EventCounts {
		counts[k] = v
	}
	out.Metrics.EventCounts = counts
	return out
}
