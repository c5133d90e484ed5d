package events

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestAppendAndList(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now()
	mock.ExpectQuery(`INSERT INTO trip_events`).
		WithArgs(pgxmock.AnyArg(), "trip-1", "veh-1", KindHardBrake, 32.77, -96.79, 42.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	svc := NewService(mock)
	event, err := svc.Append(context.Background(), Event{
		TripID:    "trip-1",
		VehicleID: "veh-1",
		Kind:      KindHardBrake,
		Lat:       32.77,
		Lon:       -96.79,
		SpeedKmh:  42,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if event.ID == "" || !event.CreatedAt.Equal(createdAt) {
		t.Fatalf("unexpected event: %+v", event)
	}

	mock.ExpectQuery(`SELECT id, trip_id, vehicle_id, kind, lat, lon, speed_kmh, created_at`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "trip_id", "vehicle_id", "kind", "lat", "lon", "speed_kmh", "created_at"}).
			AddRow(event.ID, event.TripID, event.VehicleID, event.Kind, event.Lat, event.Lon, event.SpeedKmh, event.CreatedAt))

	list, err := svc.ListByTrip(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].Kind != KindHardBrake {
		t.Fatalf("unexpected list: %+v", list)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAppendValidation(t *testing.T) {
	svc := NewService(nil)
	if _, err := svc.Append(context.Background(), Event{Kind: KindIdleStart}); err == nil {
		t.Fatalf("expected error for missing trip id")
	}
	if _, err := svc.Append(context.Background(), Event{TripID: "trip-1"}); err == nil {
		t.Fatalf("expected error for missing kind")
	}
}

func TestCountsByTrip(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT kind, COUNT`).
		WithArgs("trip-1").
		WillReturnRows(pgxmock.NewRows([]string{"kind", "count"}).
			AddRow(KindHardBrake, 3).
			AddRow(KindIdleStart, 1))

	svc := NewService(mock)
	counts, err := svc.CountsByTrip(context.Background(), "trip-1")
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts[KindHardBrake] != 3 || counts[KindIdleStart] != 1 {
		t.Fatalf("unexpected counts: %+v", counts)
	}
}
