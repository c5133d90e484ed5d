package vehicle

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
)

func TestVehicleCRUD(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	createdAt := time.Now()
	mock.ExpectQuery(`INSERT INTO vehicles`).
		WithArgs(pgxmock.AnyArg(), "Van 12", "ABC-123", "fleet-1", 2.0, 5.0, 50.0).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(createdAt))

	svc := NewService(mock)
	v, err := svc.CreateVehicle(context.Background(), Vehicle{
		Name:           "Van 12",
		Plate:          "ABC-123",
		FleetID:        "fleet-1",
		IdleSpeedKmh:   2,
		MovingSpeedKmh: 5,
		FastSpeedKmh:   50,
	})
	if err != nil {
		t.Fatalf("create vehicle: %v", err)
	}

	vehicleRows := func() *pgxmock.Rows {
		return pgxmock.NewRows([]string{"id", "name", "plate", "fleet_id", "idle_speed_kmh", "moving_speed_kmh", "fast_speed_kmh", "created_at"}).
			AddRow(v.ID, v.Name, v.Plate, v.FleetID, v.IdleSpeedKmh, v.MovingSpeedKmh, v.FastSpeedKmh, v.CreatedAt)
	}

	mock.ExpectQuery(`SELECT id, name, plate, fleet_id,`).
		WithArgs(v.ID).
		WillReturnRows(vehicleRows())

	loaded, err := svc.GetVehicle(context.Background(), v.ID)
	if err != nil {
		t.Fatalf("get vehicle: %v", err)
	}
	if loaded.ID != v.ID || loaded.FastSpeedKmh != 50 {
		t.Fatalf("unexpected vehicle: %+v", loaded)
	}

	mock.ExpectQuery(`SELECT id, name, plate, fleet_id,`).
		WithArgs(v.ID).
		WillReturnRows(vehicleRows())
	mock.ExpectExec(`UPDATE vehicles`).
		WithArgs(v.ID, "Van 12b", v.Plate, v.FleetID, v.IdleSpeedKmh, v.MovingSpeedKmh, 60.0).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	updated, err := svc.UpdateVehicle(context.Background(), v.ID, Vehicle{Name: "Van 12b", FastSpeedKmh: 60})
	if err != nil {
		t.Fatalf("update vehicle: %v", err)
	}
	if updated.Name != "Van 12b" || updated.FastSpeedKmh != 60 {
		t.Fatalf("unexpected update: %+v", updated)
	}
	if updated.Plate != "ABC-123" {
		t.Fatalf("expected untouched plate, got %s", updated.Plate)
	}

	mock.ExpectExec(`DELETE FROM vehicles`).WithArgs(v.ID).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	if err := svc.DeleteVehicle(context.Background(), v.ID); err != nil {
		t.Fatalf("delete vehicle: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestListByFleet(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	now := time.Now()
	mock.ExpectQuery(`SELECT id, name, plate, fleet_id,`).
		WithArgs("fleet-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "plate", "fleet_id", "idle_speed_kmh", "moving_speed_kmh", "fast_speed_kmh", "created_at"}).
			AddRow("veh-1", "Van 12", "ABC-123", "fleet-1", 2.0, 5.0, 50.0, now).
			AddRow("veh-2", "Van 13", "ABC-124", "fleet-1", 2.0, 5.0, 50.0, now))

	svc := NewService(mock)
	vehicles, err := svc.ListByFleet(context.Background(), "fleet-1")
	if err != nil {
		t.Fatalf("list by fleet: %v", err)
	}
	if len(vehicles) != 2 || vehicles[1].ID != "veh-2" {
		t.Fatalf("unexpected vehicles: %+v", vehicles)
	}
}
