package vehicle

import (
	"context"

	"backend-fleettrack/internal/db"

	"github.com/google/uuid"
)

type Service struct {
	db db.Querier
}

func NewService(db db.Querier) *Service {
	return &Service{db: db}
}

func (s *Service) CreateVehicle(ctx context.Context, input Vehicle) (Vehicle, error) {
	input.ID = uuid.NewString()
	row := s.db.QueryRow(ctx, `
		INSERT INTO vehicles (id, name, plate, fleet_id, idle_speed_kmh, moving_speed_kmh, fast_speed_kmh)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at
	`, input.ID, input.Name, input.Plate, input.FleetID, input.IdleSpeedKmh, input.MovingSpeedKmh, input.FastSpeedKmh)
	if err := row.Scan(&input.CreatedAt); err != nil {
		return Vehicle{}, err
	}
	return input, nil
}

func (s *Service) UpdateVehicle(ctx context.Context, id string, patch Vehicle) (Vehicle, error) {
	v, err := s.GetVehicle(ctx, id)
	if err != nil {
		return Vehicle{}, err
	}
	if patch.Name != "" {
		v.Name = patch.Name
	}
	if patch.Plate != "" {
		v.Plate = patch.Plate
	}
	if patch.FleetID != "" {
		v.FleetID = patch.FleetID
	}
	if patch.IdleSpeedKmh != 0 {
		v.IdleSpeedKmh = patch.IdleSpeedKmh
	}
	if patch.MovingSpeedKmh != 0 {
		v.MovingSpeedKmh = patch.MovingSpeedKmh
	}
	if patch.FastSpeedKmh != 0 {
		v.FastSpeedKmh = patch.FastSpeedKmh
	}

	_, err = s.db.Exec(ctx, `
		UPDATE vehicles
		SET name=$2, plate=$3, fleet_id=$4,
		    idle_speed_kmh=$5, moving_speed_kmh=$6, fast_speed_kmh=$7
		WHERE id=$1
	`, v.ID, v.Name, v.Plate, v.FleetID, v.IdleSpeedKmh, v.MovingSpeedKmh, v.FastSpeedKmh)
	if err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

func (s *Service) GetVehicle(ctx context.Context, id string) (Vehicle, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, name, plate, fleet_id,
		       COALESCE(idle_speed_kmh,0), COALESCE(moving_speed_kmh,0), COALESCE(fast_speed_kmh,0),
		       created_at
		FROM vehicles WHERE id=$1
	`, id)
	var v Vehicle
	if err := row.Scan(&v.ID, &v.Name, &v.Plate, &v.FleetID, &v.IdleSpeedKmh, &v.MovingSpeedKmh, &v.FastSpeedKmh, &v.CreatedAt); err != nil {
		return Vehicle{}, err
	}
	return v, nil
}

func (s *Service) DeleteVehicle(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `DELETE FROM vehicles WHERE id=$1`, id)
	return err
}

func (s *Service) ListByFleet(ctx context.Context, fleetID string) ([]Vehicle, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, name, plate, fleet_id,
		       COALESCE(idle_speed_kmh,0), COALESCE(moving_speed_kmh,0), COALESCE(fast_speed_kmh,0),
		       created_at
		FROM vehicles WHERE fleet_id=$1
		ORDER BY created_at DESC
	`, fleetID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []Vehicle
	for rows.Next() {
		var v Vehicle
		if err := rows.Scan(&v.ID, &v.Name, &v.Plate, &v.FleetID, &v.IdleSpeedKmh, &v.MovingSpeedKmh, &v.FastSpeedKmh, &v.CreatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	return vehicles, nil
}
