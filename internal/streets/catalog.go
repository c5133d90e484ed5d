package streets

import (
	"context"
	"fmt"

	"backend-fleettrack/internal/db"
	"backend-fleettrack/internal/shared/geo"
)

// Segment is one catalogued street stretch inside a coverage area.
type Segment struct {
	ID      string
	AreaID  string
	Key     string
	LengthM float64
}

// Catalog reads street segments from Postgres and indexes them by the
// order-independent segment key used for traversal matching.
type Catalog struct {
	db        db.Querier
	precision int
}

func NewCatalog(querier db.Querier, precision int) *Catalog {
	return &Catalog{db: querier, precision: precision}
}

// LoadArea returns the area's segments keyed by segment key, plus the total
// catalogued length in meters. Segments with malformed endpoints are skipped.
func (c *Catalog) LoadArea(ctx context.Context, areaID string) (map[string]Segment, float64, error) {
	rows, err := c.db.Query(ctx, `
		SELECT id, a_lat, a_lon, b_lat, b_lon, length_m
		FROM street_segments
		WHERE area_id=$1
	`, areaID)
	if err != nil {
		return nil, 0, fmt.Errorf("streets: loading area %s: %w", areaID, err)
	}
	defer rows.Close()

	segments := make(map[string]Segment)
	total := 0.0
	for rows.Next() {
		var id string
		var aLat, aLon, bLat, bLon, lengthM float64
		if err := rows.Scan(&id, &aLat, &aLon, &bLat, &bLon, &lengthM); err != nil {
			return nil, 0, fmt.Errorf("streets: scanning segment: %w", err)
		}
		key, ok := geo.SegmentKey([]float64{aLon, aLat}, []float64{bLon, bLat}, c.precision)
		if !ok {
			continue
		}
		if lengthM <= 0 {
			lengthM = geo.HaversineKm(aLat, aLon, bLat, bLon) * 1000
		}
		// overlapping catalog rows can collapse onto one key at coarse
		// precision; the first row wins
		if _, exists := segments[key]; exists {
			continue
		}
		segments[key] = Segment{ID: id, AreaID: areaID, Key: key, LengthM: lengthM}
		total += lengthM
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("streets: reading segments: %w", err)
	}
	return segments, total, nil
}
