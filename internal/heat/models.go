package heat

import (
	"encoding/json"
	"fmt"
)

// Feature is a GeoJSON-ish trip feature. Properties is annotated in place by
// Aggregate with heatIntensity and heatWeight.
type Feature struct {
	ID         string         `json:"id,omitempty"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}

// Geometry holds LineString or MultiLineString coordinates. Lines is always
// the MultiLineString shape; a LineString is stored as a single line.
type Geometry struct {
	Type  string
	Lines [][][]float64
}

type geometryJSON struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

func (g *Geometry) UnmarshalJSON(data []byte) error {
	var raw geometryJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	g.Type = raw.Type
	switch raw.Type {
	case "LineString":
		var line [][]float64
		if err := json.Unmarshal(raw.Coordinates, &line); err != nil {
			return err
		}
		g.Lines = [][][]float64{line}
	case "MultiLineString":
		if err := json.Unmarshal(raw.Coordinates, &g.Lines); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported geometry type %q", raw.Type)
	}
	return nil
}

func (g Geometry) MarshalJSON() ([]byte, error) {
	switch g.Type {
	case "LineString":
		var line [][]float64
		if len(g.Lines) > 0 {
			line = g.Lines[0]
		}
		coords, err := json.Marshal(line)
		if err != nil {
			return nil, err
		}
		return json.Marshal(geometryJSON{Type: g.Type, Coordinates: coords})
	default:
		coords, err := json.Marshal(g.Lines)
		if err != nil {
			return nil, err
		}
		return json.Marshal(geometryJSON{Type: "MultiLineString", Coordinates: coords})
	}
}

// Clone deep-copies the feature: geometry lines and the properties map share
// no memory with the receiver.
func (f Feature) Clone() Feature {
	out := Feature{ID: f.ID, Geometry: Geometry{Type: f.Geometry.Type}}
	if f.Geometry.Lines != nil {
		out.Geometry.Lines = make([][][]float64, len(f.Geometry.Lines))
		for i, line := range f.Geometry.Lines {
			out.Geometry.Lines[i] = make([][]float64, len(line))
			for j, point := range line {
				out.Geometry.Lines[i][j] = append([]float64(nil), point...)
			}
		}
	}
	if f.Properties != nil {
		out.Properties = make(map[string]any, len(f.Properties))
		for k, v := range f.Properties {
			out.Properties[k] = v
		}
	}
	return out
}

// Stats summarizes one aggregation batch.
type Stats struct {
	MaxCount      int `json:"max_count"`
	MinCount      int `json:"min_count"`
	TotalSegments int `json:"total_segments"`
	Precision     int `json:"precision"`
}
