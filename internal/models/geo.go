package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// GeoPoint is a single field-collected GPS fix.
type GeoPoint struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// InRange reports whether latitude and longitude are valid WGS84 degrees.
func (p GeoPoint) InRange() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

// Polygon is an ordered ring of points. The last point may or may not repeat the first.
type Polygon []GeoPoint

// Value stores the polygon as a JSON array.
func (p Polygon) Value() (driver.Value, error) {
	if p == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]GeoPoint(p))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads a polygon stored as a JSON array.
func (p *Polygon) Scan(src interface{}) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*p = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("polygon: unsupported scan type %T", src)
	}
	var points []GeoPoint
	if err := json.Unmarshal(data, &points); err != nil {
		return err
	}
	*p = points
	return nil
}

// Clone returns a copy that shares no backing array with p.
func (p Polygon) Clone() Polygon {
	if p == nil {
		return nil
	}
	out := make(Polygon, len(p))
	copy(out, p)
	return out
}

// Geometry holds every value derived from a polygon.
type Geometry struct {
	AreaSquareMeters float64  `json:"area_square_meters"`
	AreaAcres        float64  `json:"area_acres"`
	AreaHectares     float64  `json:"area_hectares"`
	PerimeterMeters  float64  `json:"perimeter_meters"`
	Center           GeoPoint `json:"center"`
}
