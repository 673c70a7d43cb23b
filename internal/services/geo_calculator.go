package services

import (
	"fmt"
	"math"

	"github.com/kasunvimarshana/geo-ops-platform-sub000/internal/models"
)

const (
	// EarthRadiusMeters is the mean Earth radius used for area and distance.
	EarthRadiusMeters = 6371000.0

	SquareMetersPerAcre    = 4046.86
	SquareMetersPerHectare = 10000.0

	minPolygonPoints = 3
)

// GeoCalculator derives area, perimeter and center from field polygons.
// It holds no state and is safe for concurrent use.
type GeoCalculator struct{}

// NewGeoCalculator creates a new GeoCalculator
func NewGeoCalculator() *GeoCalculator {
	return &GeoCalculator{}
}

// Compute validates the polygon and returns its derived geometry.
func (c *GeoCalculator) Compute(polygon models.Polygon) (models.Geometry, error) {
	vertices, err := c.vertices(polygon)
	if err != nil {
		return models.Geometry{}, err
	}

	area := ringArea(polygon)
	return models.Geometry{
		AreaSquareMeters: round(area, 2),
		AreaAcres:        round(area/SquareMetersPerAcre, 4),
		AreaHectares:     round(area/SquareMetersPerHectare, 4),
		PerimeterMeters:  round(ringPerimeter(polygon), 2),
		Center:           ringCentroid(vertices),
	}, nil
}

// ValidatePolygon reports every out-of-range coordinate and too-short rings.
func (c *GeoCalculator) ValidatePolygon(polygon models.Polygon) error {
	_, err := c.vertices(polygon)
	return err
}

// Distance returns the great-circle distance between two points in meters.
func (c *GeoCalculator) Distance(a, b models.GeoPoint) float64 {
	return haversine(a, b)
}

// vertices validates the polygon and returns its points without a trailing
// exact repeat of the first. Area and perimeter always run over every supplied
// point, where such a repeat only adds a zero-length edge. The caller's slice
// is never modified.
func (c *GeoCalculator) vertices(polygon models.Polygon) ([]models.GeoPoint, error) {
	verr := &models.ValidationError{Polygon: true}

	if len(polygon) < minPolygonPoints {
		verr.Add("polygon", fmt.Sprintf("must have at least %d points, got %d", minPolygonPoints, len(polygon)))
		return nil, verr
	}

	for i, p := range polygon {
		if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
			verr.Add(fmt.Sprintf("polygon[%d].latitude", i), "must be between -90 and 90")
		}
		if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
			verr.Add(fmt.Sprintf("polygon[%d].longitude", i), "must be between -180 and 180")
		}
	}
	if verr.HasIssues() {
		return nil, verr
	}

	ring := []models.GeoPoint(polygon)
	if samePosition(polygon[0], polygon[len(polygon)-1]) {
		ring = ring[:len(ring)-1]
	}
	if n := distinctPositions(ring); n < minPolygonPoints {
		verr.Add("polygon", fmt.Sprintf("must have at least %d distinct points, got %d", minPolygonPoints, n))
		return nil, verr
	}

	return ring, nil
}

func samePosition(a, b models.GeoPoint) bool {
	return a.Latitude == b.Latitude && a.Longitude == b.Longitude
}

func distinctPositions(points []models.GeoPoint) int {
	seen := make(map[[2]float64]struct{}, len(points))
	for _, p := range points {
		seen[[2]float64{p.Latitude, p.Longitude}] = struct{}{}
	}
	return len(seen)
}

// ringArea is the spherical-excess shoelace variant. Accurate for field-sized
// parcels; it does not handle rings crossing the antimeridian.
func ringArea(ring []models.GeoPoint) float64 {
	var sum float64
	n := len(ring)
	for i := 0; i < n; i++ {
		p1 := ring[i]
		p2 := ring[(i+1)%n]
		sum += (toRadians(p2.Longitude) - toRadians(p1.Longitude)) *
			(2 + math.Sin(toRadians(p1.Latitude)) + math.Sin(toRadians(p2.Latitude)))
	}
	return math.Abs(sum) * EarthRadiusMeters * EarthRadiusMeters / 2
}

func ringPerimeter(ring []models.GeoPoint) float64 {
	var total float64
	n := len(ring)
	for i := 0; i < n; i++ {
		total += haversine(ring[i], ring[(i+1)%n])
	}
	return total
}

// ringCentroid averages the vertices as 3-D unit vectors.
func ringCentroid(ring []models.GeoPoint) models.GeoPoint {
	var x, y, z float64
	for _, p := range ring {
		lat := toRadians(p.Latitude)
		lon := toRadians(p.Longitude)
		x += math.Cos(lat) * math.Cos(lon)
		y += math.Cos(lat) * math.Sin(lon)
		z += math.Sin(lat)
	}
	n := float64(len(ring))
	x, y, z = x/n, y/n, z/n

	return models.GeoPoint{
		Latitude:  toDegrees(math.Atan2(z, math.Sqrt(x*x+y*y))),
		Longitude: toDegrees(math.Atan2(y, x)),
	}
}

func haversine(a, b models.GeoPoint) float64 {
	lat1 := toRadians(a.Latitude)
	lat2 := toRadians(b.Latitude)
	dLat := lat2 - lat1
	dLon := toRadians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(math.Min(1, h)))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
