package geospatial

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

var ErrInvalidBoundary = errors.New("invalid project boundary")

// ParseBoundary accepts a GeoJSON Polygon or MultiPolygon, either bare or
// wrapped in a Feature, and checks that every ring is closed and lies within
// WGS84 bounds.
func ParseBoundary(raw []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBoundary, err)
	}

	var geometry orb.Geometry
	switch head.Type {
	case "Feature":
		feature, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoundary, err)
		}
		geometry = feature.Geometry
	case "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBoundary, err)
		}
		geometry = g.Geometry()
	default:
		return nil, fmt.Errorf("%w: unsupported GeoJSON type %q", ErrInvalidBoundary, head.Type)
	}
	if geometry == nil {
		return nil, fmt.Errorf("%w: no geometry", ErrInvalidBoundary)
	}

	switch g := geometry.(type) {
	case orb.Polygon:
		if err := validatePolygon(g); err != nil {
			return nil, err
		}
	case orb.MultiPolygon:
		if len(g) == 0 {
			return nil, fmt.Errorf("%w: empty multipolygon", ErrInvalidBoundary)
		}
		for _, p := range g {
			if err := validatePolygon(p); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("%w: boundary must be a polygon, got %s", ErrInvalidBoundary, geometry.GeoJSONType())
	}
	return geometry, nil
}

func validatePolygon(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: polygon has no rings", ErrInvalidBoundary)
	}
	for _, ring := range p {
		if len(ring) < 4 {
			return fmt.Errorf("%w: ring needs at least 4 positions", ErrInvalidBoundary)
		}
		if !ring.Closed() {
			return fmt.Errorf("%w: ring is not closed", ErrInvalidBoundary)
		}
		for _, pt := range ring {
			if pt.Lon() < -180 || pt.Lon() > 180 || pt.Lat() < -90 || pt.Lat() > 90 {
				return fmt.Errorf("%w: position %v out of range", ErrInvalidBoundary, pt)
			}
		}
	}
	return nil
}

// CalculateArea calculates the area in square meters for a geometry
func CalculateArea(geometry orb.Geometry) float64 {
	return geo.Area(geometry)
}

// CalculateCentroid calculates the centroid of a geometry
func CalculateCentroid(geometry orb.Geometry) orb.Point {
	centroid, _ := planar.CentroidArea(geometry)
	return centroid
}

// CheckOverlap reports whether the bounding boxes of two geometries intersect
func CheckOverlap(g1, g2 orb.Geometry) bool {
	return g1.Bound().Intersects(g2.Bound())
}

// ConvertToHectares converts square meters to hectares
func ConvertToHectares(sqMeters float64) float64 {
	return sqMeters / 10000
}
