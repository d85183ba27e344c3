// pkg/tiles/resolver.go - Geographic query to tile address resolution
package tiles

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/valpere/mapillary/pkg/mlyerr"
)

// ValidateLngLat checks the open longitude and latitude intervals
func ValidateLngLat(lng, lat float64) error {
	if math.IsNaN(lng) || lng <= -180 || lng >= 180 {
		return &mlyerr.InvalidRangeError{Param: "longitude", Value: lng, Min: -180, Max: 180}
	}
	if math.IsNaN(lat) || lat <= -90 || lat >= 90 {
		return &mlyerr.InvalidRangeError{Param: "latitude", Value: lat, Min: -90, Max: 90}
	}
	return nil
}

// ValidateBound checks both corners of a west/south/east/north box and their order
func ValidateBound(b orb.Bound) error {
	if err := ValidateLngLat(b.Min.Lon(), b.Min.Lat()); err != nil {
		return err
	}
	if err := ValidateLngLat(b.Max.Lon(), b.Max.Lat()); err != nil {
		return err
	}
	if b.Min.Lon() > b.Max.Lon() {
		return &mlyerr.InvalidRangeError{Param: "east", Value: b.Max.Lon(), Min: b.Min.Lon(), Max: 180,
			Reason: fmt.Sprintf("must not be less than west %v", b.Min.Lon())}
	}
	if b.Min.Lat() > b.Max.Lat() {
		return &mlyerr.InvalidRangeError{Param: "north", Value: b.Max.Lat(), Min: b.Min.Lat(), Max: 90,
			Reason: fmt.Sprintf("must not be less than south %v", b.Min.Lat())}
	}
	return nil
}

// ForPoint maps a longitude/latitude pair to the single tile containing it.
// Coordinates outside the pyramid are clamped to the edge tiles.
func ForPoint(lng, lat float64, zoom int) Address {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180.0

	x := math.Floor((lng + 180.0) / 360.0 * n)
	y := math.Floor((1.0 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2.0 * n)

	return Address{Z: zoom, X: clampIndex(x, n), Y: clampIndex(y, n)}
}

func clampIndex(v, n float64) int {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > n-1 {
		return int(n - 1)
	}
	return int(v)
}

// RangeForBound computes the rectangle of tiles whose area intersects the bound
func RangeForBound(b orb.Bound, zoom int) Range {
	topLeft := ForPoint(b.Min.Lon(), b.Max.Lat(), zoom)
	bottomRight := ForPoint(b.Max.Lon(), b.Min.Lat(), zoom)

	minX, maxX := topLeft.X, bottomRight.X
	if minX > maxX {
		minX, maxX = maxX, minX
	}

	// Y grows southwards in the XYZ scheme
	minY, maxY := topLeft.Y, bottomRight.Y
	if minY > maxY {
		minY, maxY = maxY, minY
	}

	return Range{Z: zoom, MinX: minX, MaxX: maxX, MinY: minY, MaxY: maxY}
}

// ForBound enumerates every tile intersecting the bound at the given zoom
func ForBound(b orb.Bound, zoom int) []Address {
	return RangeForBound(b, zoom).Addresses()
}

// ForGeometry covers the bound of the geometry's vertices. This over-fetches
// for non-rectangular shapes; exact containment is applied by in_shape.
func ForGeometry(g orb.Geometry, zoom int) []Address {
	return ForBound(g.Bound(), zoom)
}

// BoundAround returns the bound enclosing a circle of radius meters around a point
func BoundAround(lng, lat, radius float64) orb.Bound {
	return geo.NewBoundAroundPoint(orb.Point{lng, lat}, radius)
}

// ForLayerPoint validates a point query for a layer and resolves its tile
func ForLayerPoint(layer Layer, lng, lat float64, zoom int) ([]Address, error) {
	if err := validateLayerZoom(layer, zoom); err != nil {
		return nil, err
	}
	if err := ValidateLngLat(lng, lat); err != nil {
		return nil, err
	}
	return []Address{ForPoint(lng, lat, zoom)}, nil
}

// ForLayerBound validates a bounding-box query for a layer and resolves its tiles
func ForLayerBound(layer Layer, b orb.Bound, zoom int) ([]Address, error) {
	if err := validateLayerZoom(layer, zoom); err != nil {
		return nil, err
	}
	if err := ValidateBound(b); err != nil {
		return nil, err
	}
	return ForBound(b, zoom), nil
}

// ForLayerGeometry validates a polygon query for a layer and resolves its tiles
func ForLayerGeometry(layer Layer, g orb.Geometry, zoom int) ([]Address, error) {
	if err := validateLayerZoom(layer, zoom); err != nil {
		return nil, err
	}
	if g == nil {
		return nil, fmt.Errorf("shape geometry is required")
	}
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
	default:
		return nil, fmt.Errorf("shape must be a Polygon or MultiPolygon, got %s", g.GeoJSONType())
	}
	if err := ValidateBound(g.Bound()); err != nil {
		return nil, err
	}
	return ForGeometry(g, zoom), nil
}

// CountForBound returns how many tiles ForBound would produce without allocating them
func CountForBound(b orb.Bound, zoom int) int {
	return RangeForBound(b, zoom).Count()
}

func validateLayerZoom(layer Layer, zoom int) error {
	if err := layer.Validate(); err != nil {
		return err
	}
	return layer.ValidateZoom(zoom)
}
