// pkg/filter/filter.go - Closed set of feature filter kinds
package filter

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"

	"github.com/valpere/mapillary/pkg/date"
	"github.com/valpere/mapillary/pkg/mlyerr"
	"github.com/valpere/mapillary/pkg/tiles"
)

// Filter is one step of a Pipeline. The set of kinds is closed: only the
// types of this package implement it.
type Filter interface {
	// Name is the wire name of the filter kind
	Name() string
	keep(env env) (func(*geojson.Feature) bool, error)
}

// env carries pipeline-wide inputs into each step
type env struct {
	now time.Time
}

// Image types accepted by ImageType
const (
	ImageTypeAll  = "all"
	ImageTypePano = "pano"
	ImageTypeFlat = "flat"
)

// Distance units accepted by HaversineDist
const (
	UnitMeters     = "m"
	UnitKilometers = "km"
	UnitMiles      = "mi"
	UnitFeet       = "ft"
)

var unitFactors = map[string]float64{
	UnitMeters:     1,
	UnitKilometers: 1000,
	UnitMiles:      1609.344,
	UnitFeet:       0.3048,
}

// ToMeters converts a distance in units to meters. Empty units are meters.
func ToMeters(value float64, units string) (float64, error) {
	if units == "" {
		units = UnitMeters
	}
	factor, ok := unitFactors[units]
	if !ok {
		return 0, &mlyerr.InvalidOptionError{Param: "units", Value: units,
			Options: []string{UnitMeters, UnitKilometers, UnitMiles, UnitFeet}}
	}
	return value * factor, nil
}

// DefaultLookAtTolerance is the angular slack in degrees used by LookAt
const DefaultLookAtTolerance = 20.0

// Feature property names read by the filters
const (
	PropCapturedAt     = "captured_at"
	PropIsPano         = "is_pano"
	PropOrganizationID = "organization_id"
	PropSequenceID     = "sequence_id"
	PropCompassAngle   = "compass_angle"
	PropFirstSeenAt    = "first_seen_at"
	PropValue          = "value"
)

// MinCapturedAt keeps features captured at or after Date
type MinCapturedAt struct {
	Date string
}

func (MinCapturedAt) Name() string { return "min_captured_at" }

func (f MinCapturedAt) keep(e env) (func(*geojson.Feature) bool, error) {
	bound, err := boundMillis(f.Date, e.now)
	if err != nil {
		return nil, err
	}
	return numberPredicate(PropCapturedAt, func(v float64) bool { return v >= bound }), nil
}

// MaxCapturedAt keeps features captured at or before Date
type MaxCapturedAt struct {
	Date string
}

func (MaxCapturedAt) Name() string { return "max_captured_at" }

func (f MaxCapturedAt) keep(e env) (func(*geojson.Feature) bool, error) {
	bound, err := boundMillis(f.Date, e.now)
	if err != nil {
		return nil, err
	}
	return numberPredicate(PropCapturedAt, func(v float64) bool { return v <= bound }), nil
}

// ImageType keeps panoramic or flat images; "all" or empty passes everything
type ImageType struct {
	Type string
}

func (ImageType) Name() string { return "image_type" }

func (f ImageType) keep(env) (func(*geojson.Feature) bool, error) {
	var want bool
	switch f.Type {
	case "", ImageTypeAll:
		return nil, nil
	case ImageTypePano:
		want = true
	case ImageTypeFlat:
		want = false
	default:
		return nil, &mlyerr.InvalidOptionError{
			Param:   "image_type",
			Value:   f.Type,
			Options: []string{ImageTypeAll, ImageTypePano, ImageTypeFlat},
		}
	}
	return func(feat *geojson.Feature) bool {
		b, ok := toBool(feat.Properties[PropIsPano])
		return ok && b == want
	}, nil
}

// OrganizationID keeps features owned by one of IDs
type OrganizationID struct {
	IDs []string
}

func (OrganizationID) Name() string { return "organization_id" }

func (f OrganizationID) keep(env) (func(*geojson.Feature) bool, error) {
	return membership("organization_id", PropOrganizationID, f.IDs)
}

// SequenceID keeps features belonging to one of IDs
type SequenceID struct {
	IDs []string
}

func (SequenceID) Name() string { return "sequence_id" }

func (f SequenceID) keep(env) (func(*geojson.Feature) bool, error) {
	return membership("sequence_id", PropSequenceID, f.IDs)
}

// CompassAngle keeps features whose compass angle lies in [Min, Max]. A range
// with Min greater than Max wraps through north.
type CompassAngle struct {
	Min float64
	Max float64
}

func (CompassAngle) Name() string { return "compass_angle" }

func (f CompassAngle) keep(env) (func(*geojson.Feature) bool, error) {
	for _, v := range []struct {
		param string
		value float64
	}{{"compass_angle min", f.Min}, {"compass_angle max", f.Max}} {
		if math.IsNaN(v.value) || v.value < 0 || v.value > 360 {
			return nil, &mlyerr.InvalidRangeError{Param: v.param, Value: v.value, Min: 0, Max: 360,
				Reason: "must be between 0 and 360 (inclusive)"}
		}
	}

	inRange := func(a float64) bool { return a >= f.Min && a <= f.Max }
	if f.Min > f.Max {
		inRange = func(a float64) bool { return a >= f.Min || a <= f.Max }
	}
	return numberPredicate(PropCompassAngle, inRange), nil
}

// HaversineDist keeps features strictly closer than Radius to the reference
// point. Units defaults to meters.
type HaversineDist struct {
	Lng    float64
	Lat    float64
	Radius float64
	Units  string
}

func (HaversineDist) Name() string { return "haversine_dist" }

func (f HaversineDist) keep(env) (func(*geojson.Feature) bool, error) {
	if err := tiles.ValidateLngLat(f.Lng, f.Lat); err != nil {
		return nil, err
	}
	if math.IsNaN(f.Radius) || f.Radius <= 0 {
		return nil, &mlyerr.InvalidRangeError{Param: "radius", Value: f.Radius, Reason: "must be positive"}
	}
	limit, err := ToMeters(f.Radius, f.Units)
	if err != nil {
		return nil, err
	}

	ref := orb.Point{f.Lng, f.Lat}
	return func(feat *geojson.Feature) bool {
		p, ok := representativePoint(feat.Geometry)
		return ok && geo.DistanceHaversine(ref, p) < limit
	}, nil
}

// InBoundingBox keeps features whose whole geometry lies inside the box, edges included
type InBoundingBox struct {
	West  float64
	South float64
	East  float64
	North float64
}

func (InBoundingBox) Name() string { return "features_in_bounding_box" }

func (f InBoundingBox) keep(env) (func(*geojson.Feature) bool, error) {
	box := orb.Bound{Min: orb.Point{f.West, f.South}, Max: orb.Point{f.East, f.North}}
	if f.West > f.East || f.South > f.North {
		return nil, &mlyerr.InvalidRangeError{Param: "bounding_box", Value: f.East,
			Reason: fmt.Sprintf("west/south (%v, %v) must not exceed east/north (%v, %v)", f.West, f.South, f.East, f.North)}
	}
	return func(feat *geojson.Feature) bool {
		if feat.Geometry == nil {
			return false
		}
		b := feat.Geometry.Bound()
		return box.Contains(b.Min) && box.Contains(b.Max)
	}, nil
}

// InShape keeps features whose every vertex lies inside Shape, a Polygon or MultiPolygon
type InShape struct {
	Shape orb.Geometry
}

func (InShape) Name() string { return "in_shape" }

func (f InShape) keep(env) (func(*geojson.Feature) bool, error) {
	var contains func(orb.Point) bool
	switch s := f.Shape.(type) {
	case orb.Polygon:
		contains = func(p orb.Point) bool { return planar.PolygonContains(s, p) }
	case orb.MultiPolygon:
		contains = func(p orb.Point) bool { return planar.MultiPolygonContains(s, p) }
	case orb.Ring:
		poly := orb.Polygon{s}
		contains = func(p orb.Point) bool { return planar.PolygonContains(poly, p) }
	case nil:
		return nil, fmt.Errorf("in_shape: shape is required")
	default:
		return nil, fmt.Errorf("in_shape: shape must be a Polygon or MultiPolygon, got %s", s.GeoJSONType())
	}

	return func(feat *geojson.Feature) bool {
		pts := vertices(feat.Geometry)
		if len(pts) == 0 {
			return false
		}
		for _, p := range pts {
			if !contains(p) {
				return false
			}
		}
		return true
	}, nil
}

// ExistedAt keeps map features first seen at or after Date
type ExistedAt struct {
	Date string
}

func (ExistedAt) Name() string { return "existed_at" }

func (f ExistedAt) keep(e env) (func(*geojson.Feature) bool, error) {
	bound, err := boundMillis(f.Date, e.now)
	if err != nil {
		return nil, err
	}
	return numberPredicate(PropFirstSeenAt, func(v float64) bool { return v >= bound }), nil
}

// ExistedBefore keeps map features first seen before Date
type ExistedBefore struct {
	Date string
}

func (ExistedBefore) Name() string { return "existed_before" }

func (f ExistedBefore) keep(e env) (func(*geojson.Feature) bool, error) {
	bound, err := boundMillis(f.Date, e.now)
	if err != nil {
		return nil, err
	}
	return numberPredicate(PropFirstSeenAt, func(v float64) bool { return v < bound }), nil
}

// LookAt keeps images whose compass angle points at the target within Tolerance
// degrees. Zero Tolerance means DefaultLookAtTolerance.
type LookAt struct {
	Lng       float64
	Lat       float64
	Tolerance float64
}

func (LookAt) Name() string { return "look_at" }

func (f LookAt) keep(env) (func(*geojson.Feature) bool, error) {
	if err := tiles.ValidateLngLat(f.Lng, f.Lat); err != nil {
		return nil, err
	}
	tolerance := f.Tolerance
	if tolerance == 0 {
		tolerance = DefaultLookAtTolerance
	}
	if math.IsNaN(tolerance) || tolerance < 0 || tolerance > 180 {
		return nil, &mlyerr.InvalidRangeError{Param: "tolerance", Value: tolerance, Min: 0, Max: 180,
			Reason: "must be between 0 and 180 degrees"}
	}

	target := orb.Point{f.Lng, f.Lat}
	return func(feat *geojson.Feature) bool {
		p, ok := representativePoint(feat.Geometry)
		if !ok {
			return false
		}
		angle, ok := toFloat(feat.Properties[PropCompassAngle])
		if !ok {
			return false
		}
		return angularDistance(geo.Bearing(p, target), angle) <= tolerance
	}, nil
}

// ObjectValues keeps map features and traffic signs whose value is one of Values
type ObjectValues struct {
	Values []string
}

func (ObjectValues) Name() string { return "object_values" }

func (f ObjectValues) keep(env) (func(*geojson.Feature) bool, error) {
	set := idSet(f.Values)
	if len(set) == 0 {
		return nil, fmt.Errorf("object_values: at least one value is required")
	}
	return func(feat *geojson.Feature) bool {
		v, ok := feat.Properties[PropValue].(string)
		if !ok {
			return false
		}
		_, hit := set[v]
		return hit
	}, nil
}

// boundMillis converts a date bound to epoch milliseconds, the unit of every
// timestamp property served in tiles.
func boundMillis(s string, now time.Time) (float64, error) {
	secs, err := date.ToUnix(s, now)
	if err != nil {
		return 0, err
	}
	return float64(secs) * 1000, nil
}

func numberPredicate(prop string, pred func(float64) bool) func(*geojson.Feature) bool {
	return func(feat *geojson.Feature) bool {
		v, ok := toFloat(feat.Properties[prop])
		return ok && pred(v)
	}
}

func membership(name, prop string, ids []string) (func(*geojson.Feature) bool, error) {
	set := idSet(ids)
	if len(set) == 0 {
		return nil, fmt.Errorf("%s: at least one id is required", name)
	}
	return func(feat *geojson.Feature) bool {
		id, ok := toID(feat.Properties[prop])
		if !ok {
			return false
		}
		_, hit := set[id]
		return hit
	}, nil
}

// representativePoint is the point itself, or the bound center of other geometries
func representativePoint(g orb.Geometry) (orb.Point, bool) {
	switch geom := g.(type) {
	case nil:
		return orb.Point{}, false
	case orb.Point:
		return geom, true
	default:
		return geom.Bound().Center(), true
	}
}

func vertices(g orb.Geometry) []orb.Point {
	switch geom := g.(type) {
	case orb.Point:
		return []orb.Point{geom}
	case orb.MultiPoint:
		return geom
	case orb.LineString:
		return geom
	case orb.Ring:
		return geom
	case orb.MultiLineString:
		var pts []orb.Point
		for _, ls := range geom {
			pts = append(pts, ls...)
		}
		return pts
	case orb.Polygon:
		var pts []orb.Point
		for _, r := range geom {
			pts = append(pts, r...)
		}
		return pts
	case orb.MultiPolygon:
		var pts []orb.Point
		for _, poly := range geom {
			pts = append(pts, vertices(poly)...)
		}
		return pts
	case orb.Collection:
		var pts []orb.Point
		for _, c := range geom {
			pts = append(pts, vertices(c)...)
		}
		return pts
	default:
		return nil
	}
}

// angularDistance is the smallest difference between two headings in degrees
func angularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
