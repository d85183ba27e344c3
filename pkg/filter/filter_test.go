// pkg/filter/filter_test.go - Unit tests for filter kinds and the pipeline
package filter

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/mapillary/pkg/mlyerr"
)

var fixedNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

func millis(y int, m time.Month, d int) float64 {
	return float64(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli())
}

func newPipeline() *Pipeline {
	return &Pipeline{Logger: zerolog.Nop(), Now: func() time.Time { return fixedNow }}
}

func img(id float64, p orb.Point, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	f.Properties = props
	return f
}

// sample is a small mixed collection with values in the types tiles decode to
func sample() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Append(img(1, orb.Point{0, 0}, geojson.Properties{
		"captured_at": millis(2019, 5, 1), "is_pano": true, "organization_id": 100.0,
		"sequence_id": "seqA", "compass_angle": 10.0,
	}))
	fc.Append(img(2, orb.Point{0.001, 0.001}, geojson.Properties{
		"captured_at": int64(millis(2021, 1, 1)), "is_pano": false, "organization_id": int64(200),
		"sequence_id": "seqB", "compass_angle": 90.0,
	}))
	fc.Append(img(3, orb.Point{0.5, 0.5}, geojson.Properties{
		"captured_at": uint64(millis(2022, 7, 15)), "is_pano": true, "organization_id": "100",
		"sequence_id": "seqA", "compass_angle": 350.0,
	}))
	fc.Append(img(4, orb.Point{2, 2}, geojson.Properties{
		"is_pano": "true",
	}))
	return fc
}

func ids(fc *geojson.FeatureCollection) []float64 {
	out := make([]float64, 0, len(fc.Features))
	for _, f := range fc.Features {
		out = append(out, f.ID.(float64))
	}
	return out
}

func TestFilters(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		want   []float64
	}{
		{"min captured at", MinCapturedAt{Date: "2020"}, []float64{2, 3}},
		{"max captured at", MaxCapturedAt{Date: "2021-01-01"}, []float64{1, 2}},
		{"pano", ImageType{Type: "pano"}, []float64{1, 3, 4}},
		{"flat", ImageType{Type: "flat"}, []float64{2}},
		{"all", ImageType{Type: "all"}, []float64{1, 2, 3, 4}},
		{"organization", OrganizationID{IDs: []string{"100"}}, []float64{1, 3}},
		{"sequence", SequenceID{IDs: []string{"seqB", "seqC"}}, []float64{2}},
		{"compass range", CompassAngle{Min: 0, Max: 100}, []float64{1, 2}},
		{"compass wraps north", CompassAngle{Min: 340, Max: 20}, []float64{1, 3}},
		{"haversine meters", HaversineDist{Lng: 0, Lat: 0, Radius: 500}, []float64{1, 2}},
		{"haversine km", HaversineDist{Lng: 0, Lat: 0, Radius: 100, Units: "km"}, []float64{1, 2, 3}},
		{"bounding box", InBoundingBox{West: -1, South: -1, East: 1, North: 1}, []float64{1, 2, 3}},
		{"bounding box edge inclusive", InBoundingBox{West: 0, South: 0, East: 0.001, North: 0.001}, []float64{1, 2}},
		{"in shape", InShape{Shape: orb.Polygon{{{-0.1, -0.1}, {0.1, -0.1}, {0.1, 0.1}, {-0.1, 0.1}, {-0.1, -0.1}}}}, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, report := newPipeline().Apply(sample(), tt.filter)
			assert.Empty(t, report.Skipped)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestExistedAtBefore(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(img(1, orb.Point{0, 0}, geojson.Properties{"first_seen_at": millis(2018, 1, 1), "last_seen_at": millis(2023, 1, 1)}))
	fc.Append(img(2, orb.Point{0, 0}, geojson.Properties{"first_seen_at": millis(2020, 6, 1), "last_seen_at": millis(2023, 1, 1)}))

	out, _ := newPipeline().Apply(fc, ExistedAt{Date: "2019"})
	assert.Equal(t, []float64{2}, ids(out))

	out, _ = newPipeline().Apply(fc, ExistedBefore{Date: "2019"})
	assert.Equal(t, []float64{1}, ids(out))
}

func TestObjectValues(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	fc.Append(img(1, orb.Point{0, 0}, geojson.Properties{"value": "regulatory--stop--g1"}))
	fc.Append(img(2, orb.Point{0, 0}, geojson.Properties{"value": "object--fire-hydrant"}))
	fc.Append(img(3, orb.Point{0, 0}, geojson.Properties{"value": 7}))

	out, _ := newPipeline().Apply(fc, ObjectValues{Values: []string{"object--fire-hydrant"}})
	assert.Equal(t, []float64{2}, ids(out))
}

func TestLookAt(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	// target is due north of both images
	fc.Append(img(1, orb.Point{0, 0}, geojson.Properties{"compass_angle": 5.0}))
	fc.Append(img(2, orb.Point{0, 0}, geojson.Properties{"compass_angle": 180.0}))
	fc.Append(img(3, orb.Point{0, 0}, geojson.Properties{"compass_angle": 350.0}))

	out, _ := newPipeline().Apply(fc, LookAt{Lng: 0, Lat: 0.01})
	assert.Equal(t, []float64{1, 3}, ids(out))
}

func TestPipeline_SkipsMalformed(t *testing.T) {
	var hooked []Skip
	p := newPipeline()
	p.OnSkip = func(s Skip) { hooked = append(hooked, s) }

	out, report := p.Apply(sample(),
		MinCapturedAt{Date: "2020-13-01"},
		ImageType{Type: "pano"},
		HaversineDist{Lng: 0, Lat: 0, Radius: 10, Units: "furlongs"},
	)

	assert.Equal(t, []float64{1, 3, 4}, ids(out))
	require.Len(t, report.Skipped, 2)
	assert.Equal(t, 0, report.Skipped[0].Step)
	assert.Equal(t, "min_captured_at", report.Skipped[0].Filter)
	assert.Equal(t, 2, report.Skipped[1].Step)
	assert.Equal(t, 1, report.Applied)
	assert.Len(t, hooked, 2)

	var dateErr *mlyerr.InvalidDateError
	assert.True(t, errors.As(report.Skipped[0].Err, &dateErr))
	var optErr *mlyerr.InvalidOptionError
	assert.True(t, errors.As(report.Skipped[1].Err, &optErr))
}

func TestPipeline_NilPlaceholder(t *testing.T) {
	out, report := newPipeline().Apply(sample(), nil, ImageType{Type: "flat"}, nil)
	assert.Equal(t, []float64{2}, ids(out))
	assert.Empty(t, report.Skipped)
}

func TestPipeline_DoesNotMutateInput(t *testing.T) {
	in := sample()
	out, _ := newPipeline().Apply(in, ImageType{Type: "flat"})
	assert.Len(t, in.Features, 4)
	assert.Len(t, out.Features, 1)
	assert.NotSame(t, in, out)

	empty, _ := newPipeline().Apply(nil, ImageType{Type: "pano"})
	assert.NotNil(t, empty.Features)
	assert.Equal(t, "FeatureCollection", empty.Type)
}

func TestPipeline_Idempotent(t *testing.T) {
	filters := []Filter{
		MinCapturedAt{Date: "2020"},
		ImageType{Type: "pano"},
		OrganizationID{IDs: []string{"100", "200"}},
		CompassAngle{Min: 0, Max: 355},
	}
	for _, f := range filters {
		once, _ := newPipeline().Apply(sample(), f)
		twice, _ := newPipeline().Apply(sample(), f, f)
		assert.Equal(t, ids(once), ids(twice), f.Name())
	}
}

func TestPipeline_OrderIndependent(t *testing.T) {
	a := MinCapturedAt{Date: "2019-06"}
	b := ImageType{Type: "pano"}
	c := OrganizationID{IDs: []string{"100"}}
	d := CompassAngle{Min: 0, Max: 359}

	orders := [][]Filter{{a, b, c, d}, {d, c, b, a}, {b, d, a, c}, {c, a, d, b}}
	var first []float64
	for i, order := range orders {
		out, _ := newPipeline().Apply(sample(), order...)
		if i == 0 {
			first = ids(out)
			continue
		}
		assert.Equal(t, first, ids(out))
	}
	assert.Equal(t, []float64{3}, first)
}

func TestMalformedParameters(t *testing.T) {
	malformed := []Filter{
		MaxCapturedAt{Date: "yesterday"},
		ImageType{Type: "spherical"},
		OrganizationID{},
		SequenceID{IDs: []string{" "}},
		CompassAngle{Min: -5, Max: 20},
		HaversineDist{Lng: 0, Lat: 0, Radius: -1},
		HaversineDist{Lng: 190, Lat: 0, Radius: 1},
		InBoundingBox{West: 1, South: 0, East: -1, North: 1},
		InShape{},
		InShape{Shape: orb.Point{0, 0}},
		ExistedAt{},
		LookAt{Lng: 0, Lat: 0, Tolerance: 200},
		ObjectValues{},
	}
	for _, f := range malformed {
		out, report := newPipeline().Apply(sample(), f)
		assert.Len(t, report.Skipped, 1, "%s %+v", f.Name(), f)
		assert.Len(t, out.Features, 4)
	}
}

func TestToMeters(t *testing.T) {
	tests := []struct {
		value float64
		units string
		want  float64
	}{
		{150, "", 150},
		{150, UnitMeters, 150},
		{1.5, UnitKilometers, 1500},
		{1, UnitMiles, 1609.344},
		{10, UnitFeet, 3.048},
	}
	for _, tt := range tests {
		got, err := ToMeters(tt.value, tt.units)
		require.NoError(t, err)
		assert.InDelta(t, tt.want, got, 1e-9, tt.units)
	}

	_, err := ToMeters(1, "furlong")
	var opt *mlyerr.InvalidOptionError
	assert.True(t, errors.As(err, &opt))
}
