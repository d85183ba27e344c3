// pkg/features/merger_test.go - Unit tests for the feature merger
package features

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feature(id interface{}, p orb.Point, props geojson.Properties) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	if props != nil {
		f.Properties = props
	}
	return f
}

func collection(fs ...*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range fs {
		fc.Append(f)
	}
	return fc
}

func TestMerge_DedupByID(t *testing.T) {
	a := collection(feature(1.0, orb.Point{0, 0}, nil), feature(2.0, orb.Point{1, 1}, nil))
	b := collection(feature(2.0, orb.Point{1.0000001, 1}, nil), feature(3.0, orb.Point{2, 2}, nil))

	fc, stats := Merge(a, b)
	require.Len(t, fc.Features, 3)
	assert.Equal(t, 1, stats.Duplicates)
	assert.Equal(t, 3, stats.Added)

	ids := []interface{}{fc.Features[0].ID, fc.Features[1].ID, fc.Features[2].ID}
	assert.Equal(t, []interface{}{1.0, 2.0, 3.0}, ids)
}

func TestMerge_IDAcrossNumericTypes(t *testing.T) {
	m := NewMerger()
	assert.Equal(t, 1, m.Add(feature(int64(42), orb.Point{0, 0}, nil)))
	assert.Equal(t, 0, m.Add(feature(42.0, orb.Point{0, 0}, nil)))
	assert.Equal(t, 0, m.Add(feature("42", orb.Point{0, 0}, nil)))
	assert.Equal(t, 2, m.Duplicates())
}

func TestMerge_DedupByIDProperty(t *testing.T) {
	m := NewMerger()
	m.Add(feature(nil, orb.Point{0, 0}, geojson.Properties{"id": 7, "is_pano": true}))
	m.Add(feature(nil, orb.Point{5, 5}, geojson.Properties{"id": 7.0}))
	assert.Equal(t, 1, m.Len())
}

func TestMerge_DedupByContent(t *testing.T) {
	props := func() geojson.Properties { return geojson.Properties{"value": "regulatory--stop--g1", "n": 1.0} }

	m := NewMerger()
	m.Add(feature(nil, orb.Point{10.123456789, 20.5}, props()))
	m.Add(feature(nil, orb.Point{10.12345679, 20.5}, props()))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, 1, m.Duplicates())

	// different properties are different features
	m.Add(feature(nil, orb.Point{10.123456789, 20.5}, geojson.Properties{"value": "warning--curve"}))
	assert.Equal(t, 2, m.Len())
}

func TestMerge_PreservesOrder(t *testing.T) {
	fs := make([]*geojson.Feature, 0, 10)
	for i := 0; i < 10; i++ {
		fs = append(fs, feature(float64(10-i), orb.Point{float64(i), 0}, nil))
	}

	fc, _ := Merge(collection(fs[:5]...), collection(fs[3:]...))
	require.Len(t, fc.Features, 10)
	for i, f := range fc.Features {
		assert.Equal(t, float64(10-i), f.ID)
	}
}

func TestMerge_Empty(t *testing.T) {
	fc, stats := Merge()
	assert.Empty(t, fc.Features)
	assert.Equal(t, "FeatureCollection", fc.Type)
	assert.Zero(t, stats.Duplicates)

	m := NewMerger()
	assert.Zero(t, m.AddCollection(nil))
	assert.Zero(t, m.Add(nil))
}

func TestKey(t *testing.T) {
	assert.Equal(t, "id:9", Key(feature(uint64(9), orb.Point{0, 0}, nil)))
	assert.Equal(t, "id:abc", Key(feature("abc", orb.Point{0, 0}, nil)))
	assert.Contains(t, Key(feature(nil, orb.Point{0, 0}, nil)), "xx:")
}
