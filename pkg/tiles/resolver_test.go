// pkg/tiles/resolver_test.go - Unit tests for tile resolution
package tiles

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/mapillary/pkg/mlyerr"
)

func TestValidateLngLat(t *testing.T) {
	tests := []struct {
		name     string
		lng, lat float64
		param    string
	}{
		{"valid origin", 0, 0, ""},
		{"valid near edges", 179.999, -89.999, ""},
		{"longitude at upper edge", 180, 0, "longitude"},
		{"longitude at lower edge", -180, 0, "longitude"},
		{"latitude at upper edge", 0, 90, "latitude"},
		{"latitude below range", 0, -91, "latitude"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLngLat(tt.lng, tt.lat)
			if tt.param == "" {
				assert.NoError(t, err)
				return
			}
			var rangeErr *mlyerr.InvalidRangeError
			require.True(t, errors.As(err, &rangeErr))
			assert.Equal(t, tt.param, rangeErr.Param)
		})
	}
}

func TestForPoint_ContainsPoint(t *testing.T) {
	points := []orb.Point{
		{0.5, 0.5},
		{-73.9857, 40.7484},
		{139.6917, 35.6895},
		{-0.1276, 51.5072},
		{151.2093, -33.8688},
	}

	for _, p := range points {
		for _, z := range []int{0, 5, 10, 14, 18} {
			addr := ForPoint(p.Lon(), p.Lat(), z)
			assert.True(t, addr.Bound().Contains(p), "tile %s should contain %v", addr, p)
			assert.NoError(t, addr.Validate())
		}
	}
}

func TestForPoint_MatchesMaptile(t *testing.T) {
	p := orb.Point{13.405, 52.52}
	addr := ForPoint(p.Lon(), p.Lat(), 14)
	expected := maptile.At(p, 14)
	assert.Equal(t, FromTile(expected), addr)
}

func TestForPoint_Clamps(t *testing.T) {
	addr := ForPoint(0, 89.9999, 14)
	assert.Equal(t, 0, addr.Y)

	addr = ForPoint(0, -89.9999, 14)
	assert.Equal(t, (1<<14)-1, addr.Y)

	addr = ForPoint(-180, 0, 3)
	assert.Equal(t, 0, addr.X)
}

func TestForBound_Coverage(t *testing.T) {
	b := orb.Bound{Min: orb.Point{-1, -1}, Max: orb.Point{1, 1}}
	addrs := ForBound(b, 14)

	r := RangeForBound(b, 14)
	assert.Equal(t, r.Count(), len(addrs))

	// every corner and the center fall in a returned tile
	probes := []orb.Point{b.Min, b.Max, {b.Min.Lon(), b.Max.Lat()}, {b.Max.Lon(), b.Min.Lat()}, b.Center()}
	for _, p := range probes {
		found := false
		for _, a := range addrs {
			if a.Bound().Contains(p) {
				found = true
				break
			}
		}
		assert.True(t, found, "no tile covers %v", p)
	}
}

func TestForBound_Ordering(t *testing.T) {
	b := orb.Bound{Min: orb.Point{0.01, 0.01}, Max: orb.Point{0.05, 0.05}}
	addrs := ForBound(b, 14)
	require.NotEmpty(t, addrs)

	for i := 1; i < len(addrs); i++ {
		prev, cur := addrs[i-1], addrs[i]
		if prev.X == cur.X {
			assert.Less(t, prev.Y, cur.Y)
		} else {
			assert.Less(t, prev.X, cur.X)
		}
	}
}

func TestForBound_SinglePointBox(t *testing.T) {
	b := orb.Bound{Min: orb.Point{10, 10}, Max: orb.Point{10, 10}}
	addrs := ForBound(b, 14)
	require.Len(t, addrs, 1)
	assert.Equal(t, ForPoint(10, 10, 14), addrs[0])
}

func TestForLayerPoint_ZoomValidation(t *testing.T) {
	_, err := ForLayerPoint(LayerImage, 0, 0, 13)
	var zoomErr *mlyerr.InvalidZoomError
	require.True(t, errors.As(err, &zoomErr))
	assert.Equal(t, "image", zoomErr.Layer)
	assert.Equal(t, 14, zoomErr.Min)

	_, err = ForLayerPoint(LayerOverview, 0, 0, 6)
	require.True(t, errors.As(err, &zoomErr))

	addrs, err := ForLayerPoint(LayerSequence, 0, 0, 10)
	require.NoError(t, err)
	assert.Len(t, addrs, 1)
}

func TestForLayerPoint_InvalidLongitude(t *testing.T) {
	_, err := ForLayerPoint(LayerImage, 200, 0, 14)
	var rangeErr *mlyerr.InvalidRangeError
	assert.True(t, errors.As(err, &rangeErr))
}

func TestForLayerPoint_ZoomCheckedBeforeCoordinates(t *testing.T) {
	_, err := ForLayerPoint(LayerImage, 200, 0, 12)
	var zoomErr *mlyerr.InvalidZoomError
	assert.True(t, errors.As(err, &zoomErr))
}

func TestForLayerBound_Order(t *testing.T) {
	b := orb.Bound{Min: orb.Point{1, -1}, Max: orb.Point{-1, 1}}
	_, err := ForLayerBound(LayerImage, b, 14)
	var rangeErr *mlyerr.InvalidRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, "east", rangeErr.Param)
}

func TestForLayerGeometry(t *testing.T) {
	poly := orb.Polygon{{{0, 0}, {0.02, 0}, {0.02, 0.02}, {0, 0.02}, {0, 0}}}
	addrs, err := ForLayerGeometry(LayerImage, poly, 14)
	require.NoError(t, err)
	assert.Equal(t, ForBound(poly.Bound(), 14), addrs)

	_, err = ForLayerGeometry(LayerImage, orb.Point{0, 0}, 14)
	assert.Error(t, err)

	_, err = ForLayerGeometry(LayerImage, nil, 14)
	assert.Error(t, err)
}

func TestParseLayer(t *testing.T) {
	l, err := ParseLayer("traffic_sign")
	require.NoError(t, err)
	assert.Equal(t, LayerTrafficSign, l)
	assert.Equal(t, "traffic_sign", l.MVTName())
	assert.Equal(t, "point", LayerMapFeature.MVTName())

	_, err = ParseLayer("roads")
	var optErr *mlyerr.InvalidOptionError
	require.True(t, errors.As(err, &optErr))
	assert.Equal(t, "layer", optErr.Param)
	assert.Contains(t, optErr.Options, "image")
}

func TestLayerDefaults(t *testing.T) {
	assert.Equal(t, 5, LayerOverview.DefaultZoom())
	assert.Equal(t, 14, LayerSequence.DefaultZoom())
	assert.True(t, LayerImage.SupportsComputed())
	assert.False(t, LayerMapFeature.SupportsComputed())
}

func TestBoundAround(t *testing.T) {
	b := BoundAround(10, 20, 500)
	assert.True(t, b.Contains(orb.Point{10, 20}))
	assert.Less(t, b.Min.Lon(), 10.0)
	assert.Greater(t, b.Max.Lat(), 20.0)
}

func TestAddressValidate(t *testing.T) {
	tests := []struct {
		name    string
		addr    Address
		wantErr bool
	}{
		{"valid coordinates", Address{14, 8362, 5956}, false},
		{"invalid zoom negative", Address{-1, 0, 0}, true},
		{"invalid zoom too high", Address{23, 0, 0}, true},
		{"invalid x too high", Address{1, 2, 0}, true},
		{"invalid y negative", Address{1, 0, -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.addr.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Address.Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddressString(t *testing.T) {
	assert.Equal(t, "14/8362/5956", NewAddress(14, 8362, 5956).String())
}
