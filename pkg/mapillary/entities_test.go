// pkg/mapillary/entities_test.go - Tests for Graph entities, fields and probing
package mapillary

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/valpere/mapillary/internal/apitest"
	"github.com/valpere/mapillary/pkg/mlyerr"
)

func TestValidateFields(t *testing.T) {
	_, err := ValidateFields(EntityImage, []string{"altitude", "bogus_field"})
	var fieldErr *mlyerr.InvalidFieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Equal(t, "bogus_field", fieldErr.Field)
	assert.Contains(t, err.Error(), "bogus_field")

	all, err := ValidateFields(EntityImage, []string{FieldAll})
	require.NoError(t, err)
	assert.Len(t, all, 26)
	assert.Contains(t, all, "geometry")

	none, err := ValidateFields(EntityImage, nil)
	require.NoError(t, err)
	assert.Equal(t, all, none)

	got, err := ValidateFields(EntityImage, []string{"captured_at", "captured_at"})
	require.NoError(t, err)
	assert.Equal(t, []string{"captured_at", "geometry"}, got)

	got, err = ValidateFields(EntityOrganization, []string{"slug"})
	require.NoError(t, err)
	assert.Equal(t, []string{"slug"}, got, "organizations have no geometry")

	_, err = ValidateFields("user", nil)
	var optErr *mlyerr.InvalidOptionError
	assert.True(t, errors.As(err, &optErr))
}

func TestFieldsAllowListSizes(t *testing.T) {
	assert.Len(t, Fields(EntityImage), 26)
	assert.Len(t, Fields(EntityMapFeature), 6)
	assert.Len(t, Fields(EntityDetection), 4)
	assert.Len(t, Fields(EntityOrganization), 3)

	f := Fields(EntityDetection)
	f[0] = "mutated"
	assert.NotEqual(t, "mutated", Fields(EntityDetection)[0])
}

func TestImage(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{Fields: map[string]interface{}{
		"captured_at":   int64(1600000000000),
		"compass_angle": 87.5,
		"sequence":      "seq-a",
		"geometry":      apitest.PointGeometry(13.4, 52.5),
	}})

	obs := newRecordingObserver()
	c := newTestClient(t, up, WithObserver(obs))

	fc, err := c.Image(context.Background(), "1001", "captured_at", "compass_angle")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)

	f := fc.Features[0]
	assert.Equal(t, orb.Point{13.4, 52.5}, f.Geometry)
	assert.Equal(t, "1001", f.ID)
	assert.Equal(t, 87.5, f.Properties["compass_angle"])
	assert.Equal(t, float64(1600000000000), f.Properties["captured_at"])
	assert.NotContains(t, f.Properties, "geometry")
	assert.NotContains(t, f.Properties, "sequence", "only requested fields are returned")
	assert.Equal(t, 1, obs.entities["image/ok"])
}

func TestImage_Errors(t *testing.T) {
	up := apitest.New(t)
	c := newTestClient(t, up)

	_, err := c.Image(context.Background(), "1001", "bogus_field")
	var fieldErr *mlyerr.InvalidFieldError
	require.True(t, errors.As(err, &fieldErr))
	assert.Zero(t, up.GraphRequests(), "fields are checked before the request")

	_, err = c.Image(context.Background(), " ")
	var optErr *mlyerr.InvalidOptionError
	require.True(t, errors.As(err, &optErr))

	_, err = c.Image(context.Background(), "404404", "captured_at")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.True(t, httpErr.NotFound())
	assert.Contains(t, httpErr.Body, "does not exist")
}

func TestMapFeature(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("2002", apitest.Entity{Fields: map[string]interface{}{
		"object_value":  "object--fire-hydrant",
		"first_seen_at": int64(1500000000000),
		"geometry":      apitest.PointGeometry(2.35, 48.85),
	}})
	c := newTestClient(t, up)

	fc, err := c.MapFeature(context.Background(), "2002", "object_value", "first_seen_at")
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "object--fire-hydrant", fc.Features[0].Properties["object_value"])
	assert.Equal(t, orb.Point{2.35, 48.85}, fc.Features[0].Geometry)
}

func TestDetections(t *testing.T) {
	box := orb.Polygon{{{1024, 1024}, {3072, 1024}, {3072, 3072}, {1024, 3072}, {1024, 1024}}}
	encoded, err := apitest.EncodeDetection(box, 4096)
	require.NoError(t, err)

	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{
		Fields: map[string]interface{}{},
		Detections: []map[string]interface{}{
			{"id": "d1", "value": "object--bench", "geometry": encoded},
			{"id": "d2", "value": "regulatory--stop--g1", "geometry": encoded},
		},
	})
	c := newTestClient(t, up)

	fc, err := c.ImageDetections(context.Background(), "1001", "value")
	require.NoError(t, err)
	require.Len(t, fc.Features, 2)

	f := fc.Features[0]
	assert.Equal(t, "d1", f.ID)
	assert.Equal(t, "object--bench", f.Properties["value"])
	b := f.Geometry.Bound()
	assert.InDelta(t, 0.25, b.Min.X(), 1e-9)
	assert.InDelta(t, 0.75, b.Max.X(), 1e-9)

	fc, err = c.MapFeatureDetections(context.Background(), "1001")
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestDetections_BadGeometry(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{Detections: []map[string]interface{}{
		{"id": "d1", "geometry": "***"},
	}})
	c := newTestClient(t, up)

	_, err := c.ImageDetections(context.Background(), "1001", "geometry")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "detection 0")
}

func TestOrganization(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("77", apitest.Entity{Fields: map[string]interface{}{
		"slug": "acme",
		"name": "Acme Mapping",
	}})
	c := newTestClient(t, up)

	org, err := c.Organization(context.Background(), "77", "slug", "name")
	require.NoError(t, err)
	assert.Equal(t, &Organization{ID: "77", Slug: "acme", Name: "Acme Mapping"}, org)

	_, err = c.Organization(context.Background(), "77", "description")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
}

func TestImageThumbnail(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{Fields: map[string]interface{}{
		"thumb_1024_url": "https://cdn.example.com/1001/1024.jpg",
	}})
	c := newTestClient(t, up)

	u, err := c.ImageThumbnail(context.Background(), "1001", "1024")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/1001/1024.jpg", u)

	_, err = c.ImageThumbnail(context.Background(), "1001", "512")
	var optErr *mlyerr.InvalidOptionError
	require.True(t, errors.As(err, &optErr))
	assert.Equal(t, "resolution", optErr.Param)

	_, err = c.ImageThumbnail(context.Background(), "1001", "2048")
	require.Error(t, err)
}

func TestProbeImageID(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{Fields: map[string]interface{}{
		"captured_at": int64(1600000000000),
		"sequence":    "seq-a",
	}})
	up.AddEntity("2002", apitest.Entity{Fields: map[string]interface{}{
		"object_value": "object--bench",
	}})
	c := newTestClient(t, up)

	tests := []struct {
		id   string
		want ProbeKind
	}{
		{"1001", ProbeImage},
		{"404404", ProbeNotFound},
		{"2002", ProbeWrongType},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			p, err := c.ProbeImageID(context.Background(), tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Kind, p.Kind.String())
			assert.Equal(t, tt.want == ProbeImage, p.IsImage())
			if tt.want != ProbeImage {
				assert.Error(t, p.Err)
			}
		})
	}
}

func TestProbeImageID_TransportFailure(t *testing.T) {
	up := apitest.New(t)
	c := newTestClient(t, up)
	up.Server.Close()

	p, err := c.ProbeImageID(context.Background(), "1001")
	require.NoError(t, err)
	assert.Equal(t, ProbeTransportFailure, p.Kind)
	assert.False(t, p.IsImage())
	assert.NotContains(t, p.Err.Error(), apitest.Token)
}

func TestProbeImageID_Errors(t *testing.T) {
	c, err := New(NewSession(""))
	require.NoError(t, err)

	_, err = c.ProbeImageID(context.Background(), "1001")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = c.ProbeImageID(context.Background(), "")
	var optErr *mlyerr.InvalidOptionError
	assert.True(t, errors.As(err, &optErr))
}

func TestGraphRejectsBadToken(t *testing.T) {
	up := apitest.New(t)
	up.AddEntity("1001", apitest.Entity{Fields: map[string]interface{}{"captured_at": 1}})
	up.SetToken("other")
	c := newTestClient(t, up)

	_, err := c.Image(context.Background(), "1001", "captured_at")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
}
