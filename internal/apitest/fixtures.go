// internal/apitest/fixtures.go - Builders for tile features and Graph payloads
package apitest

import (
	"encoding/base64"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
)

// ImagePoint builds an image-layer feature the way tiles carry it
func ImagePoint(id int64, p orb.Point, pano bool, capturedAt int64) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	f.Properties = geojson.Properties{
		"id":              id,
		"is_pano":         pano,
		"captured_at":     capturedAt,
		"compass_angle":   0.0,
		"sequence_id":     fmt.Sprintf("seq-%d", id%3),
		"organization_id": id % 2,
	}
	return f
}

// MapFeaturePoint builds a map feature or traffic sign point
func MapFeaturePoint(id int64, p orb.Point, value string, firstSeen, lastSeen int64) *geojson.Feature {
	f := geojson.NewFeature(p)
	f.ID = id
	f.Properties = geojson.Properties{
		"id":            id,
		"value":         value,
		"first_seen_at": firstSeen,
		"last_seen_at":  lastSeen,
	}
	return f
}

// PointGeometry is a GeoJSON point as the Graph endpoint returns it
func PointGeometry(lng, lat float64) map[string]interface{} {
	return map[string]interface{}{
		"type":        "Point",
		"coordinates": []float64{lng, lat},
	}
}

// EncodeDetection encodes a pixel-space shape with the given extent the way
// detection geometries are served: a base64 vector tile with one feature
func EncodeDetection(g orb.Geometry, extent uint32) (string, error) {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(g))

	layer := mvt.NewLayer("mpy-or", fc)
	layer.Extent = extent

	data, err := mvt.Marshal(mvt.Layers{layer})
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
