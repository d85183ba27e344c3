// pkg/filter/shape.go - GeoJSON shape parsing for polygon queries
package filter

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// ParseShape reads a Polygon, MultiPolygon, Feature or FeatureCollection
// GeoJSON document and returns its area as a Polygon or MultiPolygon.
// Polygons of a collection are combined into one MultiPolygon.
func ParseShape(data []byte) (orb.Geometry, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("failed to parse shape: %w", err)
	}

	switch head.Type {
	case "FeatureCollection":
		fc, err := geojson.UnmarshalFeatureCollection(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shape collection: %w", err)
		}
		geoms := make([]orb.Geometry, 0, len(fc.Features))
		for _, f := range fc.Features {
			geoms = append(geoms, f.Geometry)
		}
		return areal(geoms...)
	case "Feature":
		f, err := geojson.UnmarshalFeature(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shape feature: %w", err)
		}
		return areal(f.Geometry)
	case "Polygon", "MultiPolygon":
		g, err := geojson.UnmarshalGeometry(data)
		if err != nil {
			return nil, fmt.Errorf("failed to parse shape geometry: %w", err)
		}
		return areal(g.Geometry())
	default:
		return nil, fmt.Errorf("unsupported shape type %q: must be Polygon, MultiPolygon, Feature or FeatureCollection", head.Type)
	}
}

func areal(geoms ...orb.Geometry) (orb.Geometry, error) {
	var mp orb.MultiPolygon
	for _, g := range geoms {
		switch geom := g.(type) {
		case orb.Polygon:
			mp = append(mp, geom)
		case orb.MultiPolygon:
			mp = append(mp, geom...)
		case nil:
			return nil, fmt.Errorf("shape feature has no geometry")
		default:
			return nil, fmt.Errorf("shape geometry must be a Polygon or MultiPolygon, got %s", geom.GeoJSONType())
		}
	}

	switch len(mp) {
	case 0:
		return nil, fmt.Errorf("shape contains no polygons")
	case 1:
		return mp[0], nil
	default:
		return mp, nil
	}
}
