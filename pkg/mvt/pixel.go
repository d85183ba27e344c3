// pkg/mvt/pixel.go - Detection geometry decoding into normalized image coordinates
package mvt

import (
	"encoding/base64"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/project"
)

// DefaultExtent is used when an encoded detection layer omits its extent
const DefaultExtent = 4096

// DecodePixelGeometry decodes a base64 vector tile blob holding a single
// detection shape. Coordinates are scaled by the layer extent so that
// (0,0) is the top-left and (1,1) the bottom-right corner of the image.
func DecodePixelGeometry(encoded string) (orb.Geometry, error) {
	if encoded == "" {
		return nil, fmt.Errorf("empty detection geometry")
	}

	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 detection geometry: %w", err)
	}

	layers, err := unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal detection geometry: %w", err)
	}

	layer, geom := firstGeometry(layers)
	if geom == nil {
		return nil, fmt.Errorf("detection geometry contains no features")
	}

	extent := float64(layer.Extent)
	if extent == 0 {
		extent = DefaultExtent
	}

	return project.Geometry(orb.Clone(geom), func(p orb.Point) orb.Point {
		return orb.Point{p[0] / extent, p[1] / extent}
	}), nil
}

func firstGeometry(layers mvt.Layers) (*mvt.Layer, orb.Geometry) {
	for _, l := range layers {
		for _, f := range l.Features {
			if f.Geometry != nil {
				return l, f.Geometry
			}
		}
	}
	return nil, nil
}
