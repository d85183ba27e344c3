// pkg/mvt/decoder.go - Mapbox Vector Tile decoding into WGS84 feature records
package mvt

import (
	"bytes"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/valpere/mapillary/pkg/tiles"
)

// gzipMagic prefixes every gzip stream
var gzipMagic = []byte{0x1f, 0x8b}

// Decoder turns encoded vector tiles into feature records
type Decoder struct {
	logger zerolog.Logger
}

// NewDecoder creates a decoder that reports dropped features to logger
func NewDecoder(logger zerolog.Logger) *Decoder {
	return &Decoder{logger: logger}
}

// DecodedFeature is one feature read out of a tile layer, projected to WGS84
type DecodedFeature struct {
	ID         interface{}        `json:"id,omitempty"`
	Properties geojson.Properties `json:"properties"`
	Geometry   orb.Geometry       `json:"geometry"`
	Tile       tiles.Address      `json:"tile"`
	Layer      string             `json:"layer"`
}

// Decode reads the named layer of an encoded tile. Features keep the order
// they have in the tile. An empty payload or a tile without the layer yields
// no features and no error.
func (d *Decoder) Decode(data []byte, addr tiles.Address, layerName string) ([]*DecodedFeature, error) {
	if len(data) == 0 {
		return nil, nil
	}
	if err := addr.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tile address: %w", err)
	}

	layers, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tile %s: %w", addr, err)
	}

	for _, layer := range layers {
		if layer.Name != layerName {
			continue
		}
		layer.ProjectToWGS84(addr.Tile())
		return d.decodeLayer(layer, addr), nil
	}

	d.logger.Debug().
		Str("tile", addr.String()).
		Str("layer", layerName).
		Msg("layer not present in tile")
	return nil, nil
}

// LayerNames lists the layers contained in an encoded tile
func LayerNames(data []byte) ([]string, error) {
	if len(data) == 0 {
		return nil, nil
	}
	layers, err := unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal tile: %w", err)
	}
	names := make([]string, 0, len(layers))
	for _, l := range layers {
		names = append(names, l.Name)
	}
	return names, nil
}

func unmarshal(data []byte) (mvt.Layers, error) {
	if bytes.HasPrefix(data, gzipMagic) {
		return mvt.UnmarshalGzipped(data)
	}
	return mvt.Unmarshal(data)
}

func (d *Decoder) decodeLayer(layer *mvt.Layer, addr tiles.Address) []*DecodedFeature {
	out := make([]*DecodedFeature, 0, len(layer.Features))
	for _, f := range layer.Features {
		if f.Geometry == nil {
			d.logger.Debug().
				Str("tile", addr.String()).
				Str("layer", layer.Name).
				Msg("dropping feature without geometry")
			continue
		}

		props := f.Properties
		if props == nil {
			props = geojson.Properties{}
		}

		out = append(out, &DecodedFeature{
			ID:         f.ID,
			Properties: props,
			Geometry:   f.Geometry,
			Tile:       addr,
			Layer:      layer.Name,
		})
	}
	return out
}

// ToFeature converts a record to a GeoJSON feature sharing its geometry and properties
func (f *DecodedFeature) ToFeature() *geojson.Feature {
	gf := geojson.NewFeature(f.Geometry)
	gf.ID = f.ID
	gf.Properties = f.Properties
	return gf
}

// ToFeatureCollection converts records to a GeoJSON collection in order
func ToFeatureCollection(records []*DecodedFeature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		fc.Append(r.ToFeature())
	}
	return fc
}
