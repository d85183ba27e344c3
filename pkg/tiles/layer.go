// pkg/tiles/layer.go - Tile layers and their zoom table
package tiles

import (
	"github.com/valpere/mapillary/pkg/mlyerr"
)

// Layer names a category of data served per tile
type Layer string

const (
	LayerOverview    Layer = "overview"
	LayerSequence    Layer = "sequence"
	LayerImage       Layer = "image"
	LayerMapFeature  Layer = "map_feature"
	LayerTrafficSign Layer = "traffic_sign"
)

// ZoomRange is an inclusive range of zoom levels
type ZoomRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Contains reports whether z lies within the range
func (r ZoomRange) Contains(z int) bool {
	return z >= r.Min && z <= r.Max
}

var zoomTable = map[Layer]ZoomRange{
	LayerOverview:    {Min: 0, Max: 5},
	LayerSequence:    {Min: 6, Max: 14},
	LayerImage:       {Min: 14, Max: 14},
	LayerMapFeature:  {Min: 14, Max: 14},
	LayerTrafficSign: {Min: 14, Max: 14},
}

// mvtNames maps a layer to the layer name found inside the vector tile
var mvtNames = map[Layer]string{
	LayerOverview:    "overview",
	LayerSequence:    "sequence",
	LayerImage:       "image",
	LayerMapFeature:  "point",
	LayerTrafficSign: "traffic_sign",
}

// Layers returns every known layer in a stable order
func Layers() []Layer {
	return []Layer{LayerOverview, LayerSequence, LayerImage, LayerMapFeature, LayerTrafficSign}
}

func layerNames() []string {
	names := make([]string, 0, len(zoomTable))
	for _, l := range Layers() {
		names = append(names, string(l))
	}
	return names
}

// ParseLayer converts a string to a Layer, rejecting unknown names
func ParseLayer(s string) (Layer, error) {
	l := Layer(s)
	if err := l.Validate(); err != nil {
		return "", err
	}
	return l, nil
}

// Validate checks that the layer is one of the known layers
func (l Layer) Validate() error {
	if _, ok := zoomTable[l]; !ok {
		return &mlyerr.InvalidOptionError{Param: "layer", Value: string(l), Options: layerNames()}
	}
	return nil
}

// Zooms returns the zoom levels the layer is served at
func (l Layer) Zooms() (ZoomRange, error) {
	r, ok := zoomTable[l]
	if !ok {
		return ZoomRange{}, l.Validate()
	}
	return r, nil
}

// DefaultZoom is the most detailed zoom the layer is served at
func (l Layer) DefaultZoom() int {
	return zoomTable[l].Max
}

// ValidateZoom fails when z is outside the layer's zoom range
func (l Layer) ValidateZoom(z int) error {
	r, err := l.Zooms()
	if err != nil {
		return err
	}
	if !r.Contains(z) {
		return &mlyerr.InvalidZoomError{Layer: string(l), Zoom: z, Min: r.Min, Max: r.Max}
	}
	return nil
}

// MVTName returns the layer name used inside the encoded tile
func (l Layer) MVTName() string {
	return mvtNames[l]
}

// SupportsComputed reports whether computed geometry tiles exist for the layer
func (l Layer) SupportsComputed() bool {
	switch l {
	case LayerOverview, LayerSequence, LayerImage:
		return true
	default:
		return false
	}
}

// String returns the layer name
func (l Layer) String() string {
	return string(l)
}
