// pkg/mapillary/queries.go - High-level geographic queries
package mapillary

import (
	"context"
	"math"

	"github.com/paulmach/orb"

	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mlyerr"
	"github.com/valpere/mapillary/pkg/tiles"
)

// DefaultRadius is the search radius in meters of point queries
const DefaultRadius = 200.0

// ImageCriteria narrows image, sequence and overview queries. Zero values
// leave the corresponding filter out.
type ImageCriteria struct {
	// Zoom selects the tile zoom; nil means the most detailed zoom of the
	// layer. Build it with ZoomLevel.
	Zoom *int
	// Radius for point queries in Units, DefaultRadius meters when zero
	Radius float64
	// Units of Radius, meters when empty
	Units string
	// Computed reads the corrected geometry tiles
	Computed bool

	MinCapturedAt   string
	MaxCapturedAt   string
	ImageType       string
	OrganizationIDs []string
	SequenceIDs     []string
	CompassAngle    *AngleRange
	// LookAtTolerance is used by ImagesLookingAt, DefaultLookAtTolerance when zero
	LookAtTolerance float64

	// Filters run after the criteria filters
	Filters []filter.Filter
}

// AngleRange is an inclusive compass range in degrees
type AngleRange struct {
	Min float64
	Max float64
}

// MapFeatureCriteria narrows map feature and traffic sign queries
type MapFeatureCriteria struct {
	ObjectValues  []string
	ExistedAt     string
	ExistedBefore string
	Filters       []filter.Filter
}

// ZoomLevel returns z for ImageCriteria.Zoom
func ZoomLevel(z int) *int {
	return &z
}

func (c ImageCriteria) zoom(layer tiles.Layer) int {
	if c.Zoom != nil {
		return *c.Zoom
	}
	return layer.DefaultZoom()
}

func (c ImageCriteria) radius() (float64, string) {
	if c.Radius != 0 {
		return c.Radius, c.Units
	}
	return DefaultRadius, filter.UnitMeters
}

func (c ImageCriteria) filters() []filter.Filter {
	var fs []filter.Filter
	if c.MinCapturedAt != "" {
		fs = append(fs, filter.MinCapturedAt{Date: c.MinCapturedAt})
	}
	if c.MaxCapturedAt != "" {
		fs = append(fs, filter.MaxCapturedAt{Date: c.MaxCapturedAt})
	}
	if c.ImageType != "" {
		fs = append(fs, filter.ImageType{Type: c.ImageType})
	}
	if len(c.OrganizationIDs) > 0 {
		fs = append(fs, filter.OrganizationID{IDs: c.OrganizationIDs})
	}
	if len(c.SequenceIDs) > 0 {
		fs = append(fs, filter.SequenceID{IDs: c.SequenceIDs})
	}
	if c.CompassAngle != nil {
		fs = append(fs, filter.CompassAngle{Min: c.CompassAngle.Min, Max: c.CompassAngle.Max})
	}
	return append(fs, c.Filters...)
}

func (c MapFeatureCriteria) filters() []filter.Filter {
	var fs []filter.Filter
	if len(c.ObjectValues) > 0 {
		fs = append(fs, filter.ObjectValues{Values: c.ObjectValues})
	}
	if c.ExistedAt != "" {
		fs = append(fs, filter.ExistedAt{Date: c.ExistedAt})
	}
	if c.ExistedBefore != "" {
		fs = append(fs, filter.ExistedBefore{Date: c.ExistedBefore})
	}
	return append(fs, c.Filters...)
}

// ImagesCloseTo returns images strictly within the criteria radius of a point.
// Tiles cover the whole circle, not just the tile holding the point.
func (c *Client) ImagesCloseTo(ctx context.Context, lng, lat float64, crit ImageCriteria) (*Result, error) {
	return c.imagesAround(ctx, lng, lat, crit)
}

// ImagesLookingAt returns images near a point whose compass angle points at it
func (c *Client) ImagesLookingAt(ctx context.Context, lng, lat float64, crit ImageCriteria) (*Result, error) {
	crit.Filters = append([]filter.Filter{filter.LookAt{Lng: lng, Lat: lat, Tolerance: crit.LookAtTolerance}}, crit.Filters...)
	return c.imagesAround(ctx, lng, lat, crit)
}

func (c *Client) imagesAround(ctx context.Context, lng, lat float64, crit ImageCriteria) (*Result, error) {
	if err := tiles.ValidateLngLat(lng, lat); err != nil {
		return nil, err
	}
	radius, units := crit.radius()
	if radius < 0 || math.IsNaN(radius) {
		return nil, &mlyerr.InvalidRangeError{Param: "radius", Value: radius, Reason: "must be positive"}
	}
	meters, err := filter.ToMeters(radius, units)
	if err != nil {
		return nil, err
	}
	addrs, err := tiles.ForLayerBound(tiles.LayerImage, tiles.BoundAround(lng, lat, meters), crit.zoom(tiles.LayerImage))
	if err != nil {
		return nil, err
	}

	fs := append([]filter.Filter{filter.HaversineDist{Lng: lng, Lat: lat, Radius: radius, Units: units}}, crit.filters()...)
	return c.QueryTiles(ctx, addrs, TileQuery{Layer: tiles.LayerImage, Computed: crit.Computed, Filters: fs})
}

// ImagesInBBox returns images inside a west/south/east/north bound
func (c *Client) ImagesInBBox(ctx context.Context, bound orb.Bound, crit ImageCriteria) (*Result, error) {
	return c.inBound(ctx, tiles.LayerImage, bound, crit.zoom(tiles.LayerImage), crit.Computed, true, crit.filters())
}

// ImagesInShape returns images inside a Polygon or MultiPolygon. The tiles
// cover the shape's bound; containment is enforced by the in_shape filter.
func (c *Client) ImagesInShape(ctx context.Context, shape orb.Geometry, crit ImageCriteria) (*Result, error) {
	addrs, err := tiles.ForLayerGeometry(tiles.LayerImage, shape, crit.zoom(tiles.LayerImage))
	if err != nil {
		return nil, err
	}
	fs := append([]filter.Filter{filter.InShape{Shape: shape}}, crit.filters()...)
	return c.QueryTiles(ctx, addrs, TileQuery{Layer: tiles.LayerImage, Computed: crit.Computed, Filters: fs})
}

// SequencesInBBox returns sequence lines from tiles covering the bound.
// Lines crossing the bound are kept whole.
func (c *Client) SequencesInBBox(ctx context.Context, bound orb.Bound, crit ImageCriteria) (*Result, error) {
	return c.inBound(ctx, tiles.LayerSequence, bound, crit.zoom(tiles.LayerSequence), crit.Computed, false, crit.filters())
}

// OverviewInBBox returns the low-zoom overview points inside the bound
func (c *Client) OverviewInBBox(ctx context.Context, bound orb.Bound, crit ImageCriteria) (*Result, error) {
	return c.inBound(ctx, tiles.LayerOverview, bound, crit.zoom(tiles.LayerOverview), crit.Computed, true, crit.filters())
}

// MapFeaturePointsInBBox returns map feature points inside the bound
func (c *Client) MapFeaturePointsInBBox(ctx context.Context, bound orb.Bound, crit MapFeatureCriteria) (*Result, error) {
	return c.inBound(ctx, tiles.LayerMapFeature, bound, tiles.LayerMapFeature.DefaultZoom(), false, true, crit.filters())
}

// TrafficSignsInBBox returns traffic signs inside the bound
func (c *Client) TrafficSignsInBBox(ctx context.Context, bound orb.Bound, crit MapFeatureCriteria) (*Result, error) {
	return c.inBound(ctx, tiles.LayerTrafficSign, bound, tiles.LayerTrafficSign.DefaultZoom(), false, true, crit.filters())
}

func (c *Client) inBound(ctx context.Context, layer tiles.Layer, bound orb.Bound, zoom int, computed, clip bool, extra []filter.Filter) (*Result, error) {
	addrs, err := tiles.ForLayerBound(layer, bound, zoom)
	if err != nil {
		return nil, err
	}

	var fs []filter.Filter
	if clip {
		fs = append(fs, filter.InBoundingBox{
			West: bound.Min.Lon(), South: bound.Min.Lat(),
			East: bound.Max.Lon(), North: bound.Max.Lat(),
		})
	}
	fs = append(fs, extra...)
	return c.QueryTiles(ctx, addrs, TileQuery{Layer: layer, Computed: computed, Filters: fs})
}
