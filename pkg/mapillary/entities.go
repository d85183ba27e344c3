// pkg/mapillary/entities.go - Graph entity lookups
package mapillary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mapillary/pkg/mlyerr"
	"github.com/valpere/mapillary/pkg/mvt"
)

// Thumbnail resolutions served for images
var thumbnailResolutions = []string{"256", "1024", "2048", "original"}

// Organization is a Graph organization entity
type Organization struct {
	ID          string `json:"id"`
	Slug        string `json:"slug,omitempty"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Image fetches one image entity as a single-feature collection
func (c *Client) Image(ctx context.Context, id string, fields ...string) (*geojson.FeatureCollection, error) {
	return c.geoEntity(ctx, EntityImage, id, fields)
}

// MapFeature fetches one map feature entity as a single-feature collection
func (c *Client) MapFeature(ctx context.Context, id string, fields ...string) (*geojson.FeatureCollection, error) {
	return c.geoEntity(ctx, EntityMapFeature, id, fields)
}

// ImageDetections lists the detections made on an image. Geometries are
// decoded to image coordinates normalized to [0,1].
func (c *Client) ImageDetections(ctx context.Context, id string, fields ...string) (*geojson.FeatureCollection, error) {
	return c.detections(ctx, id, fields)
}

// MapFeatureDetections lists the detections that make up a map feature
func (c *Client) MapFeatureDetections(ctx context.Context, id string, fields ...string) (*geojson.FeatureCollection, error) {
	return c.detections(ctx, id, fields)
}

// Organization fetches one organization
func (c *Client) Organization(ctx context.Context, id string, fields ...string) (*Organization, error) {
	selected, err := ValidateFields(EntityOrganization, fields)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	var org Organization
	err = c.getGraph(ctx, c.endpoints.EntityURL(id, selected), &org)
	c.observer.EntityFetched(string(EntityOrganization), outcomeOf(err))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch organization %s: %w", id, err)
	}
	return &org, nil
}

// ImageThumbnail returns the thumbnail URL of an image at resolution 256,
// 1024, 2048 or original
func (c *Client) ImageThumbnail(ctx context.Context, id, resolution string) (string, error) {
	valid := false
	for _, r := range thumbnailResolutions {
		if r == resolution {
			valid = true
			break
		}
	}
	if !valid {
		return "", &mlyerr.InvalidOptionError{Param: "resolution", Value: resolution, Options: thumbnailResolutions}
	}
	if err := validateID(id); err != nil {
		return "", err
	}

	field := "thumb_" + resolution + "_url"
	var body map[string]interface{}
	err := c.getGraph(ctx, c.endpoints.EntityURL(id, []string{field}), &body)
	c.observer.EntityFetched(string(EntityImage), outcomeOf(err))
	if err != nil {
		return "", fmt.Errorf("failed to fetch thumbnail of image %s: %w", id, err)
	}

	u, ok := body[field].(string)
	if !ok || u == "" {
		return "", fmt.Errorf("image %s has no %s", id, field)
	}
	return u, nil
}

func (c *Client) geoEntity(ctx context.Context, kind EntityKind, id string, fields []string) (*geojson.FeatureCollection, error) {
	selected, err := ValidateFields(kind, fields)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	var raw map[string]json.RawMessage
	err = c.getGraph(ctx, c.endpoints.EntityURL(id, selected), &raw)
	c.observer.EntityFetched(string(kind), outcomeOf(err))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s %s: %w", kind, id, err)
	}

	f, err := entityFeature(raw)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", kind, id, err)
	}

	fc := geojson.NewFeatureCollection()
	fc.Append(f)
	return fc, nil
}

func (c *Client) detections(ctx context.Context, id string, fields []string) (*geojson.FeatureCollection, error) {
	selected, err := ValidateFields(EntityDetection, fields)
	if err != nil {
		return nil, err
	}
	if err := validateID(id); err != nil {
		return nil, err
	}

	var body struct {
		Data []map[string]json.RawMessage `json:"data"`
	}
	err = c.getGraph(ctx, c.endpoints.DetectionsURL(id, selected), &body)
	c.observer.EntityFetched(string(EntityDetection), outcomeOf(err))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch detections of %s: %w", id, err)
	}

	fc := geojson.NewFeatureCollection()
	for i, raw := range body.Data {
		var encoded string
		if err := json.Unmarshal(raw[fieldGeometry], &encoded); err != nil {
			return nil, fmt.Errorf("detection %d of %s: geometry is not an encoded string: %w", i, id, err)
		}
		geom, err := mvt.DecodePixelGeometry(encoded)
		if err != nil {
			return nil, fmt.Errorf("detection %d of %s: %w", i, id, err)
		}

		delete(raw, fieldGeometry)
		f := geojson.NewFeature(geom)
		if err := fillProperties(f, raw); err != nil {
			return nil, fmt.Errorf("detection %d of %s: %w", i, id, err)
		}
		fc.Append(f)
	}
	return fc, nil
}

// entityFeature splits a Graph entity into geometry, id and properties
func entityFeature(raw map[string]json.RawMessage) (*geojson.Feature, error) {
	geomRaw, ok := raw[fieldGeometry]
	if !ok || len(geomRaw) == 0 || string(geomRaw) == "null" {
		return nil, errors.New("entity has no geometry")
	}
	g, err := geojson.UnmarshalGeometry(geomRaw)
	if err != nil {
		return nil, fmt.Errorf("invalid geometry: %w", err)
	}

	delete(raw, fieldGeometry)
	f := geojson.NewFeature(g.Geometry())
	if err := fillProperties(f, raw); err != nil {
		return nil, err
	}
	return f, nil
}

func fillProperties(f *geojson.Feature, raw map[string]json.RawMessage) error {
	for key, value := range raw {
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
		if key == "id" {
			f.ID = v
		}
		f.Properties[key] = v
	}
	return nil
}

func validateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &mlyerr.InvalidOptionError{Param: "id", Value: id, Options: []string{"a non-empty entity id"}}
	}
	return nil
}
