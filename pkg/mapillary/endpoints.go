// pkg/mapillary/endpoints.go - Upstream URL templates
package mapillary

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/mapillary/pkg/mlyerr"
	"github.com/valpere/mapillary/pkg/tiles"
)

const (
	// DefaultTilesBaseURL serves vector tiles
	DefaultTilesBaseURL = "https://tiles.mapillary.com/maps/vtp"
	// DefaultGraphBaseURL serves entities
	DefaultGraphBaseURL = "https://graph.mapillary.com"
)

// Tilesets served by the tiles endpoint
const (
	TilesetPublic           = "mly1_public"
	TilesetComputedPublic   = "mly1_computed_public"
	TilesetMapFeaturePoint  = "mly_map_feature_point"
	TilesetMapFeatureSignal = "mly_map_feature_traffic_sign"
)

// tilesetVersion is the path segment between the tileset and z/x/y
const tilesetVersion = "2"

// Endpoints holds the base URLs of the two endpoint families
type Endpoints struct {
	TilesBaseURL string
	GraphBaseURL string
}

// DefaultEndpoints returns the public production endpoints
func DefaultEndpoints() Endpoints {
	return Endpoints{TilesBaseURL: DefaultTilesBaseURL, GraphBaseURL: DefaultGraphBaseURL}
}

// Tileset resolves the tileset serving layer. Computed geometry exists only
// for the overview, sequence and image layers.
func Tileset(layer tiles.Layer, computed bool) (string, error) {
	if err := layer.Validate(); err != nil {
		return "", err
	}
	switch layer {
	case tiles.LayerMapFeature:
		if computed {
			return "", computedUnsupported(layer)
		}
		return TilesetMapFeaturePoint, nil
	case tiles.LayerTrafficSign:
		if computed {
			return "", computedUnsupported(layer)
		}
		return TilesetMapFeatureSignal, nil
	default:
		if computed {
			return TilesetComputedPublic, nil
		}
		return TilesetPublic, nil
	}
}

func computedUnsupported(layer tiles.Layer) error {
	return &mlyerr.InvalidOptionError{
		Param:   "computed",
		Value:   "true for layer " + layer.String(),
		Options: []string{"false"},
	}
}

// TileURL builds the URL of one tile. The token travels as the access_token
// query parameter.
func (e Endpoints) TileURL(layer tiles.Layer, computed bool, addr tiles.Address, token string) (string, error) {
	tileset, err := Tileset(layer, computed)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("access_token", token)
	return fmt.Sprintf("%s/%s/%s/%d/%d/%d?%s",
		strings.TrimRight(e.TilesBaseURL, "/"), tileset, tilesetVersion, addr.Z, addr.X, addr.Y, q.Encode()), nil
}

// EntityURL builds the Graph URL of one entity with the selected fields
func (e Endpoints) EntityURL(id string, fields []string) string {
	return e.graphURL(url.PathEscape(id), fields)
}

// DetectionsURL builds the Graph URL listing the detections of an entity
func (e Endpoints) DetectionsURL(id string, fields []string) string {
	return e.graphURL(url.PathEscape(id)+"/detections", fields)
}

func (e Endpoints) graphURL(path string, fields []string) string {
	u := strings.TrimRight(e.GraphBaseURL, "/") + "/" + path
	if len(fields) == 0 {
		return u
	}
	q := url.Values{}
	q.Set("fields", strings.Join(fields, ","))
	return u + "?" + q.Encode()
}
