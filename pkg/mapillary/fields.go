// pkg/mapillary/fields.go - Per-entity field allow-lists and validation
package mapillary

import (
	"github.com/valpere/mapillary/pkg/mlyerr"
)

// EntityKind names a Graph entity type with its own field allow-list
type EntityKind string

const (
	EntityImage        EntityKind = "image"
	EntityMapFeature   EntityKind = "map_feature"
	EntityDetection    EntityKind = "detection"
	EntityOrganization EntityKind = "organization"
)

// FieldAll requests every field of the allow-list
const FieldAll = "all"

// fieldGeometry is always requested where the entity has one
const fieldGeometry = "geometry"

var allowLists = map[EntityKind][]string{
	EntityImage: {
		"altitude", "atomic_scale", "camera_parameters", "camera_type",
		"captured_at", "compass_angle", "computed_altitude",
		"computed_compass_angle", "computed_geometry", "computed_rotation",
		"creator", "exif_orientation", "geometry", "height", "make", "model",
		"thumb_256_url", "thumb_1024_url", "thumb_2048_url",
		"thumb_original_url", "merge_cc", "mesh", "quality_score",
		"sequence", "sfm_cluster", "width",
	},
	EntityMapFeature: {
		"first_seen_at", "last_seen_at", "object_value", "object_type",
		"geometry", "images",
	},
	EntityDetection: {
		"created_at", "geometry", "image", "value",
	},
	EntityOrganization: {
		"slug", "name", "description",
	},
}

// Kinds lists the entity kinds in a stable order
func Kinds() []EntityKind {
	return []EntityKind{EntityImage, EntityMapFeature, EntityDetection, EntityOrganization}
}

// Fields returns a copy of the allow-list of kind
func Fields(kind EntityKind) []string {
	return append([]string(nil), allowLists[kind]...)
}

// ValidateFields resolves a field selection against the allow-list of kind.
// No fields, or the "all" sentinel, select the whole list. Geometry is added
// when the entity has one. Any other name fails with *InvalidFieldError.
func ValidateFields(kind EntityKind, fields []string) ([]string, error) {
	allow, ok := allowLists[kind]
	if !ok {
		options := make([]string, 0, len(allowLists))
		for _, k := range Kinds() {
			options = append(options, string(k))
		}
		return nil, &mlyerr.InvalidOptionError{Param: "entity", Value: string(kind), Options: options}
	}

	if len(fields) == 0 {
		return Fields(kind), nil
	}

	valid := make(map[string]struct{}, len(allow))
	for _, f := range allow {
		valid[f] = struct{}{}
	}

	selected := make([]string, 0, len(fields)+1)
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f == FieldAll {
			return Fields(kind), nil
		}
		if _, ok := valid[f]; !ok {
			return nil, &mlyerr.InvalidFieldError{Field: f, Endpoint: string(kind), Valid: Fields(kind)}
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		selected = append(selected, f)
	}

	if _, hasGeom := valid[fieldGeometry]; hasGeom {
		if _, requested := seen[fieldGeometry]; !requested {
			selected = append(selected, fieldGeometry)
		}
	}
	return selected, nil
}
