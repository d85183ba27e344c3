// pkg/filter/named.go - Construction of filters from string names and parameters
package filter

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ListSeparator splits multi-valued parameters such as ids=1|2|3
const ListSeparator = "|"

// Params are the string parameters of a named filter
type Params map[string]string

// UnknownFilterError reports a filter name outside the closed set of kinds
type UnknownFilterError struct {
	Name  string
	Known []string
}

func (e *UnknownFilterError) Error() string {
	return fmt.Sprintf("unknown filter %q: must be one of [%s]", e.Name, strings.Join(e.Known, ", "))
}

type builder func(Params) (Filter, error)

var builders = map[string]builder{
	"min_captured_at": func(p Params) (Filter, error) { return MinCapturedAt{Date: p.first("date", "value")}, nil },
	"max_captured_at": func(p Params) (Filter, error) { return MaxCapturedAt{Date: p.first("date", "value")}, nil },
	"image_type":      func(p Params) (Filter, error) { return ImageType{Type: p.first("type", "value")}, nil },
	"coverage":        func(p Params) (Filter, error) { return ImageType{Type: p.first("type", "value")}, nil },
	"organization_id": func(p Params) (Filter, error) { return OrganizationID{IDs: p.list("ids", "value")}, nil },
	"sequence_id":     func(p Params) (Filter, error) { return SequenceID{IDs: p.list("ids", "value")}, nil },
	"existed_at":      func(p Params) (Filter, error) { return ExistedAt{Date: p.first("date", "value")}, nil },
	"existed_before":  func(p Params) (Filter, error) { return ExistedBefore{Date: p.first("date", "value")}, nil },
	"object_values":   func(p Params) (Filter, error) { return ObjectValues{Values: p.list("values", "value")}, nil },
	"compass_angle": func(p Params) (Filter, error) {
		lo, err := p.float("min", 0)
		if err != nil {
			return nil, err
		}
		hi, err := p.float("max", 360)
		if err != nil {
			return nil, err
		}
		return CompassAngle{Min: lo, Max: hi}, nil
	},
	"haversine_dist": func(p Params) (Filter, error) {
		vals, err := p.floats("lng", "lat", "radius")
		if err != nil {
			return nil, err
		}
		return HaversineDist{Lng: vals[0], Lat: vals[1], Radius: vals[2], Units: p["units"]}, nil
	},
	"features_in_bounding_box": func(p Params) (Filter, error) {
		vals, err := p.floats("west", "south", "east", "north")
		if err != nil {
			return nil, err
		}
		return InBoundingBox{West: vals[0], South: vals[1], East: vals[2], North: vals[3]}, nil
	},
	"in_shape": func(p Params) (Filter, error) {
		raw := p.first("geojson", "shape")
		if raw == "" {
			return nil, fmt.Errorf("in_shape: parameter geojson is required")
		}
		shape, err := ParseShape([]byte(raw))
		if err != nil {
			return nil, fmt.Errorf("in_shape: %w", err)
		}
		return InShape{Shape: shape}, nil
	},
	"look_at": func(p Params) (Filter, error) {
		vals, err := p.floats("lng", "lat")
		if err != nil {
			return nil, err
		}
		tol, err := p.float("tolerance", DefaultLookAtTolerance)
		if err != nil {
			return nil, err
		}
		return LookAt{Lng: vals[0], Lat: vals[1], Tolerance: tol}, nil
	},
}

// Names lists every filter name accepted by Named, sorted
func Names() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Named builds a filter from its wire name. Unknown names fail with
// *UnknownFilterError; parameters that are not numbers where numbers are
// required fail here, while range and format checks happen when the
// filter runs.
func Named(name string, p Params) (Filter, error) {
	b, ok := builders[strings.TrimSpace(name)]
	if !ok {
		return nil, &UnknownFilterError{Name: name, Known: Names()}
	}
	return b(p)
}

// Parse reads the compact form name:key=value,key=value used on the command
// line and in query strings
func Parse(s string) (Filter, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(s), ":")
	params := Params{}
	if doc, ok := strings.CutPrefix(rest, "geojson="); ok {
		// GeoJSON carries its own commas, take it verbatim
		params["geojson"] = doc
		return Named(name, params)
	}
	if rest != "" {
		for _, pair := range strings.Split(rest, ",") {
			k, v, ok := strings.Cut(pair, "=")
			if !ok {
				return nil, fmt.Errorf("filter %s: parameter %q must be key=value", name, pair)
			}
			params[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
	}
	return Named(name, params)
}

func (p Params) first(keys ...string) string {
	for _, k := range keys {
		if v, ok := p[k]; ok {
			return v
		}
	}
	return ""
}

func (p Params) list(keys ...string) []string {
	raw := p.first(keys...)
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ListSeparator)
}

func (p Params) float(key string, def float64) (float64, error) {
	raw, ok := p[key]
	if !ok || raw == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("parameter %s: %q is not a number", key, raw)
	}
	return f, nil
}

func (p Params) floats(keys ...string) ([]float64, error) {
	out := make([]float64, len(keys))
	for i, k := range keys {
		raw, ok := p[k]
		if !ok || raw == "" {
			return nil, fmt.Errorf("parameter %s is required", k)
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %s: %q is not a number", k, raw)
		}
		out[i] = f
	}
	return out, nil
}
