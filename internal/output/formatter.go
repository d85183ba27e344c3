// internal/output/formatter.go - Output formatting implementation
package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/simplify"
)

// GeoJSONFormatter formats collections as a GeoJSON FeatureCollection
type GeoJSONFormatter struct {
	pretty bool
}

// NewGeoJSONFormatter creates a new GeoJSON formatter
func NewGeoJSONFormatter(pretty bool) *GeoJSONFormatter {
	return &GeoJSONFormatter{pretty: pretty}
}

// Format encodes the collection. A nil collection is written as an empty one.
func (f *GeoJSONFormatter) Format(fc *geojson.FeatureCollection) ([]byte, error) {
	if fc == nil {
		fc = geojson.NewFeatureCollection()
	}
	if f.pretty {
		return json.MarshalIndent(fc, "", "  ")
	}
	return json.Marshal(fc)
}

// ContentType returns the MIME type for GeoJSON
func (f *GeoJSONFormatter) ContentType() string {
	return "application/geo+json"
}

// csvFixedColumns lead every row; property columns follow
var csvFixedColumns = []string{"id", "lng", "lat", "geometry"}

// CSVFormatter writes one row per feature. lng/lat hold the point, or the
// bound center of other geometries; geometry holds the WKT.
type CSVFormatter struct{}

// NewCSVFormatter creates a new CSV formatter
func NewCSVFormatter() *CSVFormatter {
	return &CSVFormatter{}
}

// Format encodes the collection with a header of the fixed columns followed
// by the sorted union of property keys
func (f *CSVFormatter) Format(fc *geojson.FeatureCollection) ([]byte, error) {
	var features []*geojson.Feature
	if fc != nil {
		features = fc.Features
	}

	keys := propertyKeys(features)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(append(append([]string{}, csvFixedColumns...), keys...)); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for i, feature := range features {
		row := make([]string, 0, len(csvFixedColumns)+len(keys))

		id, err := cellValue(feature.ID)
		if err != nil {
			return nil, fmt.Errorf("feature %d: %w", i, err)
		}
		p := anchor(feature.Geometry)
		geom := ""
		if feature.Geometry != nil {
			geom = wkt.MarshalString(feature.Geometry)
		}
		row = append(row,
			id,
			strconv.FormatFloat(p.Lon(), 'f', -1, 64),
			strconv.FormatFloat(p.Lat(), 'f', -1, 64),
			geom,
		)

		for _, k := range keys {
			v, err := cellValue(feature.Properties[k])
			if err != nil {
				return nil, fmt.Errorf("feature %d property %s: %w", i, k, err)
			}
			row = append(row, v)
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write csv row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type for CSV
func (f *CSVFormatter) ContentType() string {
	return "text/csv"
}

func propertyKeys(features []*geojson.Feature) []string {
	seen := make(map[string]struct{})
	for _, f := range features {
		for k := range f.Properties {
			seen[k] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func anchor(g orb.Geometry) orb.Point {
	if g == nil {
		return orb.Point{}
	}
	if p, ok := g.(orb.Point); ok {
		return p
	}
	return g.Bound().Center()
}

func cellValue(v interface{}) (string, error) {
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	case uint64:
		return strconv.FormatUint(t, 10), nil
	case int:
		return strconv.Itoa(t), nil
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

// NewFormatter creates a formatter based on the specified configuration
func NewFormatter(config *WriterConfig) (Formatter, error) {
	switch config.Format {
	case FormatGeoJSON:
		return NewGeoJSONFormatter(config.Pretty), nil
	case FormatCSV:
		return NewCSVFormatter(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %s", config.Format)
	}
}

// Simplify returns a copy of fc with line and polygon geometries reduced by
// Douglas-Peucker at tolerance. Points are untouched; a non-positive
// tolerance returns fc itself.
func Simplify(fc *geojson.FeatureCollection, tolerance float64) *geojson.FeatureCollection {
	if fc == nil || tolerance <= 0 {
		return fc
	}

	s := simplify.DouglasPeucker(tolerance)
	out := geojson.NewFeatureCollection()
	out.BBox = fc.BBox
	for _, f := range fc.Features {
		clone := *f
		switch f.Geometry.(type) {
		case orb.Point, orb.MultiPoint, nil:
		default:
			clone.Geometry = s.Simplify(orb.Clone(f.Geometry))
		}
		out.Append(&clone)
	}
	return out
}
