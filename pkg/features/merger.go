// pkg/features/merger.go - Ordered, deduplicating accumulation of tile features
package features

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// geomRoundingFactor keeps seven decimals, enough to absorb reprojection noise
// between adjacent tiles while staying well below a centimeter.
const geomRoundingFactor = 10_000_000

// Merger accumulates features from successive tiles into one collection,
// skipping any feature whose key has already been seen. It is not safe for
// concurrent use; tiles are merged in enumeration order by a single caller.
type Merger struct {
	seen       map[string]struct{}
	collection *geojson.FeatureCollection
	duplicates int
}

// Stats summarizes what a merge did
type Stats struct {
	Added      int `json:"added"`
	Duplicates int `json:"duplicates"`
}

// NewMerger creates an empty merger
func NewMerger() *Merger {
	return &Merger{
		seen:       make(map[string]struct{}),
		collection: geojson.NewFeatureCollection(),
	}
}

// Add appends features in order, skipping duplicates. It returns the number
// of features actually appended.
func (m *Merger) Add(fs ...*geojson.Feature) int {
	added := 0
	for _, f := range fs {
		if f == nil {
			continue
		}
		key := Key(f)
		if _, dup := m.seen[key]; dup {
			m.duplicates++
			continue
		}
		m.seen[key] = struct{}{}
		m.collection.Append(f)
		added++
	}
	return added
}

// AddCollection appends every feature of fc, see Add
func (m *Merger) AddCollection(fc *geojson.FeatureCollection) int {
	if fc == nil {
		return 0
	}
	return m.Add(fc.Features...)
}

// Collection returns the merged collection
func (m *Merger) Collection() *geojson.FeatureCollection {
	return m.collection
}

// Len is the number of unique features merged so far
func (m *Merger) Len() int {
	return len(m.collection.Features)
}

// Duplicates is the number of features skipped as already present
func (m *Merger) Duplicates() int {
	return m.duplicates
}

// Stats reports the merge counters
func (m *Merger) Stats() Stats {
	return Stats{Added: m.Len(), Duplicates: m.duplicates}
}

// Merge combines collections in order into a new deduplicated collection
func Merge(collections ...*geojson.FeatureCollection) (*geojson.FeatureCollection, Stats) {
	m := NewMerger()
	for _, fc := range collections {
		m.AddCollection(fc)
	}
	return m.Collection(), m.Stats()
}

// Key returns the identity used for deduplication. An explicit feature ID wins,
// then an "id" property, then a digest of the rounded geometry and properties.
func Key(f *geojson.Feature) string {
	if k, ok := idKey(f.ID); ok {
		return "id:" + k
	}
	if k, ok := idKey(f.Properties["id"]); ok {
		return "id:" + k
	}
	return "xx:" + strconv.FormatUint(contentDigest(f), 16)
}

// idKey renders string and numeric IDs canonically so 42, 42.0 and "42"
// from different decoders collapse to the same key.
func idKey(v interface{}) (string, bool) {
	switch id := v.(type) {
	case nil:
		return "", false
	case string:
		if id == "" {
			return "", false
		}
		return id, true
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), true
	case float32:
		return strconv.FormatFloat(float64(id), 'f', -1, 32), true
	case int:
		return strconv.FormatInt(int64(id), 10), true
	case int32:
		return strconv.FormatInt(int64(id), 10), true
	case int64:
		return strconv.FormatInt(id, 10), true
	case uint:
		return strconv.FormatUint(uint64(id), 10), true
	case uint32:
		return strconv.FormatUint(uint64(id), 10), true
	case uint64:
		return strconv.FormatUint(id, 10), true
	case json.Number:
		return id.String(), true
	default:
		return "", false
	}
}

func contentDigest(f *geojson.Feature) uint64 {
	h := xxhash.New()

	if f.Geometry != nil {
		g := orb.Round(orb.Clone(f.Geometry), geomRoundingFactor)
		if b, err := json.Marshal(geojson.NewGeometry(g)); err == nil {
			_, _ = h.Write(b)
		}
	}
	_, _ = h.Write([]byte{0})

	// encoding/json sorts map keys, which makes the properties canonical
	if b, err := json.Marshal(f.Properties); err == nil {
		_, _ = h.Write(b)
	} else {
		_, _ = h.WriteString(fmt.Sprint(f.Properties))
	}
	return h.Sum64()
}
