// internal/output/output_test.go - Tests for formatters and writers
package output

import (
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	p := geojson.NewFeature(orb.Point{13.4, 52.5})
	p.ID = float64(1)
	p.Properties["is_pano"] = true
	p.Properties["captured_at"] = float64(1600000000000)
	fc.Append(p)

	l := geojson.NewFeature(orb.LineString{{0, 0}, {1, 0.0001}, {2, 0}})
	l.ID = "seq-a"
	l.Properties["creator"] = "alice"
	fc.Append(l)

	return fc
}

func TestGeoJSONFormatter(t *testing.T) {
	data, err := NewGeoJSONFormatter(false).Format(sampleCollection())
	require.NoError(t, err)

	fc, err := geojson.UnmarshalFeatureCollection(data)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
	assert.Equal(t, orb.Point{13.4, 52.5}, fc.Features[0].Geometry)

	empty, err := NewGeoJSONFormatter(true).Format(nil)
	require.NoError(t, err)
	assert.Contains(t, string(empty), `"features": []`)
}

func TestCSVFormatter(t *testing.T) {
	data, err := NewCSVFormatter().Format(sampleCollection())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, []string{"id", "lng", "lat", "geometry", "captured_at", "creator", "is_pano"}, rows[0])
	assert.Equal(t, []string{"1", "13.4", "52.5", "POINT(13.4 52.5)", "1600000000000", "", "true"}, rows[1])
	assert.Equal(t, "seq-a", rows[2][0])
	assert.Equal(t, "1", rows[2][1], "line anchored at its bound center")
	assert.Equal(t, "alice", rows[2][5])
}

func TestSimplify(t *testing.T) {
	fc := sampleCollection()
	out := Simplify(fc, 0.01)

	line := out.Features[1].Geometry.(orb.LineString)
	assert.Len(t, line, 2)
	assert.Len(t, fc.Features[1].Geometry.(orb.LineString), 3, "input is not modified")
	assert.Equal(t, fc.Features[0].Geometry, out.Features[0].Geometry)

	assert.Same(t, fc, Simplify(fc, 0))
}

func TestNewWriter_Stream(t *testing.T) {
	var buf bytes.Buffer
	w, err := NewWriter(&WriterConfig{Format: FormatGeoJSON}, "-", &buf)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleCollection()))
	require.NoError(t, w.Close())

	assert.Equal(t, byte('\n'), buf.Bytes()[buf.Len()-1])
	_, err = geojson.UnmarshalFeatureCollection(bytes.TrimSpace(buf.Bytes()))
	assert.NoError(t, err)
}

func TestNewWriter_CompressedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "images.csv")
	w, err := NewWriter(&WriterConfig{Format: FormatCSV, Compression: true}, path, nil)
	require.NoError(t, err)
	require.NoError(t, w.Write(sampleCollection()))
	require.NoError(t, w.Close())

	fw := w.(*FileWriter)
	assert.Equal(t, path+".gz", fw.Name())

	f, err := os.Open(path + ".gz")
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	data, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.Contains(t, string(data), "POINT(13.4 52.5)")
}

func TestNewWriter_InvalidConfig(t *testing.T) {
	_, err := NewWriter(&WriterConfig{Format: "xml"}, "-", nil)
	assert.Error(t, err)

	_, err = NewWriter(&WriterConfig{Format: FormatGeoJSON, Simplify: -1}, "-", nil)
	assert.Error(t, err)
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]bool{"is_image": true}, false))
	assert.Equal(t, "{\"is_image\":true}\n", buf.String())
}
