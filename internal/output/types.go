// internal/output/types.go - Output handling types
package output

import (
	"fmt"
	"io"

	"github.com/paulmach/orb/geojson"
)

// Format represents different output formats supported by the application
type Format string

const (
	FormatGeoJSON Format = "geojson"
	FormatCSV     Format = "csv"
)

// Writer writes feature collections to a destination
type Writer interface {
	Write(fc *geojson.FeatureCollection) error
	Close() error
}

// Formatter renders a feature collection in one output format
type Formatter interface {
	Format(fc *geojson.FeatureCollection) ([]byte, error)
	ContentType() string
}

// Destination represents an output destination (file, stdout, etc.)
type Destination interface {
	io.WriteCloser
	Name() string
	Size() int64
}

// WriterConfig contains configuration for creating writers
type WriterConfig struct {
	Format      Format
	Pretty      bool
	Compression bool
	// Simplify is the Douglas-Peucker tolerance in degrees; zero disables it
	Simplify float64
}

// NewWriterConfig creates a writer configuration with default values
func NewWriterConfig() *WriterConfig {
	return &WriterConfig{Format: FormatGeoJSON}
}

// Validate validates the writer configuration
func (c *WriterConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.Simplify < 0 {
		return fmt.Errorf("simplify tolerance must be non-negative, got %g", c.Simplify)
	}
	return nil
}

// String returns a string representation of the format
func (f Format) String() string {
	return string(f)
}

// IsValid checks if the format is supported
func (f Format) IsValid() bool {
	switch f {
	case FormatGeoJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// Extension returns the file extension of the format
func (f Format) Extension() string {
	if f == FormatCSV {
		return ".csv"
	}
	return ".geojson"
}
