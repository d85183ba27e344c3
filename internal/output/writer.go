// internal/output/writer.go - Output writing implementation
package output

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/paulmach/orb/geojson"
)

// FileWriter writes output to a file with optional compression
type FileWriter struct {
	formatter   Formatter
	destination Destination
	config      *WriterConfig
}

// NewFileWriter creates a new file-based writer
func NewFileWriter(config *WriterConfig, destination string) (*FileWriter, error) {
	formatter, err := NewFormatter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create formatter: %w", err)
	}

	dest, err := newFileDestination(destination, config.Compression)
	if err != nil {
		return nil, fmt.Errorf("failed to create file destination: %w", err)
	}

	return &FileWriter{
		formatter:   formatter,
		destination: dest,
		config:      config,
	}, nil
}

// Write formats the collection and writes it to the file
func (w *FileWriter) Write(fc *geojson.FeatureCollection) error {
	data, err := w.formatter.Format(Simplify(fc, w.config.Simplify))
	if err != nil {
		return fmt.Errorf("formatting failed: %w", err)
	}

	if _, err := w.destination.Write(data); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Name returns the path actually written, including any .gz suffix
func (w *FileWriter) Name() string {
	return w.destination.Name()
}

// Close closes the writer and underlying destination
func (w *FileWriter) Close() error {
	return w.destination.Close()
}

// StreamWriter writes output to a stream such as standard output
type StreamWriter struct {
	formatter Formatter
	out       io.Writer
	simplify  float64
}

// NewStreamWriter creates a writer on out, os.Stdout when nil. Compression
// does not apply to streams.
func NewStreamWriter(config *WriterConfig, out io.Writer) (*StreamWriter, error) {
	formatter, err := NewFormatter(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create formatter: %w", err)
	}
	if out == nil {
		out = os.Stdout
	}
	return &StreamWriter{formatter: formatter, out: out, simplify: config.Simplify}, nil
}

// Write formats the collection and writes it followed by a newline
func (w *StreamWriter) Write(fc *geojson.FeatureCollection) error {
	data, err := w.formatter.Format(Simplify(fc, w.simplify))
	if err != nil {
		return fmt.Errorf("formatting failed: %w", err)
	}

	if _, err := w.out.Write(data); err != nil {
		return fmt.Errorf("write to stream failed: %w", err)
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil
	}
	_, err = w.out.Write([]byte("\n"))
	return err
}

// Close is a no-op for stream writers
func (w *StreamWriter) Close() error {
	return nil
}

// fileDestination implements the Destination interface for file output
type fileDestination struct {
	file   *os.File
	writer io.WriteCloser
	name   string
	size   int64
}

// newFileDestination creates a new file destination with optional compression
func newFileDestination(path string, compression bool) (*fileDestination, error) {
	if compression && !strings.HasSuffix(path, ".gz") {
		path += ".gz"
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	var writer io.WriteCloser = file
	if compression {
		writer = gzip.NewWriter(file)
	}

	return &fileDestination{
		file:   file,
		writer: writer,
		name:   path,
	}, nil
}

// Write implements io.Writer
func (d *fileDestination) Write(p []byte) (n int, err error) {
	n, err = d.writer.Write(p)
	d.size += int64(n)
	return n, err
}

// Close implements io.Closer
func (d *fileDestination) Close() error {
	if d.writer != d.file {
		if err := d.writer.Close(); err != nil {
			d.file.Close()
			return err
		}
	}
	return d.file.Close()
}

// Name returns the destination file path
func (d *fileDestination) Name() string {
	return d.name
}

// Size returns the number of bytes written before compression
func (d *fileDestination) Size() int64 {
	return d.size
}

// NewWriter creates a file writer for destination, or a stream writer on
// stdout when destination is empty or "-"
func NewWriter(config *WriterConfig, destination string, stdout io.Writer) (Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if destination == "" || destination == "-" {
		return NewStreamWriter(config, stdout)
	}
	return NewFileWriter(config, destination)
}

// WriteJSON writes any value as JSON, for outputs that are not collections
func WriteJSON(out io.Writer, v interface{}, pretty bool) error {
	enc := json.NewEncoder(out)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
