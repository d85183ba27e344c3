// cmd/common.go - Shared command runtime, flag parsing and output
package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/valpere/mapillary/internal/config"
	applog "github.com/valpere/mapillary/internal/logger"
	"github.com/valpere/mapillary/internal/output"
	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mapillary"
	"github.com/valpere/mapillary/pkg/tiles"
)

// runtime bundles what every query command needs
type runtime struct {
	cfg    *config.Config
	logger zerolog.Logger
	client *mapillary.Client
}

// newRuntime loads the configuration and builds the logger and client
func newRuntime(cmd *cobra.Command, observer mapillary.Observer) (*runtime, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := applog.Build(applog.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Verbose:   cfg.Logging.Verbose,
		Component: cmd.Name(),
	}, cmd.ErrOrStderr())

	client, err := cfg.NewClient(logger, observer)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &runtime{cfg: cfg, logger: logger, client: client}, nil
}

func (rt *runtime) writerConfig() *output.WriterConfig {
	return &output.WriterConfig{
		Format:      output.Format(rt.cfg.Output.Format),
		Pretty:      rt.cfg.Output.Pretty,
		Compression: rt.cfg.Output.Compression,
		Simplify:    rt.cfg.Output.Simplify,
	}
}

// writeCollection writes fc to the configured output file or stdout
func (rt *runtime) writeCollection(cmd *cobra.Command, fc *geojson.FeatureCollection) error {
	writer, err := output.NewWriter(rt.writerConfig(), rt.cfg.Output.Filename, cmd.OutOrStdout())
	if err != nil {
		return fmt.Errorf("failed to create writer: %w", err)
	}
	defer writer.Close()

	if err := writer.Write(fc); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if fw, ok := writer.(*output.FileWriter); ok {
		rt.logger.Info().Str("file", fw.Name()).Int("features", len(fc.Features)).Msg("output written")
	}
	return nil
}

// writeResult logs the query summary and writes its collection
func (rt *runtime) writeResult(cmd *cobra.Command, res *mapillary.Result) error {
	ev := rt.logger.Info().
		Int("tiles", res.Fetched).
		Int("features", len(res.Collection.Features)).
		Int("duplicates", res.Duplicates)
	if len(res.Skipped) > 0 {
		names := make([]string, 0, len(res.Skipped))
		for _, sk := range res.Skipped {
			names = append(names, sk.Filter)
		}
		ev = ev.Strs("skipped_filters", names)
	}
	ev.Msg("query completed")

	return rt.writeCollection(cmd, res.Collection)
}

// writeValue writes a plain JSON value to stdout
func (rt *runtime) writeValue(cmd *cobra.Command, v interface{}) error {
	return output.WriteJSON(cmd.OutOrStdout(), v, rt.cfg.Output.Pretty)
}

// addImageCriteriaFlags registers the image filter flags on cmd
func addImageCriteriaFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("zoom", 0, "tile zoom level (default: the layer's most detailed zoom)")
	f.Bool("computed", false, "read the computed geometry tiles")
	f.Float64("radius", 0, "search radius of point queries (default: query.radius)")
	f.String("units", "", "radius units: m, km, mi, ft (default: query.units)")
	f.Float64("tolerance", 0, "look-at tolerance in degrees (default: query.look_at_tolerance)")
	f.String("min-captured-at", "", "keep images captured at or after this date")
	f.String("max-captured-at", "", "keep images captured at or before this date")
	f.String("image-type", "", "keep pano, flat or all images")
	f.StringSlice("organization-id", nil, "keep images of these organizations")
	f.StringSlice("sequence-id", nil, "keep images of these sequences")
	f.String("compass-angle", "", "keep images facing within min,max degrees")
	addFilterFlag(cmd)
}

// addMapFeatureCriteriaFlags registers the map feature filter flags on cmd
func addMapFeatureCriteriaFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("object-values", nil, "keep features with these values")
	f.String("existed-at", "", "keep features first seen at or after this date")
	f.String("existed-before", "", "keep features first seen strictly before this date")
	if cmd.Flags().Lookup("filter") == nil {
		addFilterFlag(cmd)
	}
}

func addFilterFlag(cmd *cobra.Command) {
	cmd.Flags().StringArray("filter", nil, "extra filter as name:key=value,... (repeatable)")
}

// imageCriteria reads the image filter flags, falling back to the query section
func imageCriteria(cmd *cobra.Command, cfg *config.QueryConfig) (mapillary.ImageCriteria, error) {
	f := cmd.Flags()
	var crit mapillary.ImageCriteria

	if f.Changed("zoom") {
		z, _ := f.GetInt("zoom")
		crit.Zoom = mapillary.ZoomLevel(z)
	}
	crit.Computed, _ = f.GetBool("computed")
	if !f.Changed("computed") {
		crit.Computed = cfg.Computed
	}

	crit.Radius, _ = f.GetFloat64("radius")
	crit.Units, _ = f.GetString("units")
	if !f.Changed("radius") {
		crit.Radius = cfg.Radius
	}
	if !f.Changed("units") {
		crit.Units = cfg.Units
	}
	crit.LookAtTolerance, _ = f.GetFloat64("tolerance")
	if !f.Changed("tolerance") {
		crit.LookAtTolerance = cfg.LookAtTolerance
	}

	crit.MinCapturedAt, _ = f.GetString("min-captured-at")
	crit.MaxCapturedAt, _ = f.GetString("max-captured-at")
	crit.ImageType, _ = f.GetString("image-type")
	crit.OrganizationIDs, _ = f.GetStringSlice("organization-id")
	crit.SequenceIDs, _ = f.GetStringSlice("sequence-id")

	if raw, _ := f.GetString("compass-angle"); raw != "" {
		r, err := parseAngleRange(raw)
		if err != nil {
			return crit, err
		}
		crit.CompassAngle = r
	}

	fs, err := filterFlags(cmd)
	if err != nil {
		return crit, err
	}
	crit.Filters = fs
	return crit, nil
}

// mapFeatureCriteria reads the map feature filter flags
func mapFeatureCriteria(cmd *cobra.Command) (mapillary.MapFeatureCriteria, error) {
	f := cmd.Flags()
	var crit mapillary.MapFeatureCriteria
	crit.ObjectValues, _ = f.GetStringSlice("object-values")
	crit.ExistedAt, _ = f.GetString("existed-at")
	crit.ExistedBefore, _ = f.GetString("existed-before")

	fs, err := filterFlags(cmd)
	if err != nil {
		return crit, err
	}
	crit.Filters = fs
	return crit, nil
}

func filterFlags(cmd *cobra.Command) ([]filter.Filter, error) {
	specs, _ := cmd.Flags().GetStringArray("filter")
	out := make([]filter.Filter, 0, len(specs))
	for _, spec := range specs {
		f, err := filter.Parse(spec)
		if err != nil {
			return nil, fmt.Errorf("invalid --filter %q: %w", spec, err)
		}
		out = append(out, f)
	}
	return out, nil
}

// parseAngleRange parses "min,max" in degrees
func parseAngleRange(s string) (*mapillary.AngleRange, error) {
	lo, hi, ok := strings.Cut(s, ",")
	if !ok {
		return nil, fmt.Errorf("compass angle must be min,max: %s", s)
	}
	minA, err := strconv.ParseFloat(strings.TrimSpace(lo), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid compass angle: %s", lo)
	}
	maxA, err := strconv.ParseFloat(strings.TrimSpace(hi), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid compass angle: %s", hi)
	}
	return &mapillary.AngleRange{Min: minA, Max: maxA}, nil
}

// parseLngLat parses two positional arguments as longitude and latitude
func parseLngLat(args []string) (float64, float64, error) {
	if len(args) != 2 {
		return 0, 0, fmt.Errorf("expected LNG LAT, got %d arguments", len(args))
	}
	lng, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid longitude: %s", args[0])
	}
	lat, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid latitude: %s", args[1])
	}
	return lng, lat, nil
}

// parseBoundingBox parses a bounding box string
func parseBoundingBox(bbox string) (orb.Bound, error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bounding box must have 4 values: min_lon,min_lat,max_lon,max_lat")
	}

	coords := make([]float64, 4)
	for i, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("invalid coordinate value: %s", part)
		}
		coords[i] = val
	}

	return orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}, nil
}

// parseTileAddress parses z/x/y tile coordinates
func parseTileAddress(s string) (tiles.Address, error) {
	coords := strings.Split(strings.TrimSpace(s), "/")
	if len(coords) != 3 {
		return tiles.Address{}, fmt.Errorf("invalid tile format: %s (expected z/x/y)", s)
	}

	z, err := strconv.Atoi(coords[0])
	if err != nil {
		return tiles.Address{}, fmt.Errorf("invalid zoom level: %s", coords[0])
	}

	x, err := strconv.Atoi(coords[1])
	if err != nil {
		return tiles.Address{}, fmt.Errorf("invalid x coordinate: %s", coords[1])
	}

	y, err := strconv.Atoi(coords[2])
	if err != nil {
		return tiles.Address{}, fmt.Errorf("invalid y coordinate: %s", coords[2])
	}

	addr := tiles.NewAddress(z, x, y)
	if err := addr.Validate(); err != nil {
		return tiles.Address{}, err
	}
	return addr, nil
}
