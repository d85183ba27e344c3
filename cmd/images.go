// cmd/images.go - Geographic query commands
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mapillary"
	"github.com/valpere/mapillary/pkg/tiles"
)

// closeToCmd represents the close-to command
var closeToCmd = &cobra.Command{
	Use:   "close-to LNG LAT",
	Short: "Images within a radius of a point",
	Long: `Find the images captured within a radius of a point.

Every tile that intersects the search circle is fetched, so images just across
a tile edge are not missed.

Examples:
  mapillary close-to 13.4050 52.5200
  mapillary close-to 13.4050 52.5200 --radius 0.5 --units km --image-type pano`,
	Args: cobra.ExactArgs(2),
	RunE: runCloseTo,
}

// lookingAtCmd represents the looking-at command
var lookingAtCmd = &cobra.Command{
	Use:   "looking-at LNG LAT",
	Short: "Images near a point whose camera faces it",
	Long: `Find the images near a point whose compass angle points at it, within the
look-at tolerance.

Examples:
  mapillary looking-at 13.4050 52.5200 --radius 50 --tolerance 15`,
	Args: cobra.ExactArgs(2),
	RunE: runLookingAt,
}

// bboxCmd represents the bbox command
var bboxCmd = &cobra.Command{
	Use:   "bbox MIN_LON,MIN_LAT,MAX_LON,MAX_LAT",
	Short: "Features of a layer inside a bounding box",
	Long: `Fetch every tile covering a bounding box and return the features of one layer
that fall inside it.

Layers: image (default), sequence, overview, map_feature, traffic_sign.
Image criteria flags apply to image, sequence and overview; map feature flags
apply to map_feature and traffic_sign.

Examples:
  mapillary bbox 13.40,52.51,13.41,52.52 --min-captured-at 2021-06
  mapillary bbox 13.0,52.0,14.0,53.0 --layer sequence --zoom 10
  mapillary bbox 13.40,52.51,13.41,52.52 --layer traffic_sign --object-values regulatory--stop--g1`,
	Args: cobra.ExactArgs(1),
	RunE: runBBox,
}

// shapeCmd represents the shape command
var shapeCmd = &cobra.Command{
	Use:   "shape FILE",
	Short: "Images inside a polygon read from GeoJSON",
	Long: `Find the images inside the Polygon or MultiPolygon of a GeoJSON file. The file
may hold a geometry, a Feature or a FeatureCollection; use - to read stdin.

Examples:
  mapillary shape district.geojson --image-type flat
  cat district.geojson | mapillary shape -`,
	Args: cobra.ExactArgs(1),
	RunE: runShape,
}

func init() {
	rootCmd.AddCommand(closeToCmd, lookingAtCmd, bboxCmd, shapeCmd)

	addImageCriteriaFlags(closeToCmd)
	addImageCriteriaFlags(lookingAtCmd)
	addImageCriteriaFlags(shapeCmd)

	bboxCmd.Flags().String("layer", string(tiles.LayerImage), "tile layer to query")
	addImageCriteriaFlags(bboxCmd)
	addMapFeatureCriteriaFlags(bboxCmd)
}

func runCloseTo(cmd *cobra.Command, args []string) error {
	return runAround(cmd, args, (*mapillary.Client).ImagesCloseTo)
}

func runLookingAt(cmd *cobra.Command, args []string) error {
	return runAround(cmd, args, (*mapillary.Client).ImagesLookingAt)
}

type pointQuery func(*mapillary.Client, context.Context, float64, float64, mapillary.ImageCriteria) (*mapillary.Result, error)

func runAround(cmd *cobra.Command, args []string, query pointQuery) error {
	lng, lat, err := parseLngLat(args)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	crit, err := imageCriteria(cmd, &rt.cfg.Query)
	if err != nil {
		return err
	}

	rt.logger.Debug().Float64("lng", lng).Float64("lat", lat).Float64("radius", crit.Radius).Msg("point query")
	res, err := query(rt.client, cmd.Context(), lng, lat, crit)
	if err != nil {
		return err
	}
	return rt.writeResult(cmd, res)
}

func runBBox(cmd *cobra.Command, args []string) error {
	bound, err := parseBoundingBox(args[0])
	if err != nil {
		return fmt.Errorf("failed to parse bounding box: %w", err)
	}
	layerName, _ := cmd.Flags().GetString("layer")
	layer, err := tiles.ParseLayer(layerName)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}

	var res *mapillary.Result
	switch layer {
	case tiles.LayerMapFeature, tiles.LayerTrafficSign:
		crit, err := mapFeatureCriteria(cmd)
		if err != nil {
			return err
		}
		if layer == tiles.LayerMapFeature {
			res, err = rt.client.MapFeaturePointsInBBox(cmd.Context(), bound, crit)
		} else {
			res, err = rt.client.TrafficSignsInBBox(cmd.Context(), bound, crit)
		}
		if err != nil {
			return err
		}
	default:
		crit, err := imageCriteria(cmd, &rt.cfg.Query)
		if err != nil {
			return err
		}
		switch layer {
		case tiles.LayerSequence:
			res, err = rt.client.SequencesInBBox(cmd.Context(), bound, crit)
		case tiles.LayerOverview:
			res, err = rt.client.OverviewInBBox(cmd.Context(), bound, crit)
		default:
			res, err = rt.client.ImagesInBBox(cmd.Context(), bound, crit)
		}
		if err != nil {
			return err
		}
	}
	return rt.writeResult(cmd, res)
}

func runShape(cmd *cobra.Command, args []string) error {
	data, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	shape, err := filter.ParseShape(data)
	if err != nil {
		return err
	}

	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	crit, err := imageCriteria(cmd, &rt.cfg.Query)
	if err != nil {
		return err
	}

	res, err := rt.client.ImagesInShape(cmd.Context(), shape, crit)
	if err != nil {
		return err
	}
	return rt.writeResult(cmd, res)
}

// readInput reads a file, or stdin for "-"
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}
