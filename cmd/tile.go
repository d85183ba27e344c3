// cmd/tile.go - Single tile fetch command
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/valpere/mapillary/pkg/tiles"
)

// tileCmd represents the tile command
var tileCmd = &cobra.Command{
	Use:   "tile Z/X/Y",
	Short: "Fetch one vector tile",
	Long: `Fetch a single tile of a layer and convert it to GeoJSON or CSV.

The zoom is checked against the layer before any request is made. With --raw
the encoded Mapbox Vector Tile is written unchanged.

Examples:
  # Decode one image tile to stdout
  mapillary tile 14/8802/5373 --pretty

  # Sequences of a lower zoom tile
  mapillary tile 10/550/335 --layer sequence --output sequences.geojson

  # Save the encoded tile
  mapillary tile 14/8802/5373 --raw --output 8802_5373.mvt`,
	Args: cobra.ExactArgs(1),
	RunE: runTile,
}

func init() {
	rootCmd.AddCommand(tileCmd)

	tileCmd.Flags().String("layer", string(tiles.LayerImage), "tile layer (overview, sequence, image, map_feature, traffic_sign)")
	tileCmd.Flags().Bool("computed", false, "read the computed geometry tiles")
	tileCmd.Flags().Bool("raw", false, "write the encoded tile instead of decoding it")
}

func runTile(cmd *cobra.Command, args []string) error {
	addr, err := parseTileAddress(args[0])
	if err != nil {
		return fmt.Errorf("invalid tile coordinates: %w", err)
	}
	layerName, _ := cmd.Flags().GetString("layer")
	layer, err := tiles.ParseLayer(layerName)
	if err != nil {
		return err
	}
	computed, _ := cmd.Flags().GetBool("computed")
	raw, _ := cmd.Flags().GetBool("raw")

	rt, err := newRuntime(cmd, nil)
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("computed") {
		computed = rt.cfg.Query.Computed && layer.SupportsComputed()
	}

	rt.logger.Debug().Str("tile", addr.String()).Str("layer", layer.String()).Msg("fetching tile")

	if raw {
		data, err := rt.client.FetchTile(cmd.Context(), addr, layer, computed)
		if err != nil {
			return fmt.Errorf("failed to fetch tile: %w", err)
		}
		return writeRaw(cmd, rt.cfg.Output.Filename, data)
	}

	features, err := rt.client.TileFeatures(cmd.Context(), addr, layer, computed)
	if err != nil {
		return fmt.Errorf("failed to fetch tile: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	fc.Features = features

	rt.logger.Info().Str("tile", addr.String()).Int("features", len(features)).Msg("tile converted")
	return rt.writeCollection(cmd, fc)
}

func writeRaw(cmd *cobra.Command, outputPath string, data []byte) error {
	if outputPath == "" || outputPath == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}

	// Ensure output directory exists
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := os.WriteFile(outputPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write tile: %w", err)
	}
	return nil
}
