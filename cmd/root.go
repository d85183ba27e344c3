// cmd/root.go - Root command implementation
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/mapillary/internal/config"
	"github.com/valpere/mapillary/pkg/mapillary"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "mapillary",
	Short: "Query Mapillary imagery, map features and traffic signs",
	Long: `mapillary queries the Mapillary vector tiles and Graph API and writes the
results as GeoJSON or CSV.

Geographic queries resolve the covering tiles, fetch them concurrently, merge
the features without duplicates and run the requested filters. Entity commands
look up a single image, map feature, organization or its detections.

The access token is read from --access-token, the api.access_token setting or
the MAPILLARY_API_ACCESS_TOKEN environment variable.

Examples:
  # Images within 100 m of a point, panoramas only
  mapillary close-to 13.4050 52.5200 --radius 100 --image-type pano

  # Images in a bounding box captured since 2021, as CSV
  mapillary bbox 13.40,52.51,13.41,52.52 --min-captured-at 2021 --format csv

  # Traffic signs in a bounding box
  mapillary bbox 13.40,52.51,13.41,52.52 --layer traffic_sign

  # Images inside a polygon read from a GeoJSON file
  mapillary shape area.geojson --output images.geojson --compression

  # One image with selected fields
  mapillary image 1933525276802129 --fields captured_at,compass_angle

  # Serve the queries over HTTP
  mapillary serve --addr :8080`,
	Version:      "1.0.0",
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.mapillary.yaml)")

	// API flags
	rootCmd.PersistentFlags().String("access-token", "", "Mapillary access token")
	rootCmd.PersistentFlags().String("tiles-base-url", mapillary.DefaultTilesBaseURL, "base URL of the vector tiles endpoint")
	rootCmd.PersistentFlags().String("graph-base-url", mapillary.DefaultGraphBaseURL, "base URL of the Graph API")

	// Output flags
	rootCmd.PersistentFlags().StringP("output", "o", "", "output file path (default: stdout)")
	rootCmd.PersistentFlags().StringP("format", "f", "geojson", "output format (geojson, csv)")
	rootCmd.PersistentFlags().Bool("pretty", false, "pretty print JSON output")
	rootCmd.PersistentFlags().Bool("compression", false, "gzip the output file")
	rootCmd.PersistentFlags().Float64("simplify", 0, "simplify lines and polygons with this tolerance in degrees")

	// Processing flags
	rootCmd.PersistentFlags().Bool("verbose", false, "verbose output")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "log format (text, json)")
	rootCmd.PersistentFlags().Int("concurrency", mapillary.DefaultConcurrency, "number of concurrent tile requests")
	rootCmd.PersistentFlags().Duration("timeout", mapillary.DefaultRequestTimeout, "per-request timeout")
	rootCmd.PersistentFlags().Int("max-tiles", mapillary.DefaultMaxTiles, "largest number of tiles one query may fetch (0 for no limit)")

	// Bind flags to viper
	viper.BindPFlag("api.access_token", rootCmd.PersistentFlags().Lookup("access-token"))
	viper.BindPFlag("api.tiles_base_url", rootCmd.PersistentFlags().Lookup("tiles-base-url"))
	viper.BindPFlag("api.graph_base_url", rootCmd.PersistentFlags().Lookup("graph-base-url"))
	viper.BindPFlag("output.filename", rootCmd.PersistentFlags().Lookup("output"))
	viper.BindPFlag("output.format", rootCmd.PersistentFlags().Lookup("format"))
	viper.BindPFlag("output.pretty", rootCmd.PersistentFlags().Lookup("pretty"))
	viper.BindPFlag("output.compression", rootCmd.PersistentFlags().Lookup("compression"))
	viper.BindPFlag("output.simplify", rootCmd.PersistentFlags().Lookup("simplify"))
	viper.BindPFlag("logging.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	viper.BindPFlag("logging.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logging.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindPFlag("network.concurrency", rootCmd.PersistentFlags().Lookup("concurrency"))
	viper.BindPFlag("network.timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("network.max_tiles", rootCmd.PersistentFlags().Lookup("max-tiles"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".mapillary" (without extension)
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".mapillary")
	}

	// Environment variables
	config.BindEnv(viper.GetViper())

	// If a config file is found, read it in
	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("logging.verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}
}
