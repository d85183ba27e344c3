// cmd/serve.go - HTTP facade command
package cmd

import (
	"net/http"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/mapillary/internal/metrics"
	"github.com/valpere/mapillary/internal/server"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the queries over HTTP",
	Long: `Serve the geographic and entity queries over HTTP until interrupted.

Routes:
  GET /healthz
  GET /metrics                  Prometheus metrics (server.metrics)
  GET /v1/images/close-to       lng, lat, radius, units, image filters
  GET /v1/images/bbox           bbox=west,south,east,north, image filters
  GET /v1/images/{id}           fields
  GET /v1/map-features/bbox     bbox, object_values, existed_at, existed_before
  GET /v1/traffic-signs/bbox    bbox, object_values, existed_at, existed_before

Examples:
  mapillary serve --addr :8080
  MAPILLARY_API_ACCESS_TOKEN=... mapillary serve --log-format json`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", ":8080", "listen address")
	serveCmd.Flags().Bool("metrics", true, "expose /metrics")

	viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
	viper.BindPFlag("server.metrics", serveCmd.Flags().Lookup("metrics"))
}

func runServe(cmd *cobra.Command, args []string) error {
	reg := metrics.NewRegistry()
	m := metrics.New(reg)

	rt, err := newRuntime(cmd, m)
	if err != nil {
		return err
	}

	var metricsHandler http.Handler
	if rt.cfg.Server.Metrics {
		metricsHandler = metrics.Handler(reg)
	}

	srv := server.New(rt.client, rt.logger, metricsHandler)
	return srv.Run(cmd.Context(), server.Config{
		Addr:            rt.cfg.Server.Addr,
		ReadTimeout:     rt.cfg.Server.ReadTimeout,
		WriteTimeout:    rt.cfg.Server.WriteTimeout,
		ShutdownTimeout: rt.cfg.Server.ShutdownTimeout,
	})
}
