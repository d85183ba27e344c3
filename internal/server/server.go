// internal/server/server.go - HTTP facade over the client queries
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rs/zerolog"

	"github.com/valpere/mapillary/pkg/mapillary"
)

// Backend is the part of *mapillary.Client the facade serves
type Backend interface {
	ImagesCloseTo(ctx context.Context, lng, lat float64, crit mapillary.ImageCriteria) (*mapillary.Result, error)
	ImagesInBBox(ctx context.Context, bound orb.Bound, crit mapillary.ImageCriteria) (*mapillary.Result, error)
	MapFeaturePointsInBBox(ctx context.Context, bound orb.Bound, crit mapillary.MapFeatureCriteria) (*mapillary.Result, error)
	TrafficSignsInBBox(ctx context.Context, bound orb.Bound, crit mapillary.MapFeatureCriteria) (*mapillary.Result, error)
	Image(ctx context.Context, id string, fields ...string) (*geojson.FeatureCollection, error)
}

var _ Backend = (*mapillary.Client)(nil)

// Config tunes the listener
type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server routes HTTP requests to a Backend
type Server struct {
	backend Backend
	logger  zerolog.Logger
	metrics http.Handler
}

// New creates a server. metrics may be nil to leave /metrics out.
func New(backend Backend, logger zerolog.Logger, metrics http.Handler) *Server {
	return &Server{backend: backend, logger: logger, metrics: metrics}
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(recoverer(s.logger))
	r.Use(requestLogger(s.logger))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/images/close-to", s.handleImagesCloseTo)
		r.Get("/images/bbox", s.handleImagesBBox)
		r.Get("/images/{id}", s.handleImage)
		r.Get("/map-features/bbox", s.handleMapFeaturesBBox)
		r.Get("/traffic-signs/bbox", s.handleTrafficSignsBBox)
	})
	return r
}

// Run serves until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, cfg Config) error {
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", cfg.Addr).Msg("http listen")
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		s.logger.Info().Msg("http shutdown")
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
