// pkg/mapillary/tiles.go - Tile fetching and the multi-tile query pipeline
package mapillary

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/mapillary/pkg/features"
	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/tiles"
)

// Tile fetch outcomes reported to the Observer
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeError     = "error"
	OutcomeCanceled  = "canceled"
)

// TileQuery selects what a multi-tile query reads and how it filters
type TileQuery struct {
	Layer    tiles.Layer
	Computed bool
	Filters  []filter.Filter
}

// Result is the outcome of a multi-tile query
type Result struct {
	Collection *geojson.FeatureCollection `json:"collection"`
	Tiles      []tiles.Address            `json:"tiles"`
	Fetched    int                        `json:"fetched"`
	Duplicates int                        `json:"duplicates"`
	Skipped    []filter.Skip              `json:"skipped,omitempty"`
}

// FetchTile downloads one encoded tile. The zoom is checked against the
// layer before any request is made; exactly one request is issued and a
// non-2xx answer is returned as *HTTPError.
func (c *Client) FetchTile(ctx context.Context, addr tiles.Address, layer tiles.Layer, computed bool) ([]byte, error) {
	if err := layer.Validate(); err != nil {
		return nil, err
	}
	if err := layer.ValidateZoom(addr.Z); err != nil {
		return nil, err
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	token, err := c.token()
	if err != nil {
		return nil, err
	}
	rawURL, err := c.endpoints.TileURL(layer, computed, addr, token)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("Accept", "application/x-protobuf")

	start := time.Now()
	data, err := c.get(ctx, rawURL, header)
	elapsed := time.Since(start)
	c.observer.TileFetched(layer.String(), outcomeOf(err), len(data), elapsed)

	if err != nil {
		return nil, err
	}

	c.logger.Debug().
		Str("tile", addr.String()).
		Str("layer", layer.String()).
		Int("bytes", len(data)).
		Dur("elapsed", elapsed).
		Msg("tile fetched")
	return data, nil
}

func outcomeOf(err error) string {
	var httpErr *HTTPError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &httpErr):
		return OutcomeHTTPError
	case errors.Is(err, context.Canceled):
		return OutcomeCanceled
	default:
		return OutcomeError
	}
}

// TileFeatures fetches and decodes one tile into GeoJSON features of the layer
func (c *Client) TileFeatures(ctx context.Context, addr tiles.Address, layer tiles.Layer, computed bool) ([]*geojson.Feature, error) {
	data, err := c.FetchTile(ctx, addr, layer, computed)
	if err != nil {
		return nil, err
	}
	records, err := c.decoder.Decode(data, addr, layer.MVTName())
	if err != nil {
		return nil, err
	}
	out := make([]*geojson.Feature, 0, len(records))
	for _, r := range records {
		out = append(out, r.ToFeature())
	}
	return out, nil
}

// QueryTiles fetches and decodes every tile in a bounded worker pool, merges
// the features in tile order and runs the filters. The first tile that fails
// cancels the others and the query returns a *TileError without a partial
// result.
func (c *Client) QueryTiles(ctx context.Context, addrs []tiles.Address, q TileQuery) (*Result, error) {
	if err := q.Layer.Validate(); err != nil {
		return nil, err
	}
	if q.Computed && !q.Layer.SupportsComputed() {
		return nil, computedUnsupported(q.Layer)
	}
	for _, a := range addrs {
		if err := q.Layer.ValidateZoom(a.Z); err != nil {
			return nil, err
		}
	}
	if c.maxTiles > 0 && len(addrs) > c.maxTiles {
		return nil, &TooManyTilesError{Count: len(addrs), Max: c.maxTiles}
	}
	if _, err := c.token(); err != nil {
		return nil, err
	}

	perTile := make([][]*geojson.Feature, len(addrs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, addr := range addrs {
		g.Go(func() error {
			fs, err := c.TileFeatures(gctx, addr, q.Layer, q.Computed)
			if err != nil {
				return &TileError{Tile: addr, Layer: q.Layer, Err: err}
			}
			perTile[i] = fs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Warn().
			Err(err).
			Str("layer", q.Layer.String()).
			Int("tiles", len(addrs)).
			Msg("tile query aborted")
		return nil, err
	}

	merger := features.NewMerger()
	for _, fs := range perTile {
		merger.Add(fs...)
	}
	stats := merger.Stats()
	c.observer.FeaturesMerged(stats.Added, stats.Duplicates)

	fc, report := c.pipeline().Apply(merger.Collection(), q.Filters...)

	c.logger.Debug().
		Str("layer", q.Layer.String()).
		Int("tiles", len(addrs)).
		Int("merged", stats.Added).
		Int("duplicates", stats.Duplicates).
		Int("features", len(fc.Features)).
		Int("skipped_filters", len(report.Skipped)).
		Msg("tile query complete")

	return &Result{
		Collection: fc,
		Tiles:      addrs,
		Fetched:    len(addrs),
		Duplicates: stats.Duplicates,
		Skipped:    report.Skipped,
	}, nil
}

// Authenticate checks the session token against the tiles endpoint with one
// request. A 401 or 403 answer is returned as *AuthError.
func (c *Client) Authenticate(ctx context.Context) error {
	_, err := c.FetchTile(ctx, tiles.NewAddress(0, 0, 0), tiles.LayerOverview, false)
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && (httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden) {
		return &AuthError{Err: httpErr}
	}
	if errors.Is(err, ErrNotAuthenticated) {
		return err
	}
	return fmt.Errorf("failed to verify access token: %w", err)
}
