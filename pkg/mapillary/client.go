// pkg/mapillary/client.go - Client construction and shared request plumbing
package mapillary

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mvt"
)

const (
	// DefaultConcurrency bounds simultaneous tile fetches
	DefaultConcurrency = 8
	// DefaultRequestTimeout bounds a single tile or entity request
	DefaultRequestTimeout = 30 * time.Second
	// DefaultMaxTiles bounds the tile set of a single query
	DefaultMaxTiles = 1024
)

// Observer receives counters about client activity. internal/metrics
// provides a Prometheus implementation.
type Observer interface {
	TileFetched(layer, outcome string, bytes int, elapsed time.Duration)
	FeaturesMerged(added, duplicates int)
	FilterSkipped(filter string)
	EntityFetched(kind, outcome string)
}

type nopObserver struct{}

func (nopObserver) TileFetched(string, string, int, time.Duration) {}
func (nopObserver) FeaturesMerged(int, int)                        {}
func (nopObserver) FilterSkipped(string)                           {}
func (nopObserver) EntityFetched(string, string)                   {}

// Client talks to the tiles and Graph endpoints on behalf of one session
type Client struct {
	session        *Session
	transport      Transport
	endpoints      Endpoints
	logger         zerolog.Logger
	observer       Observer
	decoder        *mvt.Decoder
	concurrency    int
	requestTimeout time.Duration
	maxTiles       int
	now            func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithTransport replaces the default HTTP transport
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithEndpoints points the client at other base URLs
func WithEndpoints(e Endpoints) Option {
	return func(c *Client) { c.endpoints = e }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithObserver sets the metrics observer
func WithObserver(o Observer) Option {
	return func(c *Client) {
		if o != nil {
			c.observer = o
		}
	}
}

// WithConcurrency bounds simultaneous tile fetches
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithRequestTimeout bounds each tile or entity request
func WithRequestTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.requestTimeout = d
		}
	}
}

// WithMaxTiles bounds the tile set of a query; zero disables the limit
func WithMaxTiles(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxTiles = n
		}
	}
}

// WithClock sets the time source used for the "*" date sentinel
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a client for session. A nil or empty session is allowed;
// every network call then fails with ErrNotAuthenticated.
func New(session *Session, opts ...Option) (*Client, error) {
	c := &Client{
		session:        session,
		endpoints:      DefaultEndpoints(),
		logger:         zerolog.Nop(),
		observer:       nopObserver{},
		concurrency:    DefaultConcurrency,
		requestTimeout: DefaultRequestTimeout,
		maxTiles:       DefaultMaxTiles,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.transport == nil {
		cfg := DefaultTransportConfig()
		cfg.MaxConnsPerHost = c.concurrency
		t, err := NewHTTPTransport(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create transport: %w", err)
		}
		c.transport = t
	}
	c.decoder = mvt.NewDecoder(c.logger)

	return c, nil
}

// Session returns the session the client was created with
func (c *Client) Session() *Session {
	return c.session
}

func (c *Client) token() (string, error) {
	return c.session.Token()
}

func (c *Client) pipeline() *filter.Pipeline {
	return &filter.Pipeline{
		Logger: c.logger,
		Now:    c.now,
		OnSkip: func(s filter.Skip) { c.observer.FilterSkipped(s.Filter) },
	}
}

// get performs one request under the per-request timeout and converts
// non-2xx statuses into *HTTPError
func (c *Client) get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.requestTimeout)
	defer cancel()

	resp, err := c.transport.Get(ctx, rawURL, header)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(resp.StatusCode, rawURL, resp.Body)
	}
	return resp.Body, nil
}

// getGraph performs an authorized Graph request and decodes the JSON body into v
func (c *Client) getGraph(ctx context.Context, rawURL string, v interface{}) error {
	token, err := c.token()
	if err != nil {
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "OAuth "+token)
	header.Set("Accept", "application/json")

	body, err := c.get(ctx, rawURL, header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", redactURL(rawURL), err)
	}
	return nil
}
