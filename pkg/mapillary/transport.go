// pkg/mapillary/transport.go - Outbound HTTP transport
package mapillary

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Response is the raw result of one GET
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Transport performs a single GET. Implementations own any retry policy;
// the client never retries on its own.
type Transport interface {
	Get(ctx context.Context, rawURL string, header http.Header) (*Response, error)
}

// TransportConfig tunes the default HTTP transport
type TransportConfig struct {
	Timeout          time.Duration
	ProxyURL         string
	UserAgent        string
	MaxIdleConns     int
	MaxConnsPerHost  int
	IdleConnTimeout  time.Duration
	DisableKeepAlive bool
	// MaxBodyBytes caps a response body; zero means DefaultMaxBodyBytes
	MaxBodyBytes int64
}

// DefaultUserAgent identifies this client upstream
const DefaultUserAgent = "mapillary-go/1.0"

// DefaultMaxBodyBytes bounds a single tile or entity response
const DefaultMaxBodyBytes = 32 << 20

// DefaultTransportConfig returns the settings used when none are given
func DefaultTransportConfig() TransportConfig {
	return TransportConfig{
		Timeout:         30 * time.Second,
		UserAgent:       DefaultUserAgent,
		MaxIdleConns:    100,
		MaxConnsPerHost: 8,
		IdleConnTimeout: 90 * time.Second,
		MaxBodyBytes:    DefaultMaxBodyBytes,
	}
}

// HTTPTransport implements Transport on net/http
type HTTPTransport struct {
	client    *http.Client
	userAgent string
	maxBody   int64
}

// NewHTTPTransport creates a transport from cfg
func NewHTTPTransport(cfg TransportConfig) (*HTTPTransport, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxConnsPerHost:     cfg.MaxConnsPerHost,
		IdleConnTimeout:     cfg.IdleConnTimeout,
		DisableKeepAlives:   cfg.DisableKeepAlive,
		TLSHandshakeTimeout: 10 * time.Second,
		// decompression is handled below so gzip tiles are detected either way
		DisableCompression: true,
	}

	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return NewHTTPTransportWithClient(&http.Client{Timeout: cfg.Timeout, Transport: transport}, cfg), nil
}

// NewHTTPTransportWithClient wraps an existing client, keeping cfg's user agent and body cap
func NewHTTPTransportWithClient(client *http.Client, cfg TransportConfig) *HTTPTransport {
	ua := cfg.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	return &HTTPTransport{client: client, userAgent: ua, maxBody: maxBody}
}

// Get performs one request and reads the whole body. Non-2xx statuses are
// returned as a Response, not an error; only transport failures are errors.
func (t *HTTPTransport) Get(ctx context.Context, rawURL string, header http.Header) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept-Encoding", "gzip")
	req.Header.Set("User-Agent", t.userAgent)
	for key, values := range header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to %s failed: %w", redactURL(rawURL), scrubURLError(err))
	}
	defer resp.Body.Close()

	var reader io.Reader = resp.Body
	if strings.Contains(resp.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		defer gzipReader.Close()
		reader = gzipReader
	}

	data, err := io.ReadAll(io.LimitReader(reader, t.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if int64(len(data)) > t.maxBody {
		return nil, fmt.Errorf("response body from %s exceeds %d bytes", redactURL(rawURL), t.maxBody)
	}

	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

// scrubURLError drops the request URL from *url.Error, which would otherwise
// carry the access token into logs
func scrubURLError(err error) error {
	if uerr, ok := err.(*url.Error); ok {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}
