// pkg/mapillary/errors.go - Transport, authentication and query errors
package mapillary

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/valpere/mapillary/pkg/tiles"
)

// ErrNotAuthenticated is returned by every network-issuing call made on a
// client without an access token
var ErrNotAuthenticated = errors.New("mapillary: not authenticated, an access token is required")

// redacted replaces the access token wherever a URL is reported
const redacted = "REDACTED"

// maxBodyExcerpt caps the response body kept in an HTTPError
const maxBodyExcerpt = 512

// HTTPError reports a non-2xx upstream response
type HTTPError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("HTTP %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// NotFound reports whether the upstream answered 404
func (e *HTTPError) NotFound() bool {
	return e.StatusCode == 404
}

// ClientError reports a 4xx status
func (e *HTTPError) ClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

func newHTTPError(status int, rawURL string, body []byte) *HTTPError {
	excerpt := strings.TrimSpace(string(body))
	if len(excerpt) > maxBodyExcerpt {
		excerpt = excerpt[:maxBodyExcerpt] + "..."
	}
	return &HTTPError{StatusCode: status, URL: redactURL(rawURL), Body: excerpt}
}

// AuthError reports an access token rejected by the upstream
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mapillary: access token rejected: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// TileError identifies the tile whose fetch or decode aborted a multi-tile query
type TileError struct {
	Tile  tiles.Address
	Layer tiles.Layer
	Err   error
}

func (e *TileError) Error() string {
	return fmt.Sprintf("tile %s (%s): %v", e.Tile, e.Layer, e.Err)
}

func (e *TileError) Unwrap() error {
	return e.Err
}

// TooManyTilesError rejects a query whose tile set exceeds the configured limit
type TooManyTilesError struct {
	Count int
	Max   int
}

func (e *TooManyTilesError) Error() string {
	return fmt.Sprintf("query covers %d tiles, more than the limit of %d: narrow the area or raise max_tiles", e.Count, e.Max)
}

// redactURL hides the access_token query parameter
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", redacted)
		u.RawQuery = q.Encode()
	}
	return u.String()
}
