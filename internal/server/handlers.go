// internal/server/handlers.go - Query handlers and parameter parsing
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mapillary/pkg/filter"
	"github.com/valpere/mapillary/pkg/mapillary"
	"github.com/valpere/mapillary/pkg/mlyerr"
)

// badRequest marks a malformed query parameter
type badRequest struct {
	err error
}

func (e *badRequest) Error() string { return e.err.Error() }
func (e *badRequest) Unwrap() error { return e.err }

func invalidParam(name, raw, reason string) error {
	return &badRequest{err: fmt.Errorf("parameter %s %q: %s", name, raw, reason)}
}

func (s *Server) handleImagesCloseTo(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lng, errLng := requiredFloat(q, "lng")
	lat, errLat := requiredFloat(q, "lat")
	crit, errCrit := imageCriteria(q)
	if err := errors.Join(errLng, errLat, errCrit); err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveResult(w, r, func(ctx context.Context) (*mapillary.Result, error) {
		return s.backend.ImagesCloseTo(ctx, lng, lat, crit)
	})
}

func (s *Server) handleImagesBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bound, errBound := parseBBox(q)
	crit, errCrit := imageCriteria(q)
	if err := errors.Join(errBound, errCrit); err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveResult(w, r, func(ctx context.Context) (*mapillary.Result, error) {
		return s.backend.ImagesInBBox(ctx, bound, crit)
	})
}

func (s *Server) handleMapFeaturesBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bound, errBound := parseBBox(q)
	crit, errCrit := mapFeatureCriteria(q)
	if err := errors.Join(errBound, errCrit); err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveResult(w, r, func(ctx context.Context) (*mapillary.Result, error) {
		return s.backend.MapFeaturePointsInBBox(ctx, bound, crit)
	})
}

func (s *Server) handleTrafficSignsBBox(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	bound, errBound := parseBBox(q)
	crit, errCrit := mapFeatureCriteria(q)
	if err := errors.Join(errBound, errCrit); err != nil {
		s.fail(w, r, err)
		return
	}
	s.serveResult(w, r, func(ctx context.Context) (*mapillary.Result, error) {
		return s.backend.TrafficSignsInBBox(ctx, bound, crit)
	})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	fc, err := s.backend.Image(r.Context(), id, list(r.URL.Query(), "fields")...)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeGeoJSON(w, fc)
}

func (s *Server) serveResult(w http.ResponseWriter, r *http.Request, query func(context.Context) (*mapillary.Result, error)) {
	res, err := query(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	w.Header().Set("X-Tiles-Fetched", strconv.Itoa(res.Fetched))
	w.Header().Set("X-Features-Deduplicated", strconv.Itoa(res.Duplicates))
	if len(res.Skipped) > 0 {
		names := make([]string, 0, len(res.Skipped))
		for _, sk := range res.Skipped {
			names = append(names, sk.Filter)
		}
		w.Header().Set("X-Filters-Skipped", strings.Join(names, ","))
	}
	writeGeoJSON(w, res.Collection)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	ev := s.logger.Warn()
	if status >= http.StatusInternalServerError {
		ev = s.logger.Error()
	}
	ev.Err(err).Str("path", r.URL.Path).Int("status", status).Msg("request failed")
	writeError(w, status, err.Error())
}

// statusOf maps the client error taxonomy onto HTTP statuses
func statusOf(err error) int {
	var (
		bad     *badRequest
		unknown *filter.UnknownFilterError
		tooMany *mapillary.TooManyTilesError
		authErr *mapillary.AuthError
		httpErr *mapillary.HTTPError
	)
	switch {
	case errors.Is(err, mapillary.ErrNotAuthenticated), errors.As(err, &authErr):
		return http.StatusUnauthorized
	case errors.As(err, &bad), errors.As(err, &unknown), errors.As(err, &tooMany), mlyerr.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &httpErr):
		if httpErr.NotFound() {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func writeGeoJSON(w http.ResponseWriter, fc *geojson.FeatureCollection) {
	data, err := json.Marshal(fc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to encode response")
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func imageCriteria(q url.Values) (mapillary.ImageCriteria, error) {
	crit := mapillary.ImageCriteria{
		Units:           q.Get("units"),
		MinCapturedAt:   q.Get("min_captured_at"),
		MaxCapturedAt:   q.Get("max_captured_at"),
		ImageType:       q.Get("image_type"),
		OrganizationIDs: list(q, "organization_id"),
		SequenceIDs:     list(q, "sequence_id"),
	}

	var errs []error
	var err error
	if crit.Radius, err = optionalFloat(q, "radius"); err != nil {
		errs = append(errs, err)
	}
	if raw := q.Get("zoom"); raw != "" {
		z, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, invalidParam("zoom", raw, "not an integer"))
		} else {
			crit.Zoom = mapillary.ZoomLevel(z)
		}
	}
	if raw := q.Get("computed"); raw != "" {
		if crit.Computed, err = strconv.ParseBool(raw); err != nil {
			errs = append(errs, invalidParam("computed", raw, "not a boolean"))
		}
	}
	if raw := q.Get("compass_angle"); raw != "" {
		lo, hi, ok := strings.Cut(raw, ",")
		minA, errMin := strconv.ParseFloat(strings.TrimSpace(lo), 64)
		maxA, errMax := strconv.ParseFloat(strings.TrimSpace(hi), 64)
		if !ok || errMin != nil || errMax != nil {
			errs = append(errs, invalidParam("compass_angle", raw, "must be min,max"))
		} else {
			crit.CompassAngle = &mapillary.AngleRange{Min: minA, Max: maxA}
		}
	}

	fs, err := filters(q)
	if err != nil {
		errs = append(errs, err)
	}
	crit.Filters = fs
	return crit, errors.Join(errs...)
}

func mapFeatureCriteria(q url.Values) (mapillary.MapFeatureCriteria, error) {
	fs, err := filters(q)
	return mapillary.MapFeatureCriteria{
		ObjectValues:  list(q, "object_values"),
		ExistedAt:     q.Get("existed_at"),
		ExistedBefore: q.Get("existed_before"),
		Filters:       fs,
	}, err
}

// filters reads repeated filter=name:key=value,... parameters
func filters(q url.Values) ([]filter.Filter, error) {
	var out []filter.Filter
	for _, raw := range q["filter"] {
		f, err := filter.Parse(raw)
		if err != nil {
			var unknown *filter.UnknownFilterError
			if errors.As(err, &unknown) {
				return nil, err
			}
			return nil, &badRequest{err: err}
		}
		out = append(out, f)
	}
	return out, nil
}

func parseBBox(q url.Values) (orb.Bound, error) {
	raw := q.Get("bbox")
	parts := strings.Split(raw, ",")
	if len(parts) != 4 {
		return orb.Bound{}, invalidParam("bbox", raw, "must be west,south,east,north")
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return orb.Bound{}, invalidParam("bbox", raw, "must be west,south,east,north")
		}
		v[i] = f
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func requiredFloat(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, invalidParam(name, raw, "is required")
	}
	return optionalFloat(q, name)
}

func optionalFloat(q url.Values, name string) (float64, error) {
	raw := q.Get(name)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, invalidParam(name, raw, "not a number")
	}
	return f, nil
}

func list(q url.Values, name string) []string {
	var out []string
	for _, raw := range q[name] {
		for _, item := range strings.Split(raw, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
	}
	return out
}
