// internal/apitest/upstream.go - Fake tiles and Graph upstream for tests
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"
	"github.com/paulmach/orb/geojson"

	"github.com/valpere/mapillary/pkg/tiles"
)

// Token is the access token the fake accepts unless configured otherwise
const Token = "MLY|test|token"

// edgeBuffer widens each tile by this fraction so features near an edge are
// served by both neighbours, the way real vector tiles carry a buffer
const edgeBuffer = 0.05

// Entity is a Graph object; Fields holds every field the entity exposes
type Entity struct {
	Fields     map[string]interface{}
	Detections []map[string]interface{}
}

// Upstream is an httptest server speaking the tiles and Graph protocols
type Upstream struct {
	Server *httptest.Server

	mu       sync.Mutex
	token    string
	tilesets map[string]map[string][]*geojson.Feature
	entities map[string]Entity
	failures map[string]int
	delay    time.Duration

	tileRequests  atomic.Int64
	graphRequests atomic.Int64
}

// New starts a fake upstream; it is closed with the test
func New(t interface {
	Helper()
	Cleanup(func())
}) *Upstream {
	t.Helper()

	u := &Upstream{
		token:    Token,
		tilesets: make(map[string]map[string][]*geojson.Feature),
		entities: make(map[string]Entity),
		failures: make(map[string]int),
	}

	r := chi.NewRouter()
	r.Get("/tiles/{tileset}/2/{z}/{x}/{y}", u.serveTile)
	r.Get("/graph/{id}", u.serveEntity)
	r.Get("/graph/{id}/detections", u.serveDetections)

	u.Server = httptest.NewServer(r)
	t.Cleanup(u.Server.Close)
	return u
}

// TilesURL is the base URL of the tiles endpoint
func (u *Upstream) TilesURL() string { return u.Server.URL + "/tiles" }

// GraphURL is the base URL of the Graph endpoint
func (u *Upstream) GraphURL() string { return u.Server.URL + "/graph" }

// SetToken changes the accepted access token
func (u *Upstream) SetToken(token string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.token = token
}

// SetDelay slows every tile response down
func (u *Upstream) SetDelay(d time.Duration) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.delay = d
}

// AddFeatures registers WGS84 features in a layer of a tileset. Each tile
// request serves the features that fall in the (buffered) tile.
func (u *Upstream) AddFeatures(tileset, layer string, fs ...*geojson.Feature) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.tilesets[tileset] == nil {
		u.tilesets[tileset] = make(map[string][]*geojson.Feature)
	}
	u.tilesets[tileset][layer] = append(u.tilesets[tileset][layer], fs...)
}

// AddEntity registers a Graph entity
func (u *Upstream) AddEntity(id string, e Entity) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.entities[id] = e
}

// FailTile makes requests for addr answer with status
func (u *Upstream) FailTile(addr tiles.Address, status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.failures[addr.String()] = status
}

// TileRequests counts tile requests served
func (u *Upstream) TileRequests() int { return int(u.tileRequests.Load()) }

// GraphRequests counts Graph requests served
func (u *Upstream) GraphRequests() int { return int(u.graphRequests.Load()) }

func (u *Upstream) serveTile(w http.ResponseWriter, r *http.Request) {
	u.tileRequests.Add(1)

	u.mu.Lock()
	token, delay := u.token, u.delay
	u.mu.Unlock()

	if r.URL.Query().Get("access_token") != token {
		writeGraphError(w, http.StatusUnauthorized, "invalid access token")
		return
	}

	addr, err := parseAddress(chi.URLParam(r, "z"), chi.URLParam(r, "x"), chi.URLParam(r, "y"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	u.mu.Lock()
	status, failing := u.failures[addr.String()]
	layers := u.tilesets[chi.URLParam(r, "tileset")]
	data, err := encodeTile(addr, layers)
	u.mu.Unlock()

	if failing {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/x-protobuf")
	_, _ = w.Write(data)
}

func parseAddress(zs, xs, ys string) (tiles.Address, error) {
	z, errZ := strconv.Atoi(zs)
	x, errX := strconv.Atoi(xs)
	y, errY := strconv.Atoi(ys)
	if errZ != nil || errX != nil || errY != nil {
		return tiles.Address{}, fmt.Errorf("invalid tile address %s/%s/%s", zs, xs, ys)
	}
	addr := tiles.NewAddress(z, x, y)
	return addr, addr.Validate()
}

// EncodeTile builds the vector tile for addr from WGS84 features per layer
func EncodeTile(addr tiles.Address, layers map[string][]*geojson.Feature) ([]byte, error) {
	return encodeTile(addr, layers)
}

func encodeTile(addr tiles.Address, layers map[string][]*geojson.Feature) ([]byte, error) {
	bound := addr.Bound()
	pad := orb.Point{(bound.Max.Lon() - bound.Min.Lon()) * edgeBuffer, (bound.Max.Lat() - bound.Min.Lat()) * edgeBuffer}
	buffered := orb.Bound{
		Min: orb.Point{bound.Min.Lon() - pad.Lon(), bound.Min.Lat() - pad.Lat()},
		Max: orb.Point{bound.Max.Lon() + pad.Lon(), bound.Max.Lat() + pad.Lat()},
	}

	collections := make(map[string]*geojson.FeatureCollection, len(layers))
	for name, fs := range layers {
		fc := geojson.NewFeatureCollection()
		for _, f := range fs {
			if !buffered.Intersects(f.Geometry.Bound()) {
				continue
			}
			clone := geojson.NewFeature(orb.Clone(f.Geometry))
			clone.ID = f.ID
			for k, v := range f.Properties {
				clone.Properties[k] = v
			}
			fc.Append(clone)
		}
		if len(fc.Features) > 0 {
			collections[name] = fc
		}
	}
	if len(collections) == 0 {
		return []byte{}, nil
	}

	ls := mvt.NewLayers(collections)
	ls.ProjectToTile(addr.Tile())
	return mvt.Marshal(ls)
}

func (u *Upstream) authorized(w http.ResponseWriter, r *http.Request) bool {
	u.graphRequests.Add(1)

	u.mu.Lock()
	token := u.token
	u.mu.Unlock()

	if r.Header.Get("Authorization") != "OAuth "+token {
		writeGraphError(w, http.StatusUnauthorized, "invalid OAuth access token")
		return false
	}
	return true
}

func (u *Upstream) lookup(w http.ResponseWriter, id string) (Entity, bool) {
	u.mu.Lock()
	e, ok := u.entities[id]
	u.mu.Unlock()
	if !ok {
		writeGraphError(w, http.StatusNotFound, "object with id "+id+" does not exist")
	}
	return e, ok
}

func (u *Upstream) serveEntity(w http.ResponseWriter, r *http.Request) {
	if !u.authorized(w, r) {
		return
	}
	id := chi.URLParam(r, "id")
	e, ok := u.lookup(w, id)
	if !ok {
		return
	}

	out := map[string]interface{}{"id": id}
	for _, f := range requestedFields(r) {
		v, ok := e.Fields[f]
		if !ok {
			writeGraphError(w, http.StatusBadRequest, "tried accessing nonexisting field ("+f+")")
			return
		}
		out[f] = v
	}
	writeJSON(w, out)
}

func (u *Upstream) serveDetections(w http.ResponseWriter, r *http.Request) {
	if !u.authorized(w, r) {
		return
	}
	e, ok := u.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	fields := requestedFields(r)
	data := make([]map[string]interface{}, 0, len(e.Detections))
	for _, d := range e.Detections {
		item := map[string]interface{}{"id": d["id"]}
		for _, f := range fields {
			if v, ok := d[f]; ok {
				item[f] = v
			}
		}
		data = append(data, item)
	}
	writeJSON(w, map[string]interface{}{"data": data})
}

func requestedFields(r *http.Request) []string {
	raw := r.URL.Query().Get("fields")
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func writeGraphError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{"message": message, "code": status},
	})
}
