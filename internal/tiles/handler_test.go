package tiles_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/mvt"

	"buildings-viewer/internal/geo"
	"buildings-viewer/internal/stats"
	"buildings-viewer/internal/tiles"
	"buildings-viewer/internal/viewstate"
)

type stubStore struct {
	buildings []geo.Building
	err       error
	calls     int
}

func (s *stubStore) BuildingsInBBox(ctx context.Context, minLon, minLat, maxLon, maxLat float64) ([]geo.Building, error) {
	s.calls++
	return s.buildings, s.err
}

type stubStats struct {
	result stats.Result
}

func (s *stubStats) Current(ctx context.Context) stats.Result {
	return s.result
}

func newTestHandler(store *stubStore, register *viewstate.Register, st tiles.StatsProvider) *tiles.Handler {
	if register == nil {
		register = &viewstate.Register{}
	}
	if st == nil {
		st = &stubStats{}
	}
	return tiles.NewHandler(store, register, st, tiles.Options{
		MinZoom:      10,
		CacheMaxAge:  3600,
		QueryTimeout: time.Second,
	})
}

func tileRequest(t *testing.T, h *tiles.Handler, z, x, y string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/tiles/"+z+"/"+x+"/"+y, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/tiles/:z/:x/:y")
	c.SetParamNames("z", "x", "y")
	c.SetParamValues(z, x, y)
	if err := h.Tile(c); err != nil {
		t.Fatalf("Tile handler returned error: %v", err)
	}
	return rec
}

func decodeTile(t *testing.T, body []byte) mvt.Layers {
	t.Helper()
	layers, err := mvt.Unmarshal(body)
	if err != nil {
		t.Fatalf("tile body is not a valid vector tile: %v", err)
	}
	return layers
}

func featureCount(layers mvt.Layers) int {
	n := 0
	for _, l := range layers {
		n += len(l.Features)
	}
	return n
}

func TestTileShortCircuitBelowMinZoom(t *testing.T) {
	store := &stubStore{}
	h := newTestHandler(store, nil, nil)

	rec := tileRequest(t, h, "9", "421", "270.pbf")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.calls != 0 {
		t.Errorf("store queried %d times below the minimum zoom", store.calls)
	}
	if cc := rec.Header().Get("Cache-Control"); cc != "public, max-age=3600" {
		t.Errorf("Cache-Control = %q", cc)
	}
	if n := featureCount(decodeTile(t, rec.Body.Bytes())); n != 0 {
		t.Errorf("short-circuit tile has %d features", n)
	}
}

func TestTileInvalidParams(t *testing.T) {
	cases := [][3]string{
		{"abc", "0", "0.pbf"},
		{"12", "x", "0.pbf"},
		{"12", "0", "nope.pbf"},
		{"-1", "0", "0.pbf"},
		{"23", "0", "0.pbf"},
		{"12", "4096", "0.pbf"}, // col out of range for 2^12
		{"12", "0", "4096.pbf"},
	}
	for _, tc := range cases {
		store := &stubStore{}
		h := newTestHandler(store, nil, nil)
		rec := tileRequest(t, h, tc[0], tc[1], tc[2])
		if rec.Code != http.StatusBadRequest {
			t.Errorf("tile %v: status = %d, want 400", tc, rec.Code)
		}
		if store.calls != 0 {
			t.Errorf("tile %v: store queried despite invalid params", tc)
		}
	}
}

func TestTileStoreErrorDegradesToEmpty(t *testing.T) {
	store := &stubStore{err: errors.New("connection refused")}
	h := newTestHandler(store, nil, nil)

	rec := tileRequest(t, h, "12", "2108", "1354.pbf")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (degraded empty tile)", rec.Code)
	}
	if n := featureCount(decodeTile(t, rec.Body.Bytes())); n != 0 {
		t.Errorf("degraded tile has %d features", n)
	}
}

func TestTileEmptyDataset(t *testing.T) {
	store := &stubStore{} // no buildings in this bbox
	h := newTestHandler(store, nil, nil)

	rec := tileRequest(t, h, "12", "2108", "1354.pbf")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if store.calls != 1 {
		t.Errorf("store calls = %d, want 1", store.calls)
	}
	if ct := rec.Header().Get(echo.HeaderContentType); ct != "application/vnd.mapbox-vector-tile" {
		t.Errorf("Content-Type = %q", ct)
	}
	if n := featureCount(decodeTile(t, rec.Body.Bytes())); n != 0 {
		t.Errorf("empty dataset produced %d features", n)
	}
}

func TestTileWithFeatures(t *testing.T) {
	class := "residential"
	store := &stubStore{buildings: []geo.Building{{
		ID: "building-1",
		Geometry: orb.Polygon{orb.Ring{
			{5.300, 51.945},
			{5.301, 51.945},
			{5.301, 51.946},
			{5.300, 51.946},
			{5.300, 51.945},
		}},
		Class: &class,
	}}}
	h := newTestHandler(store, nil, nil)

	rec := tileRequest(t, h, "12", "2108", "1354.pbf")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	layers := decodeTile(t, rec.Body.Bytes())
	if len(layers) != 1 || layers[0].Name != "buildings" {
		t.Fatalf("unexpected layers: %v", layers)
	}
	if len(layers[0].Features) != 1 {
		t.Fatalf("got %d features, want 1", len(layers[0].Features))
	}
	props := layers[0].Features[0].Properties
	if props["id"] != "building-1" || props["class"] != "residential" {
		t.Errorf("unexpected properties: %v", props)
	}
}

func postUpdateView(t *testing.T, h *tiles.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/update-view", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	if err := h.UpdateView(e.NewContext(req, rec)); err != nil {
		t.Fatalf("UpdateView returned error: %v", err)
	}
	return rec
}

func TestUpdateViewMissingBounds(t *testing.T) {
	h := newTestHandler(&stubStore{}, nil, nil)

	rec := postUpdateView(t, h, `{"zoom": 14}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestUpdateViewAndGetBounds(t *testing.T) {
	register := &viewstate.Register{}
	h := newTestHandler(&stubStore{}, register, nil)

	// No view reported yet: bounds is null.
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/get-bounds", nil)
	rec := httptest.NewRecorder()
	if err := h.GetBounds(e.NewContext(req, rec)); err != nil {
		t.Fatalf("GetBounds returned error: %v", err)
	}
	var nullResp struct {
		Bounds *viewstate.View `json:"bounds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &nullResp); err != nil {
		t.Fatalf("decoding get-bounds response: %v", err)
	}
	if nullResp.Bounds != nil {
		t.Errorf("bounds = %+v before any update, want null", nullResp.Bounds)
	}

	rec = postUpdateView(t, h, `{"bounds":{"north":52.1,"south":52.0,"east":5.2,"west":5.1},"zoom":14.5}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update-view status = %d, want 200", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/get-bounds", nil)
	rec = httptest.NewRecorder()
	if err := h.GetBounds(e.NewContext(req, rec)); err != nil {
		t.Fatalf("GetBounds returned error: %v", err)
	}
	var resp struct {
		Bounds *viewstate.View `json:"bounds"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding get-bounds response: %v", err)
	}
	if resp.Bounds == nil {
		t.Fatal("bounds missing after update-view")
	}
	if resp.Bounds.North != 52.1 || resp.Bounds.Zoom != 14.5 {
		t.Errorf("bounds = %+v, want the posted view", resp.Bounds)
	}
}

func TestStatsEndpoint(t *testing.T) {
	view := viewstate.View{North: 52.1, South: 52.0, East: 5.2, West: 5.1, Zoom: 14}
	st := &stubStats{result: stats.Result{
		ViewStats: geo.ViewStats{Count: 42, AreaM2: 1234.5},
		Bounds:    &view,
	}}
	h := newTestHandler(&stubStore{}, nil, st)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	if err := h.Stats(e.NewContext(req, rec)); err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}

	var resp struct {
		Count  int64   `json:"count"`
		AreaM2 float64 `json:"total_area_m2"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding stats response: %v", err)
	}
	if resp.Count != 42 || resp.AreaM2 != 1234.5 {
		t.Errorf("stats = %+v, want count 42, area 1234.5", resp)
	}
}
