package tiles

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/paulmach/orb/maptile"

	"buildings-viewer/internal/geo"
	"buildings-viewer/internal/metrics"
	"buildings-viewer/internal/stats"
	"buildings-viewer/internal/tilemath"
	"buildings-viewer/internal/vectortile"
	"buildings-viewer/internal/viewstate"
)

// BuildingSource is the bbox-filtered feature query tile generation runs
// against the store.
type BuildingSource interface {
	BuildingsInBBox(ctx context.Context, minLon, minLat, maxLon, maxLat float64) ([]geo.Building, error)
}

// StatsProvider returns the memoized aggregate for the registered viewport.
type StatsProvider interface {
	Current(ctx context.Context) stats.Result
}

// Options are the serving policies for the tile endpoints.
type Options struct {
	// MinZoom is the zoom below which tiles are served empty without
	// querying the store.
	MinZoom int

	// CacheMaxAge is the Cache-Control max-age (seconds) on tile responses.
	// Tile content for a fixed z/x/y over a static dataset is immutable
	// within this window.
	CacheMaxAge int

	// QueryTimeout bounds the store query so one slow spatial scan cannot
	// hold a worker indefinitely.
	QueryTimeout time.Duration

	LayerName string

	// Initial viewport for the map page when no query params are given.
	MapCenterLng string
	MapCenterLat string
	MapZoom      string
}

// Handler serves the tile, view-state and stats endpoints.
type Handler struct {
	store    BuildingSource
	register *viewstate.Register
	stats    StatsProvider
	opts     Options
}

func NewHandler(store BuildingSource, register *viewstate.Register, statsSvc StatsProvider, opts Options) *Handler {
	if opts.LayerName == "" {
		opts.LayerName = vectortile.DefaultLayerName
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = 5 * time.Second
	}
	return &Handler{store: store, register: register, stats: statsSvc, opts: opts}
}

// parseTileParams extracts and validates z, x, y from Echo path parameters.
// The y parameter may carry a ".pbf" suffix which is stripped automatically.
func parseTileParams(c echo.Context) (z, x, y int, err error) {
	z, err = strconv.Atoi(c.Param("z"))
	if err != nil {
		return
	}
	x, err = strconv.Atoi(c.Param("x"))
	if err != nil {
		return
	}

	yRaw := c.Param("y")
	if len(yRaw) > 4 && yRaw[len(yRaw)-4:] == ".pbf" {
		yRaw = yRaw[:len(yRaw)-4]
	}
	y, err = strconv.Atoi(yRaw)
	if err != nil {
		return
	}

	if z < 0 || z > 22 {
		err = fmt.Errorf("zoom out of range: %d", z)
		return
	}
	max := 1 << uint(z)
	if x < 0 || x >= max || y < 0 || y >= max {
		err = fmt.Errorf("tile coordinates out of range for zoom %d: x=%d y=%d", z, x, y)
	}
	return
}

// Tile handles GET /tiles/:z/:x/:y.pbf.
//
// Every failure inside tile generation degrades to a valid empty tile: a
// blank tile is preferable to breaking the tiling client, and an identical
// retry is harmless.
func (h *Handler) Tile(c echo.Context) error {
	metrics.TileRequestsTotal.Inc()

	z, x, y, err := parseTileParams(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid tile coordinates"})
	}

	start := time.Now()
	defer func() {
		metrics.TileDurationSeconds.Observe(time.Since(start).Seconds())
	}()

	// Below the minimum zoom a tile would cover an enormous number of
	// buildings; answer empty without touching the store.
	if z < h.opts.MinZoom {
		metrics.TileShortCircuitsTotal.Inc()
		return h.writeTile(c, nil)
	}

	bbox := tilemath.TileToBBox(z, x, y)

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.opts.QueryTimeout)
	defer cancel()

	queryStart := time.Now()
	buildings, err := h.store.BuildingsInBBox(ctx, bbox.MinLon, bbox.MinLat, bbox.MaxLon, bbox.MaxLat)
	metrics.TileQueryDurationSeconds.Observe(time.Since(queryStart).Seconds())
	if err != nil {
		metrics.TileStoreErrorsTotal.Inc()
		c.Logger().Errorf("tile %d/%d/%d store query failed: %v", z, x, y, err)
		return h.writeTile(c, nil)
	}

	tile := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	data, err := vectortile.Encode(buildings, tile, h.opts.LayerName)
	if err != nil {
		metrics.TileEncodeErrorsTotal.Inc()
		c.Logger().Errorf("tile %d/%d/%d encoding failed: %v", z, x, y, err)
		return h.writeTile(c, nil)
	}

	if len(buildings) == 0 {
		metrics.TileEmptyTotal.Inc()
	}
	return h.writeTile(c, data)
}

func (h *Handler) writeTile(c echo.Context, data []byte) error {
	c.Response().Header().Set("Cache-Control", fmt.Sprintf("public, max-age=%d", h.opts.CacheMaxAge))
	if data == nil {
		data = []byte{}
	}
	return c.Blob(http.StatusOK, "application/vnd.mapbox-vector-tile", data)
}

// Health handles GET /health.
func (h *Handler) Health(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type viewBounds struct {
	North float64 `json:"north"`
	South float64 `json:"south"`
	East  float64 `json:"east"`
	West  float64 `json:"west"`
}

type updateViewRequest struct {
	Bounds *viewBounds `json:"bounds"`
	Zoom   float64     `json:"zoom"`
}

// UpdateView handles POST /update-view: the map reports its viewport here
// after every pan or zoom, and the stats consumer reads it back.
func (h *Handler) UpdateView(c echo.Context) error {
	var req updateViewRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "invalid request body"})
	}
	if req.Bounds == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"status": "error", "message": "no bounds provided"})
	}

	h.register.Set(viewstate.View{
		North: req.Bounds.North,
		South: req.Bounds.South,
		East:  req.Bounds.East,
		West:  req.Bounds.West,
		Zoom:  req.Zoom,
	})
	metrics.ViewUpdatesTotal.Inc()
	return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
}

// GetBounds handles GET /get-bounds. Returns {"bounds": null} until a view
// has been reported.
func (h *Handler) GetBounds(c echo.Context) error {
	view, ok := h.register.Get()
	if !ok {
		return c.JSON(http.StatusOK, echo.Map{"bounds": nil})
	}
	return c.JSON(http.StatusOK, echo.Map{"bounds": view})
}

// Stats handles GET /stats: the memoized aggregate for the current viewport.
func (h *Handler) Stats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.stats.Current(c.Request().Context()))
}
