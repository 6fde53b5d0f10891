package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"buildings-viewer/internal/cache"
	"buildings-viewer/internal/config"
	"buildings-viewer/internal/database"
	"buildings-viewer/internal/geo"
	"buildings-viewer/internal/stats"
	"buildings-viewer/internal/tiles"
	"buildings-viewer/internal/viewstate"
)

func main() {
	// Load configuration
	cfg := config.Load()

	// Initialize database (fails fast when the buildings dataset is absent)
	pool := database.NewPool(cfg.DatabaseURL())
	defer pool.Close()

	// Optional Redis-backed stats cache
	redisClient := cache.NewRedisClient(cfg.RedisAddr())
	if redisClient != nil {
		defer redisClient.Close()
	}

	queries := &geo.Queries{DB: pool}
	register := &viewstate.Register{}

	// Stats consumer: polls the register and recomputes the aggregate only
	// when the rounded viewport key changes.
	statsSvc := stats.New(queries, register, redisClient, stats.Options{
		BoundsPrecision: cfg.StatsBoundsPrecision,
		ZoomPrecision:   cfg.StatsZoomPrecision,
		QueryTimeout:    cfg.QueryTimeout(),
		PollInterval:    cfg.StatsPollInterval(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go statsSvc.Run(ctx)

	// Initialize Echo
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := tiles.NewHandler(queries, register, statsSvc, tiles.Options{
		MinZoom:      cfg.MinTileZoom,
		CacheMaxAge:  cfg.TileCacheMaxAge,
		QueryTimeout: cfg.QueryTimeout(),
		MapCenterLng: cfg.MapCenterLng,
		MapCenterLat: cfg.MapCenterLat,
		MapZoom:      cfg.MapZoom,
	})

	e.GET("/tiles/:z/:x/:y", handler.Tile)
	e.GET("/health", handler.Health)
	e.POST("/update-view", handler.UpdateView)
	e.GET("/get-bounds", handler.GetBounds)
	e.GET("/stats", handler.Stats)
	e.GET("/", handler.MapPage)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server
	addr := fmt.Sprintf(":%s", cfg.ServerPort)
	fmt.Printf("Tile server starting on %s\n", addr)
	if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
		e.Logger.Fatal(err)
	}
}
