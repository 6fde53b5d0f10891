package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	TileRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_tile_requests_total",
		Help: "Total number of tile requests",
	})
	TileShortCircuitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_tile_short_circuits_total",
		Help: "Tile requests answered empty below the minimum zoom",
	})
	TileEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_tile_empty_total",
		Help: "Tiles served with no features",
	})
	TileStoreErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_tile_store_errors_total",
		Help: "Tile requests degraded to empty because the store query failed",
	})
	TileEncodeErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_tile_encode_errors_total",
		Help: "Tile requests degraded to empty because encoding failed",
	})
	TileDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "buildings_tile_duration_seconds",
		Help:    "Total tile generation duration",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
	TileQueryDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "buildings_tile_query_duration_seconds",
		Help:    "Store query duration within tile generation",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
	ViewUpdatesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_view_updates_total",
		Help: "Accepted view-state updates",
	})
	StatsRecomputesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "buildings_stats_recomputes_total",
		Help: "Aggregate stats recomputations against the store",
	})
)

func init() {
	prometheus.MustRegister(TileRequestsTotal)
	prometheus.MustRegister(TileShortCircuitsTotal)
	prometheus.MustRegister(TileEmptyTotal)
	prometheus.MustRegister(TileStoreErrorsTotal)
	prometheus.MustRegister(TileEncodeErrorsTotal)
	prometheus.MustRegister(TileDurationSeconds)
	prometheus.MustRegister(TileQueryDurationSeconds)
	prometheus.MustRegister(ViewUpdatesTotal)
	prometheus.MustRegister(StatsRecomputesTotal)
}
