package geo

import (
	"context"
	"fmt"
)

// ViewStats holds the aggregate over all buildings whose bbox overlaps a
// viewport: feature count and total footprint area in projected square
// metres (EPSG:3857, matching what the map renders).
type ViewStats struct {
	Count  int64   `json:"count"`
	AreaM2 float64 `json:"total_area_m2"`
}

// ViewportStats computes building count and total area for the given
// viewport bounds. Uses the same bbox prefilter as the tile query, so the
// numbers agree with what the map shows.
func (q *Queries) ViewportStats(ctx context.Context, west, south, east, north float64) (ViewStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COALESCE(SUM(ST_Area(ST_Transform(geometry, 3857))), 0)
		FROM buildings
		WHERE bbox_xmin <= $1
		  AND bbox_xmax >= $2
		  AND bbox_ymin <= $3
		  AND bbox_ymax >= $4
	`

	var stats ViewStats
	err := q.DB.QueryRow(ctx, query, east, west, north, south).Scan(&stats.Count, &stats.AreaM2)
	if err != nil {
		return ViewStats{}, fmt.Errorf("viewport stats query failed: %w", err)
	}
	return stats, nil
}
