package geo

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
)

// Building is one row of the buildings dataset, restricted to the attributes
// the tile layer exposes. Name and Height are NULL for most rows.
type Building struct {
	ID       string
	Geometry orb.Geometry
	Name     *string
	Height   *float64
	Class    *string
}

// Queries holds the database pool for spatial queries.
//
// The pool hands every in-flight query its own connection, so a query never
// shares a connection with another concurrent request.
type Queries struct {
	DB *pgxpool.Pool
}

// BuildingsInBBox returns buildings whose precomputed bounding box overlaps
// the query box. The bbox columns are a necessary-but-not-sufficient
// prefilter: a returned polygon may still miss the box entirely, and exact
// clipping happens during tile encoding.
func (q *Queries) BuildingsInBBox(ctx context.Context, minLon, minLat, maxLon, maxLat float64) ([]Building, error) {
	const query = `
		SELECT id, ST_AsBinary(geometry), name, height, class
		FROM buildings
		WHERE bbox_xmin <= $1
		  AND bbox_xmax >= $2
		  AND bbox_ymin <= $3
		  AND bbox_ymax >= $4
	`

	rows, err := q.DB.Query(ctx, query, maxLon, minLon, maxLat, minLat)
	if err != nil {
		return nil, fmt.Errorf("buildings bbox query failed: %w", err)
	}
	defer rows.Close()

	var buildings []Building
	for rows.Next() {
		var (
			b    Building
			geom []byte
		)
		if err := rows.Scan(&b.ID, &geom, &b.Name, &b.Height, &b.Class); err != nil {
			return nil, fmt.Errorf("scanning building row: %w", err)
		}
		g, err := wkb.Unmarshal(geom)
		if err != nil {
			// A row with corrupt geometry shouldn't take down the whole
			// tile; skip it.
			continue
		}
		b.Geometry = g
		buildings = append(buildings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading building rows: %w", err)
	}

	return buildings, nil
}
