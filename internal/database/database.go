package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to the buildings database and verifies the dataset is
// present. The table is built and indexed by an offline process; this service
// only ever reads from it, so a missing table means a broken deployment and
// we fail fast rather than serve blank tiles forever.
func NewPool(databaseURL string) *pgxpool.Pool {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		log.Fatalf("Failed to parse database URL: %v", err)
	}

	config.MaxConns = 20
	config.MinConns = 2
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		log.Fatalf("Failed to create connection pool: %v", err)
	}

	if err := pool.Ping(ctx); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if err := checkDataset(ctx, pool); err != nil {
		log.Fatalf("Buildings dataset unavailable: %v", err)
	}

	fmt.Println("Connected to PostgreSQL")
	return pool
}

func checkDataset(ctx context.Context, pool *pgxpool.Pool) error {
	var exists bool
	err := pool.QueryRow(ctx, "SELECT to_regclass('buildings') IS NOT NULL").Scan(&exists)
	if err != nil {
		return fmt.Errorf("probing buildings table: %w", err)
	}
	if !exists {
		return fmt.Errorf("buildings table not found; run the offline index build first")
	}
	return nil
}
