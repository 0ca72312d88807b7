package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
)

const createPositionsTable = `
CREATE TABLE IF NOT EXISTS bus_positions (
    id BIGSERIAL,
    recorded_at TIMESTAMPTZ NOT NULL,
    feed_timestamp BIGINT NOT NULL,
    vehicle_id TEXT NOT NULL,
    route_id TEXT,
    trip_id TEXT,
    direction_id INTEGER,
    latitude DOUBLE PRECISION NOT NULL,
    longitude DOUBLE PRECISION NOT NULL,
    current_stop_sequence INTEGER,
    stop_id TEXT,
    current_status TEXT,
    vehicle_timestamp BIGINT,
    start_date TEXT,
    block_id TEXT,
    PRIMARY KEY (id, recorded_at)
)`

var positionIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_bus_positions_vehicle_time
         ON bus_positions (vehicle_id, recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bus_positions_route_time
         ON bus_positions (route_id, recorded_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_bus_positions_recorded_at
         ON bus_positions (recorded_at DESC)`,
}

// EnsureSchema creates the positions table and its indexes. Safe to run on
// every process start.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createPositionsTable); err != nil {
		return fmt.Errorf("create bus_positions: %w", err)
	}
	for _, stmt := range positionIndexes {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	enableTimescale(ctx, db)
	return nil
}

// enableTimescale converts bus_positions into a hypertable with a 7-day
// compression policy. Plain PostgreSQL lacks these functions, so every
// failure here is non-fatal.
func enableTimescale(ctx context.Context, db *sql.DB) {
	_, err := db.ExecContext(ctx, `
        SELECT create_hypertable('bus_positions', 'recorded_at',
            if_not_exists => TRUE,
            migrate_data => TRUE)`)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "hypertable") ||
			strings.Contains(strings.ToLower(err.Error()), "timescaledb") {
			log.Info().Msg("TimescaleDB not available, using regular PostgreSQL table")
		} else {
			log.Warn().Err(err).Msg("create_hypertable failed")
		}
		return
	}
	log.Info().Msg("TimescaleDB hypertable enabled")

	_, err = db.ExecContext(ctx, `
        ALTER TABLE bus_positions SET (
            timescaledb.compress,
            timescaledb.compress_segmentby = 'vehicle_id, route_id')`)
	if err == nil {
		_, err = db.ExecContext(ctx, `
            SELECT add_compression_policy('bus_positions', INTERVAL '7 days', if_not_exists => TRUE)`)
	}
	if err != nil {
		log.Warn().Err(err).Msg("TimescaleDB compression not enabled")
		return
	}
	log.Info().Msg("TimescaleDB compression policy enabled")
}
