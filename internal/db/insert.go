package db

import (
	"context"
	"database/sql"
	"fmt"

	"bus-collector/internal/gtfs"
)

// PositionStore binds a connection pool to the batch insert, satisfying the
// collector's Store interface.
type PositionStore struct {
	DB *sql.DB
}

func (s *PositionStore) InsertPositions(ctx context.Context, positions []gtfs.VehiclePosition) (int, error) {
	return InsertPositions(ctx, s.DB, positions)
}

const insertPosition = `
INSERT INTO bus_positions (
    recorded_at, feed_timestamp, vehicle_id, route_id, trip_id,
    direction_id, latitude, longitude, current_stop_sequence,
    stop_id, current_status, vehicle_timestamp, start_date, block_id
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

// InsertPositions writes one batch of observations in a single transaction.
// On any error the whole batch is rolled back.
func InsertPositions(ctx context.Context, db *sql.DB, positions []gtfs.VehiclePosition) (int, error) {
	if len(positions) == 0 {
		return 0, nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, insertPosition)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range positions {
		_, err := stmt.ExecContext(ctx,
			p.RecordedAt,
			p.FeedTimestamp,
			p.VehicleID,
			p.RouteID,
			p.TripID,
			p.DirectionID,
			p.Latitude,
			p.Longitude,
			p.CurrentStopSequence,
			p.StopID,
			p.CurrentStatus,
			p.VehicleTimestamp,
			p.StartDate,
			p.BlockID,
		)
		if err != nil {
			return 0, fmt.Errorf("insert position for vehicle %s: %w", p.VehicleID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(positions), nil
}
