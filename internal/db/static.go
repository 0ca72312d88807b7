package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog/log"

	"bus-collector/internal/gtfs"
)

// stopTimesBatch bounds transaction size for the ~1M row stop_times file.
const stopTimesBatch = 50000

const createStaticTables = `
DROP TABLE IF EXISTS gtfs_stop_times CASCADE;
DROP TABLE IF EXISTS gtfs_trips CASCADE;
DROP TABLE IF EXISTS gtfs_routes CASCADE;
DROP TABLE IF EXISTS gtfs_stops CASCADE;
DROP TABLE IF EXISTS gtfs_calendar CASCADE;
DROP TABLE IF EXISTS gtfs_calendar_dates CASCADE;

CREATE TABLE gtfs_routes (
    route_id TEXT PRIMARY KEY,
    agency_id TEXT,
    route_short_name TEXT,
    route_long_name TEXT,
    route_desc TEXT,
    route_type INTEGER,
    route_url TEXT,
    route_color TEXT,
    route_text_color TEXT
);

CREATE TABLE gtfs_stops (
    stop_id TEXT PRIMARY KEY,
    stop_code TEXT,
    stop_name TEXT,
    stop_lat DOUBLE PRECISION,
    stop_lon DOUBLE PRECISION,
    location_type INTEGER,
    parent_station TEXT,
    wheelchair_boarding INTEGER
);

CREATE TABLE gtfs_trips (
    trip_id TEXT PRIMARY KEY,
    route_id TEXT REFERENCES gtfs_routes(route_id),
    service_id TEXT NOT NULL,
    trip_headsign TEXT,
    direction_id INTEGER,
    block_id TEXT,
    shape_id TEXT
);

CREATE TABLE gtfs_stop_times (
    trip_id TEXT NOT NULL,
    arrival_time TEXT NOT NULL,
    departure_time TEXT NOT NULL,
    stop_id TEXT NOT NULL,
    stop_sequence INTEGER NOT NULL,
    pickup_type INTEGER,
    drop_off_type INTEGER,
    timepoint INTEGER,
    PRIMARY KEY (trip_id, stop_sequence)
);

CREATE TABLE gtfs_calendar (
    service_id TEXT PRIMARY KEY,
    monday INTEGER NOT NULL,
    tuesday INTEGER NOT NULL,
    wednesday INTEGER NOT NULL,
    thursday INTEGER NOT NULL,
    friday INTEGER NOT NULL,
    saturday INTEGER NOT NULL,
    sunday INTEGER NOT NULL,
    start_date TEXT NOT NULL,
    end_date TEXT NOT NULL
);

CREATE TABLE gtfs_calendar_dates (
    service_id TEXT NOT NULL,
    date TEXT NOT NULL,
    exception_type INTEGER NOT NULL,
    PRIMARY KEY (service_id, date)
);

CREATE INDEX idx_gtfs_stop_times_trip_stop ON gtfs_stop_times (trip_id, stop_id);
CREATE INDEX idx_gtfs_stop_times_trip_seq ON gtfs_stop_times (trip_id, stop_sequence);
CREATE INDEX idx_gtfs_trips_route ON gtfs_trips (route_id);
CREATE INDEX idx_gtfs_trips_service ON gtfs_trips (service_id);
CREATE INDEX idx_gtfs_calendar_dates_date ON gtfs_calendar_dates (date);
`

// RecreateStaticTables drops and recreates the gtfs_* schedule tables.
// Run whenever the agency publishes a new schedule.
func RecreateStaticTables(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, createStaticTables); err != nil {
		return fmt.Errorf("recreate static tables: %w", err)
	}
	return nil
}

func LoadRoutes(ctx context.Context, db *sql.DB, routes []gtfs.Route) (int, error) {
	return execBatch(ctx, db, `
        INSERT INTO gtfs_routes (route_id, agency_id, route_short_name, route_long_name,
            route_desc, route_type, route_url, route_color, route_text_color)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		len(routes), func(i int) []any {
			r := routes[i]
			return []any{r.RouteID, r.AgencyID, r.ShortName, r.LongName, r.Desc, r.Type, r.URL, r.Color, r.TextColor}
		})
}

func LoadStops(ctx context.Context, db *sql.DB, stops []gtfs.Stop) (int, error) {
	return execBatch(ctx, db, `
        INSERT INTO gtfs_stops (stop_id, stop_code, stop_name, stop_lat, stop_lon,
            location_type, parent_station, wheelchair_boarding)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		len(stops), func(i int) []any {
			s := stops[i]
			return []any{s.StopID, s.Code, s.Name, s.Lat, s.Lon, s.LocationType, s.ParentStation, s.WheelchairBoarding}
		})
}

func LoadTrips(ctx context.Context, db *sql.DB, trips []gtfs.Trip) (int, error) {
	return execBatch(ctx, db, `
        INSERT INTO gtfs_trips (trip_id, route_id, service_id, trip_headsign,
            direction_id, block_id, shape_id)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		len(trips), func(i int) []any {
			t := trips[i]
			return []any{t.TripID, t.RouteID, t.ServiceID, t.Headsign, t.DirectionID, t.BlockID, t.ShapeID}
		})
}

func LoadStopTimes(ctx context.Context, db *sql.DB, stopTimes []gtfs.StopTime) (int, error) {
	total := 0
	for start := 0; start < len(stopTimes); start += stopTimesBatch {
		end := min(start+stopTimesBatch, len(stopTimes))
		batch := stopTimes[start:end]
		n, err := execBatch(ctx, db, `
            INSERT INTO gtfs_stop_times (trip_id, arrival_time, departure_time,
                stop_id, stop_sequence, pickup_type, drop_off_type, timepoint)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			len(batch), func(i int) []any {
				st := batch[i]
				return []any{st.TripID, st.ArrivalTime, st.DepartureTime, st.StopID, st.StopSequence, st.PickupType, st.DropOffType, st.Timepoint}
			})
		if err != nil {
			return total, err
		}
		total += n
		log.Info().Int("loaded", total).Int("total", len(stopTimes)).Msg("stop_times progress")
	}
	return total, nil
}

func LoadCalendar(ctx context.Context, db *sql.DB, cals []gtfs.Calendar) (int, error) {
	return execBatch(ctx, db, `
        INSERT INTO gtfs_calendar (service_id, monday, tuesday, wednesday,
            thursday, friday, saturday, sunday, start_date, end_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		len(cals), func(i int) []any {
			c := cals[i]
			return []any{c.ServiceID, c.Monday, c.Tuesday, c.Wednesday, c.Thursday, c.Friday, c.Saturday, c.Sunday, c.StartDate, c.EndDate}
		})
}

func LoadCalendarDates(ctx context.Context, db *sql.DB, dates []gtfs.CalendarDate) (int, error) {
	return execBatch(ctx, db, `
        INSERT INTO gtfs_calendar_dates (service_id, date, exception_type)
        VALUES ($1, $2, $3)`,
		len(dates), func(i int) []any {
			d := dates[i]
			return []any{d.ServiceID, d.Date, d.ExceptionType}
		})
}

// execBatch inserts n rows through one prepared statement in one transaction.
func execBatch(ctx context.Context, db *sql.DB, query string, n int, args func(i int) []any) (int, error) {
	if n == 0 {
		return 0, nil
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return 0, fmt.Errorf("insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return n, nil
}
