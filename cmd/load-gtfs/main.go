package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"bus-collector/internal/config"
	"bus-collector/internal/db"
	"bus-collector/internal/gtfs"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func main() {
	gtfsDir := flag.String("gtfs-dir", "./gtfs", "directory containing GTFS CSV files")
	flag.Parse()

	if os.Getenv("LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config error")
	}

	ctx := context.Background()

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("db open error")
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("db ping error")
	}

	// Allow records with missing trailing columns
	gocsv.SetCSVReader(func(in io.Reader) gocsv.CSVReader {
		r := csv.NewReader(in)
		r.FieldsPerRecord = -1
		return r
	})

	var (
		routes        []gtfs.Route
		stops         []gtfs.Stop
		trips         []gtfs.Trip
		stopTimes     []gtfs.StopTime
		calendar      []gtfs.Calendar
		calendarDates []gtfs.CalendarDate
	)
	parseFile(*gtfsDir, "routes.txt", &routes)
	parseFile(*gtfsDir, "stops.txt", &stops)
	parseFile(*gtfsDir, "trips.txt", &trips)
	parseFile(*gtfsDir, "stop_times.txt", &stopTimes)
	parseFile(*gtfsDir, "calendar.txt", &calendar)
	parseFile(*gtfsDir, "calendar_dates.txt", &calendarDates)

	log.Info().Msg("recreating gtfs_* tables")
	if err := db.RecreateStaticTables(ctx, sqlDB); err != nil {
		log.Fatal().Err(err).Msg("recreate tables error")
	}

	start := time.Now()
	loadTable("routes", func() (int, error) { return db.LoadRoutes(ctx, sqlDB, routes) })
	loadTable("stops", func() (int, error) { return db.LoadStops(ctx, sqlDB, stops) })
	loadTable("trips", func() (int, error) { return db.LoadTrips(ctx, sqlDB, trips) })
	loadTable("stop_times", func() (int, error) { return db.LoadStopTimes(ctx, sqlDB, stopTimes) })
	loadTable("calendar", func() (int, error) { return db.LoadCalendar(ctx, sqlDB, calendar) })
	loadTable("calendar_dates", func() (int, error) { return db.LoadCalendarDates(ctx, sqlDB, calendarDates) })
	log.Info().Dur("elapsed", time.Since(start)).Msg("GTFS load complete")
}

func parseFile(dir, name string, out any) {
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("file", name).Msg("not found, skipping")
			return
		}
		log.Fatal().Str("file", name).Err(err).Msg("read error")
	}
	data = bytes.TrimPrefix(data, utf8BOM)
	if err := gocsv.UnmarshalBytes(data, out); err != nil {
		log.Fatal().Str("file", name).Err(err).Msg("csv parse error")
	}
}

func loadTable(name string, load func() (int, error)) {
	n, err := load()
	if err != nil {
		log.Fatal().Str("table", name).Err(err).Msg("load error")
	}
	log.Info().Str("table", name).Int("rows", n).Msg("loaded")
}
