package collector

import (
	"context"
	"fmt"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/rs/zerolog/log"

	"bus-collector/internal/feed"
	"bus-collector/internal/gtfs"
	"bus-collector/internal/metrics"
)

// Fetcher downloads and decodes one feed snapshot.
type Fetcher interface {
	Fetch(ctx context.Context) (*gtfsrt.FeedMessage, error)
}

// Store persists one batch of observations.
type Store interface {
	InsertPositions(ctx context.Context, positions []gtfs.VehiclePosition) (int, error)
}

// Publisher mirrors stored observations to live consumers.
type Publisher interface {
	PublishPosition(pos gtfs.VehiclePosition) error
}

// Collector runs the fetch-decode-store cycle on a fixed interval. A failed
// cycle is logged and skipped; the next tick tries again.
type Collector struct {
	fetcher  Fetcher
	store    Store
	pub      Publisher // nil disables fan-out
	metrics  *metrics.Collector
	interval time.Duration
	now      func() time.Time
}

func New(fetcher Fetcher, store Store, pub Publisher, m *metrics.Collector, interval time.Duration) *Collector {
	return &Collector{
		fetcher:  fetcher,
		store:    store,
		pub:      pub,
		metrics:  m,
		interval: interval,
		now:      time.Now,
	}
}

// Run blocks until ctx is cancelled. The first cycle starts immediately,
// then one per tick.
func (c *Collector) Run(ctx context.Context) {
	log.Info().Dur("interval", c.interval).Msg("collector started")

	c.runCycle(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("collector stopped")
			return
		case <-ticker.C:
			c.runCycle(ctx)
		}
	}
}

func (c *Collector) runCycle(ctx context.Context) {
	n, err := c.CollectOnce(ctx)
	switch {
	case err != nil:
		log.Error().Err(err).Msg("collection cycle failed")
	case n == 0:
		log.Warn().Msg("no valid records to insert")
	default:
		log.Info().Int("count", n).Msg("stored bus positions")
	}
}

// CollectOnce performs one fetch-decode-store pass and returns the number of
// rows inserted. Every failure is returned, never panicked, so the loop can
// keep its schedule.
func (c *Collector) CollectOnce(ctx context.Context) (int, error) {
	fetchStart := time.Now()
	msg, err := c.fetcher.Fetch(ctx)
	c.observeFetch(time.Since(fetchStart))
	if err != nil {
		c.countCycle("fetch_error")
		return 0, fmt.Errorf("fetch: %w", err)
	}

	positions := feed.Extract(msg, c.now().UTC())
	if len(positions) == 0 {
		c.countCycle("empty")
		c.setLastRows(0)
		return 0, nil
	}

	insertStart := time.Now()
	n, err := c.store.InsertPositions(ctx, positions)
	c.observeInsert(time.Since(insertStart))
	if err != nil {
		c.countCycle("db_error")
		return 0, fmt.Errorf("store positions: %w", err)
	}

	c.countCycle("ok")
	c.setLastRows(n)
	if c.metrics != nil {
		c.metrics.PositionsStored.Add(float64(n))
	}

	if c.pub != nil {
		for _, pos := range positions {
			if err := c.pub.PublishPosition(pos); err != nil {
				log.Warn().Err(err).Str("vehicle", pos.VehicleID).Msg("publish failed")
			}
		}
	}

	return n, nil
}

func (c *Collector) countCycle(outcome string) {
	if c.metrics != nil {
		c.metrics.Cycles.WithLabelValues(outcome).Inc()
	}
}

func (c *Collector) setLastRows(n int) {
	if c.metrics != nil {
		c.metrics.LastCycleRows.Set(float64(n))
	}
}

func (c *Collector) observeFetch(d time.Duration) {
	if c.metrics != nil {
		c.metrics.FetchDuration.Observe(d.Seconds())
	}
}

func (c *Collector) observeInsert(d time.Duration) {
	if c.metrics != nil {
		c.metrics.InsertDuration.Observe(d.Seconds())
	}
}
