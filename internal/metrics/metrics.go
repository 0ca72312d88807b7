package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

type Collector struct {
	reg *prometheus.Registry

	Cycles          *prometheus.CounterVec // outcome label: ok|fetch_error|db_error|empty
	PositionsStored prometheus.Counter
	LastCycleRows   prometheus.Gauge

	FetchDuration  prometheus.Histogram
	InsertDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	FetchInterval prometheus.Gauge // seconds
}

func NewCollector(fetchInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "collector_cycles_total",
			Help: "Collection cycles by outcome.",
		}, []string{"outcome"}),
		PositionsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_positions_stored_total",
			Help: "Total vehicle position rows inserted.",
		}),
		LastCycleRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_last_cycle_rows",
			Help: "Rows inserted by the most recent cycle.",
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collector_fetch_duration_seconds",
			Help:    "Duration of feed fetch and decode.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		InsertDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "collector_insert_duration_seconds",
			Help:    "Duration of the batch insert.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "collector_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		FetchInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "collector_fetch_interval_seconds",
			Help: "Configured fetch interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.Cycles, c.PositionsStored, c.LastCycleRows,
		c.FetchDuration, c.InsertDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.FetchInterval,
	)

	c.FetchInterval.Set(fetchInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server error")
		}
	}()
	log.Info().Str("addr", addr).Msg("metrics listening")
	return srv
}
