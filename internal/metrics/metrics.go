// Package metrics exposes sampler outcomes and the latest derived values as
// Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

// Sample outcomes used as the outcome label.
const (
	OutcomeOK            = "ok"
	OutcomeFetchFailed   = "fetch_failed"
	OutcomeDeriveFailed  = "derive_failed"
	OutcomePersistFailed = "persist_failed"
)

// Collector holds the sampler metrics registered on one registry.
type Collector struct {
	registry          *prometheus.Registry
	samples           *prometheus.CounterVec
	sampleDuration    *prometheus.HistogramVec
	profitOpportunity *prometheus.GaugeVec
	midPrice          *prometheus.GaugeVec
}

// New registers the sampler metrics, plus the Go and process collectors, on a
// fresh registry.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		samples: f.NewCounterVec(prometheus.CounterOpts{
			Name: "booksampler_samples_total",
			Help: "Sampled targets by outcome.",
		}, []string{"exchange", "symbol", "outcome"}),
		sampleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "booksampler_sample_duration_seconds",
			Help:    "Time from fetch start to derived snapshot.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}, []string{"exchange"}),
		profitOpportunity: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booksampler_profit_opportunity",
			Help: "Latest profit opportunity per target.",
		}, []string{"exchange", "symbol"}),
		midPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "booksampler_mid_price",
			Help: "Latest mid price per target.",
		}, []string{"exchange", "symbol"}),
	}
}

// ObserveOutcome counts one target result.
func (c *Collector) ObserveOutcome(exchange, symbol, outcome string) {
	c.samples.WithLabelValues(exchange, symbol, outcome).Inc()
}

// ObserveSnapshot records the duration and derived values of a snapshot.
func (c *Collector) ObserveSnapshot(exchange, symbol string, runLength time.Duration, mid, profit decimal.Decimal) {
	c.sampleDuration.WithLabelValues(exchange).Observe(runLength.Seconds())
	c.midPrice.WithLabelValues(exchange, symbol).Set(mid.InexactFloat64())
	c.profitOpportunity.WithLabelValues(exchange, symbol).Set(profit.InexactFloat64())
}

// Registry returns the registry the metrics live on.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Serve listens on addr and serves /metrics until ctx is cancelled.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics: listen %s: %w", addr, err)
	}
}
