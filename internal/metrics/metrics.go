// Package metrics exposes node counters in the Prometheus format.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/funvibe/funledger/internal/ledger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors of one node. Each node owns its registry,
// so tests can create as many as they like.
type Metrics struct {
	Registry   *prometheus.Registry
	Statements *prometheus.CounterVec
	Mana       *prometheus.CounterVec
	Height     prometheus.Gauge
	BlockTime  prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Statements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "funledger",
			Name:      "statements_total",
			Help:      "Applied statements by kind and outcome.",
		}, []string{"kind", "status", "error"}),
		Mana: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "funledger",
			Name:      "mana_used_total",
			Help:      "Rewrites spent by statement kind.",
		}, []string{"kind"}),
		Height: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "funledger",
			Name:      "block_height",
			Help:      "Height of the last applied block.",
		}),
		BlockTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "funledger",
			Name:      "block_apply_seconds",
			Help:      "Time spent applying one block.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
	}
	m.Registry.MustRegister(m.Statements, m.Mana, m.Height, m.BlockTime)
	return m
}

// ObserveBlock records the results of the block at height.
func (m *Metrics) ObserveBlock(height uint64, results []ledger.Result, took time.Duration) {
	for _, r := range results {
		errKind := ""
		if r.Err != nil {
			errKind = r.Err.Kind.String()
		}
		m.Statements.WithLabelValues(r.Kind, r.Status.String(), errKind).Inc()
		m.Mana.WithLabelValues(r.Kind).Add(float64(r.ManaUsed))
	}
	m.Height.Set(float64(height))
	m.BlockTime.Observe(took.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	select {
	case <-ctx.Done():
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdown)
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
