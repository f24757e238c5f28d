// Package metrics exports generation counters for Prometheus.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe to use through a nil pointer; every method is then a no-op.
type Metrics struct {
	registry  *prometheus.Registry
	generated *prometheus.CounterVec
	discarded *prometheus.CounterVec
	batches   *prometheus.CounterVec
	keyRetry  *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		generated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockdata",
			Name:      "records_generated_total",
			Help:      "Records built and kept, by domain.",
		}, []string{"domain"}),
		discarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockdata",
			Name:      "records_discarded_total",
			Help:      "Records dropped because a field failed, by domain.",
		}, []string{"domain"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockdata",
			Name:      "batches_completed_total",
			Help:      "Batches finished, by domain.",
		}, []string{"domain"}),
		keyRetry: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mockdata",
			Name:      "key_collisions_total",
			Help:      "Random primary-key draws that hit an already used key, by field.",
		}, []string{"field"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "mockdata",
			Name:      "domain_duration_seconds",
			Help:      "Time spent generating one domain.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"domain"}),
	}
	m.registry.MustRegister(m.generated, m.discarded, m.batches, m.keyRetry, m.duration)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) BatchDone(domain string, generated, discarded int) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(domain).Inc()
	m.generated.WithLabelValues(domain).Add(float64(generated))
	m.discarded.WithLabelValues(domain).Add(float64(discarded))
}

func (m *Metrics) KeyCollisions(field string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.keyRetry.WithLabelValues(field).Add(float64(n))
}

func (m *Metrics) DomainDone(domain string, d time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(domain).Observe(d.Seconds())
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
