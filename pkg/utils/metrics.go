package utils

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the prometheus registry and the handful of metrics
// the scan pipeline reports. Metrics are labeled by provider or phase, never
// by profile; profile identifiers must not leak into a metrics endpoint.
type MetricsCollector struct {
	registry *prometheus.Registry

	ScansTotal        *prometheus.CounterVec
	ScanDuration      *prometheus.HistogramVec
	FindingsValidated prometheus.Counter
	FindingsRejected  prometheus.Counter
	ProviderErrors    *prometheus.CounterVec
	ProviderFindings  *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
	ProfileRiskScore  prometheus.Histogram
	ActiveScans       prometheus.Gauge
}

func NewMetricsCollector(enableRuntimeMetrics bool) *MetricsCollector {
	reg := prometheus.NewRegistry()
	if enableRuntimeMetrics {
		_ = reg.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		_ = reg.Register(collectors.NewGoCollector())
	}

	m := &MetricsCollector{
		registry: reg,
		ScansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veilscan_scans_total",
			Help: "Completed profile scans by outcome.",
		}, []string{"status"}),
		ScanDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "veilscan_scan_duration_seconds",
			Help:    "Wall time per scan phase.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"phase"}),
		FindingsValidated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veilscan_findings_validated_total",
			Help: "Candidate findings accepted by the validator.",
		}),
		FindingsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "veilscan_findings_rejected_total",
			Help: "Candidate findings dropped by the validator.",
		}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veilscan_provider_errors_total",
			Help: "Intelligence provider failures.",
		}, []string{"provider"}),
		ProviderFindings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veilscan_provider_findings_total",
			Help: "Raw findings returned per provider.",
		}, []string{"provider"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "veilscan_notifications_sent_total",
			Help: "Alert webhook deliveries by outcome.",
		}, []string{"status"}),
		ProfileRiskScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "veilscan_profile_risk_score",
			Help:    "Distribution of computed overall risk scores.",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		ActiveScans: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "veilscan_active_scans",
			Help: "Scans currently in flight.",
		}),
	}

	reg.MustRegister(
		m.ScansTotal, m.ScanDuration, m.FindingsValidated, m.FindingsRejected,
		m.ProviderErrors, m.ProviderFindings, m.NotificationsSent,
		m.ProfileRiskScore, m.ActiveScans,
	)
	return m
}

func (m *MetricsCollector) TimePhase(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	m.ScanDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
	return err
}

func (m *MetricsCollector) Registry() *prometheus.Registry { return m.registry }

func (m *MetricsCollector) RecordProviderError(provider string) {
	m.ProviderErrors.WithLabelValues(provider).Inc()
}

func (m *MetricsCollector) RecordProviderFindings(provider string, count int) {
	m.ProviderFindings.WithLabelValues(provider).Add(float64(count))
}

// StartServer serves /metrics until the context is cancelled.
func (m *MetricsCollector) StartServer(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("metrics server error: %w", err)
	}
}
