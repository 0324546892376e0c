package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "garmin_importer"

// Metrics of one importer process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	fetched        prometheus.Counter
	persisted      prometheus.Counter
	skipped        prometheus.Counter
	failures       *prometheus.CounterVec
	runs           *prometheus.CounterVec
	runDuration    prometheus.Histogram
	lastPersisted  prometheus.Gauge
	lastRunSuccess prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_fetched_total",
			Help:      "Number of activities returned by Garmin Connect.",
		}),
		persisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_persisted_total",
			Help:      "Number of activities archived (artifacts and metadata).",
		}),
		skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activities_skipped_total",
			Help:      "Number of fetched activities that were already archived.",
		}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Number of failed runs grouped by failure kind.",
		}, []string{"kind"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Number of importer runs grouped by final status.",
		}, []string{"status"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of an importer run.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		lastPersisted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_activity_persisted_timestamp_seconds",
			Help:      "Begin timestamp of the most recent archived activity.",
		}),
		lastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run.",
		}),
	}
	m.registry.MustRegister(m.fetched, m.persisted, m.skipped, m.failures, m.runs, m.runDuration, m.lastPersisted, m.lastRunSuccess)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordFetched(n int) {
	if m == nil {
		return
	}
	m.fetched.Add(float64(n))
}

func (m *Metrics) RecordSkipped() {
	if m == nil {
		return
	}
	m.skipped.Inc()
}

// RecordPersisted counts one archived activity and moves the watermark gauge.
func (m *Metrics) RecordPersisted(beginTimestampMillis int64) {
	if m == nil {
		return
	}
	m.persisted.Inc()
	m.lastPersisted.Set(float64(time.UnixMilli(beginTimestampMillis).Unix()))
}

func (m *Metrics) RecordFailure(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordRun(status string, started, finished time.Time) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(finished.Sub(started).Seconds())
	if status == "SUCCESS" {
		m.lastRunSuccess.Set(float64(finished.Unix()))
	}
}

// Push sends the registry to a Pushgateway. Functions are too short-lived to be scraped.
func (m *Metrics) Push(ctx context.Context, gatewayURL, job, instance string) error {
	if m == nil || gatewayURL == "" {
		return nil
	}
	p := push.New(gatewayURL, job).Gatherer(m.registry)
	if instance != "" {
		p = p.Grouping("instance", instance)
	}
	return p.AddContext(ctx)
}
