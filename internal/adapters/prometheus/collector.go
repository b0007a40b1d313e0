// Package prometheus exports escalation metrics in the Prometheus format.
package prometheus

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/triage/internal/ports/primary"
)

// DefaultNamespace prefixes every exported metric.
const DefaultNamespace = "triage"

// MetricsSource supplies the snapshot read on every scrape.
type MetricsSource interface {
	GetEscalationMetrics() primary.Metrics
}

// Collector is a prometheus.Collector that reads an escalation metrics
// snapshot at scrape time, so the service keeps a single set of counters.
type Collector struct {
	source MetricsSource

	total               *prometheus.Desc
	byTier              *prometheus.Desc
	byStatus            *prometheus.Desc
	emergencies         *prometheus.Desc
	fallbacks           *prometheus.Desc
	overrides           *prometheus.Desc
	timeouts            *prometheus.Desc
	notifyFailures      *prometheus.Desc
	persistenceFailures *prometheus.Desc
	responded           *prometheus.Desc
	avgResponse         *prometheus.Desc
	successRate         *prometheus.Desc
	userSafetyRate      *prometheus.Desc
}

// NewCollector creates a Collector over source.
func NewCollector(namespace string, source MetricsSource) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, labels, nil)
	}
	return &Collector{
		source:              source,
		total:               desc("escalations_total", "Total number of escalations opened"),
		byTier:              desc("escalations_by_tier_total", "Escalations opened, by initial tier", "tier"),
		byStatus:            desc("escalations_current", "Escalations currently in each status", "status"),
		emergencies:         desc("emergency_escalations_total", "Escalations that required emergency services"),
		fallbacks:           desc("fallback_escalations_total", "Escalations opened through the safety fallback"),
		overrides:           desc("tier_overrides_total", "Manual tier overrides"),
		timeouts:            desc("escalation_timeouts_total", "Timeout sweep actions"),
		notifyFailures:      desc("notify_failures_total", "Failed responder notifications"),
		persistenceFailures: desc("persistence_failures_total", "Failed escalation writes"),
		responded:           desc("escalations_responded_total", "Escalations acknowledged by a responder"),
		avgResponse:         desc("average_response_seconds", "Average time from initiation to acknowledgement"),
		successRate:         desc("success_rate", "Resolved escalations over terminal escalations"),
		userSafetyRate:      desc("user_safety_rate", "Resolved escalations with safety achieved over resolved escalations"),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		c.total, c.byTier, c.byStatus, c.emergencies, c.fallbacks, c.overrides, c.timeouts,
		c.notifyFailures, c.persistenceFailures, c.responded, c.avgResponse, c.successRate, c.userSafetyRate,
	} {
		ch <- d
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	m := c.source.GetEscalationMetrics()

	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}
	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}

	counter(c.total, m.Total)
	for tier, v := range m.ByTier {
		counter(c.byTier, v, tier)
	}
	for status, v := range m.ByStatus {
		gauge(c.byStatus, float64(v), status)
	}
	counter(c.emergencies, m.Emergencies)
	counter(c.fallbacks, m.Fallbacks)
	counter(c.overrides, m.Overrides)
	counter(c.timeouts, m.Timeouts)
	counter(c.notifyFailures, m.NotifyFailures)
	counter(c.persistenceFailures, m.PersistenceFailures)
	counter(c.responded, m.Responded)
	gauge(c.avgResponse, m.AverageResponseTime.Seconds())
	gauge(c.successRate, m.SuccessRate)
	gauge(c.userSafetyRate, m.UserSafetyRate)
}

// Exporter owns a registry holding the escalation collector.
type Exporter struct {
	registry *prometheus.Registry
}

// NewExporter creates an Exporter with its own registry, so nothing else
// registered globally leaks into the triage endpoint.
func NewExporter(namespace string, source MetricsSource) *Exporter {
	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(namespace, source))
	return &Exporter{registry: reg}
}

// Registry returns the exporter's registry.
func (e *Exporter) Registry() *prometheus.Registry { return e.registry }

// Handler returns an HTTP handler that serves the metrics.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
