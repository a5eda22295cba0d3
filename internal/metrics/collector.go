package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leozw/mantenapp/internal/core"
)

type Collector struct {
	registry *prometheus.Registry

	// Alerts
	alertsCreated    *prometheus.CounterVec
	alertsSuppressed *prometheus.CounterVec
	alertsActive     *prometheus.GaugeVec

	// Ingestion
	ingestionsTotal   *prometheus.CounterVec
	ingestionDuration *prometheus.HistogramVec

	// HTTP API
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Probes
	probeChecksTotal   *prometheus.CounterVec
	probeCheckDuration *prometheus.HistogramVec

	// Worker
	siteDataPruned     prometheus.Counter
	lastSweepTimestamp prometheus.Gauge
}

// NewCollector registers every metric on reg. A nil registry gets a fresh one
// with the Go runtime and process collectors attached.
func NewCollector(reg *prometheus.Registry) *Collector {
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,

		alertsCreated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mantenapp_alerts_created_total",
				Help: "Alerts created from site telemetry",
			},
			[]string{"type", "severity"},
		),

		alertsSuppressed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mantenapp_alerts_suppressed_total",
				Help: "Derived alerts dropped because an active alert of the same type exists",
			},
			[]string{"type"},
		),

		alertsActive: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mantenapp_alerts_active",
				Help: "Currently active alerts across all sites",
			},
			[]string{"severity"},
		),

		ingestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mantenapp_telemetry_ingestions_total",
				Help: "Telemetry payloads received from site plugins",
			},
			[]string{"source", "outcome"},
		),

		ingestionDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mantenapp_telemetry_ingestion_duration_seconds",
				Help:    "Time spent storing a payload and deriving its alerts",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"source"},
		),

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mantenapp_http_requests_total",
				Help: "HTTP requests served by the API",
			},
			[]string{"method", "route", "status"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mantenapp_http_request_duration_seconds",
				Help:    "Latency of HTTP requests served by the API",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),

		probeChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mantenapp_probe_checks_total",
				Help: "On-demand site probe checks performed",
			},
			[]string{"check_type", "success"},
		),

		probeCheckDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mantenapp_probe_check_duration_seconds",
				Help:    "Duration of on-demand site probe checks",
				Buckets: []float64{.025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"check_type"},
		),

		siteDataPruned: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "mantenapp_site_data_pruned_total",
				Help: "Telemetry records removed by the retention sweep",
			},
		),

		lastSweepTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "mantenapp_worker_last_sweep_timestamp_seconds",
				Help: "Unix time of the last completed maintenance sweep",
			},
		),
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

func (c *Collector) RecordAlertCreated(alert *core.Alert) {
	c.alertsCreated.WithLabelValues(string(alert.Type), string(alert.Severity)).Inc()
}

func (c *Collector) RecordAlertSuppressed(alertType core.AlertType) {
	c.alertsSuppressed.WithLabelValues(string(alertType)).Inc()
}

// SetActiveAlerts replaces the active alert gauges. Severities missing from
// counts are reset to zero.
func (c *Collector) SetActiveAlerts(counts []core.SeverityCount) {
	for _, s := range core.Severities {
		c.alertsActive.WithLabelValues(string(s)).Set(0)
	}
	for _, sc := range counts {
		c.alertsActive.WithLabelValues(sc.Severity).Set(float64(sc.Count))
	}
}

func (c *Collector) RecordIngestion(source, outcome string, duration time.Duration) {
	c.ingestionsTotal.WithLabelValues(source, outcome).Inc()
	c.ingestionDuration.WithLabelValues(source).Observe(duration.Seconds())
}

func (c *Collector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (c *Collector) RecordProbe(probe *core.SiteProbe) {
	for checkType, result := range probe.Checks {
		c.probeChecksTotal.WithLabelValues(checkType, strconv.FormatBool(result.Success)).Inc()
		c.probeCheckDuration.WithLabelValues(checkType).Observe(result.ResponseTime / 1000)
	}
}

func (c *Collector) RecordSweep(pruned int64) {
	c.siteDataPruned.Add(float64(pruned))
	c.lastSweepTimestamp.SetToCurrentTime()
}
