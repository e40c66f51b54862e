package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics represents the collection of all Prometheus metrics for one scan
type Metrics struct {
	Registry *prometheus.Registry

	// OSV transport
	OSVRequestsTotal   *prometheus.CounterVec
	OSVRequestDuration *prometheus.HistogramVec

	// Scan results
	FormulaeScanned      prometheus.Gauge
	FormulaeSkipped      prometheus.Gauge
	FormulaeAffected     prometheus.Gauge
	VulnerabilitiesFound *prometheus.GaugeVec
	LastScanTimestamp    prometheus.Gauge
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.OSVRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "brew_vulns_osv_requests_total",
			Help: "Total number of requests sent to the OSV API",
		},
		[]string{"code", "method"},
	)

	m.OSVRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "brew_vulns_osv_request_duration_seconds",
			Help:    "Duration of OSV API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method"},
	)

	m.FormulaeScanned = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brew_vulns_formulae_scanned",
			Help: "Number of formulae queried against OSV in the last scan",
		},
	)

	m.FormulaeSkipped = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brew_vulns_formulae_skipped",
			Help: "Number of formulae without a supported source URL",
		},
	)

	m.FormulaeAffected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brew_vulns_formulae_affected",
			Help: "Number of formulae with at least one vulnerability",
		},
	)

	m.VulnerabilitiesFound = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "brew_vulns_vulnerabilities",
			Help: "Vulnerabilities reported by the last scan",
		},
		[]string{"severity"},
	)

	m.LastScanTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "brew_vulns_last_scan_timestamp_seconds",
			Help: "Unix time the last scan completed",
		},
	)

	m.Registry.MustRegister(
		m.OSVRequestsTotal,
		m.OSVRequestDuration,
		m.FormulaeScanned,
		m.FormulaeSkipped,
		m.FormulaeAffected,
		m.VulnerabilitiesFound,
		m.LastScanTimestamp,
	)

	return m
}

// InstrumentRoundTripper wraps next so every OSV request is counted and timed.
func (m *Metrics) InstrumentRoundTripper(next http.RoundTripper) http.RoundTripper {
	if m == nil {
		return next
	}
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperCounter(m.OSVRequestsTotal,
		promhttp.InstrumentRoundTripperDuration(m.OSVRequestDuration, next))
}

// RecordScan stores the outcome of a scan. bySeverity is keyed by display label.
func (m *Metrics) RecordScan(scanned, skipped, affected int, bySeverity map[string]int) {
	if m == nil {
		return
	}
	m.FormulaeScanned.Set(float64(scanned))
	m.FormulaeSkipped.Set(float64(skipped))
	m.FormulaeAffected.Set(float64(affected))
	for severity, count := range bySeverity {
		m.VulnerabilitiesFound.WithLabelValues(severity).Set(float64(count))
	}
	m.LastScanTimestamp.SetToCurrentTime()
}

// WriteTextfile writes the registry in the node_exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
