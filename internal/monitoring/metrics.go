package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application. A nil *Metrics
// is valid and records nothing, so components can run unmetered.
type Metrics struct {
	RequestsTotal  *prometheus.CounterVec
	ProcessedTotal *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	RowsWritten    prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_http_requests_total",
			Help: "The total number of HTTP requests issued, by client and status",
		}, []string{"client", "status"}),
		ProcessedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_urls_processed_total",
			Help: "The total number of product URLs processed, by outcome",
		}, []string{"outcome"}), // 'success', 'error', 'skipped', 'not_found'
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_errors_total",
			Help: "The total number of errors encountered",
		}, []string{"type"}), // e.g. 'fetch_failed', 'parse_failed', 'sink_failed'
		RowsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "scraper_rows_written_total",
			Help: "The total number of output rows written",
		}),
	}
}

func (m *Metrics) IncRequest(client string, status int) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(client, strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncProcessed(outcome string) {
	if m == nil {
		return
	}
	m.ProcessedTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncErrors(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsWritten.Add(float64(n))
}
