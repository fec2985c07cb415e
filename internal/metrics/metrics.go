package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Bias metrics
	biasCalculations *prometheus.CounterVec
	biasScore        *prometheus.GaugeVec
	biasFallbacks    *prometheus.CounterVec
	refreshCycles    prometheus.Counter
	refreshDuration  prometheus.Histogram
	sourceErrors     *prometheus.CounterVec
	streamClients    prometheus.Gauge
	alertsTotal      *prometheus.CounterVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	r.biasCalculations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketbias_calculations_total",
			Help: "Total number of bias calculations",
		},
		[]string{"index", "bias"},
	)
	r.biasScore = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketbias_score",
			Help: "Latest composite bias score per index",
		},
		[]string{"index"},
	)
	r.biasFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketbias_fallbacks_total",
			Help: "Total number of fallback bias records served",
		},
		[]string{"index", "reason"},
	)
	r.refreshCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "marketbias_refresh_cycles_total",
			Help: "Total number of refresh cycles completed",
		},
	)
	r.refreshDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketbias_refresh_duration_seconds",
			Help:    "Refresh cycle duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)
	r.sourceErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketbias_source_errors_total",
			Help: "Total number of data source errors",
		},
		[]string{"source", "kind"},
	)
	r.streamClients = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketbias_stream_clients",
			Help: "Number of connected stream clients",
		},
	)

	r.alertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketbias_alerts_total",
			Help: "Total number of bias change alerts delivered per notifier",
		},
		[]string{"notifier", "status"},
	)

	reg.MustRegister(r.biasCalculations)
	reg.MustRegister(r.biasScore)
	reg.MustRegister(r.biasFallbacks)
	reg.MustRegister(r.refreshCycles)
	reg.MustRegister(r.refreshDuration)
	reg.MustRegister(r.sourceErrors)
	reg.MustRegister(r.streamClients)
	reg.MustRegister(r.alertsTotal)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordBias records a computed bias and its score.
func (r *Registry) RecordBias(index, bias string, score int) {
	r.biasCalculations.WithLabelValues(index, bias).Inc()
	r.biasScore.WithLabelValues(index).Set(float64(score))
}

// RecordFallback records a fallback record served for an index.
func (r *Registry) RecordFallback(index, reason string) {
	r.biasFallbacks.WithLabelValues(index, reason).Inc()
}

// RecordRefresh records a refresh cycle completion.
func (r *Registry) RecordRefresh(duration float64) {
	r.refreshCycles.Inc()
	r.refreshDuration.Observe(duration)
}

// RecordSourceError records a failed fetch of one data kind.
func (r *Registry) RecordSourceError(source, kind string) {
	r.sourceErrors.WithLabelValues(source, kind).Inc()
}

// SetStreamClients sets the number of connected stream clients.
func (r *Registry) SetStreamClients(count int) {
	r.streamClients.Set(float64(count))
}

// RecordAlert records one alert delivery attempt; status is "sent" or "failed".
func (r *Registry) RecordAlert(notifier, status string) {
	r.alertsTotal.WithLabelValues(notifier, status).Inc()
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
