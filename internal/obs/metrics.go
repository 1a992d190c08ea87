package obs

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var defaultLatencyBucketsMs = []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500}

// HTTPMetrics holds the request collectors exposed on /metrics.
type HTTPMetrics struct {
	ReqTotal *prometheus.CounterVec
	ReqDur   *prometheus.HistogramVec
	RespSize *prometheus.HistogramVec
	InFlight prometheus.Gauge
	// SkipPaths are served without being measured.
	SkipPaths map[string]struct{}
}

// NewHTTPMetrics registers request collectors on reg, reusing any that are
// already there. Latency buckets are in milliseconds.
func NewHTTPMetrics(namespace string, buckets []float64, reg prometheus.Registerer) *HTTPMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if len(buckets) == 0 {
		buckets = defaultLatencyBucketsMs
	}
	buckets = slices.Compact(slices.Sorted(slices.Values(buckets)))

	return &HTTPMetrics{
		ReqTotal: registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route pattern and status.",
		}, []string{"method", "route", "status"})),
		ReqDur: registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   buckets,
		}, []string{"method", "route"})),
		RespSize: registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response body size in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 4, 6),
		}, []string{"route"})),
		InFlight: registerOrReuse(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_in_flight_requests",
			Help:      "HTTP requests currently being served.",
		})),
		SkipPaths: map[string]struct{}{"/metrics": {}, "/health/live": {}, "/health/ready": {}},
	}
}

// Skip reports whether path is excluded from measurement.
func (m *HTTPMetrics) Skip(path string) bool {
	_, ok := m.SkipPaths[path]
	return ok
}

// Observe records one finished request.
func (m *HTTPMetrics) Observe(method, route string, status int, bytes int64, elapsed time.Duration) {
	m.ReqTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.ReqDur.WithLabelValues(method, route).Observe(DurationMillis(elapsed))
	if m.RespSize != nil {
		m.RespSize.WithLabelValues(route).Observe(float64(bytes))
	}
}

// ParseBucketsCSV reads "5,10,25" style bucket bounds, dropping entries that
// are not positive numbers.
func ParseBucketsCSV(csv string) []float64 {
	var out []float64
	for _, field := range strings.FieldsFunc(csv, func(r rune) bool { return r == ',' || r == ' ' }) {
		if v, err := strconv.ParseFloat(field, 64); err == nil && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

// DurationMillis converts d to fractional milliseconds.
func DurationMillis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// registerOrReuse returns the collector already registered under the same
// descriptor when there is one, so tests and restarts can share a registry.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	out := c
	mustRegisterCollector(reg, c, func(existing prometheus.Collector) {
		if same, ok := existing.(C); ok {
			out = same
		}
	})
	return out
}
