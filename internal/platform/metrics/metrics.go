package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP holds request-level metrics shared by every route.
type HTTP struct {
	RequestDuration *prometheus.HistogramVec
	InFlight        prometheus.Gauge
}

// NewHTTP registers HTTP metrics on the default registerer.
func NewHTTP() *HTTP {
	return NewHTTPWithRegisterer(prometheus.DefaultRegisterer)
}

// NewHTTPWithRegisterer registers HTTP metrics on reg.
func NewHTTPWithRegisterer(reg prometheus.Registerer) *HTTP {
	factory := promauto.With(reg)
	return &HTTP{
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docflow_http_request_duration_seconds",
			Help:    "Latency of HTTP requests by route pattern, method and status",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		InFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docflow_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		}),
	}
}

// ObserveRequest records one finished request.
func (m *HTTP) ObserveRequest(route, method string, status int, start time.Time) {
	m.RequestDuration.WithLabelValues(route, method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
