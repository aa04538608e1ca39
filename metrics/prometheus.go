// Package metrics exports operator traffic and registry counters to
// Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus records host metrics. It satisfies router.Observer and
// host.Recorder.
type Prometheus struct {
	requestDuration     *prometheus.HistogramVec
	requestsTotal       *prometheus.CounterVec
	registeredOperators prometheus.Gauge
	registeredEndpoints prometheus.Gauge
	loadFailures        prometheus.Counter
	reloads             prometheus.Counter
}

// NewPrometheus registers the collectors with registerer, or with the
// default registerer when nil.
func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registerer)

	return &Prometheus{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operatorhost_operator_request_duration_seconds",
				Help:    "Duration of operator requests in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operator", "method", "status"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operatorhost_operator_requests_total",
				Help: "Total number of operator requests",
			},
			[]string{"operator", "method", "status"},
		),
		registeredOperators: factory.NewGauge(prometheus.GaugeOpts{
			Name: "operatorhost_registered_operators",
			Help: "Number of operators currently registered",
		}),
		registeredEndpoints: factory.NewGauge(prometheus.GaugeOpts{
			Name: "operatorhost_registered_endpoints",
			Help: "Number of endpoints currently registered",
		}),
		loadFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "operatorhost_load_failures_total",
			Help: "Total number of operators that failed to load or register",
		}),
		reloads: factory.NewCounter(prometheus.CounterOpts{
			Name: "operatorhost_reloads_total",
			Help: "Total number of operator reloads",
		}),
	}
}

// ObserveRequest records one finished operator request.
func (p *Prometheus) ObserveRequest(operatorID, method string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	p.requestDuration.WithLabelValues(operatorID, method, code).Observe(duration.Seconds())
	p.requestsTotal.WithLabelValues(operatorID, method, code).Inc()
}

// SetRegistered publishes the current registry size.
func (p *Prometheus) SetRegistered(operators, endpoints int) {
	p.registeredOperators.Set(float64(operators))
	p.registeredEndpoints.Set(float64(endpoints))
}

// AddLoadFailures counts operators that could not be loaded.
func (p *Prometheus) AddLoadFailures(n int) {
	if n > 0 {
		p.loadFailures.Add(float64(n))
	}
}

// IncReloads counts a reload.
func (p *Prometheus) IncReloads() {
	p.reloads.Inc()
}

// Handler serves the metrics gathered by gatherer, or by the default
// gatherer when nil.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
