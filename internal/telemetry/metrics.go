package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HealthStates lists every value of the carrier health gauge's state label.
var HealthStates = []string{"unknown", "healthy", "degraded", "unhealthy"}

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	CarrierErrors   *prometheus.CounterVec
	CarrierCalls    *prometheus.CounterVec
	CarrierHealth   *prometheus.GaugeVec
	TokenRefreshes  *prometheus.CounterVec
	WaybillBacklog  *prometheus.GaugeVec
}

// NewMetrics creates metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipgate_requests_total",
				Help: "Total number of gateway operations by operation, carrier, and status",
			},
			[]string{"operation", "carrier", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shipgate_request_duration_seconds",
				Help:    "Gateway operation duration in seconds by operation and carrier",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "carrier"},
		),
		CarrierErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipgate_carrier_errors_total",
				Help: "Total carrier errors by carrier and error kind",
			},
			[]string{"carrier", "error_type"},
		),
		CarrierCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipgate_carrier_http_requests_total",
				Help: "Outbound carrier HTTP requests by carrier and outcome",
			},
			[]string{"carrier", "outcome"},
		),
		CarrierHealth: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shipgate_carrier_health",
				Help: "Carrier health state; the current state's series is 1",
			},
			[]string{"carrier", "state"},
		),
		TokenRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shipgate_token_refreshes_total",
				Help: "Carrier token refreshes by carrier",
			},
			[]string{"carrier"},
		),
		WaybillBacklog: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "shipgate_waybill_backlog",
				Help: "Pooled waybills available per carrier",
			},
			[]string{"carrier"},
		),
	}
}

// RecordRequest records a request metric.
func (m *Metrics) RecordRequest(operation, carrier, status string, duration float64) {
	m.RequestsTotal.WithLabelValues(operation, carrier, status).Inc()
	m.RequestDuration.WithLabelValues(operation, carrier).Observe(duration)
}

// RecordError records a carrier error metric.
func (m *Metrics) RecordError(carrier, errorType string) {
	m.CarrierErrors.WithLabelValues(carrier, errorType).Inc()
}

// RecordCarrierCall records one outbound carrier request.
func (m *Metrics) RecordCarrierCall(carrier, outcome string) {
	m.CarrierCalls.WithLabelValues(carrier, outcome).Inc()
}

// RecordTokenRefresh records a successful token refresh.
func (m *Metrics) RecordTokenRefresh(carrier string) {
	m.TokenRefreshes.WithLabelValues(carrier).Inc()
}

// SetHealth marks state as the carrier's current health state.
func (m *Metrics) SetHealth(carrier, state string) {
	for _, s := range HealthStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.CarrierHealth.WithLabelValues(carrier, s).Set(v)
	}
}

// SetWaybillBacklog records the pooled waybill count for a carrier.
func (m *Metrics) SetWaybillBacklog(carrier string, size int) {
	m.WaybillBacklog.WithLabelValues(carrier).Set(float64(size))
}
