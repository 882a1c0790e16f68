package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PoolMetrics observes one endpoint's connection pool. A nil-safe no-op
// implementation is returned when metrics are disabled, so pools never
// need to check whether instrumentation is on.
type PoolMetrics interface {
	// SetIdle updates the idle connection gauge for an endpoint
	SetIdle(endpoint string, n int)

	// SetActive updates the in-use connection gauge for an endpoint
	SetActive(endpoint string, n int)

	// RecordDial records a connection attempt and its outcome
	RecordDial(endpoint string, err error)

	// RecordEviction counts an idle connection dropped by the background
	// cycle or discarded on validation failure
	RecordEviction(endpoint string)
}

// OperationMetrics observes client file operations and the exchanges they
// perform.
type OperationMetrics interface {
	// RecordOperation records a completed file operation with its outcome
	RecordOperation(op string, duration time.Duration, err error)

	// RecordExchange records one request/response round trip by command
	RecordExchange(cmd byte, duration time.Duration, err error)
}

type poolMetrics struct {
	idle      *prometheus.GaugeVec
	active    *prometheus.GaugeVec
	dials     *prometheus.CounterVec
	evictions *prometheus.CounterVec
}

// NewPoolMetrics creates Prometheus-backed pool metrics, or a no-op
// implementation when the registry is not initialized.
func NewPoolMetrics() PoolMetrics {
	if !IsEnabled() {
		return noopPoolMetrics{}
	}

	factory := promauto.With(GetRegistry())
	return &poolMetrics{
		idle: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdfs_pool_idle_connections",
			Help: "Idle pooled connections per endpoint",
		}, []string{"endpoint"}),
		active: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fdfs_pool_active_connections",
			Help: "Connections currently checked out per endpoint",
		}, []string{"endpoint"}),
		dials: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fdfs_pool_dials_total",
			Help: "Connection attempts per endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		evictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fdfs_pool_evictions_total",
			Help: "Connections dropped by validation or the eviction cycle",
		}, []string{"endpoint"}),
	}
}

func (m *poolMetrics) SetIdle(endpoint string, n int) {
	m.idle.WithLabelValues(endpoint).Set(float64(n))
}

func (m *poolMetrics) SetActive(endpoint string, n int) {
	m.active.WithLabelValues(endpoint).Set(float64(n))
}

func (m *poolMetrics) RecordDial(endpoint string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.dials.WithLabelValues(endpoint, outcome).Inc()
}

func (m *poolMetrics) RecordEviction(endpoint string) {
	m.evictions.WithLabelValues(endpoint).Inc()
}

type operationMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	exchanges  *prometheus.CounterVec
}

// NewOperationMetrics creates Prometheus-backed operation metrics, or a
// no-op implementation when the registry is not initialized.
func NewOperationMetrics() OperationMetrics {
	if !IsEnabled() {
		return noopOperationMetrics{}
	}

	factory := promauto.With(GetRegistry())
	return &operationMetrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fdfs_operations_total",
			Help: "File operations per kind and outcome",
		}, []string{"operation", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fdfs_operation_duration_seconds",
			Help:    "File operation latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		exchanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "fdfs_exchanges_total",
			Help: "Request/response round trips per command and outcome",
		}, []string{"command", "outcome"}),
	}
}

func (m *operationMetrics) RecordOperation(op string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(duration.Seconds())
}

func (m *operationMetrics) RecordExchange(cmd byte, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.exchanges.WithLabelValues(commandName(cmd), outcome).Inc()
}

type noopPoolMetrics struct{}

func (noopPoolMetrics) SetIdle(string, int)       {}
func (noopPoolMetrics) SetActive(string, int)     {}
func (noopPoolMetrics) RecordDial(string, error)  {}
func (noopPoolMetrics) RecordEviction(string)     {}

type noopOperationMetrics struct{}

func (noopOperationMetrics) RecordOperation(string, time.Duration, error) {}
func (noopOperationMetrics) RecordExchange(byte, time.Duration, error)    {}
