// Package metrics exposes Prometheus instrumentation for the session
// capture, storage, and restore pipeline. Metrics live in a private
// registry served by the gateway's /metrics endpoint.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type coreMetrics struct {
	registry *prometheus.Registry

	snapshotsTotal   *prometheus.CounterVec
	snapshotDuration prometheus.Histogram
	probeFailures    prometheus.Counter
	sessionsStored   prometheus.Gauge
	storeErrorsTotal *prometheus.CounterVec
	restoresTotal    *prometheus.CounterVec
	crashRecoveries  prometheus.Counter
	debounceFires    prometheus.Counter
	rpcRequestsTotal *prometheus.CounterVec
	gatewayClients   prometheus.Gauge
	scrollRestores   *prometheus.CounterVec
}

var (
	once sync.Once
	inst *coreMetrics
)

func get() *coreMetrics {
	once.Do(func() {
		registry := prometheus.NewRegistry()

		m := &coreMetrics{
			registry: registry,
			snapshotsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "snapshots_total",
					Help: "Total snapshots built, by record kind.",
				},
				[]string{"kind"},
			),
			snapshotDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "snapshot_duration_seconds",
					Help:    "Snapshot build duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			probeFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "scroll_probe_failures_total",
					Help: "Total per-tab scroll probes that fell back to the origin offset.",
				},
			),
			sessionsStored: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "sessions_stored",
					Help: "Current number of session records in the store.",
				},
			),
			storeErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "store_errors_total",
					Help: "Total storage I/O failures, by operation.",
				},
				[]string{"op"},
			),
			restoresTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "restores_total",
					Help: "Total session restore attempts, by status.",
				},
				[]string{"status"},
			),
			crashRecoveries: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "crash_recoveries_total",
					Help: "Total crash recovery records created at startup.",
				},
			),
			debounceFires: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "debounce_fires_total",
					Help: "Total debounced auto-save refreshes fired.",
				},
			),
			rpcRequestsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "rpc_requests_total",
					Help: "Total gateway RPC requests, by method and status.",
				},
				[]string{"method", "status"},
			),
			gatewayClients: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "gateway_clients_connected",
					Help: "Current number of connected gateway clients.",
				},
			),
			scrollRestores: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scroll_restores_total",
					Help: "Total scheduled scroll restorations, by status.",
				},
				[]string{"status"},
			),
		}

		registry.MustRegister(
			m.snapshotsTotal,
			m.snapshotDuration,
			m.probeFailures,
			m.sessionsStored,
			m.storeErrorsTotal,
			m.restoresTotal,
			m.crashRecoveries,
			m.debounceFires,
			m.rpcRequestsTotal,
			m.gatewayClients,
			m.scrollRestores,
		)

		inst = m
	})
	return inst
}

// EnsureRegistered forces metric registration. Safe to call from any
// package init path.
func EnsureRegistered() {
	get()
}

// Handler returns the HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.HandlerFor(get().registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordSnapshot records a completed snapshot build.
func RecordSnapshot(kind string, d time.Duration) {
	m := get()
	m.snapshotsTotal.WithLabelValues(kind).Inc()
	m.snapshotDuration.Observe(d.Seconds())
}

// RecordProbeFailure counts a scroll probe that degraded to the origin.
func RecordProbeFailure() {
	get().probeFailures.Inc()
}

// SetSessionsStored sets the stored session gauge.
func SetSessionsStored(n int) {
	get().sessionsStored.Set(float64(n))
}

// RecordStoreError counts a storage I/O failure for an operation.
func RecordStoreError(op string) {
	get().storeErrorsTotal.WithLabelValues(op).Inc()
}

// RecordRestore counts a restore attempt with its outcome.
func RecordRestore(status string) {
	get().restoresTotal.WithLabelValues(status).Inc()
}

// RecordCrashRecovery counts a crash recovery record created at startup.
func RecordCrashRecovery() {
	get().crashRecoveries.Inc()
}

// RecordDebounceFire counts a debounced auto-save refresh firing.
func RecordDebounceFire() {
	get().debounceFires.Inc()
}

// RecordRPCRequest counts a gateway RPC request with its outcome.
func RecordRPCRequest(method, status string) {
	get().rpcRequestsTotal.WithLabelValues(method, status).Inc()
}

// SetGatewayClients sets the connected client gauge.
func SetGatewayClients(n int) {
	get().gatewayClients.Set(float64(n))
}

// RecordScrollRestore counts a scheduled scroll restoration outcome.
func RecordScrollRestore(status string) {
	get().scrollRestores.WithLabelValues(status).Inc()
}
