package service

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/edu-center-api/pkg/errors"
)

// MetricsService encapsulates Prometheus instrumentation for the enrollment engine and HTTP layer.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	enrollmentOps     *prometheus.CounterVec
	conflicts         prometheus.Counter
	capacityOverrides *prometheus.CounterVec
	alerts            *prometheus.CounterVec
	txRetries         prometheus.Counter
	notifications     *prometheus.CounterVec
	scanDuration      prometheus.Histogram
}

// NewMetricsService registers core Prometheus collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	enrollmentOps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_operations_total",
		Help: "Enrollment engine operations by operation and outcome code",
	}, []string{"operation", "result"})

	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_schedule_conflicts_total",
		Help: "Schedule conflicts reported to callers",
	})

	capacityOverrides := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_capacity_overrides_total",
		Help: "Capacity checks bypassed by an explicit override",
	}, []string{"operation"})

	alerts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "alerts_total",
		Help: "Alerts emitted or suppressed by deduplication",
	}, []string{"type", "outcome"})

	txRetries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "db_transaction_retries_total",
		Help: "Transactions retried after serialization failures or deadlocks",
	})

	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_total",
		Help: "Notification jobs by kind and outcome",
	}, []string{"kind", "outcome"})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "alert_scan_duration_seconds",
		Help:    "Duration of class lifecycle scans",
		Buckets: prometheus.DefBuckets,
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, enrollmentOps, conflicts, capacityOverrides, alerts, txRetries, notifications, scanDuration, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		enrollmentOps:     enrollmentOps,
		conflicts:         conflicts,
		capacityOverrides: capacityOverrides,
		alerts:            alerts,
		txRetries:         txRetries,
		notifications:     notifications,
		scanDuration:      scanDuration,
	}
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordEnrollmentOperation counts an engine operation labelled by its error code ("ok" on success).
func (m *MetricsService) RecordEnrollmentOperation(operation string, err error) {
	if m == nil {
		return
	}
	m.enrollmentOps.WithLabelValues(operation, resultLabel(err)).Inc()
}

// RecordConflicts adds reported schedule conflicts.
func (m *MetricsService) RecordConflicts(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.conflicts.Add(float64(n))
}

// RecordCapacityOverride counts an override use.
func (m *MetricsService) RecordCapacityOverride(operation string) {
	if m == nil {
		return
	}
	m.capacityOverrides.WithLabelValues(operation).Inc()
}

// RecordAlert counts an alert decision.
func (m *MetricsService) RecordAlert(alertType string, emitted bool) {
	if m == nil {
		return
	}
	outcome := "suppressed"
	if emitted {
		outcome = "emitted"
	}
	m.alerts.WithLabelValues(alertType, outcome).Inc()
}

// RecordTxRetry counts a retried transaction. Its signature matches database.WithRetryHook.
func (m *MetricsService) RecordTxRetry(attempt int, err error) {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

// RecordNotification counts a notification job outcome.
func (m *MetricsService) RecordNotification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

// ObserveScan records how long a lifecycle scan took.
func (m *MetricsService) ObserveScan(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(appErrors.FromError(err).Code)
}
