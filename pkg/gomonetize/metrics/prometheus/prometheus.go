package prommetrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics implements gomonetize.Metrics using Prometheus.
type Metrics struct {
	entitlementRefreshTotal    *prometheus.CounterVec
	entitlementRefreshDuration prometheus.Histogram
	purchaseTotal              *prometheus.CounterVec
	adThrottleDecisionsTotal   *prometheus.CounterVec
	consentResolutionsTotal    *prometheus.CounterVec
	telemetryEmitTotal         *prometheus.CounterVec
	storageOpsDuration         *prometheus.HistogramVec
	storageOpsErrors           *prometheus.CounterVec
}

// NewMetrics creates a new Prometheus metrics implementation.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		entitlementRefreshTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "entitlement_refresh_total",
			Help:      "Total number of entitlement refresh attempts.",
		}, []string{"premium", "success"}),

		entitlementRefreshDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "entitlement_refresh_duration_seconds",
			Help:      "Latency of entitlement refreshes.",
			Buckets:   prometheus.DefBuckets,
		}),

		purchaseTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purchase_total",
			Help:      "Total number of purchase attempts by outcome.",
		}, []string{"package", "outcome"}),

		adThrottleDecisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ad_throttle_decisions_total",
			Help:      "Total number of interstitial throttle decisions.",
		}, []string{"allowed", "reason"}),

		consentResolutionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consent_resolutions_total",
			Help:      "Total number of consent resolutions.",
		}, []string{"status", "personalized"}),

		telemetryEmitTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telemetry_emit_total",
			Help:      "Total number of telemetry submission attempts.",
		}, []string{"event", "success"}),

		storageOpsDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "storage_operation_duration_seconds",
			Help:      "Latency of storage operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),

		storageOpsErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_operation_errors_total",
			Help:      "Total number of storage operation errors.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordEntitlementRefresh(premium bool, duration time.Duration, err error) {
	m.entitlementRefreshTotal.WithLabelValues(
		strconv.FormatBool(premium), strconv.FormatBool(err == nil)).Inc()
	m.entitlementRefreshDuration.Observe(duration.Seconds())
}

func (m *Metrics) RecordPurchase(packageID, outcome string) {
	m.purchaseTotal.WithLabelValues(packageID, outcome).Inc()
}

func (m *Metrics) RecordAdThrottleDecision(allowed bool, reason string) {
	m.adThrottleDecisionsTotal.WithLabelValues(strconv.FormatBool(allowed), reason).Inc()
}

func (m *Metrics) RecordConsentResolution(status string, personalized bool) {
	m.consentResolutionsTotal.WithLabelValues(status, strconv.FormatBool(personalized)).Inc()
}

func (m *Metrics) RecordTelemetryEmit(event string, err error) {
	m.telemetryEmitTotal.WithLabelValues(event, strconv.FormatBool(err == nil)).Inc()
}

func (m *Metrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
	m.storageOpsDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if err != nil {
		m.storageOpsErrors.WithLabelValues(operation).Inc()
	}
}

// DefaultMetrics returns a Metrics implementation using the default Prometheus registerer.
func DefaultMetrics(namespace string) *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer, namespace)
}
