package gomonetize

import "time"

// Metrics defines the interface for tracking monetization operations.
type Metrics interface {
	// RecordEntitlementRefresh records an entitlement refresh attempt.
	RecordEntitlementRefresh(premium bool, duration time.Duration, err error)

	// RecordPurchase records a purchase attempt outcome
	// ("success", "cancelled", "failed").
	RecordPurchase(packageID, outcome string)

	// RecordAdThrottleDecision records a throttle decision and its reason
	// ("granted", "daily_cap", "cooldown").
	RecordAdThrottleDecision(allowed bool, reason string)

	// RecordConsentResolution records the final consent status and the
	// resulting personalization decision.
	RecordConsentResolution(status string, personalized bool)

	// RecordTelemetryEmit records a telemetry submission attempt.
	RecordTelemetryEmit(event string, err error)

	// RecordStorageOperation records the duration and status of a storage
	// operation.
	RecordStorageOperation(operation string, duration time.Duration, err error)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordEntitlementRefresh(premium bool, duration time.Duration, err error)  {}
func (n *NoopMetrics) RecordPurchase(packageID, outcome string)                                  {}
func (n *NoopMetrics) RecordAdThrottleDecision(allowed bool, reason string)                      {}
func (n *NoopMetrics) RecordConsentResolution(status string, personalized bool)                  {}
func (n *NoopMetrics) RecordTelemetryEmit(event string, err error)                               {}
func (n *NoopMetrics) RecordStorageOperation(operation string, duration time.Duration, err error) {
}
