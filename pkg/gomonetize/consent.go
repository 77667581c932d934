package gomonetize

import (
	"context"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

// ConsentGate resolves whether personalized advertising is permitted,
// presenting a consent form only when the regulatory capability requires it.
//
// The fallback is asymmetric and deliberate: an absent capability means a
// non-regulated environment and resolves permissive, while a present
// capability that reports anything other than "obtained" resolves
// restrictive. The two paths encode a regulatory default and must not be
// unified.
type ConsentGate struct {
	consent capability.RegulatoryConsent
	logger  Logger
	metrics Metrics
}

// ConsentGateConfig holds optional consent gate collaborators.
type ConsentGateConfig struct {
	Logger  Logger
	Metrics Metrics
}

// NewConsentGate creates a consent gate over the given capability. A nil
// capability is treated as absent.
func NewConsentGate(consent capability.RegulatoryConsent, config ConsentGateConfig) *ConsentGate {
	if consent == nil {
		consent = capability.NewNoopRegulatoryConsent()
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}

	return &ConsentGate{
		consent: consent,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
}

// Resolve determines the session's consent state. When the capability
// reports that consent is required, it presents the consent form and
// suspends until the user dismisses it, then re-queries.
//
// Errors before any status is known are treated like an unreachable
// capability and resolve permissive. Once "required" has been reported,
// failure to load, show or re-query the form fails closed.
func (g *ConsentGate) Resolve(ctx context.Context) ConsentState {
	if !g.consent.Available() {
		g.metrics.RecordConsentResolution(string(capability.ConsentStatusUnavailable), true)
		return ConsentState{PersonalizedAdsAllowed: true}
	}

	if err := g.consent.RequestInfoUpdate(ctx); err != nil {
		g.logger.Warn("consent info update failed, treating as non-regulated",
			Field{Key: "error", Value: err.Error()},
		)
		g.metrics.RecordConsentResolution("update_failed", true)
		return ConsentState{PersonalizedAdsAllowed: true}
	}

	status, err := g.consent.ConsentStatus(ctx)
	if err != nil {
		g.logger.Warn("consent status query failed, treating as non-regulated",
			Field{Key: "error", Value: err.Error()},
		)
		g.metrics.RecordConsentResolution("status_failed", true)
		return ConsentState{PersonalizedAdsAllowed: true}
	}

	if status == capability.ConsentStatusRequired {
		status = g.presentForm(ctx)
	}

	personalized := status == capability.ConsentStatusObtained
	g.metrics.RecordConsentResolution(string(status), personalized)
	g.logger.Info("consent resolved",
		Field{Key: "status", Value: string(status)},
		Field{Key: "personalized", Value: personalized},
	)
	return ConsentState{PersonalizedAdsAllowed: personalized}
}

// presentForm loads and shows the consent form, then re-queries the status.
// Consent is known to be required at this point, so any failure leaves the
// requirement unmet and maps to a non-obtained status.
func (g *ConsentGate) presentForm(ctx context.Context) capability.ConsentStatus {
	form, err := g.consent.LoadForm(ctx)
	if err != nil {
		g.logger.Warn("consent form load failed",
			Field{Key: "error", Value: err.Error()},
		)
		return capability.ConsentStatusRequired
	}

	if err := form.Show(ctx); err != nil {
		g.logger.Warn("consent form show failed",
			Field{Key: "error", Value: err.Error()},
		)
		return capability.ConsentStatusRequired
	}

	status, err := g.consent.ConsentStatus(ctx)
	if err != nil {
		g.logger.Warn("consent re-query failed",
			Field{Key: "error", Value: err.Error()},
		)
		return capability.ConsentStatusRequired
	}
	return status
}

// TrackingGate wraps the app-tracking-transparency style prompt. Tracking is
// allowed only on an explicit granted status; absence or failure means
// denied.
type TrackingGate struct {
	tracking capability.TrackingConsent
	logger   Logger
}

// NewTrackingGate creates a tracking gate over the given capability. A nil
// capability is treated as absent.
func NewTrackingGate(tracking capability.TrackingConsent, logger Logger) *TrackingGate {
	if tracking == nil {
		tracking = capability.NewNoopTrackingConsent()
	}
	if logger == nil {
		logger = &NoopLogger{}
	}
	return &TrackingGate{tracking: tracking, logger: logger}
}

// Request presents the tracking permission prompt when available and reports
// whether tracking was granted.
func (g *TrackingGate) Request(ctx context.Context) bool {
	if !g.tracking.Available() {
		return false
	}

	status, err := g.tracking.RequestTrackingPermissions(ctx)
	if err != nil {
		g.logger.Debug("tracking permission request failed",
			Field{Key: "error", Value: err.Error()},
		)
		return false
	}
	return status == capability.TrackingGranted
}
