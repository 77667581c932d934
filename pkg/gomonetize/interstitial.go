package gomonetize

import (
	"context"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

// Google's public interstitial test unit, safe for development builds.
const TestInterstitialUnitID = "ca-app-pub-3940256099942544/1033173712"

// InterstitialPresenter ties an ad mediation interstitial to the ad
// throttle. Preloading is unthrottled and may happen at any time; only
// actual presentation consults the throttle.
type InterstitialPresenter struct {
	interstitial capability.Interstitial
	throttle     *AdThrottle
	logger       Logger
}

// NewInterstitialPresenter creates a presenter for the given ad unit. A nil
// ad mediation capability is treated as absent and yields an inert
// presenter.
func NewInterstitialPresenter(ads capability.AdMediation, throttle *AdThrottle, unitID string, logger Logger) (*InterstitialPresenter, error) {
	if throttle == nil {
		return nil, ErrStorageUnavailable
	}
	if ads == nil {
		ads = capability.NewNoopAdMediation()
	}
	if logger == nil {
		logger = &NoopLogger{}
	}

	return &InterstitialPresenter{
		interstitial: ads.CreateInterstitial(unitID),
		throttle:     throttle,
		logger:       logger,
	}, nil
}

// Preload starts loading the interstitial. Failures are swallowed: a missing
// ad is never an application error.
func (p *InterstitialPresenter) Preload(ctx context.Context) {
	if err := p.interstitial.Load(ctx); err != nil {
		p.logger.Debug("interstitial preload failed",
			Field{Key: "error", Value: err.Error()},
		)
	}
}

// MaybeShow presents the interstitial if the throttle grants it. Reports
// whether a show was attempted; show failures after a grant are swallowed
// (the grant is still counted, matching the persisted-state semantics).
func (p *InterstitialPresenter) MaybeShow(ctx context.Context) bool {
	if !p.throttle.CanShow(ctx) {
		return false
	}

	if err := p.interstitial.Show(ctx); err != nil {
		p.logger.Debug("interstitial show failed",
			Field{Key: "error", Value: err.Error()},
		)
	}
	return true
}

// AddEventListener forwards to the underlying interstitial so callers can
// chain a preload on AdEventClosed or similar.
func (p *InterstitialPresenter) AddEventListener(event capability.AdEventType, fn func()) (remove func()) {
	return p.interstitial.AddEventListener(event, fn)
}
