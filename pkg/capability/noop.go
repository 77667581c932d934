package capability

import "context"

// NoopCommerce is the absent-commerce implementation. Queries return neutral
// defaults (no entitlements, empty offerings) and purchases fail with
// ErrUnavailable, so callers degrade to the non-premium path without
// special-casing.
type NoopCommerce struct{}

// NewNoopCommerce creates an absent commerce capability.
func NewNoopCommerce() *NoopCommerce {
	return &NoopCommerce{}
}

func (c *NoopCommerce) Available() bool { return false }

func (c *NoopCommerce) Configure(_ context.Context, _ ConfigureRequest) error { return nil }

func (c *NoopCommerce) GetCustomerInfo(_ context.Context) (*CustomerInfo, error) {
	return &CustomerInfo{Entitlements: Entitlements{Active: map[string]bool{}}}, nil
}

func (c *NoopCommerce) GetOfferings(_ context.Context) (*Offerings, error) {
	return &Offerings{All: map[string]*Offering{}}, nil
}

func (c *NoopCommerce) PurchasePackage(_ context.Context, _ *Package) (*PurchaseResult, error) {
	return nil, ErrUnavailable
}

func (c *NoopCommerce) RestorePurchases(_ context.Context) (*CustomerInfo, error) {
	return nil, ErrUnavailable
}

func (c *NoopCommerce) AddCustomerInfoUpdateListener(_ func(*CustomerInfo)) (remove func()) {
	return func() {}
}

// NoopAdMediation hands out interstitials that load instantly, fire no
// events and show into the void.
type NoopAdMediation struct{}

// NewNoopAdMediation creates an absent ad mediation capability.
func NewNoopAdMediation() *NoopAdMediation {
	return &NoopAdMediation{}
}

func (a *NoopAdMediation) Available() bool { return false }

func (a *NoopAdMediation) CreateInterstitial(_ string) Interstitial {
	return &noopInterstitial{}
}

type noopInterstitial struct{}

func (i *noopInterstitial) Load(_ context.Context) error { return nil }

func (i *noopInterstitial) AddEventListener(_ AdEventType, _ func()) (remove func()) {
	return func() {}
}

func (i *noopInterstitial) Show(_ context.Context) error { return nil }

// NoopTrackingConsent always reports tracking as denied.
type NoopTrackingConsent struct{}

// NewNoopTrackingConsent creates an absent tracking consent capability.
func NewNoopTrackingConsent() *NoopTrackingConsent {
	return &NoopTrackingConsent{}
}

func (t *NoopTrackingConsent) Available() bool { return false }

func (t *NoopTrackingConsent) RequestTrackingPermissions(_ context.Context) (TrackingStatus, error) {
	return TrackingDenied, nil
}

// NoopRegulatoryConsent reports consent as unavailable. The consent gate
// treats this as a non-regulated environment.
type NoopRegulatoryConsent struct{}

// NewNoopRegulatoryConsent creates an absent regulatory consent capability.
func NewNoopRegulatoryConsent() *NoopRegulatoryConsent {
	return &NoopRegulatoryConsent{}
}

func (r *NoopRegulatoryConsent) Available() bool { return false }

func (r *NoopRegulatoryConsent) RequestInfoUpdate(_ context.Context) error { return nil }

func (r *NoopRegulatoryConsent) ConsentStatus(_ context.Context) (ConsentStatus, error) {
	return ConsentStatusUnavailable, nil
}

func (r *NoopRegulatoryConsent) LoadForm(_ context.Context) (ConsentForm, error) {
	return &noopConsentForm{}, nil
}

type noopConsentForm struct{}

func (f *noopConsentForm) Show(_ context.Context) error { return nil }
