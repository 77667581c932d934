// Package capability defines the optional native integration points the
// monetization subsystem depends on: commerce, ad mediation, tracking consent
// and regulatory consent. Each capability is an interface with a real backend
// and an inert no-op implementation; consumers are written against the
// interfaces only, so an absent capability degrades to safe defaults instead
// of failing.
package capability

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable is returned when an operation requires a capability
	// that is absent in the current environment.
	ErrUnavailable = errors.New("capability unavailable")

	// ErrUserCancelled is returned when the user dismisses a purchase flow.
	// It is explicitly distinct from a purchase failure and must not be
	// surfaced as an error to the user.
	ErrUserCancelled = errors.New("purchase cancelled by user")

	// ErrNotSupported is returned when a backend cannot perform an operation
	// (e.g. store-mediated purchases through a server-side API).
	ErrNotSupported = errors.New("operation not supported by this capability")
)

// PackageType tags a purchasable subscription option.
type PackageType string

const (
	// PackageTypeMonthly is a monthly subscription package.
	PackageTypeMonthly PackageType = "MONTHLY"
	// PackageTypeAnnual is an annual subscription package.
	PackageTypeAnnual PackageType = "ANNUAL"
	// PackageTypeUnknown is a package whose billing interval could not be
	// determined from the commerce payload.
	PackageTypeUnknown PackageType = "UNKNOWN"
)

// Product carries the store-facing details of a purchasable package.
type Product struct {
	Identifier   string
	PriceString  string
	Price        float64
	CurrencyCode string
}

// Package is a purchasable subscription option exposed by the commerce
// capability. It is an opaque handle from the consumer's point of view:
// the subsystem selects and passes packages around but never mutates them.
type Package struct {
	Identifier string
	Type       PackageType
	Product    Product

	// OfferingID is the identifier of the offering this package belongs to.
	OfferingID string
}

// Offering is a named group of packages. Depending on the backend and store
// configuration, the monthly/annual options may appear as direct fields, in
// the package list, or both.
type Offering struct {
	Identifier        string
	Monthly           *Package
	Annual            *Package
	AvailablePackages []*Package
}

// Offerings is the full offering catalog returned by the commerce capability.
type Offerings struct {
	// Current is the offering the store configuration marks as current.
	// May be nil.
	Current *Offering

	// All maps offering identifiers to offerings, including the current one.
	All map[string]*Offering
}

// Entitlements holds the named access rights granted to a user account.
type Entitlements struct {
	// Active maps entitlement names (e.g. "premium", "no_ads") to whether
	// they are currently active.
	Active map[string]bool
}

// CustomerInfo is the commerce capability's view of the current user.
type CustomerInfo struct {
	OriginalAppUserID string
	Entitlements      Entitlements
}

// PurchaseResult is the outcome of a successful purchase.
type PurchaseResult struct {
	CustomerInfo *CustomerInfo

	// RedirectURL is set by backends that complete purchases out-of-band
	// (e.g. a web checkout session). When set, CustomerInfo may be nil and
	// entitlement arrives via a later refresh or listener update.
	RedirectURL string
}

// ConfigureRequest carries the one-time commerce configuration.
type ConfigureRequest struct {
	APIKey    string
	AppUserID string
}

// Commerce is the purchase/entitlement capability.
type Commerce interface {
	// Available reports whether a real backend is present. Absent backends
	// answer queries with neutral defaults and reject purchases.
	Available() bool

	// Configure performs the one-time SDK configuration. Callers guarantee
	// at most one call per process lifetime.
	Configure(ctx context.Context, req ConfigureRequest) error

	// GetCustomerInfo returns the current entitlement data for the
	// configured user.
	GetCustomerInfo(ctx context.Context) (*CustomerInfo, error)

	// GetOfferings returns the offering catalog.
	GetOfferings(ctx context.Context) (*Offerings, error)

	// PurchasePackage purchases the given package. Returns ErrUserCancelled
	// when the user dismisses the flow.
	PurchasePackage(ctx context.Context, pkg *Package) (*PurchaseResult, error)

	// RestorePurchases re-syncs previously purchased entitlements.
	RestorePurchases(ctx context.Context) (*CustomerInfo, error)

	// AddCustomerInfoUpdateListener registers for push-driven entitlement
	// updates (e.g. a purchase completed in another session). The returned
	// function removes the listener and must be called on teardown.
	AddCustomerInfoUpdateListener(fn func(*CustomerInfo)) (remove func())
}

// AdEventType identifies interstitial lifecycle events.
type AdEventType string

const (
	// AdEventLoaded fires when an interstitial finished loading.
	AdEventLoaded AdEventType = "loaded"
	// AdEventClosed fires when the user dismisses a shown interstitial.
	AdEventClosed AdEventType = "closed"
	// AdEventError fires when loading or showing fails.
	AdEventError AdEventType = "error"
)

// Interstitial is a full-screen ad handle. Loading is separate from showing:
// a load may be prefetched at any time, only showing is throttled by callers.
type Interstitial interface {
	Load(ctx context.Context) error
	AddEventListener(event AdEventType, fn func()) (remove func())
	Show(ctx context.Context) error
}

// AdMediation creates interstitial handles for ad units.
type AdMediation interface {
	Available() bool
	CreateInterstitial(unitID string) Interstitial
}

// TrackingStatus is the outcome of a tracking permission prompt.
type TrackingStatus string

const (
	// TrackingGranted means the user allowed tracking.
	TrackingGranted TrackingStatus = "granted"
	// TrackingDenied means the user denied tracking or the prompt was
	// never answered affirmatively.
	TrackingDenied TrackingStatus = "denied"
	// TrackingUnavailable means the platform has no tracking prompt.
	TrackingUnavailable TrackingStatus = "unavailable"
)

// TrackingConsent is the app-tracking-transparency style capability.
type TrackingConsent interface {
	Available() bool
	RequestTrackingPermissions(ctx context.Context) (TrackingStatus, error)
}

// ConsentStatus is the regulatory consent determination for the current user.
type ConsentStatus string

const (
	// ConsentStatusUnknown means no determination has been made yet.
	ConsentStatusUnknown ConsentStatus = "unknown"
	// ConsentStatusRequired means a consent form must be shown.
	ConsentStatusRequired ConsentStatus = "required"
	// ConsentStatusNotRequired means the user is outside regulated regions.
	ConsentStatusNotRequired ConsentStatus = "not_required"
	// ConsentStatusObtained means the user gave consent.
	ConsentStatusObtained ConsentStatus = "obtained"
	// ConsentStatusUnavailable means the consent capability is absent.
	ConsentStatusUnavailable ConsentStatus = "unavailable"
)

// ConsentForm is a loaded consent form ready to present. Show suspends until
// the user dismisses the form.
type ConsentForm interface {
	Show(ctx context.Context) error
}

// RegulatoryConsent is the GDPR/UMP style consent capability.
type RegulatoryConsent interface {
	Available() bool
	RequestInfoUpdate(ctx context.Context) error
	ConsentStatus(ctx context.Context) (ConsentStatus, error)
	LoadForm(ctx context.Context) (ConsentForm, error)
}

// Set bundles the capabilities an application wires at startup.
type Set struct {
	Commerce Commerce
	Ads      AdMediation
	Tracking TrackingConsent
	Consent  RegulatoryConsent
}

// WithDefaults returns a copy of the set with every nil slot filled by the
// corresponding no-op capability, so consumers never hold a nil interface.
func (s Set) WithDefaults() Set {
	if s.Commerce == nil {
		s.Commerce = NewNoopCommerce()
	}
	if s.Ads == nil {
		s.Ads = NewNoopAdMediation()
	}
	if s.Tracking == nil {
		s.Tracking = NewNoopTrackingConsent()
	}
	if s.Consent == nil {
		s.Consent = NewNoopRegulatoryConsent()
	}
	return s
}
