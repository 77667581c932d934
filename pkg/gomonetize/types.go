package gomonetize

import (
	"time"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

// Platform identifies the runtime the SDK is embedded in. The commerce API
// key is selected per platform; platforms without a key skip configuration.
type Platform string

const (
	// PlatformIOS is a native iOS build.
	PlatformIOS Platform = "ios"
	// PlatformAndroid is a native Android build.
	PlatformAndroid Platform = "android"
	// PlatformWeb is a web preview build. Commerce is typically absent here.
	PlatformWeb Platform = "web"
)

// Entitlement names granted by the commerce authority.
const (
	entitlementPremium = "premium"
	entitlementNoAds   = "no_ads"
)

// Persisted storage keys.
const (
	// StorageKeyAppUserID holds the locally generated stable user id.
	StorageKeyAppUserID = "appUserId"

	// StorageKeyAdMeta holds the persisted ad throttle state as JSON.
	StorageKeyAdMeta = "ad_meta"
)

// Ad throttle policy. Fixed product policy, not runtime configurable.
const (
	maxInterstitialsPerDay = 3
	interstitialCooldown   = 90 * time.Second
)

// EntitlementState is the current access-rights snapshot. It is never
// persisted; it is recomputed from the remote authority on every process
// start.
type EntitlementState struct {
	// Loading is true until the first refresh completes.
	Loading bool

	// IsPremium reports an active "premium" entitlement.
	IsPremium bool

	// HasNoAds reports an active "premium" or "no_ads" entitlement.
	// Invariant: IsPremium implies HasNoAds.
	HasNoAds bool

	// Err holds the last refresh failure for diagnostics. It is not shown
	// to the user unless a caller explicitly surfaces it.
	Err string
}

// OfferingPick is the canonical pair of purchase options extracted from an
// offering payload. Either field may be nil when the catalog has no matching
// package.
type OfferingPick struct {
	Monthly *capability.Package
	Annual  *capability.Package
}

// AdThrottleState is the persisted interstitial throttle state. The JSON
// field names are part of the stored format.
type AdThrottleState struct {
	// Day is the local calendar date (YYYY-MM-DD) governing the window.
	Day string `json:"day"`

	// Count is the number of interstitials granted today. 0 <= Count <= 3.
	Count int `json:"count"`

	// LastShownAtMs is the unix-millisecond timestamp of the last grant.
	LastShownAtMs int64 `json:"last"`
}

// ConsentState is the per-session ad personalization determination.
type ConsentState struct {
	PersonalizedAdsAllowed bool
}

// Config holds resolver configuration.
type Config struct {
	// Platform selects which commerce API key is used.
	Platform Platform

	// APIKeys maps platforms to commerce API keys. A missing key for the
	// current platform means configuration is silently skipped.
	APIKeys map[Platform]string

	// Telemetry is an optional emitter for purchase lifecycle events.
	// If nil, no events are emitted.
	Telemetry *Emitter

	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking operations (default: NoopMetrics).
	Metrics Metrics
}
