package gomonetize

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mihaimyh/gomonetize/pkg/capability"
)

// Resolver owns the current access-rights snapshot. It configures the
// commerce capability exactly once per process lifetime, refreshes
// entitlement state on demand and on push notifications, and exposes the
// purchase and restore flows. Every failure degrades to the safe default
// (non-premium, ads on); nothing here propagates an exception to UI code.
type Resolver struct {
	commerce  capability.Commerce
	storage   Storage
	config    Config
	telemetry *Emitter
	logger    Logger
	metrics   Metrics

	// group single-flights the one-time configuration: concurrent first
	// callers await the same in-flight attempt instead of racing.
	group singleflight.Group

	mu             sync.Mutex
	started        bool
	state          EntitlementState
	listeners      map[int]func(EntitlementState)
	nextListenerID int
	removeCommerce func()
}

// NewResolver creates a resolver over the given commerce capability and
// storage. A nil commerce capability is treated as absent.
func NewResolver(commerce capability.Commerce, storage Storage, config Config) (*Resolver, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}
	if commerce == nil {
		commerce = capability.NewNoopCommerce()
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}

	return &Resolver{
		commerce:  commerce,
		storage:   storage,
		config:    config,
		telemetry: config.Telemetry,
		logger:    config.Logger,
		metrics:   config.Metrics,
		state:     EntitlementState{Loading: true},
		listeners: make(map[int]func(EntitlementState)),
	}, nil
}

// EnsureStarted performs the one-time commerce configuration. It is
// idempotent and safe for concurrent use: exactly one configuration call
// reaches the capability per process lifetime, and concurrent first callers
// block on the same attempt. A missing API key or an absent capability makes
// this a silent no-op, not an error.
func (r *Resolver) EnsureStarted(ctx context.Context) {
	r.mu.Lock()
	started := r.started
	r.mu.Unlock()
	if started {
		return
	}

	_, _, _ = r.group.Do("configure", func() (interface{}, error) {
		r.mu.Lock()
		started := r.started
		r.mu.Unlock()
		if !started {
			r.configure(ctx)
			r.mu.Lock()
			r.started = true
			r.mu.Unlock()
		}
		return nil, nil
	})
}

func (r *Resolver) configure(ctx context.Context) {
	userID := r.AppUserID(ctx)

	if !r.commerce.Available() {
		r.logger.Debug("commerce capability absent, configuration skipped")
		return
	}

	apiKey := r.config.APIKeys[r.config.Platform]
	if apiKey == "" {
		r.logger.Debug("no commerce api key for platform, configuration skipped",
			Field{Key: "platform", Value: string(r.config.Platform)},
		)
		return
	}

	if err := r.commerce.Configure(ctx, capability.ConfigureRequest{
		APIKey:    apiKey,
		AppUserID: userID,
	}); err != nil {
		// Present-but-erroring degrades the same way as absent.
		r.logger.Warn("commerce configuration failed",
			Field{Key: "error", Value: err.Error()},
		)
		return
	}

	remove := r.commerce.AddCustomerInfoUpdateListener(r.onCustomerInfo)
	r.mu.Lock()
	r.removeCommerce = remove
	r.mu.Unlock()

	r.logger.Info("commerce configured",
		Field{Key: "platform", Value: string(r.config.Platform)},
	)
}

// AppUserID returns the locally generated stable identifier supplied to the
// commerce capability as the account key. It is created once and persisted;
// a storage read failure regenerates it rather than blocking startup.
func (r *Resolver) AppUserID(ctx context.Context) string {
	start := time.Now()
	id, err := r.storage.Get(ctx, StorageKeyAppUserID)
	r.metrics.RecordStorageOperation("app_user_id_get", time.Since(start), err)

	if err == nil && id != "" {
		return id
	}
	if err != nil && !errors.Is(err, ErrKeyNotFound) {
		r.logger.Warn("failed to read app user id, regenerating",
			Field{Key: "error", Value: err.Error()},
		)
	}

	id = uuid.NewString()
	if err := r.storage.Set(ctx, StorageKeyAppUserID, id); err != nil {
		r.logger.Warn("failed to persist app user id",
			Field{Key: "error", Value: err.Error()},
		)
	}
	return id
}

// Refresh queries current entitlement data and updates the cached snapshot.
// On any failure it returns the non-premium state with the error message
// retained for diagnostics; it never returns an error to the caller.
func (r *Resolver) Refresh(ctx context.Context) EntitlementState {
	r.EnsureStarted(ctx)

	start := time.Now()
	info, err := r.commerce.GetCustomerInfo(ctx)
	duration := time.Since(start)

	var state EntitlementState
	switch {
	case err != nil:
		state = EntitlementState{Err: err.Error()}
		r.logger.Debug("entitlement refresh failed",
			Field{Key: "error", Value: err.Error()},
		)
	case info == nil:
		state = EntitlementState{Err: "no customer info"}
	default:
		state = stateFromInfo(info)
	}

	r.metrics.RecordEntitlementRefresh(state.IsPremium, duration, err)
	r.setState(state)
	return state
}

// State returns the cached entitlement snapshot without querying the
// capability. UI-facing code reads this to gate premium features.
func (r *Resolver) State() EntitlementState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Subscribe registers for entitlement state changes, including push-driven
// updates from the commerce capability. The returned function removes the
// subscription and must be called on teardown.
func (r *Resolver) Subscribe(fn func(EntitlementState)) (remove func()) {
	r.mu.Lock()
	id := r.nextListenerID
	r.nextListenerID++
	r.listeners[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.listeners, id)
		r.mu.Unlock()
	}
}

// LoadOfferings fetches the offering catalog and normalizes it into the
// canonical monthly/annual pick. Failures yield an empty pick.
func (r *Resolver) LoadOfferings(ctx context.Context) OfferingPick {
	r.EnsureStarted(ctx)

	offerings, err := r.commerce.GetOfferings(ctx)
	if err != nil {
		r.logger.Debug("offerings unavailable",
			Field{Key: "error", Value: err.Error()},
		)
		return OfferingPick{}
	}
	return Normalize(offerings)
}

// Purchase buys the given package through the commerce capability and emits
// the purchase lifecycle telemetry. User cancellation is returned as
// capability.ErrUserCancelled and must not be shown as an error; any other
// failure wraps ErrPurchaseFailed for a single generic retry prompt.
func (r *Resolver) Purchase(ctx context.Context, pkg *capability.Package) (EntitlementState, error) {
	if pkg == nil {
		return r.State(), ErrNoPackage
	}
	r.EnsureStarted(ctx)

	r.emit(TelemetryEvent{Event: EventPurchaseStart, Type: pkg.Identifier})

	result, err := r.commerce.PurchasePackage(ctx, pkg)
	if err != nil {
		r.emit(TelemetryEvent{Event: EventPurchaseFail, Type: pkg.Identifier})
		if errors.Is(err, capability.ErrUserCancelled) {
			r.metrics.RecordPurchase(pkg.Identifier, "cancelled")
			return r.State(), err
		}
		r.metrics.RecordPurchase(pkg.Identifier, "failed")
		return r.State(), fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}

	state := r.State()
	if result != nil && result.CustomerInfo != nil {
		state = stateFromInfo(result.CustomerInfo)
		r.setState(state)
	}
	if state.IsPremium || state.HasNoAds {
		r.emit(TelemetryEvent{Event: EventPurchaseSuccess, Type: pkg.Identifier})
	}
	r.metrics.RecordPurchase(pkg.Identifier, "success")
	return state, nil
}

// Restore re-syncs previously purchased entitlements.
func (r *Resolver) Restore(ctx context.Context) (EntitlementState, error) {
	r.EnsureStarted(ctx)

	info, err := r.commerce.RestorePurchases(ctx)
	if err != nil {
		if errors.Is(err, capability.ErrUnavailable) {
			return r.State(), err
		}
		return r.State(), fmt.Errorf("%w: %v", ErrPurchaseFailed, err)
	}

	state := r.State()
	if info != nil {
		state = stateFromInfo(info)
		r.setState(state)
	}
	r.emit(TelemetryEvent{Event: EventRestoreSuccess})
	return state, nil
}

// Close removes the commerce update listener. Call on teardown to avoid
// dangling callbacks.
func (r *Resolver) Close() {
	r.mu.Lock()
	remove := r.removeCommerce
	r.removeCommerce = nil
	r.mu.Unlock()

	if remove != nil {
		remove()
	}
}

// onCustomerInfo handles push-driven entitlement updates, e.g. a purchase
// completed in another session.
func (r *Resolver) onCustomerInfo(info *capability.CustomerInfo) {
	if info == nil {
		return
	}
	r.setState(stateFromInfo(info))
}

func (r *Resolver) setState(state EntitlementState) {
	r.mu.Lock()
	r.state = state
	fns := make([]func(EntitlementState), 0, len(r.listeners))
	for _, fn := range r.listeners {
		fns = append(fns, fn)
	}
	r.mu.Unlock()

	// Listeners run outside the lock; they may call back into the resolver.
	for _, fn := range fns {
		fn(state)
	}
}

func (r *Resolver) emit(event TelemetryEvent) {
	r.telemetry.Emit(event)
}

// stateFromInfo maps commerce customer info to an entitlement snapshot.
// An active "premium" entitlement always implies ad-free, even without a
// separate "no_ads" entitlement.
func stateFromInfo(info *capability.CustomerInfo) EntitlementState {
	premium := info.Entitlements.Active[entitlementPremium]
	return EntitlementState{
		IsPremium: premium,
		HasNoAds:  premium || info.Entitlements.Active[entitlementNoAds],
	}
}
