package gomonetize

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// AdThrottle decides whether an interstitial ad may be shown right now.
// It enforces a daily cap of 3 shows and a 90 second cooldown between shows,
// backed by state persisted under StorageKeyAdMeta so the limit survives
// process restarts. Loading an interstitial is a separate, unthrottled
// operation; only showing is gated here.
//
// The read-modify-write against storage is serialized through an in-process
// mutex so two near-simultaneous checks cannot both be granted. Concurrent
// processes sharing one storage backend can still over-grant by one; the
// source behavior accepted that window and so does this implementation.
type AdThrottle struct {
	storage Storage
	clock   Clock
	logger  Logger
	metrics Metrics

	mu sync.Mutex
}

// AdThrottleConfig holds optional ad throttle collaborators. The cap and
// cooldown are fixed policy constants, not configuration.
type AdThrottleConfig struct {
	// Clock overrides the time source (default: system clock).
	Clock Clock

	// Logger is used for structured logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking decisions (default: NoopMetrics).
	Metrics Metrics
}

// NewAdThrottle creates an ad throttle over the given storage.
func NewAdThrottle(storage Storage, config AdThrottleConfig) (*AdThrottle, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}
	if config.Clock == nil {
		config.Clock = systemClock{}
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}

	return &AdThrottle{
		storage: storage,
		clock:   config.Clock,
		logger:  config.Logger,
		metrics: config.Metrics,
	}, nil
}

// CanShow reports whether an interstitial may be presented now and, when
// granted, counts the show. A grant increments the daily count and starts
// the cooldown, so callers must only consult CanShow when they will actually
// present the ad. Storage failures are treated as if no prior state existed;
// the decision is always returned, never an error.
func (t *AdThrottle) CanShow(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.clock.Now()
	day := now.Format("2006-01-02")

	state := t.load(ctx)
	if state.Day != day {
		state = AdThrottleState{Day: day}
	}

	if state.Count >= maxInterstitialsPerDay {
		t.metrics.RecordAdThrottleDecision(false, "daily_cap")
		t.logger.Debug("interstitial denied: daily cap reached",
			Field{Key: "day", Value: day},
			Field{Key: "count", Value: state.Count},
		)
		return false
	}

	if now.UnixMilli()-state.LastShownAtMs < interstitialCooldown.Milliseconds() {
		t.metrics.RecordAdThrottleDecision(false, "cooldown")
		t.logger.Debug("interstitial denied: cooldown",
			Field{Key: "elapsed_ms", Value: now.UnixMilli() - state.LastShownAtMs},
		)
		return false
	}

	state.Count++
	state.LastShownAtMs = now.UnixMilli()
	t.store(ctx, state)

	t.metrics.RecordAdThrottleDecision(true, "granted")
	return true
}

// load reads the persisted throttle state. Absent keys, storage failures and
// corrupt JSON all yield the zero state, which resets the throttle.
func (t *AdThrottle) load(ctx context.Context) AdThrottleState {
	start := time.Now()
	raw, err := t.storage.Get(ctx, StorageKeyAdMeta)
	t.metrics.RecordStorageOperation("throttle_get", time.Since(start), err)

	if err != nil {
		if err != ErrKeyNotFound {
			t.logger.Warn("failed to load throttle state, resetting",
				Field{Key: "error", Value: err.Error()},
			)
		}
		return AdThrottleState{}
	}

	var state AdThrottleState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.logger.Warn("corrupt throttle state, resetting",
			Field{Key: "error", Value: err.Error()},
		)
		return AdThrottleState{}
	}
	return state
}

// store persists the throttle state. Best effort: a write failure means the
// grant goes unrecorded and the next check re-reads the prior state.
func (t *AdThrottle) store(ctx context.Context, state AdThrottleState) {
	raw, err := json.Marshal(state)
	if err != nil {
		t.logger.Error("failed to encode throttle state",
			Field{Key: "error", Value: err.Error()},
		)
		return
	}

	start := time.Now()
	err = t.storage.Set(ctx, StorageKeyAdMeta, string(raw))
	t.metrics.RecordStorageOperation("throttle_set", time.Since(start), err)
	if err != nil {
		t.logger.Warn("failed to persist throttle state",
			Field{Key: "error", Value: err.Error()},
		)
	}
}
