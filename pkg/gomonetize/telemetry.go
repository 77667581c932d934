package gomonetize

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

const (
	telemetryPath           = "/api/log"
	defaultTelemetryTimeout = 10 * time.Second
)

// EventName identifies a telemetry event.
type EventName string

// Reading lifecycle events.
const (
	EventReadingBegin  EventName = "reading_begin"
	EventReadingResult EventName = "reading_result"
	EventAIToggle      EventName = "ai_toggle"
	EventToneChange    EventName = "tone_change"
	EventLengthChange  EventName = "length_change"
)

// Monetization events.
const (
	EventShareClick      EventName = "share_click"
	EventPaywallView     EventName = "paywall_view"
	EventPurchaseStart   EventName = "purchase_start"
	EventPurchaseSuccess EventName = "purchase_success"
	EventPurchaseFail    EventName = "purchase_fail"
	EventRestoreSuccess  EventName = "restore_success"
)

// TelemetryEvent is a single reporting event. Immutable once constructed;
// the emitter stamps Ts and takes no further ownership after submission.
type TelemetryEvent struct {
	Event EventName `json:"event"`

	// Ts is the ISO-8601 timestamp, stamped by the emitter.
	Ts string `json:"ts,omitempty"`

	SessionID string `json:"sessionId,omitempty"`

	// UserIDHash is an optional salted hash; raw user ids are never sent.
	UserIDHash string `json:"userIdHash,omitempty"`

	Lang string `json:"lang,omitempty"`

	// Type carries a reading type or a purchase package identifier.
	Type string `json:"type,omitempty"`

	Mode            string `json:"mode,omitempty"`
	AIEnabled       *bool  `json:"aiEnabled,omitempty"`
	Tone            string `json:"tone,omitempty"`
	Length          string `json:"length,omitempty"`
	DurationMs      int64  `json:"durationMs,omitempty"`
	QuestionPresent *bool  `json:"questionPresent,omitempty"`
}

type telemetryBatch struct {
	Events []TelemetryEvent `json:"events"`
}

// Emitter reports events to a remote collector, best effort. Submissions run
// on detached goroutines and every failure is swallowed: telemetry must never
// affect application correctness or responsiveness. A nil *Emitter is valid
// and drops all events.
type Emitter struct {
	baseURL string
	client  *http.Client
	clock   Clock
	logger  Logger
	metrics Metrics

	wg sync.WaitGroup
}

// EmitterConfig holds optional emitter collaborators.
type EmitterConfig struct {
	// HTTPClient overrides the default client (10s timeout).
	HTTPClient *http.Client

	// Clock overrides the timestamp source (default: system clock).
	Clock Clock

	// Logger is used for debug-level failure logging (default: NoopLogger).
	Logger Logger

	// Metrics is used for tracking submissions (default: NoopMetrics).
	Metrics Metrics
}

// NewEmitter creates an emitter posting to {collectorBaseURL}/api/log.
// An empty base URL is valid; such an emitter drops every event.
func NewEmitter(collectorBaseURL string, config EmitterConfig) *Emitter {
	client := config.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultTelemetryTimeout}
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

	return &Emitter{
		baseURL: strings.TrimRight(collectorBaseURL, "/"),
		client:  client,
		clock:   config.Clock,
		logger:  config.Logger,
		metrics: config.Metrics,
	}
}

// Emit stamps the event, wraps it in a batch envelope of one and submits it
// without blocking the caller. There is no return channel: the outcome is
// never awaited or inspected by emitting components.
func (e *Emitter) Emit(event TelemetryEvent) {
	if e == nil || e.baseURL == "" {
		return
	}

	event.Ts = e.clock.Now().UTC().Format(time.RFC3339)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.send(event)
	}()
}

// Flush waits for in-flight submissions. Intended for shutdown and tests.
func (e *Emitter) Flush() {
	if e == nil {
		return
	}
	e.wg.Wait()
}

func (e *Emitter) send(event TelemetryEvent) {
	body, err := json.Marshal(telemetryBatch{Events: []TelemetryEvent{event}})
	if err != nil {
		e.metrics.RecordTelemetryEmit(string(event.Event), err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, e.baseURL+telemetryPath, bytes.NewReader(body))
	if err != nil {
		e.metrics.RecordTelemetryEmit(string(event.Event), err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("telemetry submission failed",
			Field{Key: "event", Value: string(event.Event)},
			Field{Key: "error", Value: err.Error()},
		)
		e.metrics.RecordTelemetryEmit(string(event.Event), err)
		return
	}

	// The response is ignored beyond draining it.
	_, _ = io.Copy(io.Discard, res.Body)
	_ = res.Body.Close()

	e.metrics.RecordTelemetryEmit(string(event.Event), nil)
}
