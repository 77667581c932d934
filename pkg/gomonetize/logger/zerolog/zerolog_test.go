package zerolog

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/mihaimyh/gomonetize/pkg/gomonetize"
)

func TestZerologLogger_WritesAllLevels(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Debug("debug message", gomonetize.Field{Key: "key", Value: "value"})
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	if output.Len() == 0 {
		t.Fatal("expected log output")
	}
	if got := bytes.Count(output.Bytes(), []byte("\n")); got != 4 {
		t.Errorf("expected 4 log lines, got %d", got)
	}
}

func TestZerologLogger_LogLevelFiltering(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output).Level(zerolog.WarnLevel))

	logger.Debug("debug message")
	logger.Info("info message")
	if output.Len() != 0 {
		t.Error("expected debug and info to be filtered out")
	}

	logger.Warn("warn message")
	logger.Error("error message")
	if output.Len() == 0 {
		t.Error("expected warn and error to be logged")
	}
}

func TestZerologLogger_FieldsAppearInOutput(t *testing.T) {
	output := bytes.Buffer{}
	logger := NewLogger(zerolog.New(&output))

	logger.Info("entitlement refresh",
		gomonetize.Field{Key: "premium", Value: true},
		gomonetize.Field{Key: "platform", Value: "ios"},
		gomonetize.Field{Key: "attempt", Value: 2},
	)

	var entry map[string]interface{}
	if err := json.Unmarshal(output.Bytes(), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v", err)
	}
	if entry["premium"] != true {
		t.Errorf("premium field = %v, want true", entry["premium"])
	}
	if entry["platform"] != "ios" {
		t.Errorf("platform field = %v, want ios", entry["platform"])
	}
	if entry["message"] != "entitlement refresh" {
		t.Errorf("message = %v", entry["message"])
	}
}
