package prommetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusMetrics_NewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	if metrics == nil {
		t.Fatal("NewMetrics returned nil")
	}
}

func TestPrometheusMetrics_RecordEntitlementRefresh(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordEntitlementRefresh(true, 50*time.Millisecond, nil)
	metrics.RecordEntitlementRefresh(false, 20*time.Millisecond, errors.New("network down"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if counterValue(families, "test_entitlement_refresh_total",
		map[string]string{"premium": "true", "success": "true"}) != 1 {
		t.Error("expected one successful premium refresh")
	}
	if counterValue(families, "test_entitlement_refresh_total",
		map[string]string{"premium": "false", "success": "false"}) != 1 {
		t.Error("expected one failed refresh")
	}
}

func TestPrometheusMetrics_RecordPurchase(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordPurchase("$rc_monthly", "success")
	metrics.RecordPurchase("$rc_monthly", "cancelled")
	metrics.RecordPurchase("$rc_annual", "failed")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if counterValue(families, "test_purchase_total",
		map[string]string{"package": "$rc_monthly", "outcome": "success"}) != 1 {
		t.Error("expected one successful monthly purchase")
	}
}

func TestPrometheusMetrics_RecordAdThrottleDecision(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordAdThrottleDecision(true, "granted")
	metrics.RecordAdThrottleDecision(false, "cooldown")
	metrics.RecordAdThrottleDecision(false, "daily_cap")
	metrics.RecordAdThrottleDecision(false, "daily_cap")

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if counterValue(families, "test_ad_throttle_decisions_total",
		map[string]string{"allowed": "false", "reason": "daily_cap"}) != 2 {
		t.Error("expected two daily cap denials")
	}
}

func TestPrometheusMetrics_RecordConsentResolution(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordConsentResolution("obtained", true)
	metrics.RecordConsentResolution("required", false)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected consent metrics to be recorded")
	}
}

func TestPrometheusMetrics_RecordTelemetryEmit(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordTelemetryEmit("purchase_start", nil)
	metrics.RecordTelemetryEmit("purchase_start", errors.New("collector down"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if counterValue(families, "test_telemetry_emit_total",
		map[string]string{"event": "purchase_start", "success": "false"}) != 1 {
		t.Error("expected one failed emit")
	}
}

func TestPrometheusMetrics_RecordStorageOperation(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg, "test")

	metrics.RecordStorageOperation("ad_meta_get", 10*time.Millisecond, nil)
	metrics.RecordStorageOperation("ad_meta_set", 20*time.Millisecond, errors.New("storage error"))

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	if counterValue(families, "test_storage_operation_errors_total",
		map[string]string{"operation": "ad_meta_set"}) != 1 {
		t.Error("expected one storage error for ad_meta_set")
	}
	if counterValue(families, "test_storage_operation_errors_total",
		map[string]string{"operation": "ad_meta_get"}) != 0 {
		t.Error("expected no storage errors for ad_meta_get")
	}
}

func counterValue(families []*dto.MetricFamily, name string, labels map[string]string) float64 {
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, m := range family.GetMetric() {
			for _, pair := range m.GetLabel() {
				if want, ok := labels[pair.GetName()]; ok && want != pair.GetValue() {
					continue metric
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
