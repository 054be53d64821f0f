package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics()

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.registry == nil {
		t.Error("Registry is nil")
	}
	if m.ToolExecutionsTotal == nil {
		t.Error("ToolExecutionsTotal is nil")
	}
	if m.ToolExecutionDuration == nil {
		t.Error("ToolExecutionDuration is nil")
	}
	if m.SecurityDenialsTotal == nil {
		t.Error("SecurityDenialsTotal is nil")
	}
	if m.RateLimitRejectionsTotal == nil {
		t.Error("RateLimitRejectionsTotal is nil")
	}
	if m.ConfirmationOutcomesTotal == nil {
		t.Error("ConfirmationOutcomesTotal is nil")
	}
	if m.RetryAttemptsTotal == nil {
		t.Error("RetryAttemptsTotal is nil")
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics()

	// Record samples through the sink interface so they appear in output
	m.ObserveExecution("read_file", "success", 150*time.Millisecond)
	m.SecurityDenial("path_traversal")
	m.RateLimited("write_file")
	m.ConfirmationOutcome("denied")
	m.RetryAttempt("fetch_url")

	handler := m.Handler()
	if handler == nil {
		t.Fatal("Handler returned nil")
	}

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	body := w.Body.String()
	expectedMetrics := []string{
		"warden_tool_executions_total",
		"warden_tool_execution_duration_seconds",
		"warden_security_denials_total",
		"warden_rate_limit_rejections_total",
		"warden_confirmation_outcomes_total",
		"warden_retry_attempts_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(body, metric) {
			t.Errorf("Metrics output missing: %s", metric)
		}
	}
	if !strings.Contains(body, `reason="path_traversal"`) {
		t.Error("Security denial reason label missing")
	}
}

func TestObserveExecution(t *testing.T) {
	m := NewMetrics()

	m.ObserveExecution("read_file", "success", time.Second)
	m.ObserveExecution("read_file", "failure", time.Second)

	metricFamilies, err := m.registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if *mf.Name == "warden_tool_executions_total" {
			found = true
			if len(mf.Metric) != 2 {
				t.Errorf("Expected 2 labeled series, got %d", len(mf.Metric))
			}
		}
	}
	if !found {
		t.Error("warden_tool_executions_total metric not found")
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics()
	m2 := NewMetrics()

	m1.SecurityDenial("blocked_path")
	m1.SecurityDenial("blocked_path")
	m2.SecurityDenial("blocked_path")

	check := func(m *Metrics, want float64) {
		metricFamilies, _ := m.registry.Gather()
		for _, mf := range metricFamilies {
			if *mf.Name == "warden_security_denials_total" {
				if len(mf.Metric) > 0 && *mf.Metric[0].Counter.Value != want {
					t.Errorf("Expected value %f, got %f", want, *mf.Metric[0].Counter.Value)
				}
			}
		}
	}
	check(m1, 2)
	check(m2, 1)
}
