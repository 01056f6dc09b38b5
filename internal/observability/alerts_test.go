package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

type alertRule struct {
	Alert       string            `yaml:"alert"`
	Expr        string            `yaml:"expr"`
	For         string            `yaml:"for"`
	Labels      map[string]string `yaml:"labels"`
	Annotations map[string]string `yaml:"annotations"`
}

type alertGroup struct {
	Name  string      `yaml:"name"`
	Rules []alertRule `yaml:"rules"`
}

type alertSpec struct {
	Groups []alertGroup `yaml:"groups"`
}

func TestAlertRules(t *testing.T) {
	path := filepath.Join("..", "..", "deploy", "prometheus", "alerts", "fingrupo.yml")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read alert file: %v", err)
	}

	var spec alertSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		t.Fatalf("failed to unmarshal alert file: %v", err)
	}

	if len(spec.Groups) != 1 || spec.Groups[0].Name != "fingrupo" {
		t.Fatalf("expected a single fingrupo group, got %+v", spec.Groups)
	}
	group := spec.Groups[0]

	expected := map[string]struct {
		severity string
		runbook  string
		metric   string
	}{
		"APIUnavailable":    {severity: "critical", runbook: "docs/runbook.md#api-unavailable", metric: "fingrupo_api_calls_total"},
		"HighLatency":       {severity: "warning", runbook: "docs/runbook.md#high-latency", metric: "fingrupo_http_request_duration_seconds_bucket"},
		"GateRedirectSpike": {severity: "warning", runbook: "docs/runbook.md#gate-redirect-spike", metric: "fingrupo_gate_redirects_total"},
	}

	if len(group.Rules) != len(expected) {
		t.Fatalf("expected %d rules, got %d", len(expected), len(group.Rules))
	}

	exposed := exposedMetricNames(t)
	for _, rule := range group.Rules {
		want, ok := expected[rule.Alert]
		if !ok {
			t.Fatalf("unexpected rule %q", rule.Alert)
		}
		if rule.Labels["severity"] != want.severity {
			t.Fatalf("rule %s severity mismatch: %s", rule.Alert, rule.Labels["severity"])
		}
		if rule.Annotations["runbook"] != want.runbook {
			t.Fatalf("rule %s runbook mismatch: %s", rule.Alert, rule.Annotations["runbook"])
		}
		if rule.Annotations["summary"] == "" || rule.Annotations["description"] == "" {
			t.Fatalf("rule %s must include summary and description annotations", rule.Alert)
		}
		if !strings.Contains(rule.Expr, want.metric) {
			t.Fatalf("rule %s must query %s: %s", rule.Alert, want.metric, rule.Expr)
		}
		if !exposed[want.metric] {
			t.Fatalf("rule %s queries %s which the app does not expose", rule.Alert, want.metric)
		}
		if rule.For == "" {
			t.Fatalf("rule %s must define a hold duration", rule.Alert)
		}
	}
}

// exposedMetricNames scrapes a registry after touching every vector once so
// each series family shows up in the output.
func exposedMetricNames(t *testing.T) map[string]bool {
	t.Helper()
	metrics := NewMetrics()
	metrics.ObserveAPICall("GET /x", 200, time.Millisecond)
	metrics.ObserveGateRedirect("render", "/dashboard")
	metrics.ObserveDuplicateSubmission("x")
	families, err := metrics.registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	names := map[string]bool{
		// histogram series are exposed with suffixes.
		"fingrupo_http_request_duration_seconds_bucket": true,
	}
	for _, family := range families {
		names[family.GetName()] = true
	}
	return names
}
