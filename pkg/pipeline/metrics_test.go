package pipeline

import (
	"math"
	"reflect"
	"testing"

	"github.com/zen-systems/tailor/pkg/adapter"
)

func TestRunMetricsTotals(t *testing.T) {
	m := NewRunMetrics()
	entries := []struct {
		name    string
		metrics StageMetrics
	}{
		{"extract_keywords", StageMetrics{InputTokens: 100, InputCost: 0.0005, OutputTokens: 10, OutputCost: 0.0002}},
		{"plan_keywords", StageMetrics{InputTokens: 300, InputCost: 0.0015, OutputTokens: 50, OutputCost: 0.001}},
		{"convert_to_json", StageMetrics{InputTokens: 7, InputCost: 0.000035, OutputTokens: 3, OutputCost: 0.00006}},
	}
	for _, e := range entries {
		if err := m.Record(e.name, e.metrics); err != nil {
			t.Fatalf("record %s: %v", e.name, err)
		}
	}

	if !reflect.DeepEqual(m.Stages(), []string{"extract_keywords", "plan_keywords", "convert_to_json"}) {
		t.Fatalf("unexpected order %v", m.Stages())
	}

	totals := m.Totals()
	if totals.InputTokens != 407 || totals.OutputTokens != 63 {
		t.Fatalf("unexpected token totals %+v", totals)
	}
	if math.Abs(totals.InputCost-0.002035) > 1e-12 || math.Abs(totals.OutputCost-0.00126) > 1e-12 {
		t.Fatalf("unexpected cost totals %+v", totals)
	}
	if math.Abs(totals.Cost()-(totals.InputCost+totals.OutputCost)) > 0 {
		t.Fatalf("Cost() should sum input and output")
	}
}

func TestRunMetricsRejectsDuplicates(t *testing.T) {
	m := NewRunMetrics()
	if err := m.Record("a", StageMetrics{InputTokens: 1}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := m.Record("a", StageMetrics{InputTokens: 2}); err == nil {
		t.Fatalf("expected duplicate error")
	}
	if err := m.Record("", StageMetrics{}); err == nil {
		t.Fatalf("expected error for empty name")
	}
	got, ok := m.Get("a")
	if !ok || got.InputTokens != 1 {
		t.Fatalf("first record should win, got %+v", got)
	}
	if m.Len() != 1 {
		t.Fatalf("unexpected length %d", m.Len())
	}
}

func TestRunMetricsStagesIsCopy(t *testing.T) {
	m := NewRunMetrics()
	_ = m.Record("a", StageMetrics{})
	stages := m.Stages()
	stages[0] = "mutated"
	if m.Stages()[0] != "a" {
		t.Fatalf("Stages must return a copy")
	}
}

func TestAddUsage(t *testing.T) {
	var total *adapter.Usage
	total = addUsage(total, nil)
	if total != nil {
		t.Fatalf("nil plus nil should stay nil")
	}
	total = addUsage(total, &adapter.Usage{PromptTokens: 3, CompletionTokens: 2})
	total = addUsage(total, &adapter.Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2})
	if total.PromptTokens != 4 || total.CompletionTokens != 3 || total.TotalTokens != 7 {
		t.Fatalf("unexpected usage %+v", total)
	}
}
