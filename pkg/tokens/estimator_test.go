package tokens

import (
	"errors"
	"testing"
)

func newHeuristicEstimator(t *testing.T) *Estimator {
	t.Helper()
	est, err := NewEstimator(HeuristicCounter{}, DefaultRates())
	if err != nil {
		t.Fatalf("new estimator: %v", err)
	}
	return est
}

func TestEstimateCostIsLinear(t *testing.T) {
	est := newHeuristicEstimator(t)
	texts := []string{"", "a", "Java backend role", "résumé with unicode ✓", "line one\nline two\n\n\tindented"}

	for _, text := range texts {
		for _, dir := range []Direction{Input, Output} {
			count, cost, err := est.Estimate(text, dir)
			if err != nil {
				t.Fatalf("estimate %q %s: %v", text, dir, err)
			}
			rate, _ := est.Rate(dir)
			if cost != float64(count)*rate {
				t.Fatalf("cost %g != %d * %g", cost, count, rate)
			}
			if count < 0 || cost < 0 {
				t.Fatalf("negative estimate for %q", text)
			}
		}
	}

	if est.Rates().Input == est.Rates().Output {
		t.Fatalf("input and output rates must differ")
	}
}

func TestEstimateIsDeterministic(t *testing.T) {
	est := newHeuristicEstimator(t)
	text := "Senior Go engineer, distributed systems, Kafka, Postgres."
	c1, p1, _ := est.Estimate(text, Input)
	for i := 0; i < 10; i++ {
		c2, p2, _ := est.Estimate(text, Input)
		if c1 != c2 || p1 != p2 {
			t.Fatalf("estimate changed between calls: (%d, %g) vs (%d, %g)", c1, p1, c2, p2)
		}
	}
}

func TestEstimateIsMonotonicUnderConcatenation(t *testing.T) {
	est := newHeuristicEstimator(t)
	parts := [][2]string{
		{"system prompt", "user prompt"},
		{"a", "b"},
		{"You are a résumé editor.", "<RESUME> text goes here"},
	}
	for _, p := range parts {
		left, _, _ := est.Estimate(p[0], Input)
		right, _, _ := est.Estimate(p[1], Input)
		both, _, _ := est.Estimate(p[0]+p[1], Input)
		if both < left || both < right {
			t.Fatalf("combined %d smaller than parts %d/%d", both, left, right)
		}
	}
}

func TestEstimateRejectsUnknownDirection(t *testing.T) {
	est := newHeuristicEstimator(t)
	_, _, err := est.Estimate("text", Direction("sideways"))
	var dirErr *InvalidDirectionError
	if !errors.As(err, &dirErr) {
		t.Fatalf("expected InvalidDirectionError, got %v", err)
	}
	if dirErr.Direction != "sideways" {
		t.Fatalf("unexpected direction in error: %q", dirErr.Direction)
	}
}

func TestNewEstimatorValidatesRates(t *testing.T) {
	if _, err := NewEstimator(HeuristicCounter{}, Rates{Input: 1, Output: 1}); err == nil {
		t.Fatalf("expected error for symmetric rates")
	}
	if _, err := NewEstimator(HeuristicCounter{}, Rates{Input: -1, Output: 1}); err == nil {
		t.Fatalf("expected error for negative rate")
	}
	if _, err := NewEstimator(nil, DefaultRates()); err == nil {
		t.Fatalf("expected error for missing counter")
	}
}

func TestHeuristicCounter(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"abc", 1},
		{"abcd", 1},
		{"abcde", 2},
		{"ééééé", 2},
	}
	for _, tt := range tests {
		if got := (HeuristicCounter{}).Count(tt.text); got != tt.want {
			t.Fatalf("Count(%q) = %d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestBPECounter(t *testing.T) {
	counter, err := NewBPECounter("gpt-4o")
	if err != nil {
		// The encoding is fetched and cached on first use.
		t.Skipf("bpe encoding unavailable: %v", err)
	}
	if counter.Name() != "o200k_base" {
		t.Fatalf("expected o200k_base for gpt-4o, got %s", counter.Name())
	}
	text := "Tailor this résumé for a Java backend role."
	first := counter.Count(text)
	if first == 0 || first != counter.Count(text) {
		t.Fatalf("unexpected bpe count %d", first)
	}
	if counter.Count("") != 0 {
		t.Fatalf("empty text must count zero tokens")
	}
	combined := counter.Count(text + " Extra requirements: Kafka.")
	if combined < first {
		t.Fatalf("combined count %d < part %d", combined, first)
	}
}

func TestNewCounter(t *testing.T) {
	c, err := NewCounter("heuristic", "gpt-4o")
	if err != nil || c.Name() != "heuristic" {
		t.Fatalf("expected heuristic counter, got %v, %v", c, err)
	}
	if _, err := NewCounter("words", "gpt-4o"); err == nil {
		t.Fatalf("expected error for unknown tokenizer")
	}
}
