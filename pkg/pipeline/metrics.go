package pipeline

import (
	"fmt"

	"github.com/zen-systems/tailor/pkg/adapter"
)

// StageMetrics holds the estimated token counts and costs of one stage.
type StageMetrics struct {
	InputTokens  int     `json:"input_tokens"`
	InputCost    float64 `json:"input_cost"`
	OutputTokens int     `json:"output_tokens"`
	OutputCost   float64 `json:"output_cost"`
}

// Cost returns the input plus output cost.
func (m StageMetrics) Cost() float64 {
	return m.InputCost + m.OutputCost
}

func (m StageMetrics) add(o StageMetrics) StageMetrics {
	return StageMetrics{
		InputTokens:  m.InputTokens + o.InputTokens,
		InputCost:    m.InputCost + o.InputCost,
		OutputTokens: m.OutputTokens + o.OutputTokens,
		OutputCost:   m.OutputCost + o.OutputCost,
	}
}

// RunMetrics accumulates stage metrics for one run, in recording order.
type RunMetrics struct {
	order  []string
	stages map[string]StageMetrics
}

// NewRunMetrics returns an empty accumulator.
func NewRunMetrics() *RunMetrics {
	return &RunMetrics{stages: make(map[string]StageMetrics)}
}

// Record adds the metrics of a stage. A stage can be recorded once.
func (m *RunMetrics) Record(stage string, metrics StageMetrics) error {
	if stage == "" {
		return fmt.Errorf("stage name is required")
	}
	if _, ok := m.stages[stage]; ok {
		return fmt.Errorf("metrics for stage %s already recorded", stage)
	}
	m.order = append(m.order, stage)
	m.stages[stage] = metrics
	return nil
}

// Get returns the metrics recorded for stage.
func (m *RunMetrics) Get(stage string) (StageMetrics, bool) {
	metrics, ok := m.stages[stage]
	return metrics, ok
}

// Stages returns the recorded stage names in order.
func (m *RunMetrics) Stages() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

// Len returns the number of recorded stages.
func (m *RunMetrics) Len() int {
	return len(m.order)
}

// Totals sums every recorded stage. Costs are not rounded.
func (m *RunMetrics) Totals() StageMetrics {
	var total StageMetrics
	for _, name := range m.order {
		total = total.add(m.stages[name])
	}
	return total
}

// addUsage sums provider-reported usage; nil counts as zero.
func addUsage(a, b *adapter.Usage) *adapter.Usage {
	if b == nil {
		return a
	}
	if a == nil {
		a = &adapter.Usage{}
	}
	total := b.TotalTokens
	if total == 0 {
		total = b.PromptTokens + b.CompletionTokens
	}
	return &adapter.Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + total,
	}
}
