// Package report formats and stores the results of a tailoring run.
package report

import (
	"fmt"
	"strings"

	"github.com/zen-systems/tailor/pkg/pipeline"
)

// FormatUSD renders an amount with six decimals, e.g. $0.000125.
func FormatUSD(amount float64) string {
	return fmt.Sprintf("$%.6f", amount)
}

// Markdown renders every completed stage's raw output, a per-stage metrics
// table and the run totals.
func Markdown(result *pipeline.RunResult) string {
	var b strings.Builder

	for _, s := range result.Stages {
		fmt.Fprintf(&b, "## Stage %d: %s\n%s\n\n", s.Index+1, s.Title, s.Output())
	}

	if len(result.Stages) > 0 {
		b.WriteString("## Stage Metrics\n\n")
		b.WriteString("| # | Stage | Input Tokens | Input Cost | Output Tokens | Output Cost |\n")
		b.WriteString("|---:|---|---:|---:|---:|---:|\n")
		for _, s := range result.Stages {
			fmt.Fprintf(&b, "| %d | %s | %d | %s | %d | %s |\n",
				s.Index+1, strings.ReplaceAll(s.Title, "|", `\|`),
				s.Metrics.InputTokens, FormatUSD(s.Metrics.InputCost),
				s.Metrics.OutputTokens, FormatUSD(s.Metrics.OutputCost))
		}
		b.WriteString("\n")
	}

	b.WriteString(TotalSummary(result.Metrics.Totals()))
	return b.String()
}

// TotalSummary is the closing cost section of the report.
func TotalSummary(totals pipeline.StageMetrics) string {
	return fmt.Sprintf("## Total Token Usage & Cost Summary\n"+
		"- Total Input Tokens: %d, Total Input Cost: %s\n"+
		"- Total Output Tokens: %d, Total Output Cost: %s\n",
		totals.InputTokens, FormatUSD(totals.InputCost),
		totals.OutputTokens, FormatUSD(totals.OutputCost))
}

// StageSummary is the console line block printed after a stage completes.
func StageSummary(stage *pipeline.Stage, result *pipeline.StageResult) string {
	done := stage.Summary
	if done == "" {
		done = stage.Label() + " done."
	}
	return fmt.Sprintf("Stage %d Complete: %s\nInput Tokens: %d, Cost: %s\nOutput Tokens: %d, Cost: %s\n",
		result.Index+1, done,
		result.Metrics.InputTokens, FormatUSD(result.Metrics.InputCost),
		result.Metrics.OutputTokens, FormatUSD(result.Metrics.OutputCost))
}
