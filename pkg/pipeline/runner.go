package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/zen-systems/tailor/pkg/adapter"
	"github.com/zen-systems/tailor/pkg/artifact"
	"github.com/zen-systems/tailor/pkg/normalize"
	"github.com/zen-systems/tailor/pkg/prompt"
	"github.com/zen-systems/tailor/pkg/tokens"
)

// State is the position of a run in its lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateFinalized State = "finalized"
	StateFailed    State = "failed"
)

// StageError identifies the stage a run failed in.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageResult captures execution results for a stage.
type StageResult struct {
	Name     string
	Title    string
	Index    int
	Artifact *artifact.Artifact
	Metrics  StageMetrics
	// Usage is what the provider reported, if anything. Metrics are always
	// estimated locally.
	Usage    *adapter.Usage
	Duration time.Duration
}

// Output returns the stage's raw response text.
func (r *StageResult) Output() string {
	if r == nil || r.Artifact == nil {
		return ""
	}
	return r.Artifact.Content
}

// RunResult captures pipeline outputs. On failure it still holds the
// results and metrics of the stages that completed.
type RunResult struct {
	Stages  []*StageResult
	Metrics *RunMetrics
	Body    *normalize.Structured
	State   State
	// Failed names the stage that failed, if any.
	Failed   string
	Started  time.Time
	Duration time.Duration
}

// Stage returns the result for name, or nil.
func (r *RunResult) Stage(name string) *StageResult {
	for _, s := range r.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// ReportedUsage sums provider-reported usage over completed stages.
func (r *RunResult) ReportedUsage() *adapter.Usage {
	var total *adapter.Usage
	for _, s := range r.Stages {
		total = addUsage(total, s.Usage)
	}
	return total
}

// Executor runs stages in order. It keeps no state between runs.
type Executor struct {
	Invoker   *Invoker
	Estimator *tokens.Estimator
	Renderer  prompt.Renderer
	Logger    func(format string, args ...any)

	// OnStage is called after each stage completes.
	OnStage func(stage *Stage, result *StageResult)
}

// Run executes stages with the given static inputs. Any error stops the run
// and is returned as a *StageError naming the stage.
func (e *Executor) Run(ctx context.Context, stages []*Stage, inputs map[string]string) (*RunResult, error) {
	result := &RunResult{
		Metrics: NewRunMetrics(),
		State:   StateIdle,
		Started: time.Now(),
	}
	if e.Invoker == nil || e.Estimator == nil {
		result.State = StateFailed
		return result, fmt.Errorf("executor requires an invoker and an estimator")
	}
	if err := ValidateStages(stages); err != nil {
		result.State = StateFailed
		return result, err
	}

	outputs := make(map[string]string, len(stages))
	result.State = StateRunning

	for i, stage := range stages {
		stageResult, err := e.runStage(ctx, i, stage, inputs, outputs)
		if err == nil {
			err = result.Metrics.Record(stage.Name, stageResult.Metrics)
		}
		if err == nil && stage.Kind() == OutputStructured {
			result.Body, err = normalize.ParseStructured(stageResult.Output())
		}
		if err != nil {
			result.State = StateFailed
			result.Failed = stage.Name
			result.Body = nil
			result.Duration = time.Since(result.Started)
			return result, &StageError{Stage: stage.Name, Err: err}
		}

		outputs[stage.Name] = stageResult.Output()
		result.Stages = append(result.Stages, stageResult)
		e.logf("stage %d/%d %s: input %d tokens ($%.6f), output %d tokens ($%.6f)",
			i+1, len(stages), stage.Name,
			stageResult.Metrics.InputTokens, stageResult.Metrics.InputCost,
			stageResult.Metrics.OutputTokens, stageResult.Metrics.OutputCost)
		if e.OnStage != nil {
			e.OnStage(stage, stageResult)
		}
	}

	result.State = StateFinalized
	result.Duration = time.Since(result.Started)
	return result, nil
}

func (e *Executor) runStage(ctx context.Context, index int, stage *Stage, inputs, outputs map[string]string) (*StageResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	bindings, err := resolveBindings(stage, inputs, outputs)
	if err != nil {
		return nil, err
	}

	renderer := e.Renderer
	if renderer.Logger == nil {
		renderer.Logger = e.Logger
	}
	system, err := renderer.Render(stage.Name+"/system", stage.SystemTemplate, bindings)
	if err != nil {
		return nil, err
	}
	user, err := renderer.Render(stage.Name+"/user", stage.UserTemplate, bindings)
	if err != nil {
		return nil, err
	}

	var metrics StageMetrics
	metrics.InputTokens, metrics.InputCost, err = e.Estimator.Estimate(system+user, tokens.Input)
	if err != nil {
		return nil, err
	}

	resp, err := e.Invoker.Generate(ctx, system, user, stage.Name)
	if err != nil {
		return nil, err
	}

	metrics.OutputTokens, metrics.OutputCost, err = e.Estimator.Estimate(resp.Content, tokens.Output)
	if err != nil {
		return nil, err
	}

	return &StageResult{
		Name:     stage.Name,
		Title:    stage.Label(),
		Index:    index,
		Artifact: artifact.New(stage.Name, resp.Content, resp.Adapter, resp.Model),
		Metrics:  metrics,
		Usage:    resp.Usage,
		Duration: time.Since(start),
	}, nil
}

// resolveBindings maps each marker of stage to its value.
func resolveBindings(stage *Stage, inputs, outputs map[string]string) (map[string]string, error) {
	bindings := make(map[string]string, len(stage.Bindings))
	for _, marker := range stage.Markers() {
		src, err := ParseSource(stage.Bindings[marker])
		if err != nil {
			return nil, err
		}
		var (
			value string
			ok    bool
		)
		switch src.Kind {
		case SourceInput:
			value, ok = inputs[src.Name]
		case SourceStage:
			value, ok = outputs[src.Name]
		}
		if !ok {
			return nil, fmt.Errorf("%s: %s is not available", marker, src)
		}
		bindings[marker] = value
	}
	return bindings, nil
}

func (e *Executor) logf(format string, args ...any) {
	if e.Logger != nil {
		e.Logger(format, args...)
	}
}
