package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zen-systems/tailor/pkg/adapter"
)

// Default call parameters.
const (
	DefaultTemperature = 0.3
	DefaultMaxTokens   = 4096
	DefaultTimeout     = 120 * time.Second
)

// ModelInvocationError is returned when a model call fails.
type ModelInvocationError struct {
	Stage    string
	Adapter  string
	Model    string
	Attempts int
	Err      error
}

func (e *ModelInvocationError) Error() string {
	return fmt.Sprintf("[%s] %s/%s call failed after %d attempt(s): %v", e.Stage, e.Adapter, e.Model, e.Attempts, e.Err)
}

func (e *ModelInvocationError) Unwrap() error {
	return e.Err
}

// Invoker sends one system/user prompt pair to a model with fixed
// generation parameters.
type Invoker struct {
	Adapter     adapter.Adapter
	Model       string
	Temperature float64
	MaxTokens   int

	// Timeout bounds each attempt. Zero means DefaultTimeout.
	Timeout time.Duration
	// Retry allows a single retry of a transient failure after Backoff.
	Retry   bool
	Backoff time.Duration

	Logger func(format string, args ...any)
}

// Invoke returns the trimmed response text.
func (i *Invoker) Invoke(ctx context.Context, system, user, stage string) (string, error) {
	resp, err := i.Generate(ctx, system, user, stage)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// Generate performs the call and returns the full response with its content
// trimmed of surrounding whitespace.
func (i *Invoker) Generate(ctx context.Context, system, user, stage string) (*adapter.Response, error) {
	if i.Adapter == nil {
		return nil, &ModelInvocationError{Stage: stage, Model: i.Model, Err: fmt.Errorf("no adapter configured")}
	}

	model := i.Model
	if model == "" {
		model = adapter.DefaultModel(i.Adapter)
	}
	req := adapter.Request{
		Model:       model,
		System:      system,
		User:        user,
		Temperature: i.Temperature,
		MaxTokens:   i.MaxTokens,
	}
	if req.MaxTokens <= 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	attempts := 1
	if i.Retry {
		attempts = 2
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		resp, err := i.call(ctx, req)
		if err == nil {
			resp.Content = strings.TrimSpace(resp.Content)
			if resp.Adapter == "" {
				resp.Adapter = i.Adapter.Name()
			}
			if resp.Model == "" {
				resp.Model = model
			}
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil || !adapter.IsTransient(err) || attempt == attempts {
			return nil, &ModelInvocationError{
				Stage:    stage,
				Adapter:  i.Adapter.Name(),
				Model:    model,
				Attempts: attempt,
				Err:      err,
			}
		}

		i.logf("[%s] transient error, retrying in %s: %v", stage, i.Backoff, err)
		if err := sleepWithContext(ctx, i.Backoff); err != nil {
			return nil, &ModelInvocationError{Stage: stage, Adapter: i.Adapter.Name(), Model: model, Attempts: attempt, Err: err}
		}
	}

	return nil, &ModelInvocationError{Stage: stage, Adapter: i.Adapter.Name(), Model: model, Attempts: attempts, Err: lastErr}
}

func (i *Invoker) call(ctx context.Context, req adapter.Request) (*adapter.Response, error) {
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := i.Adapter.Generate(callCtx, req)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, fmt.Errorf("adapter %s returned no response", i.Adapter.Name())
	}
	return resp, nil
}

func (i *Invoker) logf(format string, args ...any) {
	if i.Logger != nil {
		i.Logger(format, args...)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
