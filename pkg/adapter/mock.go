package adapter

import (
	"context"
	"sync"
)

// MockAdapter returns deterministic responses for local runs and tests.
// Responses keyed by user prompt win; otherwise queued responses are
// returned in order; otherwise the default response.
type MockAdapter struct {
	mu              sync.Mutex
	responses       map[string]string
	queue           []string
	defaultResponse string
	requests        []Request

	Usage *Usage
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter(defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "mock response"
	}
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: defaultResponse,
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses
// keyed by user prompt.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	m := NewMockAdapter(defaultResponse)
	for k, v := range responses {
		m.responses[k] = v
	}
	return m
}

// NewScriptedAdapter creates a mock adapter that replies with responses in order.
func NewScriptedAdapter(responses ...string) *MockAdapter {
	m := NewMockAdapter("")
	m.queue = append(m.queue, responses...)
	return m
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Requests returns the requests received so far.
func (a *MockAdapter) Requests() []Request {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Request, len(a.requests))
	copy(out, a.requests)
	return out
}

// Generate returns a deterministic response for the request.
func (a *MockAdapter) Generate(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if req.Model == "" {
		req.Model = "mock-1"
	}
	a.requests = append(a.requests, req)

	content, ok := a.responses[req.User]
	if !ok && len(a.queue) > 0 {
		content, a.queue = a.queue[0], a.queue[1:]
		ok = true
	}
	if !ok {
		content = a.defaultResponse
	}
	return &Response{Content: content, Adapter: a.Name(), Model: req.Model, Usage: a.Usage}, nil
}
