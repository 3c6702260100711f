package adapter

import "context"

// Adapter defines the interface for LLM provider adapters.
type Adapter interface {
	// Generate sends a system/user message pair to the model and returns its reply.
	Generate(ctx context.Context, req Request) (*Response, error)

	// Name returns the adapter's identifier.
	Name() string

	// Models returns the list of supported models. The first entry is the default.
	Models() []string
}

// DefaultModel returns the first model an adapter advertises.
func DefaultModel(a Adapter) string {
	if a == nil {
		return ""
	}
	models := a.Models()
	if len(models) == 0 {
		return ""
	}
	return models[0]
}
