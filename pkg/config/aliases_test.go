package config

import (
	"reflect"
	"testing"
)

func TestResolve(t *testing.T) {
	aliases := &ModelAliases{
		Aliases: map[string]string{
			"4o":     "gpt-4o",
			"sonnet": "claude-sonnet-4-20250514",
		},
	}

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "resolve known alias",
			input:    "4o",
			expected: "gpt-4o",
		},
		{
			name:     "resolve another alias",
			input:    "sonnet",
			expected: "claude-sonnet-4-20250514",
		},
		{
			name:     "unknown alias returns input unchanged",
			input:    "unknown-model",
			expected: "unknown-model",
		},
		{
			name:     "canonical model returns unchanged",
			input:    "gpt-4o",
			expected: "gpt-4o",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := aliases.Resolve(tt.input)
			if result != tt.expected {
				t.Errorf("Resolve(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestResolve_NilAliases(t *testing.T) {
	var aliases *ModelAliases
	if result := aliases.Resolve("4o"); result != "4o" {
		t.Errorf("Resolve on nil should return input, got %q", result)
	}
}

func TestValidateModel(t *testing.T) {
	aliases := DefaultAliases()

	if err := aliases.ValidateModel("openai", "gpt-4o"); err != nil {
		t.Errorf("expected gpt-4o to be valid: %v", err)
	}
	if err := aliases.ValidateModel("openai", "claude-opus-4-20250514"); err == nil {
		t.Errorf("expected cross-provider model to be rejected")
	}
	if err := aliases.ValidateModel("nope", "gpt-4o"); err == nil {
		t.Errorf("expected unknown adapter to be rejected")
	}
}

func TestProviderLookups(t *testing.T) {
	aliases := DefaultAliases()

	if got := aliases.GetProviderForModel("deepseek-chat"); got != "deepseek" {
		t.Errorf("GetProviderForModel = %q", got)
	}
	if got := aliases.GetProviderForModel("missing"); got != "" {
		t.Errorf("expected empty provider for unknown model, got %q", got)
	}
	want := []string{"anthropic", "deepseek", "google", "mock", "openai"}
	if got := aliases.ListProviders(); !reflect.DeepEqual(got, want) {
		t.Errorf("ListProviders = %v", got)
	}
	names := aliases.ListAliases()
	if len(names) == 0 || names[0] != "4o" {
		t.Errorf("expected sorted alias names, got %v", names)
	}
}
