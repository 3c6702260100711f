package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/zen-systems/tailor/pkg/prompt"
)

var configEnvVars = []string{
	"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY", "DEEPSEEK_API_KEY", "DEEPSEEK_BASE_URL",
	"TAILOR_ADAPTER", "TAILOR_MODEL", "TAILOR_TOKENIZER", "TAILOR_PIPELINE",
	"TAILOR_TEMPERATURE", "TAILOR_MARKER_POLICY",
}

// isolate runs the test in an empty directory with the config variables unset.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range configEnvVars {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return dir
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Adapter != "openai" || cfg.Model != "gpt-4o" {
		t.Fatalf("unexpected default target %s/%s", cfg.Adapter, cfg.Model)
	}
	if cfg.Temperature != 0.3 || cfg.MaxTokens != 4096 {
		t.Fatalf("unexpected generation params %v/%d", cfg.Temperature, cfg.MaxTokens)
	}
	rates := cfg.Pricing.Rates()
	if rates.Input != 5.0/1_000_000 || rates.Output != 20.0/1_000_000 {
		t.Fatalf("unexpected default rates %+v", rates)
	}
	if cfg.Markers != prompt.PolicyStrict {
		t.Fatalf("expected strict marker policy, got %s", cfg.Markers)
	}
	if cfg.Paths.Header != "data/header_data.json" || cfg.Paths.Prompts != "prompts" {
		t.Fatalf("unexpected default paths %+v", cfg.Paths)
	}
	if cfg.ConfigPath != "" {
		t.Fatalf("expected no config path, got %q", cfg.ConfigPath)
	}
}

func TestLoadFileAndEnvPrecedence(t *testing.T) {
	dir := isolate(t)

	data := []byte(`adapter: anthropic
model: opus
temperature: 0
pricing:
  input_per_million: 3
  output_per_million: 15
call:
  timeout_seconds: 30
  retry: true
markers:
  policy: warn
paths:
  resume: cv/resume.pdf
aliases:
  house: claude-sonnet-4-20250514
`)
	path := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Adapter != "anthropic" || cfg.Model != "claude-opus-4-20250514" {
		t.Fatalf("unexpected target %s/%s", cfg.Adapter, cfg.Model)
	}
	if cfg.Temperature != 0 {
		t.Fatalf("explicit zero temperature should be kept, got %v", cfg.Temperature)
	}
	if !cfg.Call.Retry || cfg.Call.Timeout().Seconds() != 30 || cfg.Call.Backoff().Milliseconds() != 1000 {
		t.Fatalf("unexpected call config %+v", cfg.Call)
	}
	if cfg.Markers != prompt.PolicyWarn {
		t.Fatalf("expected warn policy, got %s", cfg.Markers)
	}
	if cfg.Paths.Resume != "cv/resume.pdf" || cfg.Paths.JobDescription != "data/job_description.txt" {
		t.Fatalf("unexpected paths %+v", cfg.Paths)
	}
	if cfg.ConfigPath != path {
		t.Fatalf("unexpected config path %q", cfg.ConfigPath)
	}

	t.Setenv("TAILOR_MODEL", "house")
	t.Setenv("TAILOR_TEMPERATURE", "0.7")
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("load with env: %v", err)
	}
	if cfg.Model != "claude-sonnet-4-20250514" || cfg.Temperature != 0.7 {
		t.Fatalf("env should win over file: %s %v", cfg.Model, cfg.Temperature)
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAIAPIKey != "from-dotenv" || !cfg.HasAdapter("openai") {
		t.Fatalf("expected key from .env, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.HasAdapter("anthropic") || !cfg.HasAdapter("mock") {
		t.Fatalf("unexpected adapter availability")
	}
}

func TestLoadDotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := isolate(t)
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("OPENAI_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("OPENAI_API_KEY", "from-env")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OpenAIAPIKey != "from-env" {
		t.Fatalf("environment should win over .env, got %q", cfg.OpenAIAPIKey)
	}
}

func TestLoadErrors(t *testing.T) {
	dir := isolate(t)

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing explicit config")
	}

	bad := map[string]string{
		"adapter.yaml":     "adapter: cohere\n",
		"pricing.yaml":     "pricing:\n  input_per_million: 2\n  output_per_million: 2\n",
		"temperature.yaml": "temperature: 3\n",
		"policy.yaml":      "markers:\n  policy: loose\n",
		"syntax.yaml":      "adapter: [\n",
	}
	for name, content := range bad {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		if _, err := Load(path); err == nil {
			t.Fatalf("expected error for %s", name)
		}
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestOverride(t *testing.T) {
	cfg := Default()

	if err := cfg.Override("anthropic", ""); err != nil {
		t.Fatalf("override adapter: %v", err)
	}
	if cfg.Adapter != "anthropic" || cfg.Model != "claude-sonnet-4-20250514" {
		t.Fatalf("unexpected target %s/%s", cfg.Adapter, cfg.Model)
	}

	if err := cfg.Override("", "opus"); err != nil {
		t.Fatalf("override model: %v", err)
	}
	if cfg.Model != "claude-opus-4-20250514" {
		t.Fatalf("alias not resolved: %s", cfg.Model)
	}

	if err := cfg.Override("mock", "custom-model"); err != nil {
		t.Fatalf("override both: %v", err)
	}
	if cfg.Adapter != "mock" || cfg.Model != "custom-model" {
		t.Fatalf("unexpected target %s/%s", cfg.Adapter, cfg.Model)
	}

	if err := cfg.Override("nope", ""); err == nil {
		t.Fatalf("expected error for unknown adapter")
	}
}
