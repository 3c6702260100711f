package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/zen-systems/tailor/pkg/prompt"
	"github.com/zen-systems/tailor/pkg/tokens"
)

// DefaultConfigFile is read from the working directory when no path is given.
const DefaultConfigFile = "tailor.yaml"

// Config holds the application configuration.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	DeepSeekAPIKey  string
	DeepSeekBaseURL string

	Adapter     string
	Model       string
	Temperature float64
	MaxTokens   int
	Tokenizer   string

	Pricing  PricingConfig
	Call     CallConfig
	Markers  prompt.Policy
	Paths    PathsConfig
	Pipeline string
	Aliases  *ModelAliases

	// ConfigPath is the file the config was read from, empty for defaults.
	ConfigPath string
}

// FileConfig represents the structure of tailor.yaml.
type FileConfig struct {
	Adapter         string            `yaml:"adapter"`
	Model           string            `yaml:"model"`
	Temperature     *float64          `yaml:"temperature"`
	MaxTokens       int               `yaml:"max_tokens"`
	Tokenizer       string            `yaml:"tokenizer"`
	Pricing         PricingConfig     `yaml:"pricing"`
	Call            CallConfig        `yaml:"call"`
	Markers         MarkersConfig     `yaml:"markers"`
	Paths           PathsConfig       `yaml:"paths"`
	Pipeline        string            `yaml:"pipeline"`
	Aliases         map[string]string `yaml:"aliases"`
	DeepSeekBaseURL string            `yaml:"deepseek_base_url"`
}

// PricingConfig defines USD prices per million tokens.
type PricingConfig struct {
	InputPerMillion  float64 `yaml:"input_per_million"`
	OutputPerMillion float64 `yaml:"output_per_million"`
}

// Rates converts the pricing into per-token rates.
func (p PricingConfig) Rates() tokens.Rates {
	return tokens.Rates{
		Input:  p.InputPerMillion / 1_000_000,
		Output: p.OutputPerMillion / 1_000_000,
	}
}

// CallConfig bounds each model call.
type CallConfig struct {
	TimeoutSeconds int  `yaml:"timeout_seconds"`
	Retry          bool `yaml:"retry"`
	BackoffMs      int  `yaml:"backoff_ms"`
}

// Timeout returns the per-call timeout.
func (c CallConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// Backoff returns the delay before the single retry.
func (c CallConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// MarkersConfig selects the unresolved-marker policy.
type MarkersConfig struct {
	Policy string `yaml:"policy"`
}

// PathsConfig locates inputs and outputs.
type PathsConfig struct {
	JobDescription string `yaml:"job_description"`
	Resume         string `yaml:"resume"`
	Header         string `yaml:"header"`
	Prompts        string `yaml:"prompts"`
	Results        string `yaml:"results"`
	Resumes        string `yaml:"resumes"`
}

// Load reads .env, the config file and environment variables.
// Environment variables take precedence over file configuration. API keys
// are only read from the environment.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	fileConfig, resolvedPath, err := loadFileConfig(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GoogleAPIKey:    os.Getenv("GOOGLE_API_KEY"),
		DeepSeekAPIKey:  os.Getenv("DEEPSEEK_API_KEY"),
		DeepSeekBaseURL: getEnvOrDefault("DEEPSEEK_BASE_URL", fileConfig.DeepSeekBaseURL),
		Adapter:         getEnvOrDefault("TAILOR_ADAPTER", fileConfig.Adapter),
		Model:           getEnvOrDefault("TAILOR_MODEL", fileConfig.Model),
		MaxTokens:       fileConfig.MaxTokens,
		Tokenizer:       getEnvOrDefault("TAILOR_TOKENIZER", fileConfig.Tokenizer),
		Pricing:         fileConfig.Pricing,
		Call:            fileConfig.Call,
		Paths:           fileConfig.Paths,
		Pipeline:        getEnvOrDefault("TAILOR_PIPELINE", fileConfig.Pipeline),
		ConfigPath:      resolvedPath,
	}

	cfg.Temperature = -1
	if fileConfig.Temperature != nil {
		cfg.Temperature = *fileConfig.Temperature
	}
	if v := os.Getenv("TAILOR_TEMPERATURE"); v != "" {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TAILOR_TEMPERATURE %q: %w", v, err)
		}
		cfg.Temperature = t
	}

	policy, err := prompt.ParsePolicy(getEnvOrDefault("TAILOR_MARKER_POLICY", fileConfig.Markers.Policy))
	if err != nil {
		return nil, err
	}
	cfg.Markers = policy

	cfg.Aliases = DefaultAliases()
	for alias, model := range fileConfig.Aliases {
		cfg.Aliases.Aliases[alias] = model
	}

	applyDefaults(cfg)
	cfg.Model = cfg.Aliases.Resolve(cfg.Model)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	cfg := &Config{Temperature: -1, Markers: prompt.PolicyStrict, Aliases: DefaultAliases()}
	applyDefaults(cfg)
	return cfg
}

// Validate checks values that would make a run meaningless.
func (c *Config) Validate() error {
	switch c.Adapter {
	case "openai", "anthropic", "google", "deepseek", "mock":
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", c.Temperature)
	}
	if c.Pricing.InputPerMillion == c.Pricing.OutputPerMillion {
		return fmt.Errorf("input and output pricing must differ")
	}
	if c.Call.TimeoutSeconds <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	return nil
}

// Override applies command-line adapter and model choices. Switching adapter
// without naming a model selects that adapter's default model.
func (c *Config) Override(adapterName, model string) error {
	if adapterName != "" && adapterName != c.Adapter {
		c.Adapter = adapterName
		if model == "" {
			c.Model = defaultModels[adapterName]
		}
	}
	if model != "" {
		c.Model = c.Aliases.Resolve(model)
	}
	return c.Validate()
}

// HasAdapter returns true if the API key for the given adapter is configured.
func (c *Config) HasAdapter(name string) bool {
	switch name {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "deepseek":
		return c.DeepSeekAPIKey != ""
	case "mock":
		return true
	default:
		return false
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Adapter == "" {
		cfg.Adapter = "openai"
	}
	if cfg.Model == "" {
		cfg.Model = defaultModels[cfg.Adapter]
	}
	if cfg.Temperature < 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4096
	}
	if cfg.Tokenizer == "" {
		cfg.Tokenizer = "bpe"
	}
	if cfg.Pricing.InputPerMillion == 0 && cfg.Pricing.OutputPerMillion == 0 {
		cfg.Pricing = PricingConfig{InputPerMillion: 5, OutputPerMillion: 20}
	}
	if cfg.Call.TimeoutSeconds == 0 {
		cfg.Call.TimeoutSeconds = 120
	}
	if cfg.Call.BackoffMs == 0 {
		cfg.Call.BackoffMs = 1000
	}
	if cfg.Markers == "" {
		cfg.Markers = prompt.PolicyStrict
	}
	p := &cfg.Paths
	if p.JobDescription == "" {
		p.JobDescription = "data/job_description.txt"
	}
	if p.Resume == "" {
		p.Resume = "data/resume.txt"
	}
	if p.Header == "" {
		p.Header = "data/header_data.json"
	}
	if p.Prompts == "" {
		p.Prompts = "prompts"
	}
	if p.Results == "" {
		p.Results = "results"
	}
	if p.Resumes == "" {
		p.Resumes = "resumes"
	}
}

var defaultModels = map[string]string{
	"openai":    "gpt-4o",
	"anthropic": "claude-sonnet-4-20250514",
	"google":    "gemini-2.5-pro",
	"deepseek":  "deepseek-chat",
	"mock":      "mock-1",
}

// loadFileConfig reads the config file. A missing default file yields an
// empty config; a missing explicit file is an error.
func loadFileConfig(path string) (*FileConfig, string, error) {
	cfg := &FileConfig{}
	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, "", nil
		}
		return nil, "", fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, "", fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, path, nil
}

// loadDotEnv loads KEY=VALUE pairs without overriding variables already set.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := strings.TrimSpace(os.Getenv(envVar)); val != "" {
		return val
	}
	return defaultValue
}
