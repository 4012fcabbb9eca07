// Package config loads the batch-wide configuration: YAML file, environment
// overrides, defaults, then fail-fast validation. A configuration fault is
// batch-fatal and surfaces before any ticket is processed.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	defaultFetchConcurrency    = 10
	defaultGenerateConcurrency = 5
	defaultRetryDelaySeconds   = 2
	defaultHTTPTimeoutSeconds  = 30
)

type Config struct {
	AppEnv string `yaml:"app_env"`

	LLMProvider     string `yaml:"llm_provider"`
	LLMModel        string `yaml:"llm_model"`
	LLMMaxTokens    int    `yaml:"llm_max_tokens"`
	AnthropicAPIKey string `yaml:"anthropic_api_key"`
	OpenAIAPIKey    string `yaml:"openai_api_key"`

	TicketBaseURL  string `yaml:"ticket_base_url"`
	TicketEmail    string `yaml:"ticket_email"`
	TicketAPIToken string `yaml:"ticket_api_token"`

	// Two independent ceilings, one per rate-limited backend. They are never
	// merged: in both-branches mode each branch holds its own generation
	// ceiling, so the backend may see up to twice GenerateConcurrency.
	FetchConcurrency    int `yaml:"fetch_concurrency"`
	GenerateConcurrency int `yaml:"generate_concurrency"`

	RetryDelaySeconds  int `yaml:"retry_delay_seconds"`
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds"`

	// UsageFieldKey names the ticket custom field holding the
	// diagnostic-usage value consulted by the capability branch.
	UsageFieldKey string `yaml:"usage_field_key"`

	// TaxonomyPath optionally replaces the built-in category catalogue.
	TaxonomyPath string `yaml:"taxonomy_path"`

	OutputDir string `yaml:"output_dir"`

	SlackBotToken  string `yaml:"slack_bot_token"`
	SlackChannelID string `yaml:"slack_channel_id"`
}

// Load reads the YAML file at path (a missing file is fine; env vars may
// carry everything), applies env overrides and defaults, and validates.
func Load(path string) (Config, error) {
	var cfg Config

	if data, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	envOverride(&cfg.AppEnv, "APP_ENV")
	envOverride(&cfg.LLMProvider, "LLM_PROVIDER")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.OpenAIAPIKey, "OPENAI_API_KEY")
	envOverride(&cfg.TicketBaseURL, "TICKET_BASE_URL")
	envOverride(&cfg.TicketEmail, "TICKET_EMAIL")
	envOverride(&cfg.TicketAPIToken, "TICKET_API_TOKEN")
	envOverride(&cfg.UsageFieldKey, "USAGE_FIELD_KEY")
	envOverride(&cfg.TaxonomyPath, "TAXONOMY_PATH")
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.SlackChannelID, "SLACK_CHANNEL_ID")
	for _, override := range []struct {
		field *int
		key   string
	}{
		{&cfg.LLMMaxTokens, "LLM_MAX_TOKENS"},
		{&cfg.FetchConcurrency, "FETCH_CONCURRENCY"},
		{&cfg.GenerateConcurrency, "GENERATE_CONCURRENCY"},
		{&cfg.RetryDelaySeconds, "RETRY_DELAY_SECONDS"},
		{&cfg.HTTPTimeoutSeconds, "HTTP_TIMEOUT_SECONDS"},
	} {
		if err := envOverrideInt(override.field, override.key); err != nil {
			return Config{}, err
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.AppEnv == "" {
		c.AppEnv = "development"
	}
	if c.LLMProvider == "" {
		c.LLMProvider = "anthropic"
	}
	if c.FetchConcurrency == 0 {
		c.FetchConcurrency = defaultFetchConcurrency
	}
	if c.GenerateConcurrency == 0 {
		c.GenerateConcurrency = defaultGenerateConcurrency
	}
	if c.RetryDelaySeconds == 0 {
		c.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if c.HTTPTimeoutSeconds == 0 {
		c.HTTPTimeoutSeconds = defaultHTTPTimeoutSeconds
	}
	if c.OutputDir == "" {
		c.OutputDir = "./reports"
	}
}

// Validate enforces the config invariants, including presence of the API
// key for the selected provider.
func (c Config) Validate() error {
	switch c.LLMProvider {
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
	default:
		return fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got %q", c.LLMProvider)
	}

	if c.TicketBaseURL == "" {
		return fmt.Errorf("ticket_base_url is required")
	}
	if c.TicketAPIToken == "" {
		return fmt.Errorf("ticket_api_token is required")
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("invalid fetch_concurrency %d: must be >= 1", c.FetchConcurrency)
	}
	if c.GenerateConcurrency < 1 {
		return fmt.Errorf("invalid generate_concurrency %d: must be >= 1", c.GenerateConcurrency)
	}
	if c.RetryDelaySeconds < 0 {
		return fmt.Errorf("invalid retry_delay_seconds %d: must be >= 0", c.RetryDelaySeconds)
	}
	if c.HTTPTimeoutSeconds < 5 {
		return fmt.Errorf("invalid http_timeout_seconds %d: must be >= 5", c.HTTPTimeoutSeconds)
	}
	return nil
}

// RetryDelay returns the configured retry delay as a duration.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// HTTPTimeout returns the per-request timeout for ticket source calls.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// NewLogger builds the zap logger for the configured environment.
func NewLogger(c Config) (*zap.Logger, error) {
	if c.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) error {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", envKey, val, err)
		}
		*field = parsed
	}
	return nil
}
