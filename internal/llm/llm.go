// Package llm provides uniform access to the text-generation backend. The
// pipeline sees a single Generator interface; the concrete vendor client is
// resolved exactly once at startup and never re-selected mid-batch.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Generator is the text-generation collaborator: one prompt in, one text
// completion out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Settings selects and configures the concrete provider.
type Settings struct {
	Provider        string
	Model           string
	AnthropicAPIKey string
	OpenAIAPIKey    string
	MaxTokens       int
}

const (
	defaultAnthropicModel = "claude-sonnet-4-5-20250929"
	defaultOpenAIModel    = "gpt-4o-mini"
	defaultMaxTokens      = 4096
)

// New builds the Generator for the configured provider. A missing API key
// for the selected provider is a configuration fault and fails here, before
// any ticket is processed.
func New(s Settings, logger *zap.Logger) (Generator, error) {
	if s.MaxTokens <= 0 {
		s.MaxTokens = defaultMaxTokens
	}
	switch s.Provider {
	case "anthropic":
		if s.AnthropicAPIKey == "" {
			return nil, fmt.Errorf("anthropic_api_key is required when llm_provider=anthropic")
		}
		if s.Model == "" {
			s.Model = defaultAnthropicModel
		}
		return newAnthropic(s, logger), nil
	case "openai":
		if s.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("openai_api_key is required when llm_provider=openai")
		}
		if s.Model == "" {
			s.Model = defaultOpenAIModel
		}
		return newOpenAI(s, logger), nil
	}
	return nil, fmt.Errorf("llm_provider must be 'anthropic' or 'openai', got %q", s.Provider)
}

// TransientError marks a generation failure as retry-eligible (rate limits,
// server errors, timeouts).
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string   { return e.Err.Error() }
func (e *TransientError) Unwrap() error   { return e.Err }
func (e *TransientError) Transient() bool { return true }

// classifyErr wraps retry-eligible API failures in TransientError. Status
// codes are checked by the vendor clients; this catches what leaks through
// as plain text.
func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"429", "rate limit", "too many requests",
		"500", "502", "503", "529",
		"internal server error", "server_error", "overloaded",
		"timeout", "deadline exceeded", "connection reset", "connection refused",
	} {
		if strings.Contains(msg, marker) {
			return &TransientError{Err: err}
		}
	}
	return err
}

func transientStatus(code int) bool {
	return code == 408 || code == 429 || code >= 500
}
