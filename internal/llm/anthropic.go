package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

type anthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int
	logger    *zap.Logger
}

func newAnthropic(s Settings, logger *zap.Logger) *anthropicClient {
	return &anthropicClient{
		client:    anthropic.NewClient(option.WithAPIKey(s.AnthropicAPIKey)),
		model:     s.Model,
		maxTokens: s.MaxTokens,
		logger:    logger,
	}
}

func (c *anthropicClient) Generate(ctx context.Context, prompt string) (string, error) {
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apierr *anthropic.Error
		if errors.As(err, &apierr) && transientStatus(apierr.StatusCode) {
			return "", &TransientError{Err: fmt.Errorf("anthropic API error: %w", err)}
		}
		return "", classifyErr(fmt.Errorf("anthropic API error: %w", err))
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			c.logger.Debug("anthropic response",
				zap.Int("size", len(block.Text)),
				zap.Int64("tokens_in", message.Usage.InputTokens),
				zap.Int64("tokens_out", message.Usage.OutputTokens))
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in anthropic response")
}
