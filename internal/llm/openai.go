package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

type openAIClient struct {
	client openai.Client
	model  string
	logger *zap.Logger
}

func newOpenAI(s Settings, logger *zap.Logger) *openAIClient {
	return &openAIClient{
		client: openai.NewClient(option.WithAPIKey(s.OpenAIAPIKey)),
		model:  s.Model,
		logger: logger,
	}
}

func (c *openAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	completion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
	})
	if err != nil {
		var apierr *openai.Error
		if errors.As(err, &apierr) && transientStatus(apierr.StatusCode) {
			return "", &TransientError{Err: fmt.Errorf("openai API error: %w", err)}
		}
		return "", classifyErr(fmt.Errorf("openai API error: %w", err))
	}

	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	content := completion.Choices[0].Message.Content
	c.logger.Debug("openai response",
		zap.Int("size", len(content)),
		zap.Int64("tokens_in", completion.Usage.PromptTokens),
		zap.Int64("tokens_out", completion.Usage.CompletionTokens))
	return content, nil
}
