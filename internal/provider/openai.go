package provider

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/and161185/ai-chat-hub/internal/model"
)

// OpenAI talks to the OpenAI chat completions API. BaseURL is overridable for
// compatible gateways and for tests.
type OpenAI struct {
	BaseURL string
}

func (c *OpenAI) Generate(ctx context.Context, modelID string, messages []model.Message, apiKey string) (Result, error) {
	if apiKey == "" {
		return Result{}, errors.New("missing OpenAI API key")
	}

	cfg := openai.DefaultConfig(apiKey)
	if c.BaseURL != "" {
		cfg.BaseURL = c.BaseURL
	}
	client := openai.NewClientWithConfig(cfg)

	chatMessages := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		chatMessages = append(chatMessages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    modelID,
		Messages: chatMessages,
	})
	if err != nil {
		return Result{}, err
	}
	if len(resp.Choices) == 0 {
		return Result{}, errors.New("openai returned no choices")
	}
	return Result{
		Content:      resp.Choices[0].Message.Content,
		InputTokens:  resp.Usage.PromptTokens,
		OutputTokens: resp.Usage.CompletionTokens,
	}, nil
}
