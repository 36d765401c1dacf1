package provider

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/and161185/ai-chat-hub/internal/model"
)

const anthropicMaxTokens = 4096

// Anthropic talks to the Anthropic messages API.
type Anthropic struct{}

func (c *Anthropic) Generate(ctx context.Context, modelID string, messages []model.Message, apiKey string) (Result, error) {
	if apiKey == "" {
		return Result{}, errors.New("missing Anthropic API key")
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	system, turns := splitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(modelID),
		MaxTokens: anthropicMaxTokens,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	for _, m := range turns {
		block := anthropic.NewTextBlock(m.Content)
		if m.Role == model.RoleAssistant {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(block))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(block))
		}
	}

	msg, err := client.Messages.New(ctx, params)
	if err != nil {
		return Result{}, err
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return Result{
		Content:      sb.String(),
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}, nil
}
