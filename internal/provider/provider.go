// Package provider adapts the AI backends behind one Generate interface.
// Clients are constructed per request around the caller's API key; the
// storage layer persists the returned usage verbatim.
package provider

import (
	"context"
	"fmt"

	"github.com/and161185/ai-chat-hub/internal/model"
)

// Result is one completed assistant turn with provider-reported usage.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Client generates a completion for a conversation history.
type Client interface {
	Generate(ctx context.Context, modelID string, messages []model.Message, apiKey string) (Result, error)
}

// Registry routes a provider name to its client.
type Registry map[string]Client

// NewRegistry returns a registry covering every supported provider.
func NewRegistry() Registry {
	return Registry{
		model.ProviderOpenAI:    &OpenAI{},
		model.ProviderAnthropic: &Anthropic{},
		model.ProviderGoogle:    &Google{},
	}
}

// Generate dispatches to the named provider's client.
func (r Registry) Generate(ctx context.Context, providerName, modelID string, messages []model.Message, apiKey string) (Result, error) {
	c, ok := r[providerName]
	if !ok {
		return Result{}, fmt.Errorf("unknown provider %q", providerName)
	}
	return c.Generate(ctx, modelID, messages, apiKey)
}

// splitSystem separates system messages (joined into one prompt) from the
// conversational turns, for backends that take the system prompt out of band.
func splitSystem(messages []model.Message) (system string, turns []model.Message) {
	turns = make([]model.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == model.RoleSystem {
			if system != "" {
				system += "\n"
			}
			system += m.Content
			continue
		}
		turns = append(turns, m)
	}
	return system, turns
}
