package provider

import (
	"context"
	"errors"

	"google.golang.org/genai"

	"github.com/and161185/ai-chat-hub/internal/model"
)

// Google talks to the Gemini API.
type Google struct{}

func (c *Google) Generate(ctx context.Context, modelID string, messages []model.Message, apiKey string) (Result, error) {
	if apiKey == "" {
		return Result{}, errors.New("missing Google API key")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return Result{}, err
	}

	system, turns := splitSystem(messages)
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: system}}},
		}
	}

	contents := make([]*genai.Content, 0, len(turns))
	for _, m := range turns {
		role := genai.RoleUser
		if m.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}

	resp, err := client.Models.GenerateContent(ctx, modelID, contents, cfg)
	if err != nil {
		return Result{}, err
	}

	out := Result{Content: resp.Text()}
	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	return out, nil
}
