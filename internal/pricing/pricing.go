// Package pricing holds the model catalog and per-token pricing.
package pricing

import "github.com/and161185/ai-chat-hub/internal/model"

// ModelPrice is the price per one million tokens.
type ModelPrice struct {
	Input  float64 `json:"input"`
	Output float64 `json:"output"`
}

// ProviderInfo describes one provider's display name, selectable models and
// their prices.
type ProviderInfo struct {
	Name    string                `json:"name"`
	Models  map[string]string     `json:"models"` // model id -> display name
	Pricing map[string]ModelPrice `json:"pricing"`
}

// Catalog lists every supported provider and model. Unknown models are
// chargeable at zero cost rather than rejected, so a newly released model can
// be used before the catalog catches up.
var Catalog = map[string]ProviderInfo{
	model.ProviderOpenAI: {
		Name: "OpenAI",
		Models: map[string]string{
			"gpt-4o":        "GPT-4o",
			"gpt-4o-mini":   "GPT-4o Mini",
			"gpt-4-turbo":   "GPT-4 Turbo",
			"gpt-3.5-turbo": "GPT-3.5 Turbo",
		},
		Pricing: map[string]ModelPrice{
			"gpt-4o":        {Input: 2.50, Output: 10.00},
			"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
			"gpt-4-turbo":   {Input: 10.00, Output: 30.00},
			"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},
		},
	},
	model.ProviderAnthropic: {
		Name: "Anthropic",
		Models: map[string]string{
			"claude-sonnet-4-20250514":   "Claude Sonnet 4",
			"claude-3-5-sonnet-20241022": "Claude 3.5 Sonnet",
			"claude-3-5-haiku-20241022":  "Claude 3.5 Haiku",
			"claude-3-opus-20240229":     "Claude 3 Opus",
		},
		Pricing: map[string]ModelPrice{
			"claude-sonnet-4-20250514":   {Input: 3.00, Output: 15.00},
			"claude-3-5-sonnet-20241022": {Input: 3.00, Output: 15.00},
			"claude-3-5-haiku-20241022":  {Input: 0.80, Output: 4.00},
			"claude-3-opus-20240229":     {Input: 15.00, Output: 75.00},
		},
	},
	model.ProviderGoogle: {
		Name: "Google",
		Models: map[string]string{
			"gemini-2.5-flash": "Gemini 2.5 Flash",
			"gemini-2.5-pro":   "Gemini 2.5 Pro",
			"gemini-2.0-flash": "Gemini 2.0 Flash",
			"gemini-1.5-pro":   "Gemini 1.5 Pro",
		},
		Pricing: map[string]ModelPrice{
			"gemini-2.5-flash": {Input: 0.10, Output: 0.40},
			"gemini-2.5-pro":   {Input: 1.25, Output: 5.00},
			"gemini-2.0-flash": {Input: 0.10, Output: 0.40},
			"gemini-1.5-pro":   {Input: 1.25, Output: 5.00},
		},
	},
}

// ProviderName returns the display name for a provider id, or the id itself
// when unknown.
func ProviderName(provider string) string {
	if info, ok := Catalog[provider]; ok {
		return info.Name
	}
	return provider
}

// Cost returns the dollar cost of a completion given token usage. Unknown
// provider/model pairs cost zero.
func Cost(provider, modelID string, inputTokens, outputTokens int) float64 {
	info, ok := Catalog[provider]
	if !ok {
		return 0
	}
	price, ok := info.Pricing[modelID]
	if !ok {
		return 0
	}
	in := float64(inputTokens) / 1_000_000 * price.Input
	out := float64(outputTokens) / 1_000_000 * price.Output
	return in + out
}
