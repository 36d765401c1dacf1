package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/model"
	"github.com/and161185/ai-chat-hub/internal/pricing"
	"github.com/and161185/ai-chat-hub/internal/provider"
)

// Generator produces one assistant turn; implemented by provider.Registry.
type Generator interface {
	Generate(ctx context.Context, providerName, modelID string, messages []model.Message, apiKey string) (provider.Result, error)
}

// KeyResolver yields the effective API key for (user, provider).
type KeyResolver interface {
	ResolveKey(ctx context.Context, userID, providerName string) (string, error)
}

const (
	defaultProvider = model.ProviderOpenAI
	defaultModel    = "gpt-4o"
	titleLimit      = 50
)

// ChatRequest is one user turn.
type ChatRequest struct {
	ConversationID string // empty to start a new conversation
	Provider       string
	Model          string
	Message        string
}

// Usage reports provider token counts and the derived cost of one turn.
type Usage struct {
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	Cost         float64 `json:"cost"`
}

// ChatResult is the completed turn.
type ChatResult struct {
	ConversationID string `json:"conversation_id"`
	Response       string `json:"response"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Usage          Usage  `json:"usage"`
}

// ConversationSummary is one list entry, newest first.
type ConversationSummary struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Timestamp   time.Time `json:"timestamp"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	TotalTokens int       `json:"total_tokens"`
	TotalCost   float64   `json:"total_cost"`
}

// ChatService owns conversation lifecycle and the send-message flow.
type ChatService struct {
	data      UserDataStore
	keys      KeyResolver
	providers Generator
	log       *zap.Logger
	now       func() time.Time
}

// NewChatService constructs ChatService.
func NewChatService(data UserDataStore, keys KeyResolver, providers Generator, log *zap.Logger) *ChatService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ChatService{data: data, keys: keys, providers: providers, log: log, now: time.Now}
}

// ListConversations returns summaries sorted most-recent-first.
func (s *ChatService) ListConversations(ctx context.Context, userID string) ([]ConversationSummary, error) {
	data, err := s.data.LoadUserData(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationSummary, 0, len(data.Conversations))
	for id, conv := range data.Conversations {
		out = append(out, ConversationSummary{
			ID:          id,
			Title:       conv.Title,
			Timestamp:   conv.Timestamp,
			Provider:    conv.Provider,
			Model:       conv.Model,
			TotalTokens: conv.TotalTokens,
			TotalCost:   conv.TotalCost,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out, nil
}

// CreateConversation starts an empty conversation and returns its id.
func (s *ChatService) CreateConversation(ctx context.Context, userID, providerName, modelID string) (string, error) {
	providerName, modelID = applyDefaults(providerName, modelID)
	if !model.KnownProvider(providerName) {
		return "", fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, providerName)
	}
	uid, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	id := uid.String()
	err = s.data.WithUserData(ctx, userID, func(data *model.UserData) error {
		data.Conversations[id] = &model.Conversation{
			ID:        id,
			Title:     "New Chat",
			Provider:  providerName,
			Model:     modelID,
			Messages:  []model.Message{},
			Timestamp: s.now().UTC(),
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// GetConversation returns a snapshot of one conversation.
func (s *ChatService) GetConversation(ctx context.Context, userID, convID string) (*model.Conversation, error) {
	data, err := s.data.LoadUserData(ctx, userID)
	if err != nil {
		return nil, err
	}
	conv, ok := data.Conversations[convID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", convID, errs.ErrNotFound)
	}
	return conv, nil
}

// DeleteConversation removes one conversation.
func (s *ChatService) DeleteConversation(ctx context.Context, userID, convID string) error {
	return s.data.WithUserData(ctx, userID, func(data *model.UserData) error {
		if _, ok := data.Conversations[convID]; !ok {
			return fmt.Errorf("conversation %s: %w", convID, errs.ErrNotFound)
		}
		delete(data.Conversations, convID)
		return nil
	})
}

// SendMessage runs one chat turn. The user message is appended and the
// history snapshotted inside one lock span; the provider call happens outside
// any lock so network time never serializes a user's storage; the assistant
// reply is then applied to the current document in a second lock span. A
// provider failure is recorded as an error-flagged assistant message and
// returned to the caller.
func (s *ChatService) SendMessage(ctx context.Context, userID string, req ChatRequest) (ChatResult, error) {
	if req.Message == "" {
		return ChatResult{}, fmt.Errorf("%w: empty message", errs.ErrValidation)
	}
	req.Provider, req.Model = applyDefaults(req.Provider, req.Model)
	if !model.KnownProvider(req.Provider) {
		return ChatResult{}, fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, req.Provider)
	}

	apiKey, err := s.keys.ResolveKey(ctx, userID, req.Provider)
	if err != nil {
		return ChatResult{}, err
	}
	if apiKey == "" {
		return ChatResult{}, fmt.Errorf("%s: %w", pricing.ProviderName(req.Provider), errs.ErrNoAPIKey)
	}

	convID, history, err := s.appendUserMessage(ctx, userID, req)
	if err != nil {
		return ChatResult{}, err
	}

	result, genErr := s.providers.Generate(ctx, req.Provider, req.Model, history, apiKey)
	if genErr != nil {
		s.log.Warn("provider call failed",
			zap.String("provider", req.Provider),
			zap.String("model", req.Model),
			zap.Error(genErr),
		)
		if err := s.appendAssistantError(ctx, userID, convID, req, history, genErr); err != nil {
			return ChatResult{ConversationID: convID}, err
		}
		return ChatResult{ConversationID: convID}, genErr
	}

	cost := pricing.Cost(req.Provider, req.Model, result.InputTokens, result.OutputTokens)
	assistant := model.Message{
		Role:         model.RoleAssistant,
		Content:      result.Content,
		Provider:     req.Provider,
		Model:        req.Model,
		InputTokens:  result.InputTokens,
		OutputTokens: result.OutputTokens,
		TotalTokens:  result.InputTokens + result.OutputTokens,
		Cost:         cost,
	}
	if err := s.applyReply(ctx, userID, convID, req, history, assistant); err != nil {
		return ChatResult{ConversationID: convID}, err
	}

	return ChatResult{
		ConversationID: convID,
		Response:       result.Content,
		Provider:       req.Provider,
		Model:          req.Model,
		Usage: Usage{
			InputTokens:  result.InputTokens,
			OutputTokens: result.OutputTokens,
			TotalTokens:  result.InputTokens + result.OutputTokens,
			Cost:         cost,
		},
	}, nil
}

// appendUserMessage is phase one: get-or-create the conversation, append the
// user turn and snapshot the history for the provider call.
func (s *ChatService) appendUserMessage(ctx context.Context, userID string, req ChatRequest) (string, []model.Message, error) {
	convID := req.ConversationID
	if convID == "" {
		uid, err := uuid.NewV4()
		if err != nil {
			return "", nil, err
		}
		convID = uid.String()
	}

	var history []model.Message
	err := s.data.WithUserData(ctx, userID, func(data *model.UserData) error {
		conv, ok := data.Conversations[convID]
		if !ok {
			if req.ConversationID != "" {
				return fmt.Errorf("conversation %s: %w", convID, errs.ErrNotFound)
			}
			conv = &model.Conversation{
				ID:       convID,
				Title:    truncateTitle(req.Message),
				Provider: req.Provider,
				Model:    req.Model,
				Messages: []model.Message{},
			}
			data.Conversations[convID] = conv
		}
		conv.Messages = append(conv.Messages, model.Message{Role: model.RoleUser, Content: req.Message})
		if len(conv.Messages) == 1 {
			conv.Title = truncateTitle(req.Message)
		}
		conv.Timestamp = s.now().UTC()
		history = append([]model.Message(nil), conv.Messages...)
		return nil
	})
	if err != nil {
		return "", nil, err
	}
	return convID, history, nil
}

// applyReply is phase two: apply one assistant message to the current
// document. If the conversation vanished between phases (deleted from another
// tab) it is reinstated from the held history so the reply is not lost.
func (s *ChatService) applyReply(ctx context.Context, userID, convID string, req ChatRequest, history []model.Message, msg model.Message) error {
	return s.data.WithUserData(ctx, userID, func(data *model.UserData) error {
		conv, ok := data.Conversations[convID]
		if !ok {
			conv = &model.Conversation{
				ID:       convID,
				Title:    truncateTitle(req.Message),
				Provider: req.Provider,
				Model:    req.Model,
				Messages: append([]model.Message(nil), history...),
			}
			data.Conversations[convID] = conv
		}
		conv.Messages = append(conv.Messages, msg)
		conv.TotalTokens += msg.TotalTokens
		conv.TotalCost += msg.Cost
		conv.Timestamp = s.now().UTC()
		return nil
	})
}

func (s *ChatService) appendAssistantError(ctx context.Context, userID, convID string, req ChatRequest, history []model.Message, genErr error) error {
	return s.applyReply(ctx, userID, convID, req, history, model.Message{
		Role:     model.RoleAssistant,
		Content:  "Error: " + genErr.Error(),
		Provider: req.Provider,
		Model:    req.Model,
		IsError:  true,
	})
}

func applyDefaults(providerName, modelID string) (string, string) {
	if providerName == "" {
		providerName = defaultProvider
	}
	if modelID == "" {
		modelID = defaultModel
	}
	return providerName, modelID
}

func truncateTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleLimit {
		return message
	}
	return string(runes[:titleLimit]) + "..."
}
