// Package model defines domain entities used by services and storage.
package model

import "time"

// Provider names accepted throughout the system.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
)

// Providers lists all known provider names in catalog order.
var Providers = []string{ProviderOpenAI, ProviderAnthropic, ProviderGoogle}

// KnownProvider reports whether name is one of the supported providers.
func KnownProvider(name string) bool {
	switch name {
	case ProviderOpenAI, ProviderAnthropic, ProviderGoogle:
		return true
	}
	return false
}

// Auth types stored on accounts. "email" is a password account,
// "google" an OAuth-only account without a password hash.
const (
	AuthTypeEmail  = "email"
	AuthTypeGoogle = "google"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether role is one of user/assistant/system.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAssistant || role == RoleSystem
}

// UserAccount is one registered user in the shared accounts document.
// ID is immutable after creation; Email is unique across the collection.
type UserAccount struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash,omitempty"` // absent for OAuth-only accounts
	AuthType     string    `json:"auth_type"`
	Picture      string    `json:"picture,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserData is the per-user document: encrypted API keys plus all conversations.
type UserData struct {
	APIKeys       map[string]string        `json:"api_keys"`      // provider -> opaque ciphertext
	Conversations map[string]*Conversation `json:"conversations"` // conversation id -> record
}

// NewUserData returns the canonical empty per-user document.
func NewUserData() *UserData {
	return &UserData{
		APIKeys:       map[string]string{},
		Conversations: map[string]*Conversation{},
	}
}

// Clone returns a deep copy. Storage hands clones to callers so that
// mutating a loaded document has no effect until it is saved back.
func (d *UserData) Clone() *UserData {
	if d == nil {
		return nil
	}
	out := &UserData{
		APIKeys:       make(map[string]string, len(d.APIKeys)),
		Conversations: make(map[string]*Conversation, len(d.Conversations)),
	}
	for k, v := range d.APIKeys {
		out.APIKeys[k] = v
	}
	for k, v := range d.Conversations {
		out.Conversations[k] = v.Clone()
	}
	return out
}

// Conversation is a single chat thread. Provider and Model are fixed at
// creation; Timestamp is bumped on every message append. TotalTokens and
// TotalCost are running aggregates over assistant messages.
type Conversation struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Provider    string    `json:"provider"`
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	TotalTokens int       `json:"total_tokens,omitempty"`
	TotalCost   float64   `json:"total_cost,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

// Clone returns a deep copy of the conversation.
func (c *Conversation) Clone() *Conversation {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Messages = append([]Message(nil), c.Messages...)
	return &cp
}

// Message is one turn in a conversation. Token counts and cost are present
// only on assistant messages and are stored verbatim as supplied by the
// AI-integration layer; storage never recomputes them.
type Message struct {
	Role         string  `json:"role"`
	Content      string  `json:"content"`
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	InputTokens  int     `json:"input_tokens,omitempty"`
	OutputTokens int     `json:"output_tokens,omitempty"`
	TotalTokens  int     `json:"total_tokens,omitempty"`
	Cost         float64 `json:"cost,omitempty"`
	IsError      bool    `json:"is_error,omitempty"`
}
