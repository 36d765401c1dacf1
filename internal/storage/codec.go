package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/model"
)

// Codec rules: empty or absent input decodes to the canonical empty document;
// malformed bytes or shape violations fail with errs.ErrDecode, never with a
// silently defaulted partial document.

// EncodeAccounts serializes the shared accounts collection.
func EncodeAccounts(accounts map[string]model.UserAccount) ([]byte, error) {
	return marshalIndent(accounts)
}

// DecodeAccounts parses the shared accounts collection. Every entry must
// carry its own id matching the map key and a non-empty email.
func DecodeAccounts(data []byte) (map[string]model.UserAccount, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return map[string]model.UserAccount{}, nil
	}
	var accounts map[string]model.UserAccount
	if err := json.Unmarshal(data, &accounts); err != nil {
		return nil, fmt.Errorf("accounts: %w: %w", errs.ErrDecode, err)
	}
	if accounts == nil {
		accounts = map[string]model.UserAccount{}
	}
	for id, acc := range accounts {
		if acc.ID != id {
			return nil, fmt.Errorf("accounts: %w: entry %q has id %q", errs.ErrDecode, id, acc.ID)
		}
		if acc.Email == "" {
			return nil, fmt.Errorf("accounts: %w: entry %q missing email", errs.ErrDecode, id)
		}
	}
	return accounts, nil
}

// EncodeUserData serializes a per-user document.
func EncodeUserData(d *model.UserData) ([]byte, error) {
	if d == nil {
		d = model.NewUserData()
	}
	return marshalIndent(d)
}

// DecodeUserData parses a per-user document, validating conversation and
// message shape. Unknown extra fields are tolerated; missing maps are
// initialized so first-use bootstrap is seamless.
func DecodeUserData(data []byte) (*model.UserData, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return model.NewUserData(), nil
	}
	var d model.UserData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("user data: %w: %w", errs.ErrDecode, err)
	}
	if d.APIKeys == nil {
		d.APIKeys = map[string]string{}
	}
	if d.Conversations == nil {
		d.Conversations = map[string]*model.Conversation{}
	}
	for id, conv := range d.Conversations {
		if err := validateConversation(id, conv); err != nil {
			return nil, fmt.Errorf("user data: %w: %w", errs.ErrDecode, err)
		}
	}
	return &d, nil
}

func validateConversation(id string, conv *model.Conversation) error {
	if conv == nil {
		return fmt.Errorf("conversation %q is null", id)
	}
	if conv.ID != "" && conv.ID != id {
		return fmt.Errorf("conversation %q has id %q", id, conv.ID)
	}
	if conv.TotalTokens < 0 || conv.TotalCost < 0 {
		return fmt.Errorf("conversation %q has negative totals", id)
	}
	for i, msg := range conv.Messages {
		if !model.ValidRole(msg.Role) {
			return fmt.Errorf("conversation %q message %d has role %q", id, i, msg.Role)
		}
		if msg.InputTokens < 0 || msg.OutputTokens < 0 || msg.TotalTokens < 0 || msg.Cost < 0 {
			return fmt.Errorf("conversation %q message %d has negative usage", id, i)
		}
	}
	return nil
}

func marshalIndent(v any) ([]byte, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return out, nil
}
