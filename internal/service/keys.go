package service

import (
	"context"
	"fmt"

	"github.com/and161185/ai-chat-hub/internal/crypto"
	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/model"
)

// UserDataStore is the slice of the document store the key and chat services
// need. All read-modify-write goes through WithUserData so concurrent
// requests for one user cannot lose updates.
type UserDataStore interface {
	LoadUserData(ctx context.Context, userID string) (*model.UserData, error)
	WithUserData(ctx context.Context, userID string, fn func(data *model.UserData) error) error
}

// KeyStatus reports whether a provider key is usable without revealing it.
type KeyStatus struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked"`
}

// KeyService stores per-user provider API keys encrypted at rest and
// resolves the effective key for a request.
type KeyService struct {
	data     UserDataStore
	sealer   *crypto.Sealer
	fallback map[string]string // provider -> process-wide fallback key
}

// NewKeyService constructs KeyService. fallback maps provider names to the
// process-wide keys used when a user has not stored their own.
func NewKeyService(data UserDataStore, sealer *crypto.Sealer, fallback map[string]string) *KeyService {
	if fallback == nil {
		fallback = map[string]string{}
	}
	return &KeyService{data: data, sealer: sealer, fallback: fallback}
}

// SaveKeys seals the submitted non-empty keys and merges them over the user's
// stored ones inside a single lock span. Empty submissions leave the existing
// key untouched.
func (s *KeyService) SaveKeys(ctx context.Context, userID string, keys map[string]string) error {
	sealed := make(map[string]string, len(keys))
	for providerName, key := range keys {
		if !model.KnownProvider(providerName) {
			return fmt.Errorf("%w: unknown provider %q", errs.ErrValidation, providerName)
		}
		if key == "" {
			continue
		}
		ct, err := s.sealer.Seal(key)
		if err != nil {
			return err
		}
		sealed[providerName] = ct
	}
	if len(sealed) == 0 {
		return nil
	}
	return s.data.WithUserData(ctx, userID, func(data *model.UserData) error {
		for providerName, ct := range sealed {
			data.APIKeys[providerName] = ct
		}
		return nil
	})
}

// ResolveKey returns the user's stored key for the provider, falling back to
// the process-wide key. A stored ciphertext that no longer decrypts (secret
// rotated) falls back rather than failing the request. Empty result means no
// key is configured anywhere.
func (s *KeyService) ResolveKey(ctx context.Context, userID, providerName string) (string, error) {
	data, err := s.data.LoadUserData(ctx, userID)
	if err != nil {
		return "", err
	}
	if ct := data.APIKeys[providerName]; ct != "" {
		if key, err := s.sealer.Open(ct); err == nil {
			return key, nil
		}
	}
	return s.fallback[providerName], nil
}

// Status reports configuration state per provider for the settings screen.
func (s *KeyService) Status(ctx context.Context, userID string) (map[string]KeyStatus, error) {
	out := make(map[string]KeyStatus, len(model.Providers))
	for _, providerName := range model.Providers {
		key, err := s.ResolveKey(ctx, userID, providerName)
		if err != nil {
			return nil, err
		}
		out[providerName] = KeyStatus{
			Configured: key != "",
			Masked:     maskKey(key),
		}
	}
	return out, nil
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return ""
	}
	return "********************..." + key[len(key)-4:]
}
