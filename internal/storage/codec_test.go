package storage

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/model"
)

func sampleUserData(t *testing.T) *model.UserData {
	t.Helper()
	d := model.NewUserData()
	d.APIKeys[model.ProviderOpenAI] = "b64ciphertext=="
	d.Conversations["c1"] = &model.Conversation{
		ID:       "c1",
		Title:    "greetings",
		Provider: model.ProviderOpenAI,
		Model:    "gpt-4o",
		Messages: []model.Message{
			{Role: model.RoleUser, Content: "hi"},
			{
				Role:         model.RoleAssistant,
				Content:      "hello",
				Provider:     model.ProviderOpenAI,
				Model:        "gpt-4o",
				InputTokens:  12,
				OutputTokens: 7,
				TotalTokens:  19,
				Cost:         0.0001,
			},
		},
		TotalTokens: 19,
		TotalCost:   0.0001,
		Timestamp:   time.Date(2026, 2, 11, 10, 30, 0, 0, time.UTC),
	}
	return d
}

func TestUserData_RoundTrip(t *testing.T) {
	t.Parallel()

	want := sampleUserData(t)
	raw, err := EncodeUserData(want)
	require.NoError(t, err)

	got, err := DecodeUserData(raw)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeUserData_EmptyInputIsCanonicalEmptyDocument(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, {}, []byte("  \n")} {
		got, err := DecodeUserData(raw)
		require.NoError(t, err)
		require.Equal(t, model.NewUserData(), got)
	}
}

func TestDecodeUserData_CorruptBytesFailWithDecodeError(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"truncated":        []byte(`{"api_keys": {"openai": "abc"`),
		"not json":         []byte("hello world"),
		"wrong type":       []byte(`{"conversations": []}`),
		"null conv":        []byte(`{"conversations": {"c1": null}}`),
		"id mismatch":      []byte(`{"conversations": {"c1": {"id": "c2", "messages": []}}}`),
		"bad role":         []byte(`{"conversations": {"c1": {"id": "c1", "messages": [{"role": "robot", "content": "x"}]}}}`),
		"negative tokens":  []byte(`{"conversations": {"c1": {"id": "c1", "messages": [{"role": "assistant", "content": "x", "input_tokens": -1}]}}}`),
		"negative totals":  []byte(`{"conversations": {"c1": {"id": "c1", "total_tokens": -5}}}`),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			doc, err := DecodeUserData(raw)
			require.Nil(t, doc)
			require.ErrorIs(t, err, errs.ErrDecode)
		})
	}
}

func TestDecodeUserData_ToleratesUnknownFields(t *testing.T) {
	t.Parallel()

	raw := []byte(`{
		"api_keys": {},
		"conversations": {},
		"some_future_field": {"nested": true}
	}`)
	got, err := DecodeUserData(raw)
	require.NoError(t, err)
	require.Equal(t, model.NewUserData(), got)
}

func TestAccounts_RoundTrip(t *testing.T) {
	t.Parallel()

	want := map[string]model.UserAccount{
		"u1": {
			ID:           "u1",
			Email:        "a@example.com",
			Name:         "A",
			PasswordHash: "argon2id$c2FsdA$aGFzaA",
			AuthType:     model.AuthTypeEmail,
			CreatedAt:    time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		},
		"u2": {
			ID:       "u2",
			Email:    "b@example.com",
			Name:     "B",
			AuthType: model.AuthTypeGoogle,
			Picture:  "https://example.com/b.png",
		},
	}
	raw, err := EncodeAccounts(want)
	require.NoError(t, err)

	got, err := DecodeAccounts(raw)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestDecodeAccounts_EmptyAndInvalid(t *testing.T) {
	t.Parallel()

	got, err := DecodeAccounts(nil)
	require.NoError(t, err)
	require.Empty(t, got)

	_, err = DecodeAccounts([]byte(`{"u1": {"id": "u2", "email": "a@example.com"}}`))
	require.ErrorIs(t, err, errs.ErrDecode)

	_, err = DecodeAccounts([]byte(`{"u1": {"id": "u1", "name": "no email"}}`))
	require.ErrorIs(t, err, errs.ErrDecode)

	_, err = DecodeAccounts([]byte(`{"u1"`))
	if !errors.Is(err, errs.ErrDecode) {
		t.Fatalf("err = %v, want ErrDecode", err)
	}
}
