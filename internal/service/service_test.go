package service

import (
	"context"
	"sync"
	"time"

	"github.com/and161185/ai-chat-hub/internal/model"
	"github.com/and161185/ai-chat-hub/internal/provider"
)

// memStore is an in-memory stand-in for storage.Store implementing both
// AccountStore and UserDataStore with the same serialization guarantees.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]model.UserAccount
	userData map[string]*model.UserData

	failNext error // returned by the next mutating call, then cleared
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[string]model.UserAccount{},
		userData: map[string]*model.UserData{},
	}
}

func (m *memStore) LoadAccounts(context.Context) (map[string]model.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.UserAccount, len(m.accounts))
	for k, v := range m.accounts {
		out[k] = v
	}
	return out, nil
}

func (m *memStore) WithAccounts(_ context.Context, fn func(map[string]model.UserAccount) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	return fn(m.accounts)
}

func (m *memStore) LoadUserData(_ context.Context, userID string) (*model.UserData, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.userData[userID]
	if !ok {
		return model.NewUserData(), nil
	}
	return data.Clone(), nil
}

func (m *memStore) WithUserData(_ context.Context, userID string, fn func(*model.UserData) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}
	data, ok := m.userData[userID]
	if !ok {
		data = model.NewUserData()
	}
	if err := fn(data); err != nil {
		return err
	}
	m.userData[userID] = data
	return nil
}

func (m *memStore) takeFailure() error {
	err := m.failNext
	m.failNext = nil
	return err
}

// openLimiter allows everything.
type openLimiter struct{}

func (openLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, 0, nil
}
func (openLimiter) Success(context.Context, string, []byte) error { return nil }
func (openLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, 0, nil
}

// closedLimiter blocks everything.
type closedLimiter struct{}

func (closedLimiter) Allow(context.Context, string, []byte) (bool, time.Duration, error) {
	return false, time.Minute, nil
}
func (closedLimiter) Success(context.Context, string, []byte) error { return nil }
func (closedLimiter) Failure(context.Context, string, []byte) (bool, time.Duration, error) {
	return true, time.Minute, nil
}

// fakeGenerator records calls and plays back a scripted result.
type fakeGenerator struct {
	mu           sync.Mutex
	lastProvider string
	lastModel    string
	lastMessages []model.Message
	lastKey      string
	result       provider.Result
	err          error
}

func (f *fakeGenerator) Generate(_ context.Context, providerName, modelID string, messages []model.Message, apiKey string) (provider.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastProvider, f.lastModel, f.lastKey = providerName, modelID, apiKey
	f.lastMessages = append([]model.Message(nil), messages...)
	return f.result, f.err
}

// staticKeys resolves every provider to the same key.
type staticKeys struct{ key string }

func (s staticKeys) ResolveKey(context.Context, string, string) (string, error) {
	return s.key, nil
}
