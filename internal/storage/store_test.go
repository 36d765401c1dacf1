package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(Config{Dir: t.TempDir()})
	require.NoError(t, err)
	return s
}

func TestNew_RequiresDir(t *testing.T) {
	t.Parallel()

	_, err := New(Config{})
	require.Error(t, err)
}

func TestLoadUserData_AbsentFileIsEmptyDocument(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	got, err := s.LoadUserData(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, model.NewUserData(), got)
}

func TestSaveLoadUserData_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	want := model.NewUserData()
	want.APIKeys["openai"] = "ciphertext"
	want.Conversations["c1"] = &model.Conversation{
		ID:        "c1",
		Title:     "hi",
		Provider:  "openai",
		Model:     "gpt-4o",
		Messages:  []model.Message{{Role: "user", Content: "hi"}},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveUserData(ctx, "u1", want))

	got, err := s.LoadUserData(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadUserData_RejectsPathEscapingIDs(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	for _, id := range []string{"", "..", "a/b", `a\b`} {
		_, err := s.LoadUserData(context.Background(), id)
		require.Error(t, err, "id %q", id)
	}
}

func TestLoadUserData_CorruptFileSurfacesDecodeError(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	path, err := s.paths.UserDataPath("u1")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte(`{"api_keys": {`), 0o644))

	_, err = s.LoadUserData(context.Background(), "u1")
	require.ErrorIs(t, err, errs.ErrDecode)
}

func TestWithUserData_AppendMessageScenario(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithUserData(ctx, "u1", func(data *model.UserData) error {
		data.Conversations["c1"] = &model.Conversation{
			ID:        "c1",
			Title:     "hi",
			Provider:  "openai",
			Model:     "gpt-4o",
			Messages:  []model.Message{{Role: "user", Content: "hi"}},
			Timestamp: time.Now().UTC(),
		}
		return nil
	})
	require.NoError(t, err)

	got, err := s.LoadUserData(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, []model.Message{{Role: "user", Content: "hi"}}, got.Conversations["c1"].Messages)
}

func TestWithUserData_ConcurrentAppendsLoseNothing(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	const (
		workers   = 25
		tokensPer = 7
	)

	require.NoError(t, s.WithUserData(ctx, "u1", func(data *model.UserData) error {
		data.Conversations["c1"] = &model.Conversation{ID: "c1", Title: "t", Provider: "openai", Model: "gpt-4o"}
		return nil
	}))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func(n int) {
			defer wg.Done()
			err := s.WithUserData(ctx, "u1", func(data *model.UserData) error {
				conv := data.Conversations["c1"]
				conv.Messages = append(conv.Messages, model.Message{
					Role:    model.RoleAssistant,
					Content: fmt.Sprintf("reply %d", n),
				})
				conv.TotalTokens += tokensPer
				return nil
			})
			if err != nil {
				t.Errorf("worker %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	got, err := s.LoadUserData(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, got.Conversations["c1"].Messages, workers)
	require.Equal(t, workers*tokensPer, got.Conversations["c1"].TotalTokens)
}

func TestWithUserData_DistinctUsersRunConcurrently(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	const hold = 150 * time.Millisecond

	start := time.Now()
	var wg sync.WaitGroup
	for _, id := range []string{"ua", "ub"} {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			err := s.WithUserData(ctx, userID, func(data *model.UserData) error {
				time.Sleep(hold)
				return nil
			})
			if err != nil {
				t.Errorf("user %s: %v", userID, err)
			}
		}(id)
	}
	wg.Wait()

	// Serialized execution would take ~2*hold; independent keys must not.
	require.Less(t, time.Since(start), 2*hold-20*time.Millisecond,
		"operations on distinct users blocked each other")
}

func TestWithUserData_FnErrorLeavesDiskUntouched(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	seed := model.NewUserData()
	seed.APIKeys["openai"] = "before"
	require.NoError(t, s.SaveUserData(ctx, "u1", seed))

	boom := errors.New("boom")
	err := s.WithUserData(ctx, "u1", func(data *model.UserData) error {
		data.APIKeys["openai"] = "after"
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := s.LoadUserData(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "before", got.APIKeys["openai"])
}

func TestWithUserData_PersistenceFailureLeavesPriorDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := model.NewUserData()
	seed.APIKeys["openai"] = "before"
	require.NoError(t, s.SaveUserData(ctx, "u1", seed))

	orig := renameFile
	renameFile = func(oldpath, newpath string) error { return errors.New("disk full") }
	defer func() { renameFile = orig }()

	err := s.WithUserData(ctx, "u1", func(data *model.UserData) error {
		data.APIKeys["openai"] = "after"
		return nil
	})
	require.ErrorIs(t, err, errs.ErrPersistence)

	renameFile = orig
	got, err := s.LoadUserData(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, "before", got.APIKeys["openai"])
}

func TestSaveAccounts_FullOverwrite(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	u1 := model.UserAccount{ID: "u1", Email: "a@example.com", Name: "A", AuthType: model.AuthTypeEmail}
	u2 := model.UserAccount{ID: "u2", Email: "b@example.com", Name: "B", AuthType: model.AuthTypeGoogle}

	require.NoError(t, s.SaveAccounts(ctx, map[string]model.UserAccount{"u1": u1}))
	require.NoError(t, s.SaveAccounts(ctx, map[string]model.UserAccount{"u1": u1, "u2": u2}))

	got, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]model.UserAccount{"u1": u1, "u2": u2}, got)

	// Shrinking the snapshot must not leave stale entries behind.
	require.NoError(t, s.SaveAccounts(ctx, map[string]model.UserAccount{"u2": u2}))
	got, err = s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]model.UserAccount{"u2": u2}, got)
}

func TestWithAccounts_ReadModifyWrite(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithAccounts(ctx, func(accounts map[string]model.UserAccount) error {
		accounts["u1"] = model.UserAccount{ID: "u1", Email: "a@example.com", AuthType: model.AuthTypeEmail}
		return nil
	})
	require.NoError(t, err)

	err = s.WithAccounts(ctx, func(accounts map[string]model.UserAccount) error {
		if _, ok := accounts["u1"]; !ok {
			return errors.New("u1 missing")
		}
		accounts["u2"] = model.UserAccount{ID: "u2", Email: "b@example.com", AuthType: model.AuthTypeEmail}
		return nil
	})
	require.NoError(t, err)

	got, err := s.LoadAccounts(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestWriteFileAtomic_NoPartialFileOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.json")
	require.NoError(t, writeFileAtomic(path, []byte(`{"v":1}`)))

	orig := renameFile
	renameFile = func(oldpath, newpath string) error { return errors.New("rename failed") }
	defer func() { renameFile = orig }()

	require.Error(t, writeFileAtomic(path, []byte(`{"v":2}`)))
	renameFile = orig

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.JSONEq(t, `{"v":1}`, string(raw))

	// The failed temp file must have been cleaned up.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
