// Package storage implements the per-user JSON document store. Every
// operation on a document runs under that document's lock; compound
// read-modify-write cycles (WithAccounts, WithUserData) hold the lock across
// load, mutate and persist so concurrent callers can never lose an update.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/and161185/ai-chat-hub/internal/errs"
	"github.com/and161185/ai-chat-hub/internal/lock"
	"github.com/and161185/ai-chat-hub/internal/model"
)

// accountsKey is the lock key for the shared accounts document. Per-user
// documents use a "user:" prefix, so the two keyspaces never collide and the
// accounts lock is never held together with a user-data lock.
const accountsKey = "accounts"

func userKey(userID string) string { return "user:" + userID }

// renameFile is swapped out in tests to exercise persistence failures.
var renameFile = os.Rename

// Config carries Store construction parameters.
type Config struct {
	// Dir is the data directory; created if absent.
	Dir string
	// Logger is optional; zap.NewNop is used when nil.
	Logger *zap.Logger
}

// Store orchestrates all access to the accounts document and the per-user
// documents. It is stateless except for the lock table it owns; safe for
// concurrent use by any number of request workers.
type Store struct {
	paths Paths
	locks *lock.Manager
	log   *zap.Logger
}

// New prepares the data directory and verifies it is writable, failing
// loudly at startup rather than deferring races to request time.
func New(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("storage: data directory required")
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	paths := NewPaths(cfg.Dir)
	for _, dir := range []string{paths.Root(), paths.UserDataDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: prepare directory %q: %w", dir, err)
		}
	}
	probe, err := os.CreateTemp(paths.Root(), ".probe-*")
	if err != nil {
		return nil, fmt.Errorf("storage: data directory %q not writable: %w", paths.Root(), err)
	}
	_ = probe.Close()
	_ = os.Remove(probe.Name())

	return &Store{paths: paths, locks: lock.NewManager(), log: log}, nil
}

// LoadAccounts returns a snapshot of the shared accounts collection, keyed by
// user id. Absent file decodes as the empty collection.
func (s *Store) LoadAccounts(ctx context.Context) (map[string]model.UserAccount, error) {
	release, err := s.locks.Acquire(ctx, accountsKey)
	if err != nil {
		return nil, err
	}
	defer release()
	return s.readAccounts()
}

// SaveAccounts replaces the accounts collection with the given snapshot.
func (s *Store) SaveAccounts(ctx context.Context, accounts map[string]model.UserAccount) error {
	release, err := s.locks.Acquire(ctx, accountsKey)
	if err != nil {
		return err
	}
	defer release()
	return s.writeAccounts(accounts)
}

// WithAccounts runs fn on the current accounts collection under the accounts
// lock and persists the result. If fn returns an error nothing is written and
// the on-disk collection keeps its prior state.
func (s *Store) WithAccounts(ctx context.Context, fn func(accounts map[string]model.UserAccount) error) error {
	release, err := s.locks.Acquire(ctx, accountsKey)
	if err != nil {
		return err
	}
	defer release()

	accounts, err := s.readAccounts()
	if err != nil {
		return err
	}
	if err := fn(accounts); err != nil {
		return err
	}
	return s.writeAccounts(accounts)
}

// LoadUserData returns a snapshot of the user's document. A user that has
// never saved anything gets the canonical empty document, not an error.
func (s *Store) LoadUserData(ctx context.Context, userID string) (*model.UserData, error) {
	path, err := s.paths.UserDataPath(userID)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	release, err := s.locks.Acquire(ctx, userKey(userID))
	if err != nil {
		return nil, err
	}
	defer release()
	return s.readUserData(path)
}

// SaveUserData replaces the user's document with the given snapshot.
func (s *Store) SaveUserData(ctx context.Context, userID string, data *model.UserData) error {
	path, err := s.paths.UserDataPath(userID)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	release, err := s.locks.Acquire(ctx, userKey(userID))
	if err != nil {
		return err
	}
	defer release()
	return s.writeUserData(userID, path, data)
}

// WithUserData is the compound load-modify-save operation: it holds the
// user's lock across the whole cycle, so two concurrent mutations can never
// both start from the same base document and overwrite each other. Callers
// performing any read-modify-write must use this form, never a bare load
// followed later by a bare save. The mutation is observable on disk only if
// persisting succeeded; fn errors and write errors leave the prior document
// intact.
func (s *Store) WithUserData(ctx context.Context, userID string, fn func(data *model.UserData) error) error {
	path, err := s.paths.UserDataPath(userID)
	if err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	release, err := s.locks.Acquire(ctx, userKey(userID))
	if err != nil {
		return err
	}
	defer release()

	data, err := s.readUserData(path)
	if err != nil {
		return err
	}
	if err := fn(data); err != nil {
		return err
	}
	return s.writeUserData(userID, path, data)
}

func (s *Store) readAccounts() (map[string]model.UserAccount, error) {
	raw, err := readFileIfExists(s.paths.AccountsPath())
	if err != nil {
		return nil, fmt.Errorf("storage: read accounts: %w", err)
	}
	accounts, err := DecodeAccounts(raw)
	if err != nil {
		s.log.Warn("accounts document corrupt", zap.Error(err))
		return nil, err
	}
	return accounts, nil
}

func (s *Store) writeAccounts(accounts map[string]model.UserAccount) error {
	out, err := EncodeAccounts(accounts)
	if err != nil {
		return fmt.Errorf("storage: %w: %w", errs.ErrPersistence, err)
	}
	if err := writeFileAtomic(s.paths.AccountsPath(), out); err != nil {
		s.log.Error("accounts write failed", zap.Error(err))
		return fmt.Errorf("storage: %w: %w", errs.ErrPersistence, err)
	}
	return nil
}

func (s *Store) readUserData(path string) (*model.UserData, error) {
	raw, err := readFileIfExists(path)
	if err != nil {
		return nil, fmt.Errorf("storage: read user data: %w", err)
	}
	data, err := DecodeUserData(raw)
	if err != nil {
		s.log.Warn("user document corrupt", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return data, nil
}

func (s *Store) writeUserData(userID, path string, data *model.UserData) error {
	out, err := EncodeUserData(data)
	if err != nil {
		return fmt.Errorf("storage: %w: %w", errs.ErrPersistence, err)
	}
	if err := writeFileAtomic(path, out); err != nil {
		s.log.Error("user data write failed", zap.String("user_id", userID), zap.Error(err))
		return fmt.Errorf("storage: %w: %w", errs.ErrPersistence, err)
	}
	return nil
}

func readFileIfExists(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return raw, err
}

// writeFileAtomic writes via a temp file in the destination directory and
// renames it into place, so a crash mid-write leaves the prior document
// intact rather than a truncated one.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	moved := false
	defer func() {
		_ = tmp.Close()
		if !moved {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFile(tmp.Name(), path); err != nil {
		return err
	}
	moved = true
	syncDir(dir)
	return nil
}

// syncDir flushes the directory entry after a rename; best effort.
func syncDir(dir string) {
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
}
