package storage

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Paths maps logical document identities to on-disk locations. Pure path
// construction, no I/O.
type Paths struct {
	root string
}

// NewPaths roots the layout at dir: one shared accounts file plus one
// document per user under user_data/.
func NewPaths(dir string) Paths {
	return Paths{root: filepath.Clean(dir)}
}

// Root returns the data directory.
func (p Paths) Root() string { return p.root }

// AccountsPath is the shared document holding all accounts keyed by id.
func (p Paths) AccountsPath() string {
	return filepath.Join(p.root, "users.json")
}

// UserDataDir holds the per-user documents.
func (p Paths) UserDataDir() string {
	return filepath.Join(p.root, "user_data")
}

// UserDataPath resolves the document for userID. The id is used as a file
// name, so anything that could escape the directory is rejected.
func (p Paths) UserDataPath(userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("empty user id")
	}
	if strings.ContainsAny(userID, `/\`) || userID == "." || userID == ".." {
		return "", fmt.Errorf("invalid user id %q", userID)
	}
	return filepath.Join(p.UserDataDir(), userID+".json"), nil
}
