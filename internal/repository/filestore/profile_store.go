package filestore

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"yt_multi_account/internal/domain"
)

// ProfileStore keeps one browser user-data directory per account.
// A directory existing says nothing about whether its web session is still
// signed in; that is only discovered when a browser action runs.
type ProfileStore struct {
	dir string
}

// NewProfileStore creates a store rooted at dir, creating it if needed.
func NewProfileStore(dir string) (*ProfileStore, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve profile directory: %w", err)
	}
	if err := os.MkdirAll(abs, 0700); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &ProfileStore{dir: abs}, nil
}

// Ensure returns the profile path for account, creating the directory if absent.
func (s *ProfileStore) Ensure(account string) (string, error) {
	if err := domain.ValidateAccountName(account); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, account)
	if err := os.MkdirAll(path, 0700); err != nil {
		return "", fmt.Errorf("create profile for %s: %w", account, err)
	}
	return path, nil
}

// Exists reports whether a profile directory exists for account.
func (s *ProfileStore) Exists(account string) (bool, error) {
	if err := domain.ValidateAccountName(account); err != nil {
		return false, err
	}
	info, err := os.Stat(filepath.Join(s.dir, account))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("stat profile for %s: %w", account, err)
	}
	return info.IsDir(), nil
}

// List returns account names with an existing profile directory.
func (s *ProfileStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read profile directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || domain.ValidateAccountName(entry.Name()) != nil {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
