package filestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"yt_multi_account/internal/domain"
)

const credentialExt = ".json"

// CredentialStore keeps one JSON token file per account under a directory.
type CredentialStore struct {
	dir string
}

// NewCredentialStore creates a store rooted at dir, creating it if needed.
func NewCredentialStore(dir string) (*CredentialStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create credential directory: %w", err)
	}
	return &CredentialStore{dir: dir}, nil
}

// Dir returns the directory holding the token files.
func (s *CredentialStore) Dir() string {
	return s.dir
}

// List returns the account names derived from stored token filenames.
func (s *CredentialStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read credential directory: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), credentialExt) {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), credentialExt)
		if domain.ValidateAccountName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Load reads the record for account.
func (s *CredentialStore) Load(account string) (domain.CredentialRecord, error) {
	var rec domain.CredentialRecord
	path, err := s.path(account)
	if err != nil {
		return rec, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return rec, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, account)
		}
		return rec, fmt.Errorf("read credential for %s: %w", account, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return rec, fmt.Errorf("%w: decode credential for %s: %v", domain.ErrCorruptCredential, account, err)
	}
	return rec, nil
}

// Save writes the whole record for account, replacing any previous one.
func (s *CredentialStore) Save(account string, record domain.CredentialRecord) error {
	path, err := s.path(account)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("encode credential for %s: %w", account, err)
	}

	// Write to a temp file first so a crash never leaves a half-written record.
	tmp, err := os.CreateTemp(s.dir, "."+account+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp credential file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write credential for %s: %w", account, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close credential for %s: %w", account, err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod credential for %s: %w", account, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("store credential for %s: %w", account, err)
	}
	return nil
}

func (s *CredentialStore) path(account string) (string, error) {
	if err := domain.ValidateAccountName(account); err != nil {
		return "", err
	}
	return filepath.Join(s.dir, account+credentialExt), nil
}
