package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

const (
	configDirName       = "vagali"
	credentialsFileName = "credentials.json"
)

// FileStore keeps credentials in ~/.config/vagali/credentials.json, one
// entry per API namespace. Used where no OS keychain is available.
type FileStore struct {
	path      string
	namespace string
	mu        sync.Mutex
}

var _ Store = (*FileStore)(nil)

// DefaultFilePath returns the path to the credentials file
func DefaultFilePath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(homeDir, ".config", configDirName, credentialsFileName), nil
}

// NewFileStore creates a file-backed store. An empty path selects DefaultFilePath.
func NewFileStore(path, namespace string) (*FileStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultFilePath(); err != nil {
			return nil, err
		}
	}
	return &FileStore{path: path, namespace: namespace}, nil
}

// Path returns the backing file location
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) readAll() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	all := map[string]Record{}
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return all, nil
}

// writeAll replaces the file through a rename so readers never see a
// half-written document.
func (s *FileStore) writeAll(all map[string]Record) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to chmod credentials file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace credentials file: %w", err)
	}
	return nil
}

func (s *FileStore) update(fn func(rec *Record)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return err
	}
	rec := all[s.namespace]
	fn(&rec)
	if rec == (Record{}) {
		delete(all, s.namespace)
	} else {
		all[s.namespace] = rec
	}
	return s.writeAll(all)
}

func (s *FileStore) current() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		return Record{}, err
	}
	return all[s.namespace], nil
}

// Save persists the token and email
func (s *FileStore) Save(token, email string) error {
	return s.update(func(rec *Record) {
		rec.Token = token
		rec.Email = email
	})
}

// Load retrieves the token
func (s *FileStore) Load() (string, error) {
	rec, err := s.current()
	if err != nil {
		return "", err
	}
	if rec.Token == "" {
		return "", ErrNotFound
	}
	return rec.Token, nil
}

// Put replaces the whole record in a single file write
func (s *FileStore) Put(rec Record) error {
	return s.update(func(cur *Record) {
		*cur = rec
	})
}

// Hints returns the cached role and email
func (s *FileStore) Hints() (Record, error) {
	rec, err := s.current()
	if err != nil {
		return Record{}, err
	}
	return Record{Role: rec.Role, Email: rec.Email}, nil
}

// Clear removes this namespace's record
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readAll()
	if err != nil {
		// An unreadable file holds nothing we can trust; start over
		return s.writeAll(map[string]Record{})
	}
	if _, ok := all[s.namespace]; !ok {
		return nil
	}
	delete(all, s.namespace)
	return s.writeAll(all)
}
