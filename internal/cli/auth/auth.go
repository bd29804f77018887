package auth

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const (
	service = "vagali-cli"
)

// KeyringStore keeps the credential in the OS keychain/credential manager
type KeyringStore struct {
	namespace string
}

var _ Store = (*KeyringStore)(nil)

// NewKeyringStore creates a keyring-backed store for one API namespace
func NewKeyringStore(namespace string) *KeyringStore {
	return &KeyringStore{namespace: namespace}
}

// getKeyringKey returns a unique key per persisted field and server
func (s *KeyringStore) getKeyringKey(name string) string {
	return fmt.Sprintf("%s-%s", name, s.namespace)
}

func (s *KeyringStore) set(name, value string) error {
	if value == "" {
		return s.delete(name)
	}
	if err := keyring.Set(service, s.getKeyringKey(name), value); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

func (s *KeyringStore) get(name string) (string, error) {
	value, err := keyring.Get(service, s.getKeyringKey(name))
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("failed to load %s: %w", name, err)
	}
	return value, nil
}

func (s *KeyringStore) delete(name string) error {
	if err := keyring.Delete(service, s.getKeyringKey(name)); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil // Already deleted
		}
		return fmt.Errorf("failed to delete %s: %w", name, err)
	}
	return nil
}

// Save persists the token and email
func (s *KeyringStore) Save(token, email string) error {
	if err := s.set(KeyToken, token); err != nil {
		return err
	}
	return s.set(KeyEmail, email)
}

// Load retrieves the token
func (s *KeyringStore) Load() (string, error) {
	token, err := s.get(KeyToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Put writes all three entries. The keychain has no transactions, so a
// partial write is rolled back by clearing everything.
func (s *KeyringStore) Put(rec Record) error {
	for _, kv := range [][2]string{{KeyToken, rec.Token}, {KeyRole, rec.Role}, {KeyEmail, rec.Email}} {
		if err := s.set(kv[0], kv[1]); err != nil {
			_ = s.Clear()
			return err
		}
	}
	return nil
}

// Hints returns the cached role and email
func (s *KeyringStore) Hints() (Record, error) {
	role, err := s.get(KeyRole)
	if err != nil {
		return Record{}, err
	}
	email, err := s.get(KeyEmail)
	if err != nil {
		return Record{}, err
	}
	return Record{Role: role, Email: email}, nil
}

// Clear removes every entry for this namespace
func (s *KeyringStore) Clear() error {
	var errs []error
	for _, name := range []string{KeyToken, KeyRole, KeyEmail} {
		if err := s.delete(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
