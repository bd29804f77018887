package auth

import "sync"

// MemoryStore is an in-process store. Nothing survives the process; used
// for --ephemeral runs and tests.
type MemoryStore struct {
	mu  sync.Mutex
	rec Record

	// Fail, when set, is returned by every operation to simulate an
	// unavailable backend.
	Fail error
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Save(token, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.rec.Token = token
	m.rec.Email = email
	return nil
}

func (m *MemoryStore) Load() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return "", m.Fail
	}
	if m.rec.Token == "" {
		return "", ErrNotFound
	}
	return m.rec.Token, nil
}

func (m *MemoryStore) Put(rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.rec = rec
	return nil
}

func (m *MemoryStore) Hints() (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return Record{}, m.Fail
	}
	return Record{Role: m.rec.Role, Email: m.rec.Email}, nil
}

func (m *MemoryStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Fail != nil {
		return m.Fail
	}
	m.rec = Record{}
	return nil
}

// Snapshot returns everything held, token included
func (m *MemoryStore) Snapshot() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec
}
