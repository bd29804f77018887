package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const credentialsDBName = "credentials.db"

// credentialEntry is one namespaced key/value row
type credentialEntry struct {
	ID        string    `gorm:"primaryKey;type:varchar(26)"`
	Namespace string    `gorm:"uniqueIndex:idx_credentials_ns_name;not null"`
	Name      string    `gorm:"uniqueIndex:idx_credentials_ns_name;not null"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (credentialEntry) TableName() string {
	return "credentials"
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (e *credentialEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = ulid.Make().String()
	}
	return nil
}

// SQLiteStore keeps credentials in a local sqlite database. Every write runs
// in a transaction, so token and role always change together.
type SQLiteStore struct {
	db        *gorm.DB
	namespace string
}

var _ Store = (*SQLiteStore)(nil)

// DefaultDBPath returns ~/.config/vagali/credentials.db
func DefaultDBPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", configDirName, credentialsDBName), nil
}

// NewSQLiteStore opens (and migrates) the database at path. An empty path
// selects DefaultDBPath; ":memory:" is accepted for tests.
func NewSQLiteStore(path, namespace string) (*SQLiteStore, error) {
	if path == "" {
		var err error
		if path, err = DefaultDBPath(); err != nil {
			return nil, err
		}
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open credentials database: %w", err)
	}

	// One connection keeps ":memory:" databases alive and serialises writers
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&credentialEntry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate credentials database: %w", err)
	}

	return &SQLiteStore{db: db, namespace: namespace}, nil
}

// Close releases the database handle
func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) write(tx *gorm.DB, name, value string) error {
	if value == "" {
		return tx.Where(&credentialEntry{Namespace: s.namespace, Name: name}).
			Delete(&credentialEntry{}).Error
	}

	entry := credentialEntry{Namespace: s.namespace, Name: name}
	return tx.Where(&credentialEntry{Namespace: s.namespace, Name: name}).
		Assign(credentialEntry{Value: value}).
		FirstOrCreate(&entry).Error
}

func (s *SQLiteStore) read(name string) (string, error) {
	var entry credentialEntry
	err := s.db.Where(&credentialEntry{Namespace: s.namespace, Name: name}).First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load %s: %w", name, err)
	}
	return entry.Value, nil
}

// Save persists the token and email
func (s *SQLiteStore) Save(token, email string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.write(tx, KeyToken, token); err != nil {
			return fmt.Errorf("failed to save token: %w", err)
		}
		if err := s.write(tx, KeyEmail, email); err != nil {
			return fmt.Errorf("failed to save email: %w", err)
		}
		return nil
	})
}

// Load retrieves the token
func (s *SQLiteStore) Load() (string, error) {
	token, err := s.read(KeyToken)
	if err != nil {
		return "", err
	}
	if token == "" {
		return "", ErrNotFound
	}
	return token, nil
}

// Put replaces token, role and email in one transaction
func (s *SQLiteStore) Put(rec Record) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, kv := range [][2]string{{KeyToken, rec.Token}, {KeyRole, rec.Role}, {KeyEmail, rec.Email}} {
			if err := s.write(tx, kv[0], kv[1]); err != nil {
				return fmt.Errorf("failed to save %s: %w", kv[0], err)
			}
		}
		return nil
	})
}

// Hints returns the cached role and email
func (s *SQLiteStore) Hints() (Record, error) {
	role, err := s.read(KeyRole)
	if err != nil {
		return Record{}, err
	}
	email, err := s.read(KeyEmail)
	if err != nil {
		return Record{}, err
	}
	return Record{Role: role, Email: email}, nil
}

// Clear deletes every row of this namespace
func (s *SQLiteStore) Clear() error {
	err := s.db.Where(&credentialEntry{Namespace: s.namespace}).Delete(&credentialEntry{}).Error
	if err != nil {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}
