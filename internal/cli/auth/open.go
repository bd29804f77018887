package auth

import (
	"fmt"

	"github.com/vagali-dev/vagali/internal/config"
)

// Open builds the backend selected in cfg for the given API namespace
func Open(cfg config.CredentialsConfig, namespace string) (Store, error) {
	switch cfg.Backend {
	case config.StoreKeyring, "":
		return NewKeyringStore(namespace), nil
	case config.StoreFile:
		return NewFileStore(cfg.File, namespace)
	case config.StoreSQLite:
		return NewSQLiteStore(cfg.DB, namespace)
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown credential store %q", cfg.Backend)
	}
}
