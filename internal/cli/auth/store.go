// Package auth persists the VagALI credential and its display hints across
// CLI invocations.
package auth

import (
	"errors"
	"net/url"
	"strings"
)

// Persisted key names. All three are written and cleared together.
const (
	KeyToken = "authToken"
	KeyRole  = "userRole"
	KeyEmail = "userEmail"
)

// ErrNotFound is returned by Load when no credential is stored
var ErrNotFound = errors.New("not authenticated. Please run 'vagali login' first")

// Record is the full persisted state for one API namespace.
// Role and Email are display hints only, never a substitute for an
// authenticated profile.
type Record struct {
	Token string `json:"authToken,omitempty"`
	Role  string `json:"userRole,omitempty"`
	Email string `json:"userEmail,omitempty"`
}

// Store defines the interface for credential storage operations
type Store interface {
	// Save writes the token and email, leaving the cached role untouched
	Save(token, email string) error
	// Load returns the token or ErrNotFound
	Load() (string, error)
	// Put replaces token, role and email as one unit
	Put(rec Record) error
	// Hints returns the cached role and email
	Hints() (Record, error)
	// Clear removes all keys. Clearing an empty store is not an error.
	Clear() error
}

// Namespace derives the per-server namespace from the API base URL, so that
// credentials for different backends never collide.
func Namespace(apiURL string) string {
	u, err := url.Parse(apiURL)
	if err != nil || u.Host == "" {
		return strings.TrimSpace(apiURL)
	}
	return u.Host
}
