package session

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMissingToken means the login call succeeded without returning a token
	ErrMissingToken = errors.New("login succeeded but the server returned no token")
	// ErrLoginInProgress rejects a login while another one is outstanding
	ErrLoginInProgress = errors.New("a login is already in progress")
	// ErrNotAuthenticated is returned by operations that need a session
	ErrNotAuthenticated = errors.New("not authenticated. Please run 'vagali login' first")
	// ErrSuperseded means a newer operation (or logout) replaced this one's result
	ErrSuperseded = errors.New("operation superseded by a newer session change")
	// ErrInvalidTransition is returned when a state change is not allowed
	ErrInvalidTransition = errors.New("invalid session state transition")
	// ErrClosed is returned after Close
	ErrClosed = errors.New("session is closed")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("session already started")
)

// InputError reports local validation failures before any request is made.
// Fields are keyed by their JSON names, matching server-side field errors.
type InputError struct {
	Fields map[string]string
}

func (e *InputError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, e.Fields[name]))
	}
	return "invalid input: " + strings.Join(parts, "; ")
}
