// Package session implements the session and role lifecycle of the VagALI
// client: restoring a stored credential, logging in and out, and switching
// between the client and professional roles.
package session

import "github.com/vagali-dev/vagali/internal/cli/client"

// State is the controller's lifecycle state
type State int

const (
	StateUnauthenticated State = iota
	StateRestoring
	StateAuthenticated
	// StateAuthenticationFailed follows a credential rejected by the server
	// during an authenticated operation. Nothing is held; login is allowed.
	StateAuthenticationFailed
)

func (s State) String() string {
	switch s {
	case StateUnauthenticated:
		return "Unauthenticated"
	case StateRestoring:
		return "Restoring"
	case StateAuthenticated:
		return "Authenticated"
	case StateAuthenticationFailed:
		return "AuthenticationFailed"
	default:
		return "Unknown"
	}
}

// Role determines which profile-management affordances are offered
type Role string

const (
	RoleNone         Role = ""
	RoleClient       Role = "Client"
	RoleProfessional Role = "Professional"
)

// RoleFor maps the backend's is_professional flag to a Role
func RoleFor(isProfessional bool) Role {
	if isProfessional {
		return RoleProfessional
	}
	return RoleClient
}

// ParseRole accepts the persisted spelling and the original Portuguese one
func ParseRole(s string) (Role, bool) {
	switch s {
	case "Professional", "Profissional":
		return RoleProfessional, true
	case "Client", "Cliente":
		return RoleClient, true
	default:
		return RoleNone, false
	}
}

// Opposite returns the other role; RoleNone stays RoleNone
func (r Role) Opposite() Role {
	switch r {
	case RoleClient:
		return RoleProfessional
	case RoleProfessional:
		return RoleClient
	default:
		return RoleNone
	}
}

// Session is an immutable snapshot of the authenticated user.
// Role and UserID are empty whenever State is not StateAuthenticated.
type Session struct {
	State       State
	UserID      string
	Email       string
	DisplayName string
	Role        Role
	AuthLoading bool
	// Generation identifies the operation that produced this snapshot
	Generation uint64
}

// IsAuthenticated reports whether a credential is held and confirmed
func (s Session) IsAuthenticated() bool {
	return s.State == StateAuthenticated
}

// IsProfessional reports whether the current role is Professional
func (s Session) IsProfessional() bool {
	return s.IsAuthenticated() && s.Role == RoleProfessional
}

// fromProfile projects a remote profile into a Session
func fromProfile(p *client.Profile, gen uint64) Session {
	name := p.Details.FullName
	if name == "" {
		name = p.Email
	}
	return Session{
		State:       StateAuthenticated,
		UserID:      string(p.ID),
		Email:       p.Email,
		DisplayName: name,
		Role:        RoleFor(p.IsProfessional),
		Generation:  gen,
	}
}
