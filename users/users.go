package users

import (
	"errors"
	"strings"
)

// RoleType represents the role the blog API assigned to the authenticated user
type RoleType string

const (
	RoleUser  RoleType = "user"  // Regular author
	RoleAdmin RoleType = "admin" // Can moderate reported content
	RoleGuest RoleType = "guest" // Read-only guest session
)

// GuestUsername is reserved for guest sessions and can't be registered
const GuestUsername = "guest"

var (
	ErrBlankUsername    = errors.New("username is required")
	ErrReservedUsername = errors.New("username is reserved")
)

// Identity is the authenticated principal of a session.
type Identity struct {
	ID       int64    `json:"id,omitempty"`       // Numeric user id issued by the blog API
	Username string   `json:"username,omitempty"` // Display and lookup name
	Role     RoleType `json:"role,omitempty"`     // Role used for authorization decisions in the UI
	IsGuest  bool     `json:"isGuest,omitempty"`  // Guest sessions are never refreshed
}

// IsGuestSession reports whether the identity belongs to a guest session
func (i Identity) IsGuestSession() bool {
	return i.IsGuest || i.Role == RoleGuest || i.Username == GuestUsername
}

// RefreshEligible reports whether the server can renew tokens for this identity
func (i Identity) RefreshEligible() bool {
	return !i.IsGuestSession() && i.ID > 0
}

// Valid reports whether the identity can back a logged in session
func (i Identity) Valid() bool {
	if i.IsGuestSession() {
		return true
	}
	return i.ID > 0 && strings.TrimSpace(i.Username) != ""
}

// IsAdmin reports whether the identity may moderate content
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// ValidateUsername checks a username chosen at sign up or on a profile change
func ValidateUsername(username string) error {
	trimmed := strings.TrimSpace(username)
	if trimmed == "" {
		return ErrBlankUsername
	}
	if strings.EqualFold(trimmed, GuestUsername) {
		return ErrReservedUsername
	}
	return nil
}
