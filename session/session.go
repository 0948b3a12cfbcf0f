package session

import (
	"github.com/jrsteele09/go-blog-client/users"
)

// Session holds the credentials of the signed in user. It is persisted as a single record and
// read once at start up.
type Session struct {
	AccessToken  string         `json:"token,omitempty"`        // Short lived bearer JWT
	RefreshToken string         `json:"refreshToken,omitempty"` // Long lived credential, only used for renewal
	Identity     users.Identity `json:"user"`                   // Authenticated principal
	IsLoggedIn   bool           `json:"isLoggedIn"`             // True iff AccessToken and Identity are populated

	// Epoch changes on every log in and log out. It is never persisted and lets the refresh cycle
	// detect that the session it started renewing is no longer the active one.
	Epoch uint64 `json:"-"`
}

// Consistent reports whether the logged in flag agrees with the populated fields
func (s Session) Consistent() bool {
	if !s.IsLoggedIn {
		return true
	}
	return s.AccessToken != "" && s.Identity.Valid()
}

// RefreshEligible reports whether the session can be renewed server side
func (s Session) RefreshEligible() bool {
	return s.IsLoggedIn && s.RefreshToken != "" && s.Identity.RefreshEligible()
}
