package apimodel

import "github.com/jrsteele09/go-blog-client/users"

// MessageRefreshInvalid is the error message the API sends when a refresh token can no longer be used
const MessageRefreshInvalid = "Refresh token expired or invalid"

// LoginRequest is the body of POST /api/login
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /api/login and POST /api/login/guest-mode.
type LoginResponse struct {
	// Token is the short lived access JWT.
	// Usage: "Authorization: Bearer <token>"
	// Expiry: read from the exp claim, the response carries no expires_in
	Token string `json:"token"`

	// RefreshToken is exchanged for a new access token at /api/refresh-token.
	// Only present: for registered users, guest sessions get none
	// Security: Never log or expose this value
	RefreshToken string `json:"refreshToken,omitempty"`

	// User is the authenticated principal.
	// Example: {"id": 12, "username": "ada", "role": "user"}
	User users.Identity `json:"user"`

	// Username duplicates User.Username for older clients.
	Username string `json:"username,omitempty"`
}

// SignupRequest is the body of POST /api/register. Every field is required.
type SignupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// RefreshRequest is the body of POST /api/refresh-token
type RefreshRequest struct {
	// RefreshToken is the credential issued at log in.
	// Security: Never log or expose this value
	RefreshToken string `json:"refreshToken"`

	// UserID must match the user the refresh token was issued to.
	UserID int64 `json:"userId"`

	// Username at the time of the request, used to mint the new token's username claim.
	Username string `json:"username"`
}

// RefreshResponse is returned by POST /api/refresh-token
type RefreshResponse struct {
	// NewToken is the renewed access JWT.
	NewToken string `json:"newToken"`

	// RefreshToken is only present when the API rotated the refresh token.
	// Behavior: the previous refresh token is invalid once a rotated one is returned
	RefreshToken *string `json:"refreshToken,omitempty"`
}

// RevokeRequest is the body of DELETE /api/refresh-token
type RevokeRequest struct {
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId"`
}

// ErrorResponse is the body of every non 2xx response.
// Example: {"message": "Refresh token expired or invalid"}
type ErrorResponse struct {
	Message string `json:"message"`
}
