package jwt

import (
	"fmt"
	"strconv"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/jrsteele09/go-blog-client/users"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Creator mints access tokens shaped like the ones the blog API issues
type Creator struct {
	signer token.Signer
	issuer string
	now    func() time.Time
}

type CreatorOption func(*Creator)

func WithIssuer(issuer string) CreatorOption {
	return func(c *Creator) {
		c.issuer = issuer
	}
}

func WithNowFunc(now func() time.Time) CreatorOption {
	return func(c *Creator) {
		c.now = now
	}
}

// NewCreator creates a new JWT creator
func NewCreator(signer token.Signer, options ...CreatorOption) *Creator {
	c := &Creator{
		signer: signer,
		issuer: "blog-api",
	}
	for _, opt := range options {
		opt(c)
	}
	if c.now == nil {
		c.now = NowTimeFunc
	}
	return c
}

// CreateAccessToken creates an access token for identity that expires after ttl
func (c *Creator) CreateAccessToken(identity users.Identity, ttl time.Duration) (string, error) {
	now := c.now()
	claims := jwtlib.MapClaims{
		"iss":      c.issuer,                           // The issuer of the token
		"sub":      strconv.FormatInt(identity.ID, 10), // Numeric user id
		"username": identity.Username,                  // Username at issue time
		"role":     string(identity.Role),              // Role used by the API for authorization
		"guest":    identity.IsGuestSession(),          // Guest tokens can't be refreshed
		"iat":      now.Unix(),                         // Issued At: the time at which the token was issued
		"exp":      now.Add(ttl).Unix(),                // Expiry: when the token will expire
		"jti":      uuid.New().String(),                // Unique token ID
	}

	signedToken, err := c.signer.Sign(claims)
	if err != nil {
		return "", fmt.Errorf("failed to sign JWT token: %w", err)
	}
	return signedToken, nil
}
