package token

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
)

// ExpiresAt returns the exp claim of an access token. The signature is not checked: the client
// only needs to know when to renew, the API remains the authority on validity.
func ExpiresAt(rawToken string) (time.Time, error) {
	if strings.TrimSpace(rawToken) == "" {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrDecode, "empty token")
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(rawToken, claims); err != nil {
		return time.Time{}, apperrors.Mark(err, apperrors.ErrDecode)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, apperrors.Mark(err, apperrors.ErrDecode)
	}
	if exp == nil {
		return time.Time{}, apperrors.Wrapf(apperrors.ErrDecode, "token has no exp claim")
	}
	return exp.Time, nil
}
