package token_test

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/stretchr/testify/require"
)

func sign(t *testing.T, claims jwtlib.MapClaims) string {
	t.Helper()
	raw, err := token.NewHMACSigner("secret").Sign(claims)
	require.NoError(t, err)
	return raw
}

func TestExpiresAt(t *testing.T) {
	exp := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	raw := sign(t, jwtlib.MapClaims{"sub": "7", "exp": exp.Unix()})

	got, err := token.ExpiresAt(raw)
	require.NoError(t, err)
	require.True(t, exp.Equal(got))
}

func TestExpiresAtIgnoresSignatureAndExpiry(t *testing.T) {
	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	raw, err := token.NewHMACSigner("someone else's key").Sign(jwtlib.MapClaims{"exp": past.Unix()})
	require.NoError(t, err)

	got, err := token.ExpiresAt(raw)
	require.NoError(t, err)
	require.True(t, past.Equal(got))
}

func TestExpiresAtDecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"two segments", "abc.def"},
		{"no exp", sign(t, jwtlib.MapClaims{"sub": "7"})},
		{"exp wrong type", sign(t, jwtlib.MapClaims{"exp": "tomorrow"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := token.ExpiresAt(tt.raw)
			require.ErrorIs(t, err, apperrors.ErrDecode)
		})
	}
}

func TestHMACSignerVerificationKey(t *testing.T) {
	signer := token.NewHMACSigner("secret")
	raw := sign(t, jwtlib.MapClaims{"exp": time.Now().Add(time.Hour).Unix()})

	parsed, err := jwtlib.Parse(raw, signer.GetVerificationKey)
	require.NoError(t, err)
	require.True(t, parsed.Valid)
	require.Equal(t, jwtlib.SigningMethodHS256, signer.GetSigningMethod())
}
