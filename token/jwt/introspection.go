package jwt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/jrsteele09/go-blog-client/users"
)

var ErrInactiveToken = errors.New("token is not active")

// TokenIntrospection is the verified content of an access token.
type TokenIntrospection struct {
	Active    bool           // True or false - Is the token valid
	Identity  users.Identity // Principal the token was issued to
	ExpiresAt time.Time      // Expiration
	JTI       string         // Unique token ID
}

// Inspector verifies access tokens minted by a Creator sharing the same signer
type Inspector struct {
	signer token.Signer
	now    func() time.Time
}

func NewInspector(signer token.Signer, now func() time.Time) *Inspector {
	if now == nil {
		now = NowTimeFunc
	}
	return &Inspector{signer: signer, now: now}
}

// Introspect validates the signature and expiry of rawToken and extracts its identity.
func (i *Inspector) Introspect(rawToken string) (*TokenIntrospection, error) {
	if strings.TrimSpace(rawToken) == "" {
		return &TokenIntrospection{Active: false}, ErrInactiveToken
	}

	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{i.signer.GetSigningMethod().Alg()}),
		jwtlib.WithTimeFunc(i.now),
		jwtlib.WithExpirationRequired(),
	)
	parsed, err := parser.Parse(rawToken, i.signer.GetVerificationKey)
	if err != nil || !parsed.Valid {
		return &TokenIntrospection{Active: false}, fmt.Errorf("%w: %v", ErrInactiveToken, err)
	}

	claims, ok := parsed.Claims.(jwtlib.MapClaims)
	if !ok {
		return &TokenIntrospection{Active: false}, errors.New("error extracting claims from token")
	}

	sub, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	role, _ := claims["role"].(string)
	guest, _ := claims["guest"].(bool)
	jti, _ := claims["jti"].(string)
	id, _ := strconv.ParseInt(sub, 10, 64)

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return &TokenIntrospection{Active: false}, ErrInactiveToken
	}

	return &TokenIntrospection{
		Active: true,
		Identity: users.Identity{
			ID:       id,
			Username: username,
			Role:     users.RoleType(role),
			IsGuest:  guest,
		},
		ExpiresAt: exp.Time,
		JTI:       jti,
	}, nil
}
