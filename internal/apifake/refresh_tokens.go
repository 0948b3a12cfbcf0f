package apifake

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// StoredRefreshToken is the server side record of an issued refresh token. The client only ever
// sees Token.
type StoredRefreshToken struct {
	Token  string
	UserID int64
	Iat    time.Time
}

// refreshTokens issues and tracks refresh tokens, one per user
type refreshTokens struct {
	length int
	ttl    time.Duration
	now    func() time.Time

	lock    sync.RWMutex
	tokens  map[string]*StoredRefreshToken
	userIDs map[int64]string // user ID to token
}

func newRefreshTokens(length int, ttl time.Duration, now func() time.Time) *refreshTokens {
	return &refreshTokens{
		length:  length,
		ttl:     ttl,
		now:     now,
		tokens:  make(map[string]*StoredRefreshToken),
		userIDs: make(map[int64]string),
	}
}

// Create issues a new refresh token for userID, invalidating the previous one
func (rt *refreshTokens) Create(userID int64) (string, error) {
	tokenBytes := make([]byte, rt.length)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	tokenStr := hex.EncodeToString(tokenBytes)

	rt.lock.Lock()
	defer rt.lock.Unlock()

	if existing, ok := rt.userIDs[userID]; ok {
		delete(rt.tokens, existing)
	}
	rt.tokens[tokenStr] = &StoredRefreshToken{
		Token:  tokenStr,
		UserID: userID,
		Iat:    rt.now(),
	}
	rt.userIDs[userID] = tokenStr
	return tokenStr, nil
}

// Get returns the stored token if it exists and has not expired
func (rt *refreshTokens) Get(token string) (*StoredRefreshToken, bool) {
	rt.lock.RLock()
	defer rt.lock.RUnlock()

	stored, ok := rt.tokens[token]
	if !ok || rt.isExpired(stored) {
		return nil, false
	}
	copied := *stored
	return &copied, true
}

func (rt *refreshTokens) Delete(token string) bool {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	stored, ok := rt.tokens[token]
	if !ok {
		return false
	}
	delete(rt.tokens, token)
	if rt.userIDs[stored.UserID] == token {
		delete(rt.userIDs, stored.UserID)
	}
	return true
}

// Clear forgets every issued token
func (rt *refreshTokens) Clear() {
	rt.lock.Lock()
	defer rt.lock.Unlock()

	rt.tokens = make(map[string]*StoredRefreshToken)
	rt.userIDs = make(map[int64]string)
}

func (rt *refreshTokens) isExpired(stored *StoredRefreshToken) bool {
	if rt.ttl == 0 {
		return false
	}
	return rt.now().Sub(stored.Iat) > rt.ttl
}
