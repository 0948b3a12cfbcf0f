package session

import (
	"context"
	"sync"

	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Store is the authoritative holder of the session. Every mutation is persisted through the Repo
// before the store lock is released, so the persisted record always matches the last mutation.
// Subscribers are notified after the lock is released.
type Store struct {
	repo   Repo
	logger zerolog.Logger

	mu      sync.Mutex
	current Session

	subMu       sync.Mutex
	subscribers map[int]func(Session)
	nextSubID   int
}

var _ oauth2.TokenSource = (*Store)(nil)

type StoreOption func(*Store)

func WithLogger(logger zerolog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = logger
	}
}

// NewStore creates the store and loads the persisted session. A missing, unreadable or corrupt
// record leaves the store logged out.
func NewStore(ctx context.Context, repo Repo, options ...StoreOption) *Store {
	s := &Store{
		repo:        repo,
		logger:      log.Logger,
		subscribers: make(map[int]func(Session)),
	}
	for _, opt := range options {
		opt(s)
	}

	loaded, err := repo.Load(ctx)
	switch {
	case apperrors.Is(err, apperrors.ErrNotFound):
		s.logger.Debug().Msg("No persisted session, starting logged out")
	case err != nil:
		s.logger.Warn().Err(err).Msg("Failed to load persisted session, starting logged out")
	case loaded == nil || !loaded.IsLoggedIn:
	case !loaded.Consistent():
		s.logger.Warn().Msg("Persisted session is inconsistent, starting logged out")
	default:
		s.current = *loaded
		s.current.Epoch = 1
		s.logger.Info().Int64("user_id", loaded.Identity.ID).Msg("Restored persisted session")
	}
	return s
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Store) IsLoggedIn() bool {
	return s.Snapshot().IsLoggedIn
}

func (s *Store) AccessToken() string {
	return s.Snapshot().AccessToken
}

func (s *Store) Identity() users.Identity {
	return s.Snapshot().Identity
}

// LogIn installs a new session. Invalid credentials are rejected without touching the current
// session. A persistence failure is returned wrapped in errors.ErrStorage; the in-memory session is
// still installed.
func (s *Store) LogIn(ctx context.Context, accessToken, refreshToken string, identity users.Identity) error {
	if accessToken == "" || !identity.Valid() {
		return apperrors.ErrInvalidSession
	}

	return s.mutate(ctx, func(cur *Session) error {
		*cur = Session{
			AccessToken:  accessToken,
			RefreshToken: refreshToken,
			Identity:     identity,
			IsLoggedIn:   true,
			Epoch:        cur.Epoch + 1,
		}
		return nil
	})
}

// LogOut clears the session and removes the persisted record. Callers own cancelling the refresh
// timer and revoking the refresh token.
func (s *Store) LogOut(ctx context.Context) error {
	return s.clear(ctx, nil)
}

// EndSession logs out only if the session is still the one identified by epoch. It returns
// errors.ErrSessionChanged, without touching anything, when a newer session has been installed.
func (s *Store) EndSession(ctx context.Context, epoch uint64) error {
	return s.clear(ctx, &epoch)
}

// SetUsername replaces the identity's username after a successful profile update
func (s *Store) SetUsername(ctx context.Context, username string) error {
	return s.mutate(ctx, func(cur *Session) error {
		if !cur.IsLoggedIn {
			return apperrors.ErrNotLoggedIn
		}
		cur.Identity.Username = username
		return nil
	})
}

// ReplaceAccessToken swaps the access token of the current session, leaving everything else alone
func (s *Store) ReplaceAccessToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return apperrors.ErrInvalidSession
	}
	return s.mutate(ctx, func(cur *Session) error {
		if !cur.IsLoggedIn {
			return apperrors.ErrNotLoggedIn
		}
		cur.AccessToken = accessToken
		return nil
	})
}

// ApplyRenewal installs a renewed access token only if the session is still logged in with the
// given epoch, returning errors.ErrSessionChanged otherwise. A non-empty rotatedRefreshToken
// replaces the refresh token.
func (s *Store) ApplyRenewal(ctx context.Context, epoch uint64, accessToken, rotatedRefreshToken string) error {
	if accessToken == "" {
		return apperrors.ErrInvalidSession
	}
	return s.mutate(ctx, func(cur *Session) error {
		if !cur.IsLoggedIn {
			return apperrors.ErrNotLoggedIn
		}
		if cur.Epoch != epoch {
			return apperrors.ErrSessionChanged
		}
		cur.AccessToken = accessToken
		if rotatedRefreshToken != "" {
			cur.RefreshToken = rotatedRefreshToken
		}
		return nil
	})
}

// Subscribe registers fn to receive a copy of the session after every mutation. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Session)) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			delete(s.subscribers, id)
		})
	}
}

// Token implements oauth2.TokenSource so HTTP clients always send the latest access token
func (s *Store) Token() (*oauth2.Token, error) {
	snapshot := s.Snapshot()
	if !snapshot.IsLoggedIn {
		return nil, apperrors.ErrNotLoggedIn
	}

	t := &oauth2.Token{
		AccessToken: snapshot.AccessToken,
		TokenType:   "Bearer",
	}
	if exp, err := token.ExpiresAt(snapshot.AccessToken); err == nil {
		t.Expiry = exp
	}
	return t, nil
}

// mutate applies change under the store lock and persists the result. A change that returns an
// error leaves the session untouched.
func (s *Store) mutate(ctx context.Context, change func(cur *Session) error) error {
	s.mu.Lock()
	next := s.current
	if err := change(&next); err != nil {
		s.mu.Unlock()
		return err
	}
	s.current = next
	persisted := next
	err := s.repo.Save(ctx, &persisted)
	s.mu.Unlock()

	s.notify(next)
	if err != nil {
		return apperrors.Mark(apperrors.Wrapf(err, "save session"), apperrors.ErrStorage)
	}
	return nil
}

// clear resets the session to defaults and deletes the persisted record. With a non-nil epoch it
// only does so while that epoch is current.
func (s *Store) clear(ctx context.Context, epoch *uint64) error {
	s.mu.Lock()
	if epoch != nil && s.current.Epoch != *epoch {
		s.mu.Unlock()
		return apperrors.ErrSessionChanged
	}
	s.current = Session{Epoch: s.current.Epoch + 1}
	snapshot := s.current
	err := s.repo.Delete(ctx)
	s.mu.Unlock()

	s.notify(snapshot)
	if err != nil {
		return apperrors.Mark(apperrors.Wrapf(err, "delete session"), apperrors.ErrStorage)
	}
	return nil
}

func (s *Store) notify(snapshot Session) {
	s.subMu.Lock()
	listeners := make([]func(Session), 0, len(s.subscribers))
	for _, fn := range s.subscribers {
		listeners = append(listeners, fn)
	}
	s.subMu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}
