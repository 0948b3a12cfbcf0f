package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/session"
	sessionrepofake "github.com/jrsteele09/go-blog-client/session/repofake"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/jrsteele09/go-blog-client/token/jwt"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

var testIdentity = users.Identity{ID: 7, Username: "ada", Role: users.RoleUser}

func newStore(t *testing.T, repo *sessionrepofake.FakeSessionRepo) *session.Store {
	t.Helper()
	return session.NewStore(context.Background(), repo, session.WithLogger(zerolog.Nop()))
}

func TestNewStoreStartsLoggedOutWithoutRecord(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())

	snapshot := s.Snapshot()
	require.False(t, snapshot.IsLoggedIn)
	require.Empty(t, snapshot.AccessToken)
	require.Equal(t, users.Identity{}, snapshot.Identity)
}

func TestNewStoreRestoresPersistedSession(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepoWith(session.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		Identity:     testIdentity,
		IsLoggedIn:   true,
	})
	s := newStore(t, repo)

	require.True(t, s.IsLoggedIn())
	require.Equal(t, "access", s.AccessToken())
	require.Equal(t, testIdentity, s.Identity())
}

func TestNewStoreTreatsCorruptOrInconsistentRecordAsLoggedOut(t *testing.T) {
	corrupt := sessionrepofake.NewFakeSessionRepo()
	corrupt.LoadErr = apperrors.ErrCorrupt
	require.False(t, newStore(t, corrupt).IsLoggedIn())

	inconsistent := sessionrepofake.NewFakeSessionRepoWith(session.Session{IsLoggedIn: true, Identity: testIdentity})
	require.False(t, newStore(t, inconsistent).IsLoggedIn())
}

func TestLogInPersistsAndNotifies(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)

	var observed []session.Session
	unsubscribe := s.Subscribe(func(snapshot session.Session) { observed = append(observed, snapshot) })
	defer unsubscribe()

	require.NoError(t, s.LogIn(context.Background(), "access", "refresh", testIdentity))

	require.True(t, s.IsLoggedIn())
	require.Len(t, observed, 1)
	require.True(t, observed[0].IsLoggedIn)
	require.Equal(t, "access", repo.Record().AccessToken)
	require.Equal(t, "refresh", repo.Record().RefreshToken)
	require.True(t, repo.Record().IsLoggedIn)
}

func TestLogInRejectsInvalidSession(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)

	require.ErrorIs(t, s.LogIn(context.Background(), "", "refresh", testIdentity), apperrors.ErrInvalidSession)
	require.ErrorIs(t, s.LogIn(context.Background(), "access", "refresh", users.Identity{Username: "ada"}), apperrors.ErrInvalidSession)
	require.False(t, s.IsLoggedIn())
	require.Zero(t, repo.Saves())
}

func TestLogInAllowsGuestIdentity(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	guest := users.Identity{Username: users.GuestUsername, IsGuest: true, Role: users.RoleGuest}

	require.NoError(t, s.LogIn(context.Background(), "guest-access", "", guest))
	require.True(t, s.IsLoggedIn())
	require.False(t, s.Snapshot().RefreshEligible())
}

func TestLogInSurfacesStorageError(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	repo.SaveErr = errors.New("disk full")
	s := newStore(t, repo)

	err := s.LogIn(context.Background(), "access", "refresh", testIdentity)
	require.ErrorIs(t, err, apperrors.ErrStorage)
	require.ErrorContains(t, err, "disk full")
	require.True(t, s.IsLoggedIn())
}

func TestLogOutClearsEverything(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)
	require.NoError(t, s.LogIn(context.Background(), "access", "refresh", testIdentity))
	epoch := s.Snapshot().Epoch

	require.NoError(t, s.LogOut(context.Background()))

	snapshot := s.Snapshot()
	require.False(t, snapshot.IsLoggedIn)
	require.Empty(t, snapshot.AccessToken)
	require.Empty(t, snapshot.RefreshToken)
	require.Equal(t, users.Identity{}, snapshot.Identity)
	require.Greater(t, snapshot.Epoch, epoch)
	require.Nil(t, repo.Record())
	require.Equal(t, 1, repo.Deletes())
}

func TestLogOutSurfacesStorageError(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)
	require.NoError(t, s.LogIn(context.Background(), "access", "refresh", testIdentity))
	repo.DeleteErr = errors.New("read-only filesystem")

	require.ErrorIs(t, s.LogOut(context.Background()), apperrors.ErrStorage)
	require.False(t, s.IsLoggedIn())
}

func TestSetUsername(t *testing.T) {
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)
	require.ErrorIs(t, s.SetUsername(context.Background(), "lovelace"), apperrors.ErrNotLoggedIn)

	require.NoError(t, s.LogIn(context.Background(), "access", "refresh", testIdentity))
	require.NoError(t, s.SetUsername(context.Background(), "lovelace"))

	require.Equal(t, "lovelace", s.Identity().Username)
	require.Equal(t, int64(7), s.Identity().ID)
	require.Equal(t, "lovelace", repo.Record().Identity.Username)
}

func TestReplaceAccessTokenKeepsRefreshAndIdentity(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	require.ErrorIs(t, s.ReplaceAccessToken(context.Background(), "new"), apperrors.ErrNotLoggedIn)

	require.NoError(t, s.LogIn(context.Background(), "old", "refresh", testIdentity))
	require.NoError(t, s.ReplaceAccessToken(context.Background(), "new"))

	snapshot := s.Snapshot()
	require.Equal(t, "new", snapshot.AccessToken)
	require.Equal(t, "refresh", snapshot.RefreshToken)
	require.Equal(t, testIdentity, snapshot.Identity)
}

func TestReplaceAccessTokenIsLastWriteWinsAgainstLogIn(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	require.NoError(t, s.LogIn(context.Background(), "first", "refresh", testIdentity))

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = s.LogIn(context.Background(), "login", "refresh", testIdentity)
		}()
		go func() {
			defer wg.Done()
			errs <- s.ReplaceAccessToken(context.Background(), "replaced")
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Contains(t, []string{"login", "replaced"}, s.AccessToken())
}

func TestApplyRenewalGuardsAgainstStaleEpoch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	require.NoError(t, s.LogIn(ctx, "first", "refresh-1", testIdentity))
	staleEpoch := s.Snapshot().Epoch

	require.NoError(t, s.LogOut(ctx))
	require.ErrorIs(t, s.ApplyRenewal(ctx, staleEpoch, "resurrected", ""), apperrors.ErrNotLoggedIn)
	require.False(t, s.IsLoggedIn())

	require.NoError(t, s.LogIn(ctx, "second", "refresh-2", testIdentity))
	require.ErrorIs(t, s.ApplyRenewal(ctx, staleEpoch, "stale", ""), apperrors.ErrSessionChanged)
	require.Equal(t, "second", s.AccessToken())

	require.NoError(t, s.ApplyRenewal(ctx, s.Snapshot().Epoch, "renewed", "refresh-3"))
	require.Equal(t, "renewed", s.AccessToken())
	require.Equal(t, "refresh-3", s.Snapshot().RefreshToken)
}

func TestUnsubscribeStopsNotifications(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	calls := 0
	unsubscribe := s.Subscribe(func(session.Session) { calls++ })

	require.NoError(t, s.LogIn(context.Background(), "access", "refresh", testIdentity))
	unsubscribe()
	unsubscribe()
	require.NoError(t, s.LogOut(context.Background()))

	require.Equal(t, 1, calls)
}

func TestTokenSource(t *testing.T) {
	s := newStore(t, sessionrepofake.NewFakeSessionRepo())
	_, err := s.Token()
	require.ErrorIs(t, err, apperrors.ErrNotLoggedIn)

	now := time.Now().Truncate(time.Second)
	creator := jwt.NewCreator(token.NewHMACSigner("secret"), jwt.WithNowFunc(func() time.Time { return now }))
	raw, err := creator.CreateAccessToken(testIdentity, 10*time.Minute)
	require.NoError(t, err)
	require.NoError(t, s.LogIn(context.Background(), raw, "refresh", testIdentity))

	tok, err := s.Token()
	require.NoError(t, err)
	require.Equal(t, raw, tok.AccessToken)
	require.Equal(t, "Bearer", tok.Type())
	require.True(t, now.Add(10*time.Minute).Equal(tok.Expiry))
}

func TestEndSessionOnlyEndsMatchingEpoch(t *testing.T) {
	ctx := context.Background()
	repo := sessionrepofake.NewFakeSessionRepo()
	s := newStore(t, repo)
	require.NoError(t, s.LogIn(ctx, "first", "refresh-1", testIdentity))
	firstEpoch := s.Snapshot().Epoch
	require.NoError(t, s.LogIn(ctx, "second", "refresh-2", testIdentity))

	require.ErrorIs(t, s.EndSession(ctx, firstEpoch), apperrors.ErrSessionChanged)
	require.True(t, s.IsLoggedIn())
	require.NotNil(t, repo.Record())

	require.NoError(t, s.EndSession(ctx, s.Snapshot().Epoch))
	require.False(t, s.IsLoggedIn())
	require.Nil(t, repo.Record())
}
