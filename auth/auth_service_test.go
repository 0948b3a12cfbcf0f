package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jrsteele09/go-blog-client/apimodel"
	"github.com/jrsteele09/go-blog-client/auth"
	"github.com/jrsteele09/go-blog-client/client"
	"github.com/jrsteele09/go-blog-client/internal/apifake"
	"github.com/jrsteele09/go-blog-client/internal/clock/clockfake"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/session"
	sessionrepofake "github.com/jrsteele09/go-blog-client/session/repofake"
	"github.com/jrsteele09/go-blog-client/token/refresh"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUsername = "ada"
	testPassword = "analytical"
)

var start = time.Date(2024, 5, 4, 9, 0, 0, 0, time.UTC)

// testFixture wires the real client, store and refresh manager against the fake API on a fake clock
type testFixture struct {
	clock   *clockfake.FakeClock
	api     *apifake.Server
	repo    *sessionrepofake.FakeSessionRepo
	store   *session.Store
	manager *refresh.Manager
	service *auth.Service
}

func newFixture(t *testing.T, options ...apifake.Option) *testFixture {
	t.Helper()

	clk := clockfake.NewFakeClock(start)
	opts := append([]apifake.Option{
		apifake.WithPasswordCost(bcrypt.MinCost),
		apifake.WithLogger(zerolog.Nop()),
		apifake.WithNowFunc(clk.Now),
	}, options...)
	api := apifake.New(opts...)
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	_, err := api.Register(apimodel.SignupRequest{
		Username:  testUsername,
		Password:  testPassword,
		Email:     "ada@example.com",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.NoError(t, err)

	repo := sessionrepofake.NewFakeSessionRepo()
	store := session.NewStore(context.Background(), repo, session.WithLogger(zerolog.Nop()))
	apiClient := client.New(ts.URL,
		client.WithHTTPClient(ts.Client()),
		client.WithTokenSource(store),
		client.WithLogger(zerolog.Nop()),
	)
	manager := refresh.NewManager(store, apiClient, refresh.WithClock(clk), refresh.WithLogger(zerolog.Nop()))
	t.Cleanup(manager.Close)

	return &testFixture{
		clock:   clk,
		api:     api,
		repo:    repo,
		store:   store,
		manager: manager,
		service: auth.NewService(store, manager, apiClient, auth.WithLogger(zerolog.Nop())),
	}
}

func (f *testFixture) logIn(t *testing.T) {
	t.Helper()
	require.NoError(t, f.service.LogIn(context.Background(), testUsername, testPassword))
}

func TestLogInInstallsSessionAndSchedulesRefresh(t *testing.T) {
	f := newFixture(t)

	f.logIn(t)

	snapshot := f.store.Snapshot()
	require.True(t, snapshot.IsLoggedIn)
	require.NotEmpty(t, snapshot.AccessToken)
	require.NotEmpty(t, snapshot.RefreshToken)
	require.Equal(t, testUsername, snapshot.Identity.Username)
	require.Equal(t, snapshot.AccessToken, f.repo.Record().AccessToken)
	require.Equal(t, refresh.StateArmed, f.manager.State())
	require.Equal(t, start.Add(apifake.DefaultAccessTTL-refresh.DefaultSafetyMargin), f.manager.NextRefreshAt())
}

func TestLogInValidation(t *testing.T) {
	f := newFixture(t)

	require.ErrorIs(t, f.service.LogIn(context.Background(), " ", testPassword), auth.MissingFieldsErr)
	require.ErrorIs(t, f.service.LogIn(context.Background(), testUsername, ""), auth.MissingFieldsErr)

	err := f.service.LogIn(context.Background(), testUsername, "wrong")
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.False(t, f.store.IsLoggedIn())
	require.Zero(t, f.clock.Pending())
}

func TestLogInSurfacesStorageErrorButKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.repo.SaveErr = errors.New("disk full")

	err := f.service.LogIn(context.Background(), testUsername, testPassword)

	require.ErrorIs(t, err, apperrors.ErrStorage)
	require.True(t, f.store.IsLoggedIn())
	require.Equal(t, refresh.StateArmed, f.manager.State())
}

func TestGuestSessionIsNeverRefreshed(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.service.LogInGuest(context.Background()))

	require.True(t, f.store.IsLoggedIn())
	require.True(t, f.store.Identity().IsGuestSession())
	require.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Hour)
	require.NoError(t, f.manager.Check(context.Background()))
	require.Zero(t, f.api.RefreshCalls())

	_, err := f.service.Profile(context.Background())
	require.ErrorIs(t, err, auth.GuestProfileErr)
}

func TestSignUp(t *testing.T) {
	f := newFixture(t)
	req := auth.SignUpRequest{Username: "grace", Password: "cobol", Email: "grace@example.com", FirstName: "Grace", LastName: "Hopper"}

	missing := req
	missing.LastName = " "
	require.ErrorIs(t, f.service.SignUp(context.Background(), missing), auth.MissingFieldsErr)

	reserved := req
	reserved.Username = "Guest"
	require.ErrorIs(t, f.service.SignUp(context.Background(), reserved), auth.ReservedUsernameErr)
	require.False(t, f.store.IsLoggedIn())

	require.NoError(t, f.service.SignUp(context.Background(), req))
	require.True(t, f.store.IsLoggedIn())
	require.Equal(t, "grace", f.store.Identity().Username)
	require.Equal(t, refresh.StateArmed, f.manager.State())

	var apiErr *client.APIError
	require.ErrorAs(t, f.service.SignUp(context.Background(), req), &apiErr)
	require.Equal(t, http.StatusConflict, apiErr.Status)
}

func TestTimerRenewsThroughAPI(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	first := f.store.AccessToken()

	f.clock.Advance(13 * time.Minute)

	require.Equal(t, 1, f.api.RefreshCalls())
	require.NotEqual(t, first, f.store.AccessToken())
	require.Equal(t, f.store.AccessToken(), f.repo.Record().AccessToken)
	require.Equal(t, 1, f.clock.Pending())
	require.Equal(t, start.Add(26*time.Minute), f.manager.NextRefreshAt())

	profile, err := f.service.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Lovelace", profile.LastName)
}

func TestRotatedRefreshTokenIsStored(t *testing.T) {
	f := newFixture(t, apifake.WithRotation(true))
	f.logIn(t)
	original := f.store.Snapshot().RefreshToken

	f.clock.Advance(13 * time.Minute)

	rotated := f.store.Snapshot().RefreshToken
	require.NotEqual(t, original, rotated)
	require.True(t, f.api.HasRefreshToken(rotated))
	require.Equal(t, rotated, f.repo.Record().RefreshToken)
}

func TestRejectedRefreshTokenLogsOut(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	f.api.RevokeAllRefreshTokens()

	f.clock.Advance(13 * time.Minute)

	require.Equal(t, 1, f.api.RefreshCalls())
	require.False(t, f.store.IsLoggedIn())
	require.Nil(t, f.repo.Record())
	require.Zero(t, f.clock.Pending())
}

func TestTransientRefreshFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	token := f.store.AccessToken()
	f.api.FailNextRefresh(http.StatusServiceUnavailable, "maintenance")

	f.clock.Advance(13 * time.Minute)

	require.True(t, f.store.IsLoggedIn())
	require.Equal(t, token, f.store.AccessToken())
	require.Zero(t, f.clock.Pending())
	require.Equal(t, refresh.StateIdle, f.manager.State())

	// The next foreground check recovers
	require.NoError(t, f.manager.Check(context.Background()))
	require.Equal(t, 2, f.api.RefreshCalls())
	require.NotEqual(t, token, f.store.AccessToken())
}

func TestLogOutRevokesAndCancels(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	refreshToken := f.store.Snapshot().RefreshToken

	require.NoError(t, f.service.LogOut(context.Background()))

	require.False(t, f.store.IsLoggedIn())
	require.Nil(t, f.repo.Record())
	require.False(t, f.api.HasRefreshToken(refreshToken))
	require.Equal(t, 1, f.api.RevokeCalls())
	require.Zero(t, f.clock.Pending())

	f.clock.Advance(time.Hour)
	require.Zero(t, f.api.RefreshCalls())
}

func TestLogOutDuringInFlightRenewal(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	entered, release := f.api.HoldRefresh()
	defer release()

	done := make(chan error, 1)
	go func() { done <- f.manager.Renew(context.Background()) }()
	<-entered

	require.NoError(t, f.service.LogOut(context.Background()))
	release()

	// log out revoked the refresh token the held call is presenting
	require.ErrorIs(t, <-done, apperrors.ErrRefreshInvalid)
	require.False(t, f.store.IsLoggedIn())
	require.Nil(t, f.repo.Record())
	require.Zero(t, f.clock.Pending())
}

func TestUpdateUsernameFlowsIntoRenewal(t *testing.T) {
	f := newFixture(t)
	f.logIn(t)
	require.NoError(t, f.api.RenameUser(f.store.Identity().ID, "lovelace"))

	require.ErrorIs(t, f.service.UpdateUsername(context.Background(), "guest"), users.ErrReservedUsername)
	require.NoError(t, f.service.UpdateUsername(context.Background(), "lovelace"))
	require.Equal(t, "lovelace", f.store.Identity().Username)

	f.clock.Advance(13 * time.Minute)
	profile, err := f.service.Profile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "lovelace", profile.Username)
}

func TestProfileRequiresSession(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.Profile(context.Background())

	require.ErrorIs(t, err, apperrors.ErrNotLoggedIn)
}
