package sessionreporedis_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/internal/sealer"
	"github.com/jrsteele09/go-blog-client/session"
	sessionreporedis "github.com/jrsteele09/go-blog-client/session/reporedis"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisClientForTest(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})
	return server, client
}

func newSealer(t *testing.T) *sealer.Sealer {
	t.Helper()
	s, err := sealer.New("passphrase")
	require.NoError(t, err)
	return s
}

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	server, client := newRedisClientForTest(t)
	repo := sessionreporedis.NewRedisSessionRepo(client, "blogclient", "auth-store", 0, newSealer(t))

	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	identity := users.Identity{ID: 7, Username: "ada"}
	require.NoError(t, repo.Save(ctx, &session.Session{AccessToken: "a", RefreshToken: "r", Identity: identity, IsLoggedIn: true}))
	require.True(t, server.Exists("blogclient:auth-store"))

	raw, err := server.Get("blogclient:auth-store")
	require.NoError(t, err)
	require.NotContains(t, raw, `"refreshToken"`)

	loaded, err := repo.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, identity, loaded.Identity)
	require.Equal(t, "r", loaded.RefreshToken)

	require.NoError(t, repo.Delete(ctx))
	require.False(t, server.Exists("blogclient:auth-store"))
}

func TestSaveAppliesTTL(t *testing.T) {
	ctx := context.Background()
	server, client := newRedisClientForTest(t)
	repo := sessionreporedis.NewRedisSessionRepo(client, "blogclient", "auth-store", time.Hour, newSealer(t))

	require.NoError(t, repo.Save(ctx, &session.Session{}))
	require.Equal(t, time.Hour, server.TTL("blogclient:auth-store"))

	server.FastForward(2 * time.Hour)
	_, err := repo.Load(ctx)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestLoadCorruptValue(t *testing.T) {
	server, client := newRedisClientForTest(t)
	repo := sessionreporedis.NewRedisSessionRepo(client, "blogclient", "auth-store", 0, newSealer(t))
	require.NoError(t, server.Set("blogclient:auth-store", "garbage"))

	_, err := repo.Load(context.Background())
	require.ErrorIs(t, err, apperrors.ErrCorrupt)
}

func TestUnavailableServer(t *testing.T) {
	server, client := newRedisClientForTest(t)
	repo := sessionreporedis.NewRedisSessionRepo(client, "blogclient", "auth-store", 0, newSealer(t))
	server.Close()

	require.Error(t, repo.Save(context.Background(), &session.Session{}))
	_, err := repo.Load(context.Background())
	require.Error(t, err)
	require.NotErrorIs(t, err, apperrors.ErrNotFound)
}
