// Package app builds the session core of the blog client from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-blog-client/auth"
	"github.com/jrsteele09/go-blog-client/client"
	"github.com/jrsteele09/go-blog-client/internal/clock"
	"github.com/jrsteele09/go-blog-client/internal/config"
	"github.com/jrsteele09/go-blog-client/internal/sealer"
	"github.com/jrsteele09/go-blog-client/lifecycle"
	"github.com/jrsteele09/go-blog-client/session"
	sessionrepofile "github.com/jrsteele09/go-blog-client/session/repofile"
	sessionreporedis "github.com/jrsteele09/go-blog-client/session/reporedis"
	"github.com/jrsteele09/go-blog-client/token/refresh"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"
)

// devStoreKey seals the session in DEV when no key is configured
const devStoreKey = "blogclient-dev-only"

var ErrMissingStoreKey = errors.New("SESSION_STORE_KEY must be set outside DEV")

// App holds every long lived component of the client
type App struct {
	Config  config.Config
	Store   *session.Store
	API     *client.Client
	Refresh *refresh.Manager
	Auth    *auth.Service
	Monitor *lifecycle.Monitor

	redis redis.UniversalClient
}

type options struct {
	fs         afero.Fs
	redis      redis.UniversalClient
	clock      clock.Clock
	httpClient *http.Client
	logger     zerolog.Logger
}

type Option func(*options)

// WithFs stores the session file on fs instead of the OS filesystem
func WithFs(fs afero.Fs) Option {
	return func(o *options) {
		o.fs = fs
	}
}

// WithRedisClient uses client for the redis backend instead of dialing the configured address
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

func WithClock(c clock.Clock) Option {
	return func(o *options) {
		o.clock = c
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		o.httpClient = httpClient
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New builds the app. The persisted session is loaded before New returns; the refresh cycle is not
// started until the monitor's Start or Run is called.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*App, error) {
	o := &options{
		fs:     afero.NewOsFs(),
		clock:  clock.Real(),
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(o)
	}

	a := &App{Config: cfg}

	repo, err := a.sessionRepo(cfg, o)
	if err != nil {
		return nil, err
	}
	a.Store = session.NewStore(ctx, repo, session.WithLogger(o.logger))

	clientOpts := []client.Option{
		client.WithTokenSource(a.Store),
		client.WithLogger(o.logger),
	}
	if o.httpClient != nil {
		clientOpts = append(clientOpts, client.WithHTTPClient(o.httpClient))
	}
	a.API = client.New(cfg.GetAPIBaseURL(), clientOpts...)

	a.Refresh = refresh.NewManager(a.Store, a.API,
		refresh.WithClock(o.clock),
		refresh.WithLogger(o.logger),
		refresh.WithSafetyMargin(cfg.GetSafetyMargin()),
		refresh.WithRequestTimeout(cfg.GetRequestTimeout()),
		refresh.WithRetry(cfg.GetRetryAttempts(), cfg.GetRetryDelay()),
		refresh.WithMinRescheduleDelay(cfg.GetMinRescheduleDelay()),
	)
	a.Auth = auth.NewService(a.Store, a.Refresh, a.API, auth.WithLogger(o.logger))
	a.Monitor = lifecycle.NewMonitor(a.Refresh, a.Store, lifecycle.WithLogger(o.logger))
	return a, nil
}

// Close stops the refresh cycle and releases the redis connection the app opened
func (a *App) Close() error {
	a.Refresh.Close()
	if a.redis != nil {
		return a.redis.Close()
	}
	return nil
}

func (a *App) sessionRepo(cfg config.Config, o *options) (session.Repo, error) {
	key := cfg.GetStoreKey()
	if key == "" {
		if cfg.GetEnv() != "DEV" {
			return nil, ErrMissingStoreKey
		}
		key = devStoreKey
	}
	s, err := sealer.New(key)
	if err != nil {
		return nil, fmt.Errorf("session sealer: %w", err)
	}

	switch backend := cfg.GetStoreBackend(); backend {
	case config.BackendFile:
		return sessionrepofile.NewFileSessionRepo(o.fs, cfg.GetStoreDir(), cfg.GetStoreRecord(), s), nil
	case config.BackendRedis:
		rc := o.redis
		if rc == nil {
			rc = redis.NewClient(&redis.Options{Addr: cfg.GetRedisAddr()})
			a.redis = rc
		}
		return sessionreporedis.NewRedisSessionRepo(rc, cfg.GetRedisPrefix(), cfg.GetStoreRecord(), cfg.GetRedisTTL(), s), nil
	default:
		return nil, fmt.Errorf("unknown session store backend %q", backend)
	}
}
