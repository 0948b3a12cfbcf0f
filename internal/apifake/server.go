package apifake

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/jrsteele09/go-blog-client/apimodel"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/jrsteele09/go-blog-client/token/jwt"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultAccessTTL          = 15 * time.Minute
	DefaultRefreshTTL         = 7 * 24 * time.Hour
	DefaultRefreshTokenLength = 32
)

// Server is an in-process stand-in for the blog API. It issues real HS256 access tokens and opaque
// refresh tokens, and lets tests script refresh failures and hold refresh calls mid flight.
type Server struct {
	env    string
	mux    *http.ServeMux
	routes []string
	logger zerolog.Logger

	secret       string
	now          func() time.Time
	accessTTL    time.Duration
	refreshTTL   time.Duration
	rotate       bool
	passwordCost int

	creator       *jwt.Creator
	inspector     *jwt.Inspector
	accounts      *accounts
	refreshTokens *refreshTokens
	blogs         []apimodel.Blog
	pictures      map[int64][]apimodel.Picture

	lock            sync.Mutex
	refreshCalls    int
	revokeCalls     int
	refreshFailures []apimodel.ErrorResponse
	failureStatuses []int
	gate            *refreshGate
}

type refreshGate struct {
	entered chan struct{}
	release chan struct{}
}

type Option func(*Server)

func WithSecret(secret string) Option {
	return func(s *Server) {
		s.secret = secret
	}
}

func WithNowFunc(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func WithAccessTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.accessTTL = ttl
	}
}

func WithRefreshTTL(ttl time.Duration) Option {
	return func(s *Server) {
		s.refreshTTL = ttl
	}
}

// WithRotation makes every refresh issue a new refresh token and invalidate the old one
func WithRotation(rotate bool) Option {
	return func(s *Server) {
		s.rotate = rotate
	}
}

// WithPasswordCost sets the bcrypt cost of stored passwords. Tests use bcrypt.MinCost.
func WithPasswordCost(cost int) Option {
	return func(s *Server) {
		s.passwordCost = cost
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithEnv enables per request logging in "DEV"
func WithEnv(env string) Option {
	return func(s *Server) {
		s.env = env
	}
}

func New(options ...Option) *Server {
	s := &Server{
		mux:          http.NewServeMux(),
		logger:       log.Logger,
		secret:       "blog-api-dev-secret",
		now:          time.Now,
		accessTTL:    DefaultAccessTTL,
		refreshTTL:   DefaultRefreshTTL,
		passwordCost: bcrypt.DefaultCost,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "api_fake").Logger()

	signer := token.NewHMACSigner(s.secret)
	s.creator = jwt.NewCreator(signer, jwt.WithNowFunc(s.now))
	s.inspector = jwt.NewInspector(signer, s.now)
	s.accounts = newAccounts(s.passwordCost)
	s.refreshTokens = newRefreshTokens(DefaultRefreshTokenLength, s.refreshTTL, s.now)
	s.seedBlogs()

	s.initRoutes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Routes lists the registered route patterns
func (s *Server) Routes() []string {
	return append([]string(nil), s.routes...)
}

// Register creates an account as POST /api/register would
func (s *Server) Register(req apimodel.SignupRequest) (users.Identity, error) {
	return s.accounts.Register(req)
}

// RenameUser changes a username as a completed profile update would
func (s *Server) RenameUser(id int64, username string) error {
	return s.accounts.Rename(id, username)
}

func (s *Server) SetAccessTTL(ttl time.Duration) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.accessTTL = ttl
}

// FailNextRefresh makes the next refresh call answer status with message instead of a new token.
// Calls queue up in order.
func (s *Server) FailNextRefresh(status int, message string) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.failureStatuses = append(s.failureStatuses, status)
	s.refreshFailures = append(s.refreshFailures, apimodel.ErrorResponse{Message: message})
}

// RevokeAllRefreshTokens forgets every issued refresh token, as a server side expiry would
func (s *Server) RevokeAllRefreshTokens() {
	s.refreshTokens.Clear()
}

// HasRefreshToken reports whether refreshToken is still accepted
func (s *Server) HasRefreshToken(refreshToken string) bool {
	_, ok := s.refreshTokens.Get(refreshToken)
	return ok
}

// HoldRefresh parks every refresh call until release is called. entered receives once per held call.
func (s *Server) HoldRefresh() (entered <-chan struct{}, release func()) {
	gate := &refreshGate{entered: make(chan struct{}, 16), release: make(chan struct{})}
	s.lock.Lock()
	s.gate = gate
	s.lock.Unlock()

	var once sync.Once
	return gate.entered, func() {
		once.Do(func() {
			s.lock.Lock()
			if s.gate == gate {
				s.gate = nil
			}
			s.lock.Unlock()
			close(gate.release)
		})
	}
}

func (s *Server) RefreshCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.refreshCalls
}

func (s *Server) RevokeCalls() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.revokeCalls
}

// MintAccessToken issues an access token for identity with the current TTL
func (s *Server) MintAccessToken(identity users.Identity) (string, error) {
	s.lock.Lock()
	ttl := s.accessTTL
	s.lock.Unlock()
	return s.creator.CreateAccessToken(identity, ttl)
}

// nextRefreshOutcome records a refresh call and pops the scripted failure, if any
func (s *Server) nextRefreshOutcome() (status int, failure *apimodel.ErrorResponse, gate *refreshGate) {
	s.lock.Lock()
	defer s.lock.Unlock()

	s.refreshCalls++
	gate = s.gate
	if len(s.failureStatuses) == 0 {
		return 0, nil, gate
	}
	status, failure = s.failureStatuses[0], &s.refreshFailures[0]
	s.failureStatuses = s.failureStatuses[1:]
	s.refreshFailures = s.refreshFailures[1:]
	return status, failure, gate
}

func (g *refreshGate) wait(ctx context.Context) {
	g.entered <- struct{}{}
	select {
	case <-g.release:
	case <-ctx.Done():
	}
}

func (s *Server) seedBlogs() {
	s.blogs = []apimodel.Blog{
		{ID: 1, Title: "Hello, world", Body: "First post on the blog.", Author: "admin", CreatedAt: "2024-01-02T10:00:00Z", UpdatedAt: "2024-01-02T10:00:00Z"},
		{ID: 2, Title: "Trail notes", Body: "Pictures from the weekend hike.", Author: "admin", CreatedAt: "2024-02-11T08:30:00Z", UpdatedAt: "2024-02-12T19:15:00Z"},
	}
	s.pictures = map[int64][]apimodel.Picture{
		2: {
			{ID: 1, BlogID: 2, Author: "admin", ImageBlob: "/9j/4AAQSkZJRgABAQAAAQABAAD/2wBDAA==", CreatedAt: "2024-02-11T08:31:00Z", UpdatedAt: "2024-02-11T08:31:00Z"},
		},
	}
}
