package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jrsteele09/go-blog-client/apimodel"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/session"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const revokeTimeout = 5 * time.Second

// API is the part of the blog API the account actions need. client.Client implements it.
type API interface {
	Login(ctx context.Context, username, password string) (*apimodel.LoginResponse, error)
	LoginGuest(ctx context.Context) (*apimodel.LoginResponse, error)
	Signup(ctx context.Context, req apimodel.SignupRequest) error
	RevokeRefreshToken(ctx context.Context, refreshToken string, userID int64) error
	UserData(ctx context.Context, username string) (*apimodel.UserProfile, error)
}

// Scheduler keeps the access token of the session fresh. refresh.Manager implements it.
type Scheduler interface {
	Schedule(ctx context.Context, accessToken string) error
	Cancel()
}

// SignUpRequest holds the fields of the sign up form
type SignUpRequest struct {
	Username  string
	Password  string
	Email     string
	FirstName string
	LastName  string
}

// Service implements the account actions of the app on top of the session store and the refresh cycle.
type Service struct {
	store     *session.Store
	scheduler Scheduler
	api       API
	logger    zerolog.Logger
}

type ServiceOption func(*Service)

func WithLogger(logger zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

func NewService(store *session.Store, scheduler Scheduler, api API, options ...ServiceOption) *Service {
	s := &Service{
		store:     store,
		scheduler: scheduler,
		api:       api,
		logger:    log.Logger,
	}
	for _, opt := range options {
		opt(s)
	}
	s.logger = s.logger.With().Str("component", "auth").Logger()
	return s
}

// LogIn authenticates with username and password, installs the session and schedules its refresh.
// A session that could not be persisted is still live and errors.ErrStorage is returned.
func (s *Service) LogIn(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return MissingFieldsErr
	}

	resp, err := s.api.Login(ctx, username, password)
	if err != nil {
		return fmt.Errorf("log in: %w", err)
	}
	return s.install(ctx, resp)
}

// LogInGuest starts a guest session. Guest sessions are never refreshed.
func (s *Service) LogInGuest(ctx context.Context) error {
	resp, err := s.api.LoginGuest(ctx)
	if err != nil {
		return fmt.Errorf("guest log in: %w", err)
	}
	return s.install(ctx, resp)
}

// SignUp registers a new account then logs in with it
func (s *Service) SignUp(ctx context.Context, req SignUpRequest) error {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)
	if req.Username == "" || req.Password == "" || req.Email == "" || req.FirstName == "" || req.LastName == "" {
		return MissingFieldsErr
	}
	if err := users.ValidateUsername(req.Username); err != nil {
		return ReservedUsernameErr
	}

	if err := s.api.Signup(ctx, apimodel.SignupRequest{
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}
	return s.LogIn(ctx, req.Username, req.Password)
}

// LogOut revokes the refresh token when there is one, stops the refresh cycle and clears the session.
// Revocation is best effort: its failure is logged and the session is cleared regardless.
func (s *Service) LogOut(ctx context.Context) error {
	snapshot := s.store.Snapshot()
	if snapshot.RefreshEligible() {
		revokeCtx, cancel := context.WithTimeout(ctx, revokeTimeout)
		if err := s.api.RevokeRefreshToken(revokeCtx, snapshot.RefreshToken, snapshot.Identity.ID); err != nil {
			s.logger.Warn().Err(err).Int64("user_id", snapshot.Identity.ID).Msg("Failed to revoke refresh token")
		}
		cancel()
	}

	s.scheduler.Cancel()
	if err := s.store.LogOut(ctx); err != nil {
		return err
	}
	s.logger.Info().Int64("user_id", snapshot.Identity.ID).Msg("Logged out")
	return nil
}

// UpdateUsername records a username change that the profile update already applied server side
func (s *Service) UpdateUsername(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if err := users.ValidateUsername(username); err != nil {
		return err
	}
	return s.store.SetUsername(ctx, username)
}

// Profile fetches the profile of the logged in user
func (s *Service) Profile(ctx context.Context) (*apimodel.UserProfile, error) {
	snapshot := s.store.Snapshot()
	if !snapshot.IsLoggedIn {
		return nil, apperrors.ErrNotLoggedIn
	}
	if snapshot.Identity.IsGuestSession() {
		return nil, GuestProfileErr
	}
	return s.api.UserData(ctx, snapshot.Identity.Username)
}

func (s *Service) install(ctx context.Context, resp *apimodel.LoginResponse) error {
	storeErr := s.store.LogIn(ctx, resp.Token, resp.RefreshToken, resp.User)
	if storeErr != nil && !apperrors.Is(storeErr, apperrors.ErrStorage) {
		return storeErr
	}
	if storeErr != nil {
		s.logger.Error().Err(storeErr).Msg("Session is live but was not persisted")
	}

	logger := s.logger.With().Int64("user_id", resp.User.ID).Bool("guest", resp.User.IsGuestSession()).Logger()
	logger.Info().Msg("Logged in")

	if err := s.scheduler.Schedule(ctx, resp.Token); err != nil {
		logger.Warn().Err(err).Msg("Token refresh not scheduled")
	}
	return storeErr
}
