package refresh

import (
	"context"
	"sync"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-client/internal/clock"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/session"
	"github.com/jrsteele09/go-blog-client/token"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultSafetyMargin       = 2 * time.Minute
	DefaultRequestTimeout     = 10 * time.Second
	DefaultMinRescheduleDelay = 30 * time.Second
)

// State of the refresh cycle
type State int

const (
	StateIdle     State = iota // No timer armed and no renewal in flight
	StateArmed                 // Exactly one timer armed
	StateRenewing              // A renewal call is in flight, no timer armed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateRenewing:
		return "renewing"
	default:
		return "unknown"
	}
}

// SessionStore is the part of session.Store the refresh cycle reads and writes
type SessionStore interface {
	Snapshot() session.Session
	ApplyRenewal(ctx context.Context, epoch uint64, accessToken, rotatedRefreshToken string) error
	EndSession(ctx context.Context, epoch uint64) error
}

// Manager keeps the access token of the current session fresh. It arms at most one timer that fires
// SafetyMargin before the access token expires, renews the token and re-arms itself.
//
// Every arm, cancel and renewal start bumps a generation counter. Timer callbacks and renewal
// completions carry the generation they were started with and only act while it is still current,
// so a superseded timer or a renewal that completes after Cancel never touches the session.
type Manager struct {
	store     SessionStore
	refresher Refresher
	clock     clock.Clock
	logger    zerolog.Logger

	safetyMargin       time.Duration
	requestTimeout     time.Duration
	minRescheduleDelay time.Duration
	retryAttempts      uint
	retryDelay         time.Duration

	baseCtx context.Context
	cancel  context.CancelFunc

	mu            sync.Mutex
	state         State
	timer         clock.Timer
	generation    uint64
	nextRefreshAt time.Time
}

type ManagerOption func(*Manager)

func WithSafetyMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.safetyMargin = margin
	}
}

func WithClock(c clock.Clock) ManagerOption {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

func WithRequestTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.requestTimeout = timeout
	}
}

// WithRetry makes a renewal try the refresh call up to attempts times with exponential backoff
// starting at delay. A rejected refresh token is never retried.
func WithRetry(attempts int, delay time.Duration) ManagerOption {
	return func(m *Manager) {
		if attempts < 1 {
			attempts = 1
		}
		m.retryAttempts = uint(attempts)
		m.retryDelay = delay
	}
}

// WithMinRescheduleDelay bounds how soon the timer is re-armed after a renewal that returned a token
// already inside the safety margin.
func WithMinRescheduleDelay(delay time.Duration) ManagerOption {
	return func(m *Manager) {
		m.minRescheduleDelay = delay
	}
}

func NewManager(store SessionStore, refresher Refresher, options ...ManagerOption) *Manager {
	m := &Manager{
		store:              store,
		refresher:          refresher,
		clock:              clock.Real(),
		logger:             log.Logger,
		safetyMargin:       DefaultSafetyMargin,
		requestTimeout:     DefaultRequestTimeout,
		minRescheduleDelay: DefaultMinRescheduleDelay,
		retryAttempts:      1,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "token_refresh").Logger()
	m.baseCtx, m.cancel = context.WithCancel(context.Background())
	return m
}

// Schedule arms the renewal of accessToken SafetyMargin before it expires, replacing any armed
// timer. A token already inside the margin is renewed synchronously. Sessions that can't be
// refreshed are never scheduled and drop the timer of the session they replaced. A token that
// can't be decoded returns errors.ErrDecode and leaves the current state untouched.
func (m *Manager) Schedule(ctx context.Context, accessToken string) error {
	if !m.store.Snapshot().RefreshEligible() {
		m.logger.Debug().Msg("Session not eligible for refresh, nothing scheduled")
		m.Cancel()
		return nil
	}

	exp, err := token.ExpiresAt(accessToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Can't schedule refresh")
		return err
	}

	delay := m.delayUntilRenewal(exp)
	if delay <= 0 {
		m.logger.Debug().Time("expires_at", exp).Msg("Access token inside safety margin, renewing now")
		return m.Renew(ctx)
	}

	m.mu.Lock()
	m.armLocked(delay)
	m.mu.Unlock()
	return nil
}

// Renew exchanges the refresh token for a new access token and re-arms the timer.
// It returns errors.ErrNotLoggedIn when there is no session, errors.ErrNotEligible for sessions
// that can't be refreshed and errors.ErrRenewalInProgress when a renewal is already in flight.
// A rejected refresh token ends the session and returns errors.ErrRefreshInvalid; any other
// failure returns errors.ErrTransient and leaves the cycle idle until the next trigger.
func (m *Manager) Renew(ctx context.Context) error {
	snapshot := m.store.Snapshot()
	if !snapshot.IsLoggedIn {
		return apperrors.ErrNotLoggedIn
	}
	if !snapshot.RefreshEligible() {
		return apperrors.ErrNotEligible
	}

	m.mu.Lock()
	if m.state == StateRenewing {
		m.mu.Unlock()
		return apperrors.ErrRenewalInProgress
	}
	m.stopTimerLocked()
	m.generation++
	gen := m.generation
	m.state = StateRenewing
	m.nextRefreshAt = time.Time{}
	m.mu.Unlock()

	logger := m.logger.With().
		Str("renewal_id", uuid.New().String()).
		Int64("user_id", snapshot.Identity.ID).
		Logger()
	logger.Debug().Msg("Renewing access token")

	result, err := m.callRefresher(ctx, snapshot, logger)
	if err != nil {
		return m.handleFailure(ctx, gen, snapshot, err, logger)
	}

	if !m.isCurrent(gen) {
		logger.Info().Msg("Renewal superseded, discarding new token")
		return apperrors.ErrSuperseded
	}

	if err := m.store.ApplyRenewal(ctx, snapshot.Epoch, result.AccessToken, result.RefreshToken); err != nil {
		switch {
		case apperrors.Is(err, apperrors.ErrSessionChanged), apperrors.Is(err, apperrors.ErrNotLoggedIn):
			logger.Info().Msg("Session changed during renewal, discarding new token")
			m.finish(gen)
			return apperrors.Mark(err, apperrors.ErrSuperseded)
		case apperrors.Is(err, apperrors.ErrStorage):
			// the renewed token is live in memory, keep the cycle going
			logger.Error().Err(err).Msg("Failed to persist renewed access token")
		default:
			m.finish(gen)
			return err
		}
	}

	exp, err := token.ExpiresAt(result.AccessToken)
	if err != nil {
		logger.Warn().Err(err).Msg("Renewed access token can't be decoded, not rescheduling")
		m.finish(gen)
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return nil
	}
	delay := m.delayUntilRenewal(exp)
	if delay <= 0 {
		logger.Warn().Time("expires_at", exp).Msg("Renewed access token already inside safety margin")
		delay = m.minRescheduleDelay
	}
	m.armLocked(delay)
	logger.Info().Time("next_refresh_at", m.nextRefreshAt).Msg("Access token renewed")
	return nil
}

// Check re-derives whether the current access token needs renewing. It renews when the token is
// inside the safety margin, leaves an armed timer alone and arms one when idle. Used on app start and
// whenever the host app returns to the foreground, since timers may not have fired while suspended.
func (m *Manager) Check(ctx context.Context) error {
	snapshot := m.store.Snapshot()
	if !snapshot.IsLoggedIn || snapshot.AccessToken == "" || !snapshot.RefreshEligible() {
		return nil
	}

	m.mu.Lock()
	state := m.state
	m.mu.Unlock()
	if state == StateRenewing {
		return nil
	}

	exp, err := token.ExpiresAt(snapshot.AccessToken)
	if err != nil {
		m.logger.Warn().Err(err).Msg("Can't check access token expiry")
		return err
	}
	if m.delayUntilRenewal(exp) <= 0 {
		m.logger.Debug().Time("expires_at", exp).Msg("Access token due for renewal")
		return m.Renew(ctx)
	}
	if state == StateArmed {
		return nil
	}
	return m.Schedule(ctx, snapshot.AccessToken)
}

// Cancel drops the armed timer and invalidates any renewal in flight. Call it when logging out.
func (m *Manager) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	m.generation++
	m.state = StateIdle
	m.nextRefreshAt = time.Time{}
}

// Close cancels the cycle and aborts a timer triggered renewal in flight
func (m *Manager) Close() {
	m.Cancel()
	m.cancel()
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// NextRefreshAt returns when the armed timer fires, zero when nothing is armed
func (m *Manager) NextRefreshAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.nextRefreshAt
}

func (m *Manager) delayUntilRenewal(exp time.Time) time.Duration {
	return exp.Sub(m.clock.Now()) - m.safetyMargin
}

// armLocked replaces any armed timer with one firing after delay
func (m *Manager) armLocked(delay time.Duration) {
	m.stopTimerLocked()
	m.generation++
	gen := m.generation
	m.timer = m.clock.AfterFunc(delay, func() { m.fire(gen) })
	m.state = StateArmed
	m.nextRefreshAt = m.clock.Now().Add(delay)
	m.logger.Debug().Dur("delay", delay).Time("next_refresh_at", m.nextRefreshAt).Msg("Refresh armed")
}

func (m *Manager) stopTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) fire(gen uint64) {
	m.mu.Lock()
	if m.generation != gen || m.state != StateArmed {
		m.mu.Unlock()
		m.logger.Debug().Msg("Ignoring superseded refresh timer")
		return
	}
	m.timer = nil
	m.state = StateIdle
	m.nextRefreshAt = time.Time{}
	m.mu.Unlock()

	if err := m.Renew(m.baseCtx); err != nil {
		m.logger.Debug().Err(err).Msg("Timer triggered renewal did not complete")
	}
}

func (m *Manager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.generation == gen
}

// finish returns the cycle to idle if gen still owns it
func (m *Manager) finish(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation == gen {
		m.state = StateIdle
	}
}

func (m *Manager) callRefresher(ctx context.Context, snapshot session.Session, logger zerolog.Logger) (*Result, error) {
	req := Request{
		RefreshToken: snapshot.RefreshToken,
		UserID:       snapshot.Identity.ID,
		Username:     snapshot.Identity.Username,
	}

	return retry.DoWithData(
		func() (*Result, error) {
			callCtx, cancel := context.WithTimeout(ctx, m.requestTimeout)
			defer cancel()

			result, err := m.refresher.Refresh(callCtx, req)
			if err != nil {
				return nil, err
			}
			if result == nil || result.AccessToken == "" {
				return nil, apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "refresh returned no access token")
			}
			return result, nil
		},
		retry.Context(ctx),
		retry.Attempts(m.retryAttempts),
		retry.Delay(m.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return !apperrors.Is(err, apperrors.ErrRefreshInvalid)
		}),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Uint("attempt", n+1).Err(err).Msg("Refresh call failed, retrying")
		}),
	)
}

func (m *Manager) handleFailure(ctx context.Context, gen uint64, snapshot session.Session, err error, logger zerolog.Logger) error {
	if apperrors.Is(err, apperrors.ErrRefreshInvalid) {
		if !m.isCurrent(gen) {
			logger.Info().Msg("Refresh token rejected after renewal was superseded")
			return err
		}
		m.finish(gen)
		logger.Warn().Msg("Refresh token expired or invalid, logging out")
		if endErr := m.store.EndSession(ctx, snapshot.Epoch); endErr != nil && !apperrors.Is(endErr, apperrors.ErrSessionChanged) {
			logger.Error().Err(endErr).Msg("Failed to clear session after refresh token rejection")
		}
		return err
	}

	m.finish(gen)
	logger.Warn().Err(err).Msg("Token refresh failed, waiting for next trigger")
	return apperrors.Mark(err, apperrors.ErrTransient)
}
