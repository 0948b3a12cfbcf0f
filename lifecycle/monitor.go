package lifecycle

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-blog-client/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// AppState is the foreground state reported by the host application
type AppState string

const (
	StateActive     AppState = "active"
	StateInactive   AppState = "inactive"
	StateBackground AppState = "background"
)

// Checker re-evaluates whether the access token needs renewing. refresh.Manager implements it.
type Checker interface {
	Check(ctx context.Context) error
}

// SessionView exposes the current session. session.Store implements it.
type SessionView interface {
	Snapshot() session.Session
}

// Monitor runs the renewal check when the app starts and whenever it returns to the foreground.
// Timers don't run while the host is suspended, so the armed refresh may be long overdue by then.
type Monitor struct {
	checker  Checker
	sessions SessionView
	logger   zerolog.Logger

	mu      sync.Mutex
	current AppState
	checks  int
}

type MonitorOption func(*Monitor)

func WithLogger(logger zerolog.Logger) MonitorOption {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithInitialState sets the state assumed before the first transition. Defaults to StateActive.
func WithInitialState(state AppState) MonitorOption {
	return func(m *Monitor) {
		m.current = state
	}
}

func NewMonitor(checker Checker, sessions SessionView, options ...MonitorOption) *Monitor {
	m := &Monitor{
		checker:  checker,
		sessions: sessions,
		logger:   log.Logger,
		current:  StateActive,
	}
	for _, opt := range options {
		opt(m)
	}
	m.logger = m.logger.With().Str("component", "lifecycle").Logger()
	return m
}

// Start runs the initial mount check
func (m *Monitor) Start(ctx context.Context) {
	m.check(ctx, "start")
}

// Transition records the new app state and runs the check when the app comes back to the foreground
func (m *Monitor) Transition(ctx context.Context, next AppState) {
	m.mu.Lock()
	previous := m.current
	m.current = next
	m.mu.Unlock()

	m.logger.Debug().Str("from", string(previous)).Str("to", string(next)).Msg("App state changed")
	if next == StateActive && (previous == StateInactive || previous == StateBackground) {
		m.check(ctx, "foreground")
	}
}

// Run performs the start check then applies every state received on states until ctx ends or
// states is closed.
func (m *Monitor) Run(ctx context.Context, states <-chan AppState) {
	m.Start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case next, ok := <-states:
			if !ok {
				return
			}
			m.Transition(ctx, next)
		}
	}
}

func (m *Monitor) State() AppState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Checks returns how many checks have been run against a logged in session
func (m *Monitor) Checks() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checks
}

func (m *Monitor) check(ctx context.Context, reason string) {
	snapshot := m.sessions.Snapshot()
	if !snapshot.IsLoggedIn || snapshot.AccessToken == "" {
		return
	}

	m.mu.Lock()
	m.checks++
	m.mu.Unlock()

	if err := m.checker.Check(ctx); err != nil {
		m.logger.Warn().Err(err).Str("reason", reason).Msg("Token check failed")
	}
}
