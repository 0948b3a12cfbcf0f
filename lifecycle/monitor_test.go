package lifecycle_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-blog-client/lifecycle"
	"github.com/jrsteele09/go-blog-client/session"
	sessionrepofake "github.com/jrsteele09/go-blog-client/session/repofake"
	"github.com/jrsteele09/go-blog-client/users"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	lock  sync.Mutex
	calls int
	err   error
}

func (f *fakeChecker) Check(context.Context) error {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.calls++
	return f.err
}

func (f *fakeChecker) Calls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.calls
}

func newMonitor(t *testing.T, loggedIn bool, options ...lifecycle.MonitorOption) (*lifecycle.Monitor, *fakeChecker) {
	t.Helper()

	store := session.NewStore(context.Background(), sessionrepofake.NewFakeSessionRepo(), session.WithLogger(zerolog.Nop()))
	if loggedIn {
		identity := users.Identity{ID: 3, Username: "grace", Role: users.RoleUser}
		require.NoError(t, store.LogIn(context.Background(), "access", "refresh", identity))
	}

	checker := &fakeChecker{}
	opts := append([]lifecycle.MonitorOption{lifecycle.WithLogger(zerolog.Nop())}, options...)
	return lifecycle.NewMonitor(checker, store, opts...), checker
}

func TestStartChecksOnceWhenLoggedIn(t *testing.T) {
	monitor, checker := newMonitor(t, true)

	monitor.Start(context.Background())

	require.Equal(t, 1, checker.Calls())
	require.Equal(t, 1, monitor.Checks())
}

func TestStartSkipsWhenLoggedOut(t *testing.T) {
	monitor, checker := newMonitor(t, false)

	monitor.Start(context.Background())
	monitor.Transition(context.Background(), lifecycle.StateBackground)
	monitor.Transition(context.Background(), lifecycle.StateActive)

	require.Zero(t, checker.Calls())
}

func TestTransitionChecksOnlyWhenReturningToForeground(t *testing.T) {
	tests := []struct {
		name    string
		initial lifecycle.AppState
		next    lifecycle.AppState
		checks  int
	}{
		{name: "background to active", initial: lifecycle.StateBackground, next: lifecycle.StateActive, checks: 1},
		{name: "inactive to active", initial: lifecycle.StateInactive, next: lifecycle.StateActive, checks: 1},
		{name: "active to active", initial: lifecycle.StateActive, next: lifecycle.StateActive, checks: 0},
		{name: "active to background", initial: lifecycle.StateActive, next: lifecycle.StateBackground, checks: 0},
		{name: "background to inactive", initial: lifecycle.StateBackground, next: lifecycle.StateInactive, checks: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			monitor, checker := newMonitor(t, true, lifecycle.WithInitialState(tt.initial))

			monitor.Transition(context.Background(), tt.next)

			require.Equal(t, tt.checks, checker.Calls())
			require.Equal(t, tt.next, monitor.State())
		})
	}
}

func TestTransitionSwallowsCheckErrors(t *testing.T) {
	monitor, checker := newMonitor(t, true, lifecycle.WithInitialState(lifecycle.StateBackground))
	checker.err = errors.New("network down")

	require.NotPanics(t, func() {
		monitor.Transition(context.Background(), lifecycle.StateActive)
	})
	require.Equal(t, 1, checker.Calls())
}

func TestRunDrivesTransitionsUntilClosed(t *testing.T) {
	monitor, checker := newMonitor(t, true)
	states := make(chan lifecycle.AppState)
	done := make(chan struct{})

	go func() {
		monitor.Run(context.Background(), states)
		close(done)
	}()

	states <- lifecycle.StateBackground
	states <- lifecycle.StateActive
	states <- lifecycle.StateInactive
	states <- lifecycle.StateActive
	close(states)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the states channel closed")
	}
	require.Equal(t, 3, checker.Calls())
}

func TestRunStopsWithContext(t *testing.T) {
	monitor, _ := newMonitor(t, false)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		monitor.Run(ctx, make(chan lifecycle.AppState))
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}
}
