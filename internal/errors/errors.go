package errors

import (
	"errors"
	"fmt"
)

// Common error types for the blog client
var (
	// Token errors
	ErrDecode         = errors.New("access token cannot be decoded")
	ErrRefreshInvalid = errors.New("refresh token expired or invalid")
	ErrTransient      = errors.New("transient refresh failure")

	// Session errors
	ErrStorage        = errors.New("session storage failure")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionChanged = errors.New("session changed")

	// Persistence errors
	ErrNotFound = errors.New("not found")
	ErrCorrupt  = errors.New("corrupt record")

	// Refresh cycle errors
	ErrNotEligible        = errors.New("session not eligible for refresh")
	ErrRenewalInProgress  = errors.New("renewal already in progress")
	ErrSuperseded         = errors.New("renewal superseded")
	ErrUnexpectedResponse = errors.New("unexpected response")
)

// Wrapf wraps an error with context using fmt.Errorf
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// Mark joins a sentinel onto err so both match errors.Is while the message keeps err's detail.
func Mark(err, sentinel error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Is reports whether any error in err's chain matches target
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
