package session

import "context"

// Repo persists the single session record.
type Repo interface {
	// Load returns the persisted session, or errors.ErrNotFound when none exists
	Load(ctx context.Context) (*Session, error)

	// Save replaces the persisted session
	Save(ctx context.Context, s *Session) error

	// Delete removes the persisted session. Deleting a missing record is not an error.
	Delete(ctx context.Context) error
}
