package refresh

import "context"

// Request is what the API needs to mint a new access token
type Request struct {
	RefreshToken string
	UserID       int64
	Username     string
}

// Result of a successful refresh. RefreshToken is only set when the API rotated it.
type Result struct {
	AccessToken  string
	RefreshToken string
}

// Refresher exchanges a refresh token for a new access token. Implementations must mark a rejected
// refresh token with errors.ErrRefreshInvalid; every other failure is treated as transient.
type Refresher interface {
	Refresh(ctx context.Context, req Request) (*Result, error)
}

type RefresherFunc func(ctx context.Context, req Request) (*Result, error)

func (f RefresherFunc) Refresh(ctx context.Context, req Request) (*Result, error) {
	return f(ctx, req)
}
