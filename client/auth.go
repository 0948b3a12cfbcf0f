package client

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-blog-client/apimodel"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/jrsteele09/go-blog-client/internal/utils"
	"github.com/jrsteele09/go-blog-client/token/refresh"
)

var _ refresh.Refresher = (*Client)(nil)

// Login exchanges credentials for an access token, a refresh token and the user identity
func (c *Client) Login(ctx context.Context, username, password string) (*apimodel.LoginResponse, error) {
	var resp apimodel.LoginResponse
	if err := c.do(ctx, c.public, http.MethodPost, apimodel.RouteLogin, apimodel.LoginRequest{
		Username: username,
		Password: password,
	}, &resp); err != nil {
		return nil, err
	}
	return normaliseLogin(&resp)
}

// LoginGuest starts a read only guest session. Guest sessions carry no refresh token.
func (c *Client) LoginGuest(ctx context.Context) (*apimodel.LoginResponse, error) {
	var resp apimodel.LoginResponse
	if err := c.do(ctx, c.public, http.MethodPost, apimodel.RouteLoginGuest, nil, &resp); err != nil {
		return nil, err
	}
	return normaliseLogin(&resp)
}

// Signup registers a new account. It does not log in.
func (c *Client) Signup(ctx context.Context, req apimodel.SignupRequest) error {
	return c.do(ctx, c.public, http.MethodPost, apimodel.RouteRegister, req, nil)
}

// Refresh implements refresh.Refresher. A refresh token the API refuses is marked
// errors.ErrRefreshInvalid, anything else errors.ErrTransient.
func (c *Client) Refresh(ctx context.Context, req refresh.Request) (*refresh.Result, error) {
	var resp apimodel.RefreshResponse
	err := c.do(ctx, c.public, http.MethodPost, apimodel.RouteRefreshToken, apimodel.RefreshRequest{
		RefreshToken: req.RefreshToken,
		UserID:       req.UserID,
		Username:     req.Username,
	}, &resp)
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if resp.NewToken == "" {
		return nil, apperrors.Mark(apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "refresh response has no newToken"), apperrors.ErrTransient)
	}
	return &refresh.Result{
		AccessToken:  resp.NewToken,
		RefreshToken: utils.Value(resp.RefreshToken),
	}, nil
}

// RevokeRefreshToken asks the API to forget refreshToken
func (c *Client) RevokeRefreshToken(ctx context.Context, refreshToken string, userID int64) error {
	return c.do(ctx, c.public, http.MethodDelete, apimodel.RouteRefreshToken, apimodel.RevokeRequest{
		RefreshToken: refreshToken,
		UserID:       userID,
	}, nil)
}

func classifyRefreshError(err error) error {
	var apiErr *APIError
	if apperrors.As(err, &apiErr) {
		if apiErr.Message == apimodel.MessageRefreshInvalid ||
			apiErr.Status == http.StatusUnauthorized ||
			apiErr.Status == http.StatusForbidden {
			return apperrors.Mark(err, apperrors.ErrRefreshInvalid)
		}
	}
	return apperrors.Mark(err, apperrors.ErrTransient)
}

func normaliseLogin(resp *apimodel.LoginResponse) (*apimodel.LoginResponse, error) {
	if resp.Token == "" {
		return nil, apperrors.Wrapf(apperrors.ErrUnexpectedResponse, "login response has no token")
	}
	if resp.User.Username == "" {
		resp.User.Username = resp.Username
	}
	if resp.Username == "" {
		resp.Username = resp.User.Username
	}
	return resp, nil
}
