package client

import (
	"context"
	"net/http"

	"github.com/jrsteele09/go-blog-client/apimodel"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
)

// UserData fetches the profile of username with the current access token
func (c *Client) UserData(ctx context.Context, username string) (*apimodel.UserProfile, error) {
	httpClient, err := c.bearer()
	if err != nil {
		return nil, err
	}

	var profiles []apimodel.UserProfile
	if err := c.do(ctx, httpClient, http.MethodGet, apimodel.UserDataPath(username), nil, &profiles); err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, apperrors.Wrapf(apperrors.ErrNotFound, "profile of %q", username)
	}
	return &profiles[0], nil
}

func (c *Client) ListBlogs(ctx context.Context) ([]apimodel.Blog, error) {
	var blogs []apimodel.Blog
	if err := c.do(ctx, c.public, http.MethodGet, apimodel.RouteBlogs, nil, &blogs); err != nil {
		return nil, err
	}
	return blogs, nil
}

func (c *Client) GetBlog(ctx context.Context, id int64) (*apimodel.Blog, error) {
	var blog apimodel.Blog
	if err := c.do(ctx, c.public, http.MethodGet, apimodel.BlogPath(id), nil, &blog); err != nil {
		return nil, err
	}
	return &blog, nil
}

func (c *Client) BlogImages(ctx context.Context, id int64) ([]apimodel.Picture, error) {
	var pictures []apimodel.Picture
	if err := c.do(ctx, c.public, http.MethodGet, apimodel.BlogImagesPath(id), nil, &pictures); err != nil {
		return nil, err
	}
	return pictures, nil
}
