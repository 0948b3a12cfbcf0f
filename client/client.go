package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-blog-client/apimodel"
	apperrors "github.com/jrsteele09/go-blog-client/internal/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultTimeout = 15 * time.Second

// APIError is a non 2xx response from the blog API
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("blog api: status %d", e.Status)
	}
	return fmt.Sprintf("blog api: status %d: %s", e.Status, e.Message)
}

// Client talks to the remote blog API. Public endpoints go out without credentials, bearer protected
// ones attach the current access token read from the configured oauth2.TokenSource on every request.
type Client struct {
	baseURL     string
	base        http.RoundTripper
	timeout     time.Duration
	tokenSource oauth2.TokenSource
	logger      zerolog.Logger

	public *http.Client
	authed *http.Client
}

type Option func(*Client)

// WithHTTPClient uses the transport of httpClient for every request
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil && httpClient.Transport != nil {
			c.base = httpClient.Transport
		}
	}
}

// WithTokenSource supplies the access token for bearer protected endpoints. session.Store
// implements oauth2.TokenSource.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

func New(baseURL string, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		base:    http.DefaultTransport,
		timeout: DefaultTimeout,
		logger:  log.Logger,
	}
	for _, opt := range options {
		opt(c)
	}
	c.logger = c.logger.With().Str("component", "blog_api").Logger()

	transport := &requestIDTransport{base: c.base}
	c.public = &http.Client{Transport: transport, Timeout: c.timeout}
	if c.tokenSource != nil {
		c.authed = &http.Client{
			Transport: &oauth2.Transport{Source: c.tokenSource, Base: transport},
			Timeout:   c.timeout,
		}
	}
	return c
}

// requestIDTransport stamps every request with a fresh X-Request-ID unless the caller set one
type requestIDTransport struct {
	base http.RoundTripper
}

func (t *requestIDTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Header.Get(apimodel.HeaderRequestID) != "" {
		return t.base.RoundTrip(r)
	}
	clone := r.Clone(r.Context())
	clone.Header.Set(apimodel.HeaderRequestID, uuid.New().String())
	return t.base.RoundTrip(clone)
}

// do sends body as JSON and decodes a 2xx answer into out. Non 2xx answers are returned as *APIError.
func (c *Client) do(ctx context.Context, httpClient *http.Client, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return apperrors.Wrapf(err, "encode %s %s", method, path)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apperrors.Wrapf(err, "build %s %s", method, path)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	if err != nil {
		return apperrors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("Blog API call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeAPIError(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apperrors.Mark(apperrors.Wrapf(err, "decode %s %s response", method, path), apperrors.ErrUnexpectedResponse)
	}
	return nil
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var body apimodel.ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&body); err == nil {
		apiErr.Message = body.Message
	}
	return apiErr
}

func (c *Client) bearer() (*http.Client, error) {
	if c.authed == nil {
		return nil, apperrors.Wrapf(apperrors.ErrNotLoggedIn, "no token source configured")
	}
	return c.authed, nil
}
