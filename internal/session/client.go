package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/florianilch/socialauth/internal/backend"
	"github.com/florianilch/socialauth/internal/tokenstore"
)

const (
	instrumentationName = "github.com/florianilch/socialauth/internal/session"

	// maxErrorBody bounds how much of a failed response is kept in HTTPError.
	maxErrorBody = 64 << 10

	requestIDHeader = "X-Request-Id"
)

// Client performs backend calls on behalf of the logged-in user.
type Client struct {
	store      tokenstore.TokenStore
	endpoints  backend.Endpoints
	httpClient *http.Client
	loginPath  string
	tracer     trace.Tracer

	refreshGroup singleflight.Group
}

// New creates a Client reading and writing tokens in store.
func New(store tokenstore.TokenStore, endpoints backend.Endpoints, opts ...Option) (*Client, error) {
	if store == nil {
		return nil, fmt.Errorf("missing token store")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	return &Client{
		store:      store,
		endpoints:  endpoints,
		httpClient: cfg.httpClient,
		loginPath:  cfg.loginPath,
		tracer:     otel.Tracer(instrumentationName),
	}, nil
}

// Endpoints returns the backend endpoints the client talks to.
func (c *Client) Endpoints() backend.Endpoints {
	return c.endpoints
}

// LoggedIn reports whether an access token is stored.
func (c *Client) LoggedIn(ctx context.Context) (bool, error) {
	_, err := c.store.Read(ctx, tokenstore.AccessToken)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading access token: %w", err)
	}
	return true, nil
}

// RequireLogin returns a *LoginRequiredError when no access token is stored.
func (c *Client) RequireLogin(ctx context.Context) error {
	loggedIn, err := c.LoggedIn(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		return &LoginRequiredError{LoginPath: c.loginPath, Err: errNoAccessToken}
	}
	return nil
}

// Tokens returns the stored token pair. Missing tokens are empty.
func (c *Client) Tokens(ctx context.Context) (tokenstore.Pair, error) {
	return tokenstore.ReadPair(ctx, c.store)
}

// StoreTokens replaces the stored token pair, e.g. on login completion.
func (c *Client) StoreTokens(ctx context.Context, pair tokenstore.Pair) error {
	return tokenstore.WritePair(ctx, c.store, pair)
}

// Refresh exchanges the stored refresh token for a new token pair, stores both
// tokens and returns the new access token.
//
// Concurrent calls share one request to the backend. The shared request is not
// canceled when a single caller's context is; it is bounded by the HTTP client timeout.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	ch := c.refreshGroup.DoChan("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (c *Client) refresh(ctx context.Context) (accessToken string, err error) {
	ctx, span := c.tracer.Start(ctx, "session.refresh", trace.WithSpanKind(trace.SpanKindClient))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "refresh failed")
		}
		span.End()
	}()

	refreshToken, err := c.store.Read(ctx, tokenstore.RefreshToken)
	if errors.Is(err, tokenstore.ErrNotFound) {
		return "", ErrMissingCredential
	}
	if err != nil {
		return "", fmt.Errorf("reading refresh token: %w", err)
	}

	resp, err := c.postJSON(ctx, c.endpoints.RefreshURL(), backend.RefreshTokenRequest{RefreshToken: refreshToken})
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &RefreshRejectedError{StatusCode: resp.StatusCode}
	}

	env, err := backend.DecodeEnvelope[backend.TokenPairData](resp.Body)
	if err != nil {
		return "", &RefreshRejectedError{StatusCode: resp.StatusCode, Reason: err.Error()}
	}

	pair := tokenstore.Pair{AccessToken: env.Data.AccessToken, RefreshToken: env.Data.RefreshToken}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		return "", &RefreshRejectedError{StatusCode: resp.StatusCode, Reason: "incomplete token pair"}
	}

	if err := tokenstore.WritePair(ctx, c.store, pair); err != nil {
		return "", fmt.Errorf("storing refreshed tokens: %w", err)
	}

	slog.DebugContext(ctx, "access token refreshed")
	return pair.AccessToken, nil
}

// Do sends req with the stored access token attached as bearer token.
//
// A 401 response triggers one refresh followed by one replay of the request.
// If the refresh fails, stored tokens are cleared and a *LoginRequiredError is
// returned. A non-2xx final response yields an *HTTPError. On error the
// response, if any, has already been closed.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.Clone(ctx)
	if err := makeReplayable(req); err != nil {
		return nil, err
	}

	accessToken, err := c.store.Read(ctx, tokenstore.AccessToken)
	if err != nil && !errors.Is(err, tokenstore.ErrNotFound) {
		return nil, fmt.Errorf("reading access token: %w", err)
	}

	resp, err := c.send(ctx, req, accessToken)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized {
		drainAndClose(resp)

		accessToken, err = c.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			slog.WarnContext(ctx, "token refresh failed, clearing session", "error", err)
			if clearErr := tokenstore.Clear(context.WithoutCancel(ctx), c.store); clearErr != nil {
				slog.ErrorContext(ctx, "failed to clear tokens", "error", clearErr)
			}
			return nil, &LoginRequiredError{LoginPath: c.loginPath, Err: err}
		}

		resp, err = c.send(ctx, req, accessToken)
		if err != nil {
			return nil, err
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		return nil, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	return resp, nil
}

// Logout notifies the backend and clears stored tokens. The backend call is
// best effort: its failures are logged, never returned. Tokens are cleared on
// every path; only a failure to clear them is returned.
func (c *Client) Logout(ctx context.Context) (err error) {
	defer func() {
		if clearErr := tokenstore.Clear(context.WithoutCancel(ctx), c.store); clearErr != nil {
			err = fmt.Errorf("clearing tokens: %w", clearErr)
		}
	}()

	refreshToken, readErr := c.store.Read(ctx, tokenstore.RefreshToken)
	if readErr != nil {
		if !errors.Is(readErr, tokenstore.ErrNotFound) {
			slog.WarnContext(ctx, "failed to read refresh token for logout", "error", readErr)
		}
		return nil
	}

	resp, postErr := c.postJSON(ctx, c.endpoints.LogoutURL(), backend.RefreshTokenRequest{RefreshToken: refreshToken})
	if postErr != nil {
		slog.WarnContext(ctx, "logout request failed", "error", postErr)
		return nil
	}
	drainAndClose(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.WarnContext(ctx, "logout rejected by backend", "status", resp.StatusCode)
	}

	return nil
}

// send issues a single attempt of req with accessToken attached.
func (c *Client) send(ctx context.Context, req *http.Request, accessToken string) (*http.Response, error) {
	ctx, span := c.tracer.Start(ctx, "session.request",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
		),
	)
	defer span.End()

	attempt := req.Clone(ctx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		attempt.Body = body
	}

	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(attempt)
	}
	if attempt.Header.Get(requestIDHeader) == "" {
		attempt.Header.Set(requestIDHeader, uuid.NewString())
	}

	resp, err := c.httpClient.Do(attempt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failure")
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}
	return resp, nil
}

// postJSON sends body as JSON without authentication.
func (c *Client) postJSON(ctx context.Context, url string, body any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshaling JSON request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}

// makeReplayable buffers req's body so it can be sent more than once.
// Requests built by http.NewRequest from in-memory readers already are.
func makeReplayable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	defer func() { _ = req.Body.Close() }()
	data, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("reading request body: %w", err)
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(data))
	return nil
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	_ = resp.Body.Close()
}
