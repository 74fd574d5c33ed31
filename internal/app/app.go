package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/florianilch/socialauth/internal/backend"
	"github.com/florianilch/socialauth/internal/browser"
	"github.com/florianilch/socialauth/internal/callback"
	"github.com/florianilch/socialauth/internal/session"
	"github.com/florianilch/socialauth/internal/tokenstore"
)

// ErrLoginTimeout is returned when the browser does not complete login in time.
var ErrLoginTimeout = errors.New("login timed out")

// App wires configuration, token storage and the session client together and
// implements the user-facing operations.
type App struct {
	cfg     *Config
	client  *session.Client
	openURL func(string) error
	out     io.Writer

	storeOverride tokenstore.TokenStore
}

// Option configures an App.
type Option func(*App)

// WithBrowserOpener replaces the function used to open the authorization URL.
func WithBrowserOpener(open func(string) error) Option {
	return func(a *App) { a.openURL = open }
}

// WithOutput sets where user-facing instructions are written. Defaults to os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(a *App) { a.out = w }
}

// WithTokenStore overrides the store built from configuration.
func WithTokenStore(store tokenstore.TokenStore) Option {
	return func(a *App) { a.storeOverride = store }
}

// New creates a new App instance. No network I/O is performed.
func New(cfg *Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	a := &App{
		cfg:     cfg,
		openURL: browser.OpenURL,
		out:     os.Stdout,
	}
	for _, opt := range opts {
		opt(a)
	}

	store := a.storeOverride
	if store == nil {
		var err error
		store, err = cfg.Storage.NewTokenStore()
		if err != nil {
			return nil, fmt.Errorf("failed to create token store: %w", err)
		}
	}

	endpoints, err := backend.NewEndpoints(cfg.Backend.BaseURL)
	if err != nil {
		return nil, err
	}

	client, err := session.New(store, endpoints,
		session.WithHTTPClient(&http.Client{Timeout: cfg.Backend.Timeout}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create session client: %w", err)
	}
	a.client = client

	return a, nil
}

// Login runs the browser login flow for provider and blocks until the callback
// listener received tokens, the login timeout expires or ctx is canceled.
func (a *App) Login(ctx context.Context, provider string, openBrowser bool) error {
	if provider == "" {
		provider = a.cfg.Login.Provider
	}
	authURL, err := a.client.Endpoints().AuthorizationURL(provider)
	if err != nil {
		return err
	}

	server, err := callback.New(a.client, a.cfg.Callback.Path)
	if err != nil {
		return fmt.Errorf("failed to create callback listener: %w", err)
	}

	loginCtx, cancel := context.WithTimeout(ctx, a.cfg.Login.Timeout)
	defer cancel()

	address := net.JoinHostPort(a.cfg.Callback.Host, strconv.FormatUint(uint64(a.cfg.Callback.Port), 10))
	errCh, err := server.Start(loginCtx, address)
	if err != nil {
		return fmt.Errorf("callback listener startup failed: %w", err)
	}
	slog.InfoContext(ctx, "waiting for login callback", "address", server.Addr().String(), "path", a.cfg.Callback.Path, "provider", provider)

	g, gCtx := errgroup.WithContext(loginCtx)

	g.Go(func() error {
		if openBrowser {
			err := a.openURL(authURL)
			if err == nil {
				_, _ = fmt.Fprintf(a.out, "Continue the %s login in your browser.\n", provider)
				return nil
			}
			slog.WarnContext(gCtx, "failed to open browser", "error", err)
		}
		_, _ = fmt.Fprintf(a.out, "Open this URL to log in with %s:\n\n  %s\n\n", provider, authURL)
		return nil
	})

	g.Go(func() error {
		select {
		case res := <-server.Results():
			return res.Err
		case err, ok := <-errCh:
			if ok && err != nil {
				return fmt.Errorf("callback listener: %w", err)
			}
			return errors.New("callback listener stopped unexpectedly")
		case <-gCtx.Done():
			if errors.Is(gCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
				return ErrLoginTimeout
			}
			return gCtx.Err()
		}
	})

	loginErr := g.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), a.cfg.Shutdown.Timeout)
	defer shutdownCancel()

	var errs []error
	if loginErr != nil {
		errs = append(errs, loginErr)
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "callback listener shutdown failed", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Logout ends the session at the backend and clears local tokens.
func (a *App) Logout(ctx context.Context) error {
	return a.client.Logout(ctx)
}

// LoggedIn reports whether an access token is stored.
func (a *App) LoggedIn(ctx context.Context) (bool, error) {
	return a.client.LoggedIn(ctx)
}

// Refresh forces a token refresh.
func (a *App) Refresh(ctx context.Context) error {
	_, err := a.client.Refresh(ctx)
	return err
}

// Preuser calls the PREUSER-only test endpoint and returns its data for display.
func (a *App) Preuser(ctx context.Context) (string, error) {
	if err := a.client.RequireLogin(ctx); err != nil {
		return "", err
	}

	env, err := backend.CheckPreuser(ctx, a.client, a.client.Endpoints())
	if err != nil {
		return "", err
	}
	return env.DataString(), nil
}

// Tokens returns the stored token pair for inspection.
func (a *App) Tokens(ctx context.Context) (tokenstore.Pair, error) {
	return a.client.Tokens(ctx)
}

// SetTokens stores a token pair obtained out of band.
func (a *App) SetTokens(ctx context.Context, pair tokenstore.Pair) error {
	return a.client.StoreTokens(ctx, pair)
}

// Status is the machine-readable session summary.
type Status struct {
	LoggedIn bool   `json:"loggedIn"`
	Backend  string `json:"backend"`
	Storage  string `json:"storage"`
}

// Status summarizes the current session.
func (a *App) Status(ctx context.Context) (Status, error) {
	loggedIn, err := a.client.LoggedIn(ctx)
	if err != nil {
		return Status{}, err
	}
	return Status{
		LoggedIn: loggedIn,
		Backend:  a.client.Endpoints().BaseURL(),
		Storage:  string(a.cfg.Storage.Type),
	}, nil
}

func (s Status) String() string {
	state := "logged out"
	if s.LoggedIn {
		state = "logged in"
	}
	return fmt.Sprintf("%s (backend %s, storage %s)", state, s.Backend, s.Storage)
}
