package callback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/florianilch/socialauth/internal/tokenstore"
)

// Completer finishes a login: it obtains and persists the issued token pair.
type Completer interface {
	ExchangeCookies(ctx context.Context, cookies []*http.Cookie) (tokenstore.Pair, error)
	StoreTokens(ctx context.Context, pair tokenstore.Pair) error
}

// Result is the outcome of a login attempt.
type Result struct {
	Err error
}

// ErrProviderDenied is reported when the backend redirects back with an error instead of tokens.
var ErrProviderDenied = errors.New("login denied")

var errPanic = errors.New("callback handler panicked")

const completedPage = `<!doctype html>
<html><head><meta charset="utf-8"><title>Login complete</title></head>
<body><p>Login complete. You can close this window.</p></body></html>
`

// completionHandler serves the callback path. Only the first finished attempt
// is reported; later requests still store tokens but are not reported again.
type completionHandler struct {
	completer Completer
	results   chan Result
	once      sync.Once
}

// Compile-time check to ensure completionHandler implements http.Handler
var _ http.Handler = (*completionHandler)(nil)

func newCompletionHandler(completer Completer) *completionHandler {
	return &completionHandler{
		completer: completer,
		results:   make(chan Result, 1),
	}
}

func (h *completionHandler) report(res Result) {
	h.once.Do(func() {
		h.results <- res
	})
}

// ServeHTTP accepts tokens from the query string, or exchanges the request's
// cookies for tokens at the backend.
func (h *completionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if msg := query.Get("error"); msg != "" {
		slog.WarnContext(ctx, "login failed at backend", "error", msg)
		h.report(Result{Err: fmt.Errorf("%w: %s", ErrProviderDenied, msg)})
		writeJSONError(ctx, w, "login failed", http.StatusBadRequest)
		return
	}

	pair := tokenstore.Pair{
		AccessToken:  query.Get(string(tokenstore.AccessToken)),
		RefreshToken: query.Get(string(tokenstore.RefreshToken)),
	}

	if pair.AccessToken == "" || pair.RefreshToken == "" {
		cookies := r.Cookies()
		if len(cookies) == 0 {
			writeJSONError(ctx, w, "missing tokens", http.StatusBadRequest)
			return
		}

		var err error
		pair, err = h.completer.ExchangeCookies(ctx, cookies)
		if err != nil {
			slog.ErrorContext(ctx, "token exchange failed", "error", err)
			h.report(Result{Err: fmt.Errorf("exchanging login cookies: %w", err)})
			writeJSONError(ctx, w, "token exchange failed", http.StatusBadGateway)
			return
		}
	}

	if err := h.completer.StoreTokens(ctx, pair); err != nil {
		slog.ErrorContext(ctx, "failed to store tokens", "error", err)
		h.report(Result{Err: fmt.Errorf("storing tokens: %w", err)})
		writeJSONError(ctx, w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	slog.InfoContext(ctx, "login completed")
	h.report(Result{})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(completedPage))
}
