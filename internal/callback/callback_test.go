package callback

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/florianilch/socialauth/internal/tokenstore"
)

// fakeCompleter records stored pairs and serves a canned exchange result.
type fakeCompleter struct {
	exchanged   tokenstore.Pair
	exchangeErr error
	cookies     []*http.Cookie
	stored      []tokenstore.Pair
}

func (f *fakeCompleter) ExchangeCookies(ctx context.Context, cookies []*http.Cookie) (tokenstore.Pair, error) {
	f.cookies = cookies
	return f.exchanged, f.exchangeErr
}

func (f *fakeCompleter) StoreTokens(ctx context.Context, pair tokenstore.Pair) error {
	f.stored = append(f.stored, pair)
	return nil
}

func receive(t *testing.T, s *Server) Result {
	t.Helper()
	select {
	case res := <-s.Results():
		return res
	case <-time.After(time.Second):
		t.Fatal("no result reported")
		return Result{}
	}
}

func TestCallbackQueryTokens(t *testing.T) {
	completer := &fakeCompleter{}
	s, err := New(completer, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cookie?accessToken=a1&refreshToken=r1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), "Login complete") {
		t.Errorf("unexpected body %q", rec.Body)
	}
	if res := receive(t, s); res.Err != nil {
		t.Errorf("result error: %v", res.Err)
	}
	if len(completer.stored) != 1 || completer.stored[0] != (tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}) {
		t.Errorf("stored = %+v", completer.stored)
	}
	if completer.cookies != nil {
		t.Error("exchange must not run when tokens are in the query")
	}
}

func TestCallbackCookieExchange(t *testing.T) {
	completer := &fakeCompleter{exchanged: tokenstore.Pair{AccessToken: "a1", RefreshToken: "r1"}}
	s, _ := New(completer, "/done")

	req := httptest.NewRequest(http.MethodGet, "/done", nil)
	req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "cookie-r1"})
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	if len(completer.cookies) != 1 || completer.cookies[0].Value != "cookie-r1" {
		t.Errorf("forwarded cookies = %v", completer.cookies)
	}
	if len(completer.stored) != 1 || completer.stored[0].AccessToken != "a1" {
		t.Errorf("stored = %+v", completer.stored)
	}
	if res := receive(t, s); res.Err != nil {
		t.Errorf("result error: %v", res.Err)
	}
}

func TestCallbackFailures(t *testing.T) {
	exchangeErr := errors.New("backend said no")

	tests := []struct {
		name       string
		target     string
		cookie     bool
		wantStatus int
		wantResult error
	}{
		{name: "backend error", target: "/cookie?error=access_denied", wantStatus: http.StatusBadRequest, wantResult: ErrProviderDenied},
		{name: "exchange rejected", target: "/cookie", cookie: true, wantStatus: http.StatusBadGateway, wantResult: exchangeErr},
		{name: "nothing to complete", target: "/cookie", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{exchangeErr: exchangeErr}
			s, _ := New(completer, "")

			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.cookie {
				req.AddCookie(&http.Cookie{Name: "refreshToken", Value: "r"})
			}
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}
			if len(completer.stored) != 0 {
				t.Errorf("tokens stored on failure: %+v", completer.stored)
			}

			if tt.wantResult == nil {
				select {
				case res := <-s.Results():
					t.Errorf("unexpected result %+v", res)
				default:
				}
				return
			}
			if res := receive(t, s); !errors.Is(res.Err, tt.wantResult) {
				t.Errorf("result error = %v, want %v", res.Err, tt.wantResult)
			}
		})
	}
}

func TestCallbackReportsOnce(t *testing.T) {
	s, _ := New(&fakeCompleter{}, "")
	for range 2 {
		s.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/cookie?accessToken=a&refreshToken=r", nil))
	}
	receive(t, s)
	select {
	case res := <-s.Results():
		t.Errorf("second result reported: %+v", res)
	default:
	}
}

func TestServerLifecycle(t *testing.T) {
	s, _ := New(&fakeCompleter{}, "")

	errCh, err := s.Start(context.Background(), "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr().String() + "/cookie?accessToken=a1&refreshToken=r1")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if err, ok := <-errCh; ok && err != nil {
		t.Errorf("runtime error: %v", err)
	}
}

func TestNewRejectsRelativePath(t *testing.T) {
	if _, err := New(&fakeCompleter{}, "cookie"); err == nil {
		t.Error("expected error for relative path")
	}
}

type panicCompleter struct{ fakeCompleter }

func (p *panicCompleter) StoreTokens(ctx context.Context, pair tokenstore.Pair) error {
	panic("store exploded")
}

func TestCallbackRecoversPanic(t *testing.T) {
	s, err := New(&panicCompleter{}, "")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cookie?accessToken=a1&refreshToken=r1", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"message"`) {
		t.Errorf("body %q is not an error envelope", rec.Body)
	}
	if res := receive(t, s); res.Err == nil {
		t.Error("expected failed result after panic")
	}
}
