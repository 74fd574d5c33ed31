package session

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingCredential is returned when a refresh is attempted without a stored refresh token.
	ErrMissingCredential = errors.New("no refresh token stored")

	// ErrRefreshRejected matches every *RefreshRejectedError.
	ErrRefreshRejected = errors.New("token refresh rejected")

	// ErrLoginRequired matches every *LoginRequiredError.
	ErrLoginRequired = errors.New("login required")

	// ErrHTTP matches every *HTTPError.
	ErrHTTP = errors.New("http error")

	// ErrNetwork wraps connection-level failures talking to the backend.
	ErrNetwork = errors.New("communication with backend failed")

	errNoAccessToken = errors.New("no access token stored")
)

// RefreshRejectedError reports that the backend refused to issue a new token pair.
type RefreshRejectedError struct {
	StatusCode int
	Reason     string
}

func (e *RefreshRejectedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("token refresh rejected (status %d): %s", e.StatusCode, e.Reason)
	}
	return fmt.Sprintf("token refresh rejected (status %d)", e.StatusCode)
}

func (e *RefreshRejectedError) Is(target error) bool { return target == ErrRefreshRejected }

// LoginRequiredError is returned by Client.Do when the access token expired and
// could not be refreshed. Stored tokens have been cleared; the caller decides
// whether to send the user to LoginPath.
type LoginRequiredError struct {
	LoginPath string
	Err       error
}

func (e *LoginRequiredError) Error() string {
	return fmt.Sprintf("login required: %v", e.Err)
}

func (e *LoginRequiredError) Unwrap() error { return e.Err }

func (e *LoginRequiredError) Is(target error) bool { return target == ErrLoginRequired }

// HTTPError reports a non-2xx final response. Body holds the (possibly
// truncated) response body so callers can surface server messages.
type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

func (e *HTTPError) Is(target error) bool { return target == ErrHTTP }

// ResponseBody returns the captured response body.
func (e *HTTPError) ResponseBody() []byte { return e.Body }
