package session

import (
	"net/http"
	"time"
)

// DefaultLoginPath is reported in LoginRequiredError unless overridden.
const DefaultLoginPath = "/login"

// Option configures a Client.
type Option func(*config)

type config struct {
	httpClient *http.Client
	loginPath  string
}

// WithHTTPClient sets the HTTP client used for all backend requests.
// If not provided, a client with a 30 second timeout is used.
func WithHTTPClient(c *http.Client) Option {
	return func(cfg *config) {
		if c != nil {
			cfg.httpClient = c
		}
	}
}

// WithLoginPath sets the path reported to callers when a new login is required.
func WithLoginPath(path string) Option {
	return func(cfg *config) {
		if path != "" {
			cfg.loginPath = path
		}
	}
}

func defaultConfig() *config {
	return &config{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		loginPath:  DefaultLoginPath,
	}
}
