// Package backend describes the REST surface of the authentication backend:
// endpoint URLs and the JSON documents exchanged with them.
package backend

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Endpoint paths relative to the backend base URL.
const (
	AuthorizationPath = "/oauth2/authorization/"
	RefreshPath       = "/jwt/refresh"
	ExchangePath      = "/jwt/exchange"
	LogoutPath        = "/logout"
	PreuserPath       = "/test/preuser-only"
)

// Endpoints resolves backend endpoint URLs against a base URL.
type Endpoints struct {
	base *url.URL
}

// NewEndpoints parses baseURL. The base may carry a path prefix, which is kept.
func NewEndpoints(baseURL string) (Endpoints, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return Endpoints{}, fmt.Errorf("invalid backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Endpoints{}, fmt.Errorf("invalid backend URL %q: scheme and host required", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return Endpoints{base: u}, nil
}

// resolve appends an already escaped path to the base URL.
func (e Endpoints) resolve(path string) string {
	return e.base.String() + path
}

// BaseURL returns the normalized base URL.
func (e Endpoints) BaseURL() string {
	return e.base.String()
}

// AuthorizationURL returns the URL that starts the OAuth2 flow for provider.
func (e Endpoints) AuthorizationURL(provider string) (string, error) {
	provider = strings.TrimSpace(provider)
	if provider == "" {
		return "", errors.New("provider cannot be empty")
	}
	return e.resolve(AuthorizationPath + url.PathEscape(provider)), nil
}

// RefreshURL returns the endpoint that rotates a token pair.
func (e Endpoints) RefreshURL() string { return e.resolve(RefreshPath) }

// ExchangeURL returns the endpoint that trades login cookies for a token pair.
func (e Endpoints) ExchangeURL() string { return e.resolve(ExchangePath) }

// LogoutURL returns the endpoint that revokes a refresh token.
func (e Endpoints) LogoutURL() string { return e.resolve(LogoutPath) }

// PreuserURL returns the test endpoint restricted to the PREUSER role.
func (e Endpoints) PreuserURL() string { return e.resolve(PreuserPath) }
