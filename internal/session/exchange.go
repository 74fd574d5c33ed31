package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/florianilch/socialauth/internal/backend"
	"github.com/florianilch/socialauth/internal/tokenstore"
)

// ExchangeCookies trades the login cookies set by the backend at the end of
// the OAuth2 flow for a token pair. The pair is returned, not stored.
func (c *Client) ExchangeCookies(ctx context.Context, cookies []*http.Cookie) (tokenstore.Pair, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoints.ExchangeURL(), http.NoBody)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(requestIDHeader, uuid.NewString())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return tokenstore.Pair{}, &HTTPError{StatusCode: resp.StatusCode, Body: body}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return tokenstore.Pair{}, fmt.Errorf("%w: %w", ErrNetwork, err)
	}

	pair, err := decodeTokenPair(body)
	if err != nil {
		return tokenstore.Pair{}, err
	}
	return pair, nil
}

// decodeTokenPair accepts the pair wrapped in an envelope or at the top level.
func decodeTokenPair(body []byte) (tokenstore.Pair, error) {
	env, err := backend.DecodeEnvelope[backend.TokenPairData](bytes.NewReader(body))
	if err != nil {
		return tokenstore.Pair{}, err
	}
	data := env.Data
	if data.AccessToken == "" && data.RefreshToken == "" {
		if err := json.Unmarshal(body, &data); err != nil {
			return tokenstore.Pair{}, fmt.Errorf("decoding token pair: %w", err)
		}
	}

	if data.AccessToken == "" || data.RefreshToken == "" {
		return tokenstore.Pair{}, fmt.Errorf("exchange response is missing tokens")
	}
	return tokenstore.Pair{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}, nil
}
