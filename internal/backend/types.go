package backend

import (
	"encoding/json"
	"fmt"
	"io"
)

// Envelope wraps every JSON response body returned by the backend.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Message string `json:"message,omitempty"`
}

// TokenPairData is the token pair issued by refresh and exchange endpoints.
type TokenPairData struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// RefreshTokenRequest is the body accepted by the refresh and logout endpoints.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// DecodeEnvelope decodes a JSON envelope from r.
func DecodeEnvelope[T any](r io.Reader) (*Envelope[T], error) {
	var env Envelope[T]
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, fmt.Errorf("decoding response body: %w", err)
	}
	return &env, nil
}

// DataString renders the envelope data for display. JSON strings are unquoted.
func (e *Envelope[T]) DataString() string {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Sprint(e.Data)
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
