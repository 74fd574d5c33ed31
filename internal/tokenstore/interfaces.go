package tokenstore

import (
	"context"
	"errors"
)

// Key identifies a stored token.
type Key string

const (
	AccessToken  Key = "accessToken"
	RefreshToken Key = "refreshToken"
)

// ErrNotFound is returned by Read when no (or an empty) value is stored for a key.
var ErrNotFound = errors.New("token not found")

// TokenStore reads, writes and deletes tokens in persistent storage.
type TokenStore interface {
	// Read returns the stored value for key. Returns ErrNotFound if the value is missing or empty.
	Read(ctx context.Context, key Key) (string, error)

	// Write persists value under key, overwriting any existing value.
	Write(ctx context.Context, key Key, value string) error

	// Delete removes the value stored under key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key Key) error
}
