package tokenstore

import (
	"context"
	"errors"
	"fmt"
)

// Pair holds an access token together with the refresh token issued alongside it.
type Pair struct {
	AccessToken  string
	RefreshToken string
}

// ReadPair returns both stored tokens. Missing tokens are returned as empty strings.
func ReadPair(ctx context.Context, s TokenStore) (Pair, error) {
	var p Pair
	var err error
	if p.AccessToken, err = readOptional(ctx, s, AccessToken); err != nil {
		return Pair{}, err
	}
	if p.RefreshToken, err = readOptional(ctx, s, RefreshToken); err != nil {
		return Pair{}, err
	}
	return p, nil
}

// WritePair overwrites both stored tokens.
func WritePair(ctx context.Context, s TokenStore, p Pair) error {
	if p.AccessToken == "" || p.RefreshToken == "" {
		return errors.New("token pair requires both access and refresh token")
	}
	if err := s.Write(ctx, AccessToken, p.AccessToken); err != nil {
		return fmt.Errorf("writing %s: %w", AccessToken, err)
	}
	if err := s.Write(ctx, RefreshToken, p.RefreshToken); err != nil {
		return fmt.Errorf("writing %s: %w", RefreshToken, err)
	}
	return nil
}

// Clear deletes both tokens. Both deletions are attempted even if the first fails.
func Clear(ctx context.Context, s TokenStore) error {
	var errs []error
	for _, key := range []Key{AccessToken, RefreshToken} {
		if err := s.Delete(ctx, key); err != nil {
			errs = append(errs, fmt.Errorf("deleting %s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func readOptional(ctx context.Context, s TokenStore, key Key) (string, error) {
	v, err := s.Read(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", key, err)
	}
	return v, nil
}
