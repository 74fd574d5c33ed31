package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Doer issues HTTP requests. The session client satisfies it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// responseBodyError is implemented by errors that captured the failed response body.
type responseBodyError interface {
	error
	ResponseBody() []byte
}

// ServerMessageError carries the message reported by the backend alongside the
// underlying failure.
type ServerMessageError struct {
	Message string
	Err     error
}

func (e *ServerMessageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *ServerMessageError) Unwrap() error { return e.Err }

// CheckPreuser calls the PREUSER-only test endpoint and returns the decoded
// envelope. When the backend rejects the call with a message, the error is a
// *ServerMessageError wrapping the failure reported by doer.
func CheckPreuser(ctx context.Context, doer Doer, endpoints Endpoints) (*Envelope[json.RawMessage], error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoints.PreuserURL(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(ctx, req)
	if err != nil {
		var bodyErr responseBodyError
		if errors.As(err, &bodyErr) {
			env, decodeErr := DecodeEnvelope[json.RawMessage](bytes.NewReader(bodyErr.ResponseBody()))
			if decodeErr == nil && env.Message != "" {
				return nil, &ServerMessageError{Message: env.Message, Err: err}
			}
		}
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	env, err := DecodeEnvelope[json.RawMessage](resp.Body)
	if err != nil {
		return nil, err
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, errors.New("response without data")
	}
	return env, nil
}
