// Package session manages an authenticated session against the backend:
// token refresh, bearer-authenticated requests and logout.
//
// Tokens live in an injected tokenstore.TokenStore. A Client never keeps its
// own copy of a token, so every request observes the latest stored values.
//
// # Authenticated Requests
//
// Client.Do attaches the stored access token and, when the backend answers
// 401, refreshes the token pair once and replays the request:
//
//	client, err := session.New(store, endpoints)
//	resp, err := client.Do(ctx, req)
//	if errors.Is(err, session.ErrLoginRequired) {
//		// tokens were cleared, start a new login
//	}
//
// Concurrent refreshes are coalesced: callers that observe an expired token at
// the same time share a single refresh request.
package session
