// Package tokenstore provides persistent key-value storage for the access and
// refresh tokens issued by the backend.
//
// Supports three storage backends with different security and deployment tradeoffs:
//   - File: a single JSON document with atomic writes and secure permissions
//   - Keyring: OS-native credential storage (macOS Keychain, Windows Credential Manager, etc.)
//   - Memory: process-local storage, lost on exit (tests and one-off sessions)
//
// Both tokens are stored under well-known keys (see AccessToken and RefreshToken).
// Presence of an access token is the only indicator of a logged-in session.
package tokenstore
