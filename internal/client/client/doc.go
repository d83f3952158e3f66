// Package client talks to the credkeeper gRPC auth service and keeps the
// resulting session in a local SQLite database.
//
// GRPCClient attaches the current access token to every call and, when the
// server answers "token expired", refreshes it once with the refresh token
// and retries. Server status codes are mapped back onto the sentinel errors
// in internal/common, so callers can match them with errors.Is.
package client
