// Package client contains client-side building blocks for ScribeKeeper.
//
// # Overview
//
// The package provides:
//  1. A transport-agnostic API contract (see the Client interface) to talk
//     to the ScribeKeeper backend: FetchKeyBundle, SaveTranscript and Ping.
//  2. A concrete HTTP implementation (see HTTPClient) that attaches the
//     bearer token, decodes the base64 key material of issued bundles and
//     maps HTTP status codes to sentinel errors.
//  3. Local persistence bootstrap utilities (InitDatabase, RunMigrations) for
//     the CLI, wiring an SQLite database and applying embedded goose migrations.
//
// # Error Handling
//
// Common conditions are exposed as sentinel errors that callers can match with
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrInvalidResponse.
//
// Concurrency & Contexts
//
// HTTPClient is safe for concurrent use. All operations accept
// context.Context and honor cancellation/timeouts.
//
// See Also
//
//   - Interface:  Client
//   - HTTP impl:  HTTPClient
//   - DB helpers: InitDatabase, RunMigrations
//   - Errors:     ErrUnavailable, ErrUnauthorized, ErrInvalidResponse
package client
