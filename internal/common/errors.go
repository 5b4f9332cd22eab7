// Package common defines shared constants and sentinel errors used across
// client and server layers of ScribeKeeper. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")

	// Backup record errors.
	ErrCorruptedRecord = errors.New("corrupted backup record")
	ErrBackupWrite     = errors.New("backup write failed")

	// Key bundle / crypto errors.
	ErrKeyExpired           = errors.New("key bundle expired")
	ErrUnsupportedAlgorithm = errors.New("unsupported encryption algorithm")
	ErrInvalidKeyBundle     = errors.New("invalid key bundle")

	// Encrypted envelope errors (server side).
	ErrUnknownKey        = errors.New("unknown encryption key")
	ErrMalformedEnvelope = errors.New("malformed encrypted envelope")

	// Auth errors (invalid, malformed or expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
