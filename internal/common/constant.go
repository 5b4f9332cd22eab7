package common

const (
	// AuthorizationHeaderName carries the bearer token on outbound requests.
	AuthorizationHeaderName = "Authorization"

	// BearerPrefix is the scheme prefix of the Authorization header value.
	BearerPrefix = "Bearer "

	// EncryptedEnvelopeKey is the payload key holding encrypted fields.
	EncryptedEnvelopeKey = "$encrypted"

	// EnvelopeVersion is the current version of the encrypted envelope.
	EnvelopeVersion = 1

	// DefaultMimeType is used for recordings whose capture pipeline never
	// reported a MIME type.
	DefaultMimeType = "audio/webm"
)
