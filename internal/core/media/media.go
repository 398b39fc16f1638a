package media

import "time"

const (
	// MaxPayloadBytes is the exclusive upper bound for a stored payload (5 MiB)
	MaxPayloadBytes = 5 * 1024 * 1024

	// KeyEntropyBytes is the number of random bytes behind every object key
	KeyEntropyBytes = 32

	// DefaultResolveTTL is how long a resolved retrieval reference stays valid
	DefaultResolveTTL = time.Hour

	defaultMimeType = "application/octet-stream"
)

// Object is a stored media payload referenced by exactly one post or reply.
// Objects are never mutated after creation.
type Object struct {
	Key       string `json:"key" db:"media_key"`
	MimeType  string `json:"mimeType" db:"media_mime"`
	SizeBytes uint64 `json:"sizeBytes" db:"media_size"`
}

// Reference is a time-bounded pointer to a stored object
type Reference struct {
	ExpiresAt time.Time `json:"expiresAt"`
	URL       string    `json:"url"`
}
