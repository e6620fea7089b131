package driven

import "context"

// KeyStore persists the single device-local encryption key as an opaque string.
type KeyStore interface {
	// Load returns the stored key, or "" if none has been created yet.
	Load(ctx context.Context) (string, error)

	// CreateIfAbsent stores candidate only when no key exists and returns
	// whichever key is stored afterwards. Concurrent callers all receive the
	// same winning value.
	CreateIfAbsent(ctx context.Context, candidate string) (string, error)
}
