package session

import (
	"context"

	"github.com/spec-kit/astro-gateway/internal/backend"
)

// Verifier checks a session token against the backend.
type Verifier interface {
	VerifyToken(ctx context.Context, token string) backend.Result
}

// CookieJar exposes the browser cookies of the current client.
type CookieJar interface {
	Get(name string) (string, bool)
	Delete(name string)
}

// LocalStore persists small client-readable values such as the plan tier.
type LocalStore interface {
	Set(ctx context.Context, key, value string) error
	Get(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}

// Navigator forces the client to another page.
type Navigator interface {
	Navigate(path string)
}

// Recorder receives synchronisation outcomes for metrics.
type Recorder interface {
	RecordSync(status string)
}
