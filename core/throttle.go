package core

import "context"

// Throttler counts failed attempts per key inside a fixed window that starts at the
// first failure and is not extended by later ones.
type Throttler interface {
	// Allowed reports whether key still has attempts left in the current window.
	Allowed(ctx context.Context, key string) (bool, error)
	// Fail records a failed attempt for key.
	Fail(ctx context.Context, key string) error
	// Reset forgets all attempts for key.
	Reset(ctx context.Context, key string) error
}
