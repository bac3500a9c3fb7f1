// Package grant models the host's "keep running while in the background"
// permission. A Grant is a single process-wide resource: acquiring it again
// while held releases the previous hold first.
package grant

// Grant is an execution keep-alive held while monitoring runs.
type Grant interface {
	// Acquire takes the grant. If already held, the old hold is released
	// before the new one is taken.
	Acquire(reason string) error
	// Release gives the grant back. Releasing an unheld grant is a no-op.
	Release() error
	// Held reports whether the grant is currently held.
	Held() bool
}

// New returns the platform grant.
func New() Grant {
	return newPlatformGrant()
}
