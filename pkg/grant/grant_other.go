//go:build !darwin

package grant

import "sync"

// flagGrant only tracks the hold. Hosts without a keep-alive API let
// daemons run in the background anyway.
type flagGrant struct {
	mu     sync.Mutex
	held   bool
	reason string
}

var processGrant = &flagGrant{}

func newPlatformGrant() Grant { return processGrant }

func (g *flagGrant) Acquire(reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = true
	g.reason = reason
	return nil
}

func (g *flagGrant) Release() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.held = false
	g.reason = ""
	return nil
}

func (g *flagGrant) Held() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.held
}
