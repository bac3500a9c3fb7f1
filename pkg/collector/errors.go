package collector

import "errors"

var (
	// ErrClosed is returned by operations on a collector after Close.
	ErrClosed = errors.New("collector closed")
	// ErrNotRunning is returned by Collect while monitoring is stopped.
	ErrNotRunning = errors.New("monitoring is not running")
	// ErrRunning is returned by Seed while monitoring is active.
	ErrRunning = errors.New("monitoring is running")
)
