package logpipe

import (
	"errors"
	"sync"
)

// ErrAlreadyInitialised is returned when a second global logger installation
// is attempted through the same Guard.
var ErrAlreadyInitialised = errors.New("logger already initialised")

// Guard serialises process-wide logger installation: the first successful
// Install wins and every later attempt fails with ErrAlreadyInitialised. The
// package Init functions share one package-level guard; tests and embedders
// can hold their own to keep global state out of reach.
type Guard struct {
	mu        sync.Mutex
	installed bool
}

// Install runs install exactly once per guard. A failed install does not
// consume the guard, so the caller may retry with a corrected configuration.
func (g *Guard) Install(install func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.installed {
		return ErrAlreadyInitialised
	}
	if err := install(); err != nil {
		return err
	}
	g.installed = true
	return nil
}

var defaultGuard Guard
