package state

import (
	"sync"
	"time"
)

// Correlator pairs a fire-and-forget command with the single
// asynchronous outcome it expects. Begin flips the busy flag and arms a
// timeout that converts silence into an error; Settle clears the flag
// when the confirmation or error event arrives. Settle and a late
// timeout firing after it are both idempotent, so whichever happens
// second is a harmless no-op.
type Correlator struct {
	mu     sync.Mutex
	timer  *time.Timer
	active bool
}

// Begin marks a command in flight and arms the timeout. onTimeout runs
// only if nothing settled the correlator first.
func (c *Correlator) Begin(timeout time.Duration, onTimeout func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
	}
	c.active = true
	c.timer = time.AfterFunc(timeout, func() {
		if c.Settle() {
			onTimeout()
		}
	})
}

// Settle clears the in-flight flag and reports whether it was set.
func (c *Correlator) Settle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	was := c.active
	c.active = false
	return was
}

// InFlight reports whether a command is awaiting its outcome.
func (c *Correlator) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}
