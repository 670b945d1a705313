//go:build tinygo

package protocol

import "runtime/interrupt"

// critical guards a Pipe whose producer may run in interrupt context
type critical struct {
	state interrupt.State
}

// enter disables interrupts and saves the previous state
func (c *critical) enter() {
	c.state = interrupt.Disable()
}

// exit restores the saved interrupt state
func (c *critical) exit() {
	interrupt.Restore(c.state)
}
