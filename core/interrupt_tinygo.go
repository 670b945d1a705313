//go:build tinygo

package core

import "runtime/interrupt"

// Interrupts stay off while the timer list is relinked

func disableInterrupts() interrupt.State {
	return interrupt.Disable()
}

func restoreInterrupts(state interrupt.State) {
	interrupt.Restore(state)
}
