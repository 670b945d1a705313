//go:build !tinygo

package core

// State stands in for the interrupt state on hosted Go, where the scheduler
// is only touched from one goroutine
type State uintptr

func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}
