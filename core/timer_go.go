//go:build !tinygo

package core

import "sync/atomic"

// The host bridge updates the clock from its loop goroutine while the CLI
// status printer reads it from another.
var hostTicks atomic.Uint32

func getSystemTicks() uint32 {
	return hostTicks.Load()
}

func setSystemTicks(ticks uint32) {
	hostTicks.Store(ticks)
	systemTicks = ticks
}
