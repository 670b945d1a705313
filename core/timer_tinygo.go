//go:build tinygo

package core

import "runtime/volatile"

// Shared between the main loop and interrupt handlers
var tickRegister volatile.Register32

func getSystemTicks() uint32 {
	return tickRegister.Get()
}

func setSystemTicks(ticks uint32) {
	tickRegister.Set(ticks)
	systemTicks = ticks
}
