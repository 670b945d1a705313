//go:build rp2040 || rp2350

package main

import (
	"runtime/volatile"
	"unsafe"

	"sparkbox/core"
)

// RP2040/RP2350 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word

	// The timer runs at 1MHz
	microsPerTick = 1000000 / core.TickHz
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit microsecond timer
func GetHardwareUptime() uint64 {
	// Must read high first, then low, then high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		// If high didn't change, we got a consistent reading
		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
		// Otherwise retry (rollover happened during read)
	}
}

// UpdateSystemTime converts the hardware timer to bridge ticks and returns
// the new time. Called once per main loop pass.
func UpdateSystemTime() uint32 {
	now := uint32(GetHardwareUptime() / microsPerTick)
	core.SetTime(now)
	return now
}
