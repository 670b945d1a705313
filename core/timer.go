package core

import "time"

// TickHz is the bridge tick rate: one tick per millisecond
const TickHz = 1000

var (
	systemTicks uint32
)

// GetTime returns the current system time in ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time. Platform code calls it from its
// clock source before each Tick.
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TicksFromDuration converts a duration to bridge ticks
func TicksFromDuration(d time.Duration) uint32 {
	return uint32(d / (time.Second / TickHz))
}

// DurationFromTicks converts bridge ticks to a duration
func DurationFromTicks(ticks uint32) time.Duration {
	return time.Duration(ticks) * (time.Second / TickHz)
}
