// Package serial opens the link to the amp: an rfcomm device bound to the
// amp's Bluetooth SPP channel, or a USB serial adapter.
package serial

import (
	"io"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/rfcomm0", "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (rfcomm ignores this; USB-serial Bluetooth modules
	// usually run at 115200)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// Default link settings
const (
	DefaultBaud        = 115200
	DefaultReadTimeout = 50
)

// DefaultConfig returns a default configuration for the amp link
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        DefaultBaud,
		ReadTimeout: DefaultReadTimeout,
	}
}
