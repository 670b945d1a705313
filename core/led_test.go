package core

import (
	"bytes"
	"errors"
	"testing"
)

// MockGPIODriver is a test implementation of GPIODriver
type MockGPIODriver struct {
	pins   map[GPIOPin]bool
	writes int
	fail   bool
}

func NewMockGPIODriver() *MockGPIODriver {
	return &MockGPIODriver{
		pins: make(map[GPIOPin]bool),
	}
}

func (m *MockGPIODriver) ConfigureOutput(pin GPIOPin) error {
	if m.fail {
		return errors.New("pin in use")
	}
	m.pins[pin] = false
	return nil
}

func (m *MockGPIODriver) SetPin(pin GPIOPin, value bool) error {
	m.pins[pin] = value
	m.writes++
	return nil
}

const testLEDPin = GPIOPin(25)

func TestStatusLEDHealth(t *testing.T) {
	var sink bytes.Buffer
	cfg := quietConfig()
	cfg.HealthTimeout = 100
	b := NewBridge(&sink, nil, cfg)

	driver := NewMockGPIODriver()
	led, err := b.AttachLED(driver, testLEDPin)
	if err != nil {
		t.Fatalf("AttachLED failed: %v", err)
	}
	b.Start(0)

	b.Tick(0)
	if !driver.pins[testLEDPin] || !led.On() {
		t.Error("Expected LED on while healthy")
	}

	b.Tick(50)
	b.Tick(100)
	if b.Healthy() {
		t.Fatal("Expected watchdog to fire at 100")
	}
	if driver.pins[testLEDPin] {
		t.Error("Expected LED to start blinking off")
	}

	b.Tick(100 + LEDBlinkInterval)
	if !driver.pins[testLEDPin] {
		t.Error("Expected LED to blink back on")
	}

	led.Detach()
	if driver.pins[testLEDPin] {
		t.Error("Expected LED off after Detach")
	}
	writes := driver.writes
	b.Tick(1000)
	if driver.writes != writes {
		t.Error("Detached LED was still updated")
	}
}

func TestStatusLEDFlashOnAction(t *testing.T) {
	var sink bytes.Buffer
	b := NewBridge(&sink, nil, quietConfig())

	driver := NewMockGPIODriver()
	if _, err := b.AttachLED(driver, testLEDPin); err != nil {
		t.Fatalf("AttachLED failed: %v", err)
	}
	b.Start(0)
	b.Tick(0)

	_, _ = b.MidiInput().Write([]byte{0xB0, 80, 127})
	b.Tick(10)
	b.Tick(LEDFlashTime)
	if driver.pins[testLEDPin] {
		t.Error("Expected LED dark right after an action")
	}

	b.Tick(2 * LEDFlashTime)
	if !driver.pins[testLEDPin] {
		t.Error("Expected LED back on after the flash")
	}
}

func TestStatusLEDConfigureError(t *testing.T) {
	var sink bytes.Buffer
	b := NewBridge(&sink, nil, quietConfig())

	driver := NewMockGPIODriver()
	driver.fail = true
	if _, err := b.AttachLED(driver, testLEDPin); err == nil {
		t.Error("Expected configure error")
	}
}
