//go:build rp2040 || rp2350

package main

// MIDI DIN receiver on a PIO state machine. The hardware UARTs carry the
// Bluetooth links, so MIDI's 31250 baud input gets a PIO UART instead.

import (
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

const (
	midiBaud      = 31250
	midiPIOOrigin = 0
	cyclesPerBit  = 8
)

// buildMidiRxProgram creates the 8N1 receive program. It waits for the start
// bit, samples the middle of each data bit and autopushes every byte.
// The stop bit is not checked; a framing error yields one bad byte that the
// MIDI parser drops.
func buildMidiRxProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.WaitIn(false, 0).Encode(),                     // 0: wait 0 pin 0 (start bit)
		asm.Set(rp2pio.SetDestX, 7).Delay(10).Encode(),    // 1: set x, 7 [10] (to mid bit 0)
		// bitloop:
		asm.In(rp2pio.InSrcPins, 1).Encode(),              // 2: in pins, 1
		asm.Jmp(2, rp2pio.JmpXNZeroDec).Delay(6).Encode(), // 3: jmp x--, bitloop [6]
		// .wrap
	}
}

// MidiRx reads MIDI bytes from a PIO state machine
type MidiRx struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	pin    machine.Pin
	offset uint8
}

// NewMidiRx creates a receiver on state machine smNum of PIO0
func NewMidiRx(smNum uint8) *MidiRx {
	return &MidiRx{
		pio: rp2pio.PIO0,
		sm:  rp2pio.PIO0.StateMachine(smNum),
	}
}

// Init loads the program and starts sampling pin
func (m *MidiRx) Init(pin machine.Pin) error {
	m.pin = pin

	// Claim the state machine first
	m.sm.TryClaim()

	program := buildMidiRxProgram()
	offset, err := m.pio.AddProgram(program, midiPIOOrigin)
	if err != nil {
		return err
	}
	m.offset = offset

	// The optocoupler pulls low; idle is high. PIO reads any GPIO input, so
	// the pin keeps its SIO function.
	m.pin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetInPins(m.pin, 1)

	// Shift right, autopush at 8 bits: each byte lands in the top of the ISR
	cfg.SetInShift(true, true, 8)

	cfg.SetWrap(offset+uint8(len(program))-1, offset)

	// cyclesPerBit cycles per bit at the MIDI baud rate
	div := machine.CPUFrequency() / (midiBaud * cyclesPerBit)
	cfg.SetClkDivIntFrac(uint16(div), 0)

	m.sm.Init(offset, cfg)
	m.sm.SetPindirsConsecutive(m.pin, 1, false) // input
	m.sm.SetEnabled(true)

	return nil
}

// Poll moves every received byte into w and returns how many were read
func (m *MidiRx) Poll(w func([]byte) (int, error)) int {
	var buf [8]byte
	n := 0
	for n < len(buf) && !m.sm.IsRxFIFOEmpty() {
		buf[n] = uint8(m.sm.RxGet() >> 24)
		n++
	}
	if n > 0 {
		w(buf[:n])
	}
	return n
}
