//go:build rp2040 || rp2350

package main

import (
	"machine"

	"sparkbox/core"
)

// Board wiring
const (
	ampTX = machine.GPIO0 // UART0 to the Bluetooth SPP module paired with the amp
	ampRX = machine.GPIO1
	appTX = machine.GPIO8 // UART1 to a second module the phone app connects to
	appRX = machine.GPIO9

	midiRX = machine.GPIO5 // optocoupler output of the MIDI DIN input

	knobA = machine.GPIO2
	knobB = machine.GPIO3

	statusLED = core.GPIOPin(25)

	expressionADC = core.ADCChannel(0) // GPIO26, pedal wiper through a 1k series resistor

	linkBaud = 115200
)

// ModeConfig determines which optional parts run
type ModeConfig struct {
	// Passthrough bridges a phone app on UART1 to the amp
	Passthrough bool

	// Knob drives KnobPedal/KnobParam from a rotary encoder
	Knob      bool
	KnobPedal string
	KnobParam uint8

	// Expression reads an expression pedal on ADC0
	Expression bool
	ExprConfig core.ExpressionConfig
}

// GetMode returns the current mode configuration
// This can be modified at compile time
func GetMode() ModeConfig {
	return ModeConfig{
		Passthrough: false,
		Knob:        true,
		KnobPedal:   "bias.reverb",
		KnobParam:   0,
		Expression:  true,
		ExprConfig: core.ExpressionConfig{
			Pedal: "VolumePedal",
			Param: 0,
			Min:   64, // heel reading of a typical 10k pedal
			Max:   4000,
		},
	}
}

// footMapping is the MIDI mapping for a four-switch pedal sending program
// changes on channel 1, with CC 80-83 on the effect toggles
func footMapping() core.Mapping {
	return core.Mapping{
		Channel: 0,
		CC: map[uint8]core.Action{
			80: {Kind: core.ActionToggle, Pedal: "DistortionTS9"},
			81: {Kind: core.ActionToggle, Pedal: "ChorusAnalog"},
			82: {Kind: core.ActionTap},
			83: {Kind: core.ActionTuner},
		},
	}
}
