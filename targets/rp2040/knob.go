//go:build rp2040 || rp2350

package main

import (
	"tinygo.org/x/drivers/encoders"

	"sparkbox/core"
)

// encoderKnob reads a rotary encoder and feeds its detents to a core.Knob
type encoderKnob struct {
	enc  *encoders.QuadratureDevice
	knob *core.Knob
}

// newEncoderKnob sets up the encoder on knobA/knobB driving knob
func newEncoderKnob(knob *core.Knob) *encoderKnob {
	enc := encoders.NewQuadratureViaInterrupt(knobA, knobB)
	enc.Configure(encoders.QuadratureConfig{
		Precision: 4, // one count per detent
	})
	return &encoderKnob{enc: enc, knob: knob}
}

// poll sends a parameter change when the encoder moved
func (k *encoderKnob) poll() {
	if _, err := k.knob.Update(k.enc.Position()); err != nil {
		core.DebugPrintln("[KNOB] send failed: " + err.Error())
	}
}
