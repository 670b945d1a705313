package core

// DefaultKnobSteps is the number of detents from 0 to full scale
const DefaultKnobSteps = 32

// Knob maps a rotary encoder position onto one amp effect parameter. The
// first Update only latches the position.
type Knob struct {
	amp   *Amp
	pedal string
	param uint8
	step  float32

	value   float32
	last    int
	latched bool
	sent    uint32
}

// NewKnob creates a knob for parameter param of pedal starting at value
func NewKnob(amp *Amp, pedal string, param uint8, steps int, value float32) *Knob {
	if steps <= 0 {
		steps = DefaultKnobSteps
	}
	return &Knob{
		amp:   amp,
		pedal: pedal,
		param: param,
		step:  1 / float32(steps),
		value: clampUnit(value),
	}
}

// Update takes the encoder position and sends the new value if it moved.
// It reports whether a command was sent.
func (k *Knob) Update(position int) (bool, error) {
	if !k.latched {
		k.last, k.latched = position, true
		return false, nil
	}
	delta := position - k.last
	if delta == 0 {
		return false, nil
	}
	k.last = position

	value := clampUnit(k.value + float32(delta)*k.step)
	if value == k.value {
		// Already at the end stop
		return false, nil
	}
	if err := k.amp.ChangeEffectParameter(k.pedal, k.param, value); err != nil {
		return false, err
	}
	k.value = value
	k.sent++
	return true, nil
}

// Value returns the last value sent
func (k *Knob) Value() float32 {
	return k.value
}

// Sent returns the number of parameter changes sent
func (k *Knob) Sent() uint32 {
	return k.sent
}

func clampUnit(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
