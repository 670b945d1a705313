package core

// Status LED timing in ticks
const (
	LEDBlinkInterval = 250 // half period while the amp link is down
	LEDFlashTime     = 50  // off time after each sent action
)

// StatusLED shows the bridge state on one output pin: solid while the amp
// link is healthy, blinking while it is not, and a short dark flash for
// every MIDI action sent.
type StatusLED struct {
	driver GPIODriver
	pin    GPIOPin
	bridge *Bridge
	timer  Timer

	on          bool
	flashUntil  uint32
	lastActions uint32
}

// AttachLED drives pin from the bridge state. The LED is updated by the
// bridge scheduler, so it only changes while Tick runs.
func (b *Bridge) AttachLED(driver GPIODriver, pin GPIOPin) (*StatusLED, error) {
	if err := driver.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	led := &StatusLED{driver: driver, pin: pin, bridge: b}
	led.timer.Handler = led.event
	led.timer.WakeTime = b.now
	b.sched.Schedule(&led.timer)
	return led, nil
}

// On reports the last state written to the pin
func (l *StatusLED) On() bool {
	return l.on
}

// Detach stops updating the pin and switches it off
func (l *StatusLED) Detach() {
	l.bridge.sched.Cancel(&l.timer)
	l.set(false)
}

func (l *StatusLED) set(on bool) {
	if on == l.on {
		return
	}
	if err := l.driver.SetPin(l.pin, on); err != nil {
		return
	}
	l.on = on
}

func (l *StatusLED) event(t *Timer) uint8 {
	now := l.bridge.now

	if actions := l.bridge.mapper.Actions(); actions != l.lastActions {
		l.lastActions = actions
		l.flashUntil = now + LEDFlashTime
	}

	switch {
	case timerBefore(now, l.flashUntil):
		l.set(false)
		t.WakeTime = l.flashUntil
	case l.bridge.healthy:
		l.set(true)
		t.WakeTime = now + LEDFlashTime
	default:
		l.set(!l.on)
		t.WakeTime = now + LEDBlinkInterval
	}
	return SF_RESCHEDULE
}
