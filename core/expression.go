package core

import "errors"

// ErrBadExpressionRange is returned when the toe reading is not above heel
var ErrBadExpressionRange = errors.New("expression range is empty")

// Expression pedal sampling in ticks
const (
	ExpressionSampleTime  = 2  // between samples of one cycle
	ExpressionSampleCount = 8  // samples averaged per report
	ExpressionRestTime    = 20 // between cycles
	ExpressionDeadband    = 32 // averaged counts ignored around the last sent reading
)

// ExpressionConfig binds an analog pedal to one effect parameter. Min and
// Max are the readings at heel and toe; zero Max means ADCMax.
type ExpressionConfig struct {
	Pedal string
	Param uint8
	Min   ADCValue
	Max   ADCValue
}

// ExpressionPedal oversamples an analog input and sends the pedal position
// as an effect parameter when it moves past the deadband
type ExpressionPedal struct {
	driver ADCDriver
	ch     ADCChannel
	cfg    ExpressionConfig
	bridge *Bridge
	timer  Timer

	sum    uint32
	sample uint8

	last     ADCValue
	reported bool
	value    float32
	sent     uint32
	errors   uint32
}

// AttachExpression samples ch on the bridge scheduler
func (b *Bridge) AttachExpression(driver ADCDriver, ch ADCChannel, cfg ExpressionConfig) (*ExpressionPedal, error) {
	if cfg.Max == 0 {
		cfg.Max = ADCMax
	}
	if cfg.Max <= cfg.Min {
		return nil, ErrBadExpressionRange
	}
	if err := driver.ConfigureChannel(ch); err != nil {
		return nil, err
	}
	e := &ExpressionPedal{driver: driver, ch: ch, cfg: cfg, bridge: b}
	e.timer.Handler = e.event
	e.timer.WakeTime = b.now
	b.sched.Schedule(&e.timer)
	return e, nil
}

// Value returns the last value sent
func (e *ExpressionPedal) Value() float32 {
	return e.value
}

// Sent returns the number of parameter changes sent
func (e *ExpressionPedal) Sent() uint32 {
	return e.sent
}

// Errors returns the number of failed reads and sends
func (e *ExpressionPedal) Errors() uint32 {
	return e.errors
}

// Detach stops sampling
func (e *ExpressionPedal) Detach() {
	e.bridge.sched.Cancel(&e.timer)
}

func (e *ExpressionPedal) event(t *Timer) uint8 {
	now := e.bridge.now

	raw, err := e.driver.ReadRaw(e.ch)
	if err != nil {
		e.errors++
		e.sum, e.sample = 0, 0
		t.WakeTime = now + ExpressionRestTime
		return SF_RESCHEDULE
	}

	e.sum += uint32(raw)
	e.sample++
	if e.sample < ExpressionSampleCount {
		t.WakeTime = now + ExpressionSampleTime
		return SF_RESCHEDULE
	}

	avg := ADCValue(e.sum / uint32(e.sample))
	e.sum, e.sample = 0, 0
	e.report(avg)

	t.WakeTime = now + ExpressionRestTime
	return SF_RESCHEDULE
}

func (e *ExpressionPedal) report(avg ADCValue) {
	if e.reported && absDiff(avg, e.last) < ExpressionDeadband {
		return
	}
	value := e.scale(avg)
	if err := e.bridge.amp.ChangeEffectParameter(e.cfg.Pedal, e.cfg.Param, value); err != nil {
		e.errors++
		e.bridge.sendErrors++
		return
	}
	e.bridge.events.Record(EvtAction, e.bridge.now, uint32(e.ch), uint32(avg))
	e.last, e.reported = avg, true
	e.value = value
	e.sent++
}

func (e *ExpressionPedal) scale(v ADCValue) float32 {
	if v <= e.cfg.Min {
		return 0
	}
	if v >= e.cfg.Max {
		return 1
	}
	return float32(v-e.cfg.Min) / float32(e.cfg.Max-e.cfg.Min)
}

func absDiff(a, b ADCValue) ADCValue {
	if a > b {
		return a - b
	}
	return b - a
}
