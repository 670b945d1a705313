package core

import (
	"errors"
	"strconv"
	"strings"

	"sparkbox/midi"
)

// ErrBadAction is returned for an action string that does not parse
var ErrBadAction = errors.New("bad mapping action")

// ActionKind selects what a mapped MIDI control does
type ActionKind uint8

const (
	ActionNone ActionKind = iota
	ActionPreset
	ActionToggle
	ActionTuner
	ActionTap
	ActionParam
)

func (k ActionKind) String() string {
	switch k {
	case ActionPreset:
		return "preset"
	case ActionToggle:
		return "toggle"
	case ActionTuner:
		return "tuner"
	case ActionTap:
		return "tap"
	case ActionParam:
		return "param"
	default:
		return "none"
	}
}

// Action is one parsed mapping target
type Action struct {
	Kind   ActionKind
	Preset uint8
	Pedal  string
	Param  uint8
}

// String renders the action in the grammar ParseAction accepts
func (a Action) String() string {
	switch a.Kind {
	case ActionPreset:
		return "preset:" + utoa(uint32(a.Preset))
	case ActionToggle:
		return "toggle:" + a.Pedal
	case ActionParam:
		return "param:" + a.Pedal + ":" + utoa(uint32(a.Param))
	default:
		return a.Kind.String()
	}
}

// ParseAction parses "preset:N", "toggle:<pedal>", "tuner", "tap" or
// "param:<pedal>:<index>"
func ParseAction(s string) (Action, error) {
	parts := strings.Split(s, ":")
	switch {
	case parts[0] == "tuner" && len(parts) == 1:
		return Action{Kind: ActionTuner}, nil
	case parts[0] == "tap" && len(parts) == 1:
		return Action{Kind: ActionTap}, nil
	case parts[0] == "preset" && len(parts) == 2:
		n, err := strconv.ParseUint(parts[1], 10, 8)
		if err != nil {
			return Action{}, ErrBadAction
		}
		return Action{Kind: ActionPreset, Preset: uint8(n)}, nil
	case parts[0] == "toggle" && len(parts) == 2 && parts[1] != "":
		return Action{Kind: ActionToggle, Pedal: parts[1]}, nil
	case parts[0] == "param" && len(parts) == 3 && parts[1] != "":
		n, err := strconv.ParseUint(parts[2], 10, 8)
		if err != nil {
			return Action{}, ErrBadAction
		}
		return Action{Kind: ActionParam, Pedal: parts[1], Param: uint8(n)}, nil
	}
	return Action{}, ErrBadAction
}

// Mapping configures the Mapper
type Mapping struct {
	// Channel is the zero-based MIDI channel to listen on; negative means
	// any channel
	Channel int
	CC      map[uint8]Action
	Notes   map[uint8]Action
}

// Tap tempo limits
const (
	tapMinBPM    = 40
	tapMaxBPM    = 300
	tapTimeoutMS = 60000 / tapMinBPM
)

// Mapper turns MIDI events from the foot controller into amp commands
type Mapper struct {
	amp     *Amp
	mapping Mapping

	lastTap uint32
	haveTap bool
	bpm     float32

	actions uint32
	ignored uint32
}

// NewMapper creates a mapper driving amp
func NewMapper(amp *Amp, mapping Mapping) *Mapper {
	return &Mapper{amp: amp, mapping: mapping}
}

// Handle maps one event. now is in milliseconds and only matters for tap
// tempo. It reports whether an amp command was sent.
func (m *Mapper) Handle(e midi.Event, now uint32) (bool, error) {
	if e.IsRealtime() {
		return false, nil
	}
	if m.mapping.Channel >= 0 && int(e.Channel()) != m.mapping.Channel {
		m.ignored++
		return false, nil
	}

	msg := e.Message()
	var ch, key, val uint8

	switch {
	case msg.GetProgramChange(&ch, &key):
		return m.run(Action{Kind: ActionPreset, Preset: key}, 127, now)
	case msg.GetControlChange(&ch, &key, &val):
		if a, ok := m.mapping.CC[key]; ok {
			return m.run(a, val, now)
		}
	case msg.GetNoteStart(&ch, &key, &val):
		if a, ok := m.mapping.Notes[key]; ok {
			return m.run(a, 127, now)
		}
	}
	m.ignored++
	return false, nil
}

// run executes an action. value is the 0-127 control value.
func (m *Mapper) run(a Action, value uint8, now uint32) (bool, error) {
	var err error
	switch a.Kind {
	case ActionPreset:
		err = m.amp.ChangeHardwarePreset(a.Preset)
	case ActionToggle:
		if value < 64 {
			return false, nil
		}
		err = m.amp.ToggleEffect(a.Pedal)
	case ActionTuner:
		if value < 64 {
			return false, nil
		}
		err = m.amp.TunerOnOff(!m.amp.State().TunerOn)
	case ActionTap:
		if value < 64 || !m.tap(now) {
			return false, nil
		}
		err = m.amp.SendTapTempo(m.bpm)
	case ActionParam:
		err = m.amp.ChangeEffectParameter(a.Pedal, a.Param, float32(value)/127)
	default:
		return false, nil
	}
	if err != nil {
		return false, err
	}
	m.actions++
	return true, nil
}

// tap records a tap and reports whether a tempo is known
func (m *Mapper) tap(now uint32) bool {
	prev, had := m.lastTap, m.haveTap
	m.lastTap, m.haveTap = now, true
	if !had {
		return false
	}
	interval := now - prev
	if interval == 0 || interval > tapTimeoutMS {
		return false
	}
	bpm := float32(60000) / float32(interval)
	if bpm > tapMaxBPM {
		return false
	}
	m.bpm = bpm
	return true
}

// BPM returns the last tapped tempo
func (m *Mapper) BPM() float32 {
	return m.bpm
}

// Actions returns the number of amp commands sent
func (m *Mapper) Actions() uint32 {
	return m.actions
}

// Ignored returns the number of events that mapped to nothing
func (m *Mapper) Ignored() uint32 {
	return m.ignored
}
