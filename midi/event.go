package midi

import (
	gomidi "gitlab.com/gomidi/midi/v2"
)

// Kind is the message type of an event: the high nibble of a channel voice
// status, or KindRealtime
type Kind uint8

const (
	KindNoteOff         Kind = 0x80
	KindNoteOn          Kind = 0x90
	KindPolyPressure    Kind = 0xA0
	KindControlChange   Kind = 0xB0
	KindProgramChange   Kind = 0xC0
	KindChannelPressure Kind = 0xD0
	KindPitchBend       Kind = 0xE0
	KindRealtime        Kind = 0xF0
)

func (k Kind) String() string {
	switch k {
	case KindNoteOff:
		return "note_off"
	case KindNoteOn:
		return "note_on"
	case KindPolyPressure:
		return "poly_pressure"
	case KindControlChange:
		return "control_change"
	case KindProgramChange:
		return "program_change"
	case KindChannelPressure:
		return "channel_pressure"
	case KindPitchBend:
		return "pitch_bend"
	case KindRealtime:
		return "realtime"
	default:
		return "unknown"
	}
}

// Realtime status bytes
const (
	TimingClock   = 0xF8
	Start         = 0xFA
	Continue      = 0xFB
	Stop          = 0xFC
	ActiveSensing = 0xFE
	SystemReset   = 0xFF
)

// Event is one complete MIDI message. Arity is the number of data bytes:
// 0 for realtime, 1 for program change and channel pressure, 2 otherwise.
type Event struct {
	Status uint8
	Data1  uint8
	Data2  uint8
	Arity  uint8
}

// IsRealtime reports whether e is a single-byte realtime message
func (e Event) IsRealtime() bool {
	return e.Status >= 0xF8
}

// Kind returns the message type
func (e Event) Kind() Kind {
	if e.IsRealtime() {
		return KindRealtime
	}
	return Kind(e.Status & 0xF0)
}

// Channel returns the zero-based channel of a channel voice message
func (e Event) Channel() uint8 {
	return e.Status & 0x0F
}

// Bytes returns the wire bytes of e
func (e Event) Bytes() []byte {
	switch e.Arity {
	case 1:
		return []byte{e.Status, e.Data1}
	case 2:
		return []byte{e.Status, e.Data1, e.Data2}
	default:
		return []byte{e.Status}
	}
}

// Message converts e for use with gomidi's typed getters
func (e Event) Message() gomidi.Message {
	return gomidi.Message(e.Bytes())
}

// FromMessage converts a gomidi message. Messages the parser would drop
// (SysEx, system common) report false.
func FromMessage(msg gomidi.Message) (Event, bool) {
	var p Parser
	for _, b := range []byte(msg) {
		if e, ok := p.Feed(b); ok {
			return e, true
		}
	}
	return Event{}, false
}

// arity returns the data byte count of a channel voice status
func arity(status uint8) uint8 {
	switch Kind(status & 0xF0) {
	case KindProgramChange, KindChannelPressure:
		return 1
	default:
		return 2
	}
}
