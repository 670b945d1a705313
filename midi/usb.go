package midi

// USB-MIDI event packets are 4 bytes: cable number and code index number
// (CIN) in the first byte, then up to three MIDI bytes.

// Code index numbers
const (
	CINMisc          = 0x0
	CINCableEvent    = 0x1
	CINSystem2       = 0x2
	CINSystem3       = 0x3
	CINSysExStart    = 0x4
	CINSingleSysEx   = 0x5
	CINSysExEnd2     = 0x6
	CINSysExEnd3     = 0x7
	CINNoteOff       = 0x8
	CINNoteOn        = 0x9
	CINPolyPressure  = 0xA
	CINControlChange = 0xB
	CINProgramChange = 0xC
	CINChannelPress  = 0xD
	CINPitchBend     = 0xE
	CINSingleByte    = 0xF
)

// usbLength maps a CIN to the number of meaningful MIDI bytes
var usbLength = [16]uint8{
	CINMisc:          0,
	CINCableEvent:    0,
	CINSystem2:       2,
	CINSystem3:       3,
	CINSysExStart:    3,
	CINSingleSysEx:   1,
	CINSysExEnd2:     2,
	CINSysExEnd3:     3,
	CINNoteOff:       3,
	CINNoteOn:        3,
	CINPolyPressure:  3,
	CINControlChange: 3,
	CINProgramChange: 2,
	CINChannelPress:  2,
	CINPitchBend:     3,
	CINSingleByte:    1,
}

// UnpackUSB feeds the MIDI bytes of one packet through p. CIN 0 and 1 carry
// no MIDI data and are skipped. It returns the number of events emitted.
func UnpackUSB(packet [4]byte, p *Parser, emit func(Event)) int {
	n := usbLength[packet[0]&0x0F]
	if n == 0 {
		return 0
	}
	return p.FeedBytes(packet[1:1+n], emit)
}

// Cable returns the virtual cable number of a packet
func Cable(packet [4]byte) uint8 {
	return packet[0] >> 4
}

// PackUSB builds a USB-MIDI packet for e on the given cable
func PackUSB(cable uint8, e Event) [4]byte {
	cin := e.Status >> 4
	if e.IsRealtime() {
		cin = CINSingleByte
	}
	packet := [4]byte{cable<<4 | cin&0x0F, e.Status}
	if e.Arity >= 1 {
		packet[2] = e.Data1 & 0x7F
	}
	if e.Arity == 2 {
		packet[3] = e.Data2 & 0x7F
	}
	return packet
}
