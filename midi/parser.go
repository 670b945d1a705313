// Package midi decodes MIDI 1.0 byte streams from a DIN UART or USB-MIDI
// into channel voice and realtime events.
package midi

import "sparkbox/protocol"

// State is the position of the parser inside a message
type State uint8

const (
	WaitStatus State = iota
	WaitData1
	WaitData2
)

func (s State) String() string {
	switch s {
	case WaitStatus:
		return "wait_status"
	case WaitData1:
		return "wait_data1"
	case WaitData2:
		return "wait_data2"
	default:
		return "unknown"
	}
}

// Parser assembles events one byte at a time. It keeps no history beyond the
// message in progress: there is no running status, and data bytes arriving
// without a status are dropped, so attaching mid-stream is safe.
type Parser struct {
	state   State
	status  uint8
	data1   uint8
	dropped uint32
}

// NewParser creates a parser in WaitStatus
func NewParser() *Parser {
	return &Parser{}
}

// Feed consumes one byte and returns the event it completes, if any
func (p *Parser) Feed(b uint8) (Event, bool) {
	switch {
	case b >= 0xF8:
		// Realtime interleaves anywhere and leaves the pending message alone
		return Event{Status: b}, true
	case b >= 0xF0:
		// SysEx and system common are not used; abandon the partial message
		p.abort()
		return Event{}, false
	case b >= 0x80:
		p.abort()
		p.status = b
		p.state = WaitData1
		return Event{}, false
	}

	switch p.state {
	case WaitData1:
		if arity(p.status) == 1 {
			p.state = WaitStatus
			return Event{Status: p.status, Data1: b, Arity: 1}, true
		}
		p.data1 = b
		p.state = WaitData2
	case WaitData2:
		p.state = WaitStatus
		return Event{Status: p.status, Data1: p.data1, Data2: b, Arity: 2}, true
	default:
		p.dropped++
	}
	return Event{}, false
}

// abort drops a partial message
func (p *Parser) abort() {
	if p.state != WaitStatus {
		p.dropped++
	}
	p.state = WaitStatus
}

// FeedBytes feeds every byte of b and calls emit for each completed event.
// It returns the number of events.
func (p *Parser) FeedBytes(b []byte, emit func(Event)) int {
	n := 0
	for _, c := range b {
		if e, ok := p.Feed(c); ok {
			n++
			if emit != nil {
				emit(e)
			}
		}
	}
	return n
}

// FeedFrom consumes every committed byte of r. A partial message stays in
// the parser, not the ring.
func (p *Parser) FeedFrom(r *protocol.Ring, emit func(Event)) int {
	v, _ := r.PeekView(r.Len())
	a, b := v.Segments()
	n := p.FeedBytes(a, emit)
	n += p.FeedBytes(b, emit)
	r.Commit(v.Len())
	return n
}

// State returns the current parser state
func (p *Parser) State() State {
	return p.state
}

// Dropped returns the number of stray data bytes and abandoned messages
func (p *Parser) Dropped() uint32 {
	return p.dropped
}

// Reset returns to WaitStatus, e.g. after a reconnect
func (p *Parser) Reset() {
	p.state = WaitStatus
	p.status = 0
	p.data1 = 0
}
