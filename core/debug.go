package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// Event type codes for the post-mortem ring
const (
	EvtDecoded      = 1  // amp message decoded and dispatched
	EvtAck          = 2  // amp acknowledgement
	EvtChecksum     = 3  // checksum mismatch, resynced
	EvtMalformed    = 4  // malformed frame, resynced
	EvtCapacity     = 5  // delivery refused, ring full
	EvtReset        = 6  // transport reset by watchdog or reconnect
	EvtMidi         = 7  // MIDI event parsed
	EvtAction       = 8  // amp command sent for a MIDI event
	EvtHandlerError = 9  // dispatch or send failed
	EvtUnknown      = 10 // unregistered cmdsub
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, slog, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16) // Buffer 16 messages
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer.
// Once InitAsyncDebug has run it queues instead and drops on overflow, so
// the main loop never waits on a slow debug UART.
func DebugPrintln(msg string) {
	if !debugEnabled || debugPrintln == nil {
		return
	}
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
			// Channel full, drop message (non-blocking)
		}
		return
	}
	debugPrintln(msg)
}

// EventRecord is one entry of the post-mortem ring
type EventRecord struct {
	EventType uint8
	Clock     uint32 // bridge ticks at the event
	Value1    uint32 // usually a cmdsub or MIDI status
	Value2    uint32 // context-dependent value
}

// EventRing keeps the last EventRingSize protocol events. Recording never
// blocks or allocates.
type EventRing struct {
	events [EventRingSize]EventRecord
	head   uint8 // Next write position
	total  uint32
}

// Record captures an event
func (r *EventRing) Record(eventType uint8, clock, value1, value2 uint32) {
	idx := r.head
	r.events[idx] = EventRecord{
		EventType: eventType,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (idx + 1) % EventRingSize
	r.total++
}

// Total returns the number of events ever recorded
func (r *EventRing) Total() uint32 {
	return r.total
}

// Snapshot returns the retained events from oldest to newest
func (r *EventRing) Snapshot() []EventRecord {
	out := make([]EventRecord, 0, EventRingSize)
	start := r.head
	for i := uint8(0); i < EventRingSize; i++ {
		evt := r.events[(start+i)%EventRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// EventName returns a short label for an event type
func EventName(eventType uint8) string {
	switch eventType {
	case EvtDecoded:
		return "DECODED"
	case EvtAck:
		return "ACK"
	case EvtChecksum:
		return "CHECKSUM!"
	case EvtMalformed:
		return "MALFORMED!"
	case EvtCapacity:
		return "CAPACITY!"
	case EvtReset:
		return "RESET"
	case EvtMidi:
		return "MIDI"
	case EvtAction:
		return "ACTION"
	case EvtHandlerError:
		return "ERROR"
	case EvtUnknown:
		return "UNKNOWN_CMD"
	default:
		return "UNKNOWN"
	}
}

// Dump outputs the ring through w (call on shutdown/error)
func (r *EventRing) Dump(w DebugWriter) {
	if w == nil {
		return
	}

	w("[EVENTS] === Event Ring Dump ===")
	w("[EVENTS] Total recorded: " + utoa(r.total))
	for _, evt := range r.Snapshot() {
		w("[EVENTS] " + EventName(evt.EventType) +
			" clock=" + utoa(evt.Clock) +
			" v1=0x" + hex16(uint16(evt.Value1)) +
			" v2=" + utoa(evt.Value2))
	}
	w("[EVENTS] === End Dump ===")
}

// Clear empties the ring
func (r *EventRing) Clear() {
	*r = EventRing{}
}
