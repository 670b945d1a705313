package core

import (
	"errors"
	"io"

	"sparkbox/midi"
	"sparkbox/protocol"
)

// BridgeConfig holds the tunables of a Bridge. Times are in ticks.
type BridgeConfig struct {
	Mapping       Mapping
	PingInterval  uint32 // 0 disables the ping
	HealthTimeout uint32 // 0 disables the watchdog
	MaxChunk      int
	MidiBuffer    int
	AmpBuffer     int
}

// Default bridge tunables
const (
	DefaultPingInterval  = 2000
	DefaultHealthTimeout = 5000
	DefaultMidiBuffer    = 256
)

// DefaultBridgeConfig returns a config listening on all MIDI channels
func DefaultBridgeConfig() BridgeConfig {
	return BridgeConfig{
		Mapping:       Mapping{Channel: -1},
		PingInterval:  DefaultPingInterval,
		HealthTimeout: DefaultHealthTimeout,
		MaxChunk:      protocol.DefaultChunkSize,
		MidiBuffer:    DefaultMidiBuffer,
		AmpBuffer:     protocol.DefaultInputCapacity,
	}
}

// BridgeStats is a snapshot of the bridge counters
type BridgeStats struct {
	Amp             protocol.TransportStats
	App             protocol.TransportStats
	Healthy         bool
	HealthResets    uint32
	PingsSent       uint32
	SendErrors      uint32
	UnknownCommands uint32
	DispatchErrors  uint32
	MidiEvents      uint32
	MidiDropped     uint32
	MidiOverflow    uint32
	Actions         uint32
	Forwarded       uint32 // bytes passed through between app and amp
}

// Bridge owns both protocol stacks and the MIDI input and pumps all of them
// once per Tick. Producers (UART interrupts, radio callbacks, reader
// goroutines) only touch the Deliver and MIDI pipe entry points.
type Bridge struct {
	cfg BridgeConfig

	ampLink  *protocol.Transport
	appLink  *protocol.Transport // nil without a phone app
	ampToApp *protocol.Ring
	appToAmp *protocol.Ring

	amp      *Amp
	incoming *CommandRegistry

	midiIn      *protocol.Pipe
	parser      *midi.Parser
	mapper      *Mapper
	midiScratch [64]byte

	sched       Scheduler
	pingTimer   Timer
	healthTimer Timer
	events      EventRing

	now      uint32
	lastRx   uint32
	healthy  bool
	started  bool
	lastSeen protocol.Stats

	healthResets    uint32
	pingsSent       uint32
	sendErrors      uint32
	unknownCommands uint32
	dispatchErrors  uint32
	midiEvents      uint32
	forwarded       uint32
}

// NewBridge creates a bridge writing amp frames to ampSink. appSink is the
// phone app side; pass nil when there is none.
func NewBridge(ampSink, appSink io.Writer, cfg BridgeConfig) *Bridge {
	def := DefaultBridgeConfig()
	if cfg.MaxChunk <= 0 {
		cfg.MaxChunk = def.MaxChunk
	}
	if cfg.MidiBuffer <= 0 {
		cfg.MidiBuffer = def.MidiBuffer
	}
	if cfg.AmpBuffer <= 0 {
		cfg.AmpBuffer = def.AmpBuffer
	}

	b := &Bridge{
		cfg:      cfg,
		incoming: NewCommandRegistry(),
		midiIn:   protocol.NewPipe(cfg.MidiBuffer),
		parser:   midi.NewParser(),
	}

	b.ampLink = protocol.NewTransportSize(ampSink, b.onAmpMessage, cfg.AmpBuffer)
	b.ampLink.SetMaxChunk(cfg.MaxChunk)
	b.ampLink.SetAckHandler(b.onAmpAck)
	b.ampLink.SetResetCallback(b.onAmpReset)

	if appSink != nil {
		b.appLink = protocol.NewTransportSize(appSink, b.onAppMessage, cfg.AmpBuffer)
		b.appLink.SetMaxChunk(cfg.MaxChunk)
		b.ampToApp = protocol.NewRing(2 * protocol.MaxFrameSize)
		b.appToAmp = protocol.NewRing(2 * protocol.MaxFrameSize)
		b.ampLink.SetTap(b.ampToApp)
		b.appLink.SetTap(b.appToAmp)
	}

	b.amp = NewAmp(b.ampLink)
	b.amp.RegisterHandlers(b.incoming)
	b.mapper = NewMapper(b.amp, cfg.Mapping)

	b.pingTimer.Handler = b.pingEvent
	b.healthTimer.Handler = b.healthEvent

	return b
}

// AmpTransport returns the amp stack; producers call its Deliver
func (b *Bridge) AmpTransport() *protocol.Transport {
	return b.ampLink
}

// AppTransport returns the phone app stack, or nil
func (b *Bridge) AppTransport() *protocol.Transport {
	return b.appLink
}

// MidiInput returns the pipe MIDI bytes are written into
func (b *Bridge) MidiInput() *protocol.Pipe {
	return b.midiIn
}

// Amp returns the amp state tracker and command builder
func (b *Bridge) Amp() *Amp {
	return b.amp
}

// Registry returns the incoming command registry
func (b *Bridge) Registry() *CommandRegistry {
	return b.incoming
}

// Mapper returns the MIDI mapper
func (b *Bridge) Mapper() *Mapper {
	return b.mapper
}

// Events returns the post-mortem event ring
func (b *Bridge) Events() *EventRing {
	return &b.events
}

// Start queries the amp and arms the timers. The link counts as healthy
// until the first timeout.
func (b *Bridge) Start(now uint32) {
	b.now = now
	b.lastRx = now
	b.healthy = true
	b.started = true

	b.sendOrCount(b.amp.RequestName())
	b.sendOrCount(b.amp.RequestSerial())
	b.sendOrCount(b.amp.RequestFirmware())
	b.sendOrCount(b.amp.RequestPresetNumber())

	if b.cfg.PingInterval > 0 {
		b.pingTimer.WakeTime = now + b.cfg.PingInterval
		b.sched.Schedule(&b.pingTimer)
	}
	if b.cfg.HealthTimeout > 0 {
		b.healthTimer.WakeTime = now + b.cfg.HealthTimeout
		b.sched.Schedule(&b.healthTimer)
	}
}

// Tick runs one cooperative pass: amp receive, app receive, passthrough,
// MIDI, then timers
func (b *Bridge) Tick(now uint32) {
	b.now = now

	b.ampLink.Receive()
	b.recordDecodeErrors()

	if b.appLink != nil {
		b.appLink.Receive()
		b.forward(b.appToAmp, b.ampLink)
		b.forward(b.ampToApp, b.appLink)
	}

	b.pumpMidi()

	b.sched.Dispatch(now)
}

// forward writes every tapped frame of src out through dst in chunks
func (b *Bridge) forward(src *protocol.Ring, dst *protocol.Transport) {
	n := src.Len()
	if n == 0 {
		return
	}
	v, _ := src.PeekView(n)
	first, second := v.Segments()
	err := dst.SendRaw(first)
	if err == nil {
		err = dst.SendRaw(second)
	}
	src.Commit(n)
	if err != nil {
		b.sendErrors++
		b.events.Record(EvtHandlerError, b.now, 0, uint32(n))
		return
	}
	b.forwarded += uint32(n)
}

// pumpMidi drains the MIDI pipe outside its critical section
func (b *Bridge) pumpMidi() {
	for {
		n := b.midiIn.Read(b.midiScratch[:])
		if n == 0 {
			return
		}
		b.parser.FeedBytes(b.midiScratch[:n], b.onMidiEvent)
	}
}

func (b *Bridge) onMidiEvent(e midi.Event) {
	if e.IsRealtime() {
		return
	}
	b.midiEvents++
	b.events.Record(EvtMidi, b.now, uint32(e.Status), uint32(e.Data1)<<8|uint32(e.Data2))

	sent, err := b.mapper.Handle(e, b.now)
	if err != nil {
		b.sendErrors++
		b.events.Record(EvtHandlerError, b.now, uint32(e.Status), 0)
		if IsDebugEnabled() {
			DebugPrintln("[BRIDGE] midi action failed: " + err.Error())
		}
		return
	}
	if sent {
		b.events.Record(EvtAction, b.now, uint32(e.Status), uint32(e.Data1))
	}
}

// alive marks the amp link healthy
func (b *Bridge) alive() {
	b.lastRx = b.now
	if !b.healthy && b.started {
		if IsDebugEnabled() {
			DebugPrintln("[BRIDGE] amp link healthy")
		}
	}
	b.healthy = true
}

func (b *Bridge) onAmpMessage(msg *protocol.Message) error {
	b.alive()
	b.events.Record(EvtDecoded, b.now, uint32(msg.CmdSub), uint32(msg.Length))

	err := b.incoming.Dispatch(msg)
	switch {
	case err == nil:
	case errors.Is(err, ErrUnknownCommand):
		// Responses to the phone app's own queries land here
		b.unknownCommands++
		b.events.Record(EvtUnknown, b.now, uint32(msg.CmdSub), 0)
		return nil
	default:
		b.dispatchErrors++
		b.events.Record(EvtHandlerError, b.now, uint32(msg.CmdSub), 0)
		if IsDebugEnabled() {
			DebugPrintln("[BRIDGE] dispatch " + msg.String() + ": " + err.Error())
		}
	}
	return err
}

func (b *Bridge) onAmpAck(cmdsub uint16) {
	b.alive()
	b.events.Record(EvtAck, b.now, uint32(cmdsub), 0)
	b.amp.HandleAck(cmdsub)
}

func (b *Bridge) onAmpReset() {
	b.amp.ResetPending()
	b.events.Record(EvtReset, b.now, 0, b.healthResets)
}

// onAppMessage sees frames from the phone app; the tap forwards them
func (b *Bridge) onAppMessage(msg *protocol.Message) error {
	if msg.CmdSub == CmdChangeHardwarePreset && msg.Matches(layoutByte) {
		// Keep the local preset in step with the app
		b.amp.state.CurrentPreset = msg.Fields[0].Uint8() % NumPresets
		b.amp.state.PresetKnown = true
	}
	return nil
}

// recordDecodeErrors turns new decoder error counts into ring events
func (b *Bridge) recordDecodeErrors() {
	s := b.ampLink.Stats().Decoder
	if s.ChecksumErrors != b.lastSeen.ChecksumErrors {
		b.events.Record(EvtChecksum, b.now, 0, s.ChecksumErrors)
	}
	if s.Malformed != b.lastSeen.Malformed {
		b.events.Record(EvtMalformed, b.now, 0, s.Malformed)
	}
	b.lastSeen = s
}

func (b *Bridge) sendOrCount(err error) {
	if err != nil {
		b.sendErrors++
	}
}

// pingEvent keeps traffic flowing so the watchdog sees a live amp
func (b *Bridge) pingEvent(t *Timer) uint8 {
	if err := b.amp.RequestPresetNumber(); err != nil {
		b.sendErrors++
	} else {
		b.pingsSent++
	}
	t.WakeTime += b.cfg.PingInterval
	return SF_RESCHEDULE
}

// healthEvent resets the amp stack when nothing valid arrived in time
func (b *Bridge) healthEvent(t *Timer) uint8 {
	if b.now-b.lastRx >= b.cfg.HealthTimeout {
		b.healthy = false
		b.healthResets++
		b.ampLink.Reset()
		b.parser.Reset()
		b.lastRx = b.now
		if IsDebugEnabled() {
			DebugPrintln("[BRIDGE] amp silent for " + utoa(b.cfg.HealthTimeout) + " ticks, reset " + utoa(b.healthResets))
		}
	}
	t.WakeTime = b.lastRx + b.cfg.HealthTimeout
	return SF_RESCHEDULE
}

// Reset clears both stacks and the MIDI input, e.g. after a reconnect
func (b *Bridge) Reset() {
	b.ampLink.Reset()
	if b.appLink != nil {
		b.appLink.Reset()
		b.ampToApp.Clear()
		b.appToAmp.Clear()
	}
	b.midiIn.Reset()
	b.parser.Reset()
	b.lastRx = b.now
}

// Stop disarms the timers
func (b *Bridge) Stop() {
	b.sched.Cancel(&b.pingTimer)
	b.sched.Cancel(&b.healthTimer)
	b.started = false
}

// Healthy reports whether a valid amp message or ack arrived within the
// health timeout
func (b *Bridge) Healthy() bool {
	return b.healthy
}

// Stats returns a snapshot of the counters
func (b *Bridge) Stats() BridgeStats {
	s := BridgeStats{
		Amp:             b.ampLink.Stats(),
		Healthy:         b.healthy,
		HealthResets:    b.healthResets,
		PingsSent:       b.pingsSent,
		SendErrors:      b.sendErrors,
		UnknownCommands: b.unknownCommands,
		DispatchErrors:  b.dispatchErrors,
		MidiEvents:      b.midiEvents,
		MidiDropped:     b.parser.Dropped(),
		MidiOverflow:    b.midiIn.Dropped(),
		Actions:         b.mapper.Actions(),
		Forwarded:       b.forwarded,
	}
	if b.appLink != nil {
		s.App = b.appLink.Stats()
	}
	return s
}
