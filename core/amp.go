package core

import (
	"errors"

	"sparkbox/protocol"
)

var (
	// ErrNotConnected is returned when a command is built with no amp link
	ErrNotConnected = errors.New("amp not connected")
	// ErrPresetOutOfRange is returned for a reported preset past NumPresets
	ErrPresetOutOfRange = errors.New("preset out of range")
)

// Sender sends a whole message to the amp. Both protocol.Transport and
// protocol.HostTransport implement it.
type Sender interface {
	SendMessage(msg *protocol.Message) error
}

// AmpState is a snapshot of what the bridge knows about the amp
type AmpState struct {
	CurrentPreset uint8
	PresetKnown   bool
	Name          string
	Serial        string
	Firmware      uint32
	TunerOn       bool
	TunerNote     float32
	TunerOffset   float32
	LastAck       uint16
	Pending       int // commands sent and not yet acknowledged
}

// FirmwareString formats the packed firmware version as a.b.c.d
func (s AmpState) FirmwareString() string {
	v := s.Firmware
	return utoa(v>>24) + "." + utoa(v>>16&0xFF) + "." + utoa(v>>8&0xFF) + "." + utoa(v&0xFF)
}

// Amp tracks amp state and builds the outgoing commands
type Amp struct {
	link     Sender
	commands *CommandRegistry
	state    AmpState
	effects  map[string]bool

	// OnPresetChanged is called when the amp reports a new preset
	OnPresetChanged func(preset uint8)
}

// NewAmp creates an amp sending through link. link may be nil until the
// connection is up.
func NewAmp(link Sender) *Amp {
	commands := NewCommandRegistry()
	RegisterOutgoing(commands)
	return &Amp{
		link:     link,
		commands: commands,
		effects:  make(map[string]bool),
	}
}

// SetLink replaces the link, e.g. after a reconnect
func (a *Amp) SetLink(link Sender) {
	a.link = link
	a.state.Pending = 0
}

// Commands returns the outgoing command table
func (a *Amp) Commands() *CommandRegistry {
	return a.commands
}

// State returns a snapshot of the known amp state
func (a *Amp) State() AmpState {
	return a.state
}

// EffectOn reports the last known on/off state of a pedal
func (a *Amp) EffectOn(pedal string) (on, known bool) {
	on, known = a.effects[pedal]
	return on, known
}

// send validates and sends one message
func (a *Amp) send(cmdsub uint16, fields ...protocol.Field) error {
	if a.link == nil {
		return ErrNotConnected
	}
	msg := protocol.NewMessage(cmdsub, fields...)
	if _, err := a.commands.Validate(&msg); err != nil {
		return err
	}
	if err := a.link.SendMessage(&msg); err != nil {
		return err
	}
	a.state.Pending++
	return nil
}

// ChangeHardwarePreset selects preset n, wrapping modulo NumPresets
func (a *Amp) ChangeHardwarePreset(n uint8) error {
	preset := n % NumPresets
	if err := a.send(CmdChangeHardwarePreset, protocol.Byte(preset)); err != nil {
		return err
	}
	a.state.CurrentPreset = preset
	a.state.PresetKnown = true
	return nil
}

// TurnEffectOnOff switches a pedal on or off
func (a *Amp) TurnEffectOnOff(pedal string, on bool) error {
	if err := a.send(CmdTurnEffectOnOff, protocol.PrefixedString(pedal), protocol.Bool(on)); err != nil {
		return err
	}
	a.effects[pedal] = on
	return nil
}

// ToggleEffect flips a pedal. An unknown pedal is assumed off.
func (a *Amp) ToggleEffect(pedal string) error {
	return a.TurnEffectOnOff(pedal, !a.effects[pedal])
}

// ChangeEffectParameter sets parameter param of pedal to value in [0, 1]
func (a *Amp) ChangeEffectParameter(pedal string, param uint8, value float32) error {
	return a.send(CmdChangeEffectParameter, protocol.PrefixedString(pedal), protocol.Byte(param), protocol.Float(clampUnit(value)))
}

// ChangeEffect swaps pedal oldPedal for newPedal
func (a *Amp) ChangeEffect(oldPedal, newPedal string) error {
	if err := a.send(CmdChangeEffect, protocol.PrefixedString(oldPedal), protocol.PrefixedString(newPedal)); err != nil {
		return err
	}
	if on, ok := a.effects[oldPedal]; ok {
		delete(a.effects, oldPedal)
		a.effects[newPedal] = on
	}
	return nil
}

// TunerOnOff switches the tuner
func (a *Amp) TunerOnOff(on bool) error {
	if err := a.send(CmdTunerOnOff, protocol.Bool(on)); err != nil {
		return err
	}
	a.state.TunerOn = on
	return nil
}

// SendTapTempo sets the delay tempo in beats per minute
func (a *Amp) SendTapTempo(bpm float32) error {
	return a.send(CmdSendTapTempo, protocol.Float(bpm))
}

// RequestPresetNumber asks for the current hardware preset
func (a *Amp) RequestPresetNumber() error {
	return a.send(CmdGetHardwarePresetNumber)
}

// RequestName asks for the amp name
func (a *Amp) RequestName() error {
	return a.send(CmdGetName)
}

// RequestSerial asks for the serial number
func (a *Amp) RequestSerial() error {
	return a.send(CmdGetSerial)
}

// RequestFirmware asks for the firmware version
func (a *Amp) RequestFirmware() error {
	return a.send(CmdGetFirmware)
}

// HandleAck records an acknowledgement
func (a *Amp) HandleAck(cmdsub uint16) {
	a.state.LastAck = cmdsub
	if a.state.Pending > 0 {
		a.state.Pending--
	}
}

// ResetPending forgets outstanding commands after a link reset
func (a *Amp) ResetPending() {
	a.state.Pending = 0
}

// RegisterHandlers fills r with the amp responses this Amp consumes
func (a *Amp) RegisterHandlers(r *CommandRegistry) {
	r.Register(RspHardwarePresetNumber, "hardware_preset_number", layoutByte, a.handlePreset)
	r.Register(RspHardwarePresetChanged, "hardware_preset_changed", layoutByte, a.handlePreset)
	r.Register(RspName, "name", layoutPrefixed, a.handleName)
	r.Register(RspSerial, "serial", layoutString, a.handleSerial)
	r.Register(RspFirmware, "firmware", layoutUint32, a.handleFirmware)
	r.Register(RspEffectOnOffChanged, "effect_onoff_changed", layoutPedalBool, a.handleEffectOnOff)
	r.Register(RspTunerOutput, "tuner_output", layoutTunerOutput, a.handleTuner)
}

func (a *Amp) handlePreset(msg *protocol.Message) error {
	preset := msg.Fields[0].Uint8()
	if preset >= NumPresets {
		return ErrPresetOutOfRange
	}
	changed := !a.state.PresetKnown || a.state.CurrentPreset != preset
	a.state.CurrentPreset = preset
	a.state.PresetKnown = true
	if changed && a.OnPresetChanged != nil {
		a.OnPresetChanged(preset)
	}
	return nil
}

func (a *Amp) handleName(msg *protocol.Message) error {
	a.state.Name = msg.Fields[0].Str()
	return nil
}

func (a *Amp) handleSerial(msg *protocol.Message) error {
	a.state.Serial = msg.Fields[0].Str()
	return nil
}

func (a *Amp) handleFirmware(msg *protocol.Message) error {
	a.state.Firmware = msg.Fields[0].Num
	return nil
}

func (a *Amp) handleEffectOnOff(msg *protocol.Message) error {
	a.effects[msg.Fields[0].Str()] = msg.Fields[1].On()
	return nil
}

func (a *Amp) handleTuner(msg *protocol.Message) error {
	a.state.TunerNote = msg.Fields[0].Float
	a.state.TunerOffset = msg.Fields[1].Float
	return nil
}
