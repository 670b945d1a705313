package core

import "sparkbox/protocol"

// NumPresets is the number of hardware preset slots on the amp
const NumPresets = 4

// Outgoing commands (app -> amp)
const (
	CmdChangeEffectParameter = 0x0104
	CmdChangeEffect          = 0x0106
	CmdTurnEffectOnOff       = 0x0115
	CmdChangeHardwarePreset  = 0x0138
	CmdTunerOnOff            = 0x0165
	CmdSendTapTempo          = 0x0175

	CmdGetHardwarePresetNumber = 0x0210
	CmdGetName                 = 0x0211
	CmdGetSerial               = 0x0223
	CmdGetFirmware             = 0x022F
)

// Incoming responses (amp -> app)
const (
	RspHardwarePresetNumber  = 0x0310
	RspName                  = 0x0311
	RspEffectOnOffChanged    = 0x0315
	RspSerial                = 0x0323
	RspFirmware              = 0x032F
	RspHardwarePresetChanged = 0x0338
	RspTunerOutput           = 0x0365
)

type layout = []protocol.FieldType

var (
	layoutNone        = layout{}
	layoutByte        = layout{protocol.FieldByte}
	layoutBool        = layout{protocol.FieldBool}
	layoutFloat       = layout{protocol.FieldFloat}
	layoutUint32      = layout{protocol.FieldUint32}
	layoutString      = layout{protocol.FieldString}
	layoutPrefixed    = layout{protocol.FieldPrefixedString}
	layoutPedalBool   = layout{protocol.FieldPrefixedString, protocol.FieldBool}
	layoutPedalPair   = layout{protocol.FieldPrefixedString, protocol.FieldPrefixedString}
	layoutPedalParam  = layout{protocol.FieldPrefixedString, protocol.FieldByte, protocol.FieldFloat}
	layoutTunerOutput = layout{protocol.FieldFloat, protocol.FieldFloat}
)

// RegisterOutgoing fills r with the commands this bridge sends. The entries
// have no handler; they name commands and check built messages.
func RegisterOutgoing(r *CommandRegistry) {
	r.Register(CmdChangeEffectParameter, "change_effect_parameter", layoutPedalParam, nil)
	r.Register(CmdChangeEffect, "change_effect", layoutPedalPair, nil)
	r.Register(CmdTurnEffectOnOff, "turn_effect_onoff", layoutPedalBool, nil)
	r.Register(CmdChangeHardwarePreset, "change_hardware_preset", layoutByte, nil)
	r.Register(CmdTunerOnOff, "tuner_on_off", layoutBool, nil)
	r.Register(CmdSendTapTempo, "send_tap_tempo", layoutFloat, nil)
	r.Register(CmdGetHardwarePresetNumber, "get_hardware_preset_number", layoutNone, nil)
	r.Register(CmdGetName, "get_name", layoutNone, nil)
	r.Register(CmdGetSerial, "get_serial", layoutNone, nil)
	r.Register(CmdGetFirmware, "get_firmware", layoutNone, nil)
}

// IsAmpAck reports whether cmdsub is an acknowledgement
func IsAmpAck(cmdsub uint16) bool {
	return cmdsub>>8 == protocol.CmdAck
}
