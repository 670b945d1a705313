// Package protocol implements the amplifier wire protocol: the ring buffer the
// stack runs on, the frame codec and the per-direction transport.
package protocol

// Version represents the sparkbox firmware version
const Version = "0.1.0"

// Frame layout
//
//	[0x01][0xFE][cmd][sub][len_hi][len_lo][body ...][chk]
const (
	Preamble0 = 0x01
	Preamble1 = 0xFE

	HeaderSize   = 6
	TrailerSize  = 1 // XOR checksum over the body
	FrameMinSize = HeaderSize + TrailerSize

	HeaderPositionCmd    = 2
	HeaderPositionSub    = 3
	HeaderPositionLength = 4

	MaxBodyLength = 2048
	MaxFrameSize  = HeaderSize + MaxBodyLength + TrailerSize
	MaxFields     = 32

	MessageMax = MaxFrameSize // scratch output capacity

	DefaultChunkSize = 128 // largest single write the link accepts
)

// Command classes (high byte of cmdsub)
const (
	CmdSet      = 0x01 // app -> amp, change something
	CmdGet      = 0x02 // app -> amp, request something
	CmdResponse = 0x03 // amp -> app
	CmdAck      = 0x04 // amp -> app, acknowledgement
)

// CmdSub builds the composite command identifier
func CmdSub(cmd, sub uint8) uint16 {
	return uint16(cmd)<<8 | uint16(sub)
}

// IsAck reports whether a header describes an acknowledgement
func IsAck(cmd uint8, length int) bool {
	return cmd == CmdAck && length == 0
}
