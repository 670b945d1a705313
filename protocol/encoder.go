package protocol

import "errors"

// ErrFrameTooLarge is returned when a body would exceed MaxBodyLength
var ErrFrameTooLarge = errors.New("frame body too large")

// ErrTooManyFields is returned when a message would exceed MaxFields
var ErrTooManyFields = errors.New("too many fields")

// Reservation marks the header slots of an open frame. The length is only
// known after the body is written, so it is reserved at StartMessage and
// patched at EndMessage.
type Reservation struct {
	Start    int // position of the first preamble byte
	LengthAt int // position of the big-endian length slot
}

// Encoder serializes one frame at a time into an OutputBuffer. The first
// write error is sticky and reported by EndMessage.
type Encoder struct {
	out    OutputBuffer
	open   bool
	res    Reservation
	sum    byte
	body   int
	fields int
	err    error
}

// NewEncoder creates an encoder writing to out
func NewEncoder(out OutputBuffer) *Encoder {
	return &Encoder{out: out}
}

// StartMessage writes the preamble, cmdsub and a zeroed length slot
func (e *Encoder) StartMessage(cmdsub uint16) Reservation {
	if e.open {
		panic("protocol: StartMessage with a message already open")
	}
	start := e.out.CurPosition()
	e.res = Reservation{Start: start, LengthAt: start + HeaderPositionLength}
	e.open = true
	e.sum = 0
	e.body = 0
	e.fields = 0
	hdr := [HeaderSize]byte{Preamble0, Preamble1, byte(cmdsub >> 8), byte(cmdsub), 0, 0}
	e.err = e.out.Output(hdr[:])
	return e.res
}

func (e *Encoder) mustOpen() {
	if !e.open {
		panic("protocol: write without StartMessage")
	}
}

// writeBody appends body bytes and folds them into the checksum
func (e *Encoder) writeBody(p []byte) {
	if e.err != nil {
		return
	}
	if err := e.out.Output(p); err != nil {
		e.err = err
		return
	}
	e.sum ^= Checksum(p)
	e.body += len(p)
}

// WriteField appends any tagged field
func (e *Encoder) WriteField(f Field) {
	e.mustOpen()
	if e.err != nil {
		return
	}
	n, err := encodedSize(f)
	if err != nil {
		e.err = err
		return
	}
	if e.body+n > MaxBodyLength {
		e.err = ErrFrameTooLarge
		return
	}
	if e.fields == MaxFields {
		e.err = ErrTooManyFields
		return
	}
	e.fields++
	encodeField(e.writeBody, f)
}

// WriteString appends a NUL-terminated string
func (e *Encoder) WriteString(s string) {
	e.WriteField(String(s))
}

// WritePrefixedString appends a length-prefixed string of at most 255 bytes
func (e *Encoder) WritePrefixedString(s string) {
	e.WriteField(PrefixedString(s))
}

// WriteFloat appends a float32
func (e *Encoder) WriteFloat(f float32) {
	e.WriteField(Float(f))
}

// WriteUint8 appends a byte
func (e *Encoder) WriteUint8(b uint8) {
	e.WriteField(Byte(b))
}

// WriteBool appends a boolean
func (e *Encoder) WriteBool(b bool) {
	e.WriteField(Bool(b))
}

// WriteUint32 appends a uint32
func (e *Encoder) WriteUint32(v uint32) {
	e.WriteField(Uint32(v))
}

// EndMessage patches the length slot, appends the checksum and publishes the
// frame when the output supports it. On error the partial frame is rewound.
// It returns the frame size in bytes.
func (e *Encoder) EndMessage() (int, error) {
	e.mustOpen()
	e.open = false
	if e.err == nil {
		e.out.Update(e.res.LengthAt, byte(e.body>>8))
		e.out.Update(e.res.LengthAt+1, byte(e.body))
		e.err = e.out.Output([]byte{e.sum})
	}
	if e.err != nil {
		e.out.Rewind(e.res.Start)
		return 0, e.err
	}
	if p, ok := e.out.(publisher); ok {
		p.Publish()
	}
	return HeaderSize + e.body + TrailerSize, nil
}

// Abort drops the open frame
func (e *Encoder) Abort() {
	if !e.open {
		return
	}
	e.open = false
	e.out.Rewind(e.res.Start)
}

// Err returns the sticky error of the open frame
func (e *Encoder) Err() error {
	return e.err
}

// Encode writes a whole message to out
func Encode(out OutputBuffer, msg *Message) (int, error) {
	e := NewEncoder(out)
	e.StartMessage(msg.CmdSub)
	for _, f := range msg.Fields {
		e.WriteField(f)
	}
	return e.EndMessage()
}
