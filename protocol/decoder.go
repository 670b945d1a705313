package protocol

// ResultKind classifies the outcome of one decode attempt
type ResultKind uint8

const (
	// Incomplete means no whole frame is buffered yet. Not an error.
	Incomplete ResultKind = iota
	// Decoded carries a validated message
	Decoded
	// Ack carries the cmdsub of an acknowledgement frame
	Ack
	// ChecksumMismatch means one byte was dropped to resync
	ChecksumMismatch
	// Malformed means a bad length or field; one byte was dropped to resync
	Malformed
)

func (k ResultKind) String() string {
	switch k {
	case Incomplete:
		return "incomplete"
	case Decoded:
		return "decoded"
	case Ack:
		return "ack"
	case ChecksumMismatch:
		return "checksum_mismatch"
	case Malformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// Result is returned by Decoder.Next
type Result struct {
	Kind    ResultKind
	Message Message // Decoded: the message; Ack: CmdSub only
	Skipped int     // bytes discarded by this call for resync
}

// Progress reports whether the call consumed anything, i.e. whether calling
// again may yield more
func (r Result) Progress() bool {
	return r.Kind != Incomplete || r.Skipped > 0
}

// Stats counts decoder outcomes. Transient errors surface only here.
type Stats struct {
	Decoded        uint32
	Acks           uint32
	ChecksumErrors uint32
	Malformed      uint32
	ResyncBytes    uint32
	TapDropped     uint32
}

// Decoder turns a byte stream buffered in a Ring into messages. Chunk
// boundaries of the producer carry no meaning; only buffered byte count does.
//
// The decoder owns fixed storage for fields and the frame body, so decoding
// does not allocate. A returned Message aliases that storage and is valid
// until the next call to Next; use Message.Clone to keep it.
type Decoder struct {
	fields  [MaxFields]Field
	scratch [MaxFrameSize]byte
	tap     *Ring
	stats   Stats
}

// NewDecoder creates a new Decoder
func NewDecoder() *Decoder {
	return &Decoder{}
}

// SetTap makes every validated frame also land, byte for byte, in tap.
// Passing nil disables forwarding.
func (d *Decoder) SetTap(tap *Ring) {
	d.tap = tap
}

// Stats returns a snapshot of the counters
func (d *Decoder) Stats() Stats {
	return d.stats
}

// Next attempts to decode one frame from the committed bytes of in. It is
// safe to call redundantly and always returns in time bounded by the
// buffered bytes.
func (d *Decoder) Next(in *Ring) Result {
	hdr, ok := in.PeekView(HeaderSize)
	if !ok {
		return Result{Kind: Incomplete}
	}
	if hdr.At(0) != Preamble0 || hdr.At(1) != Preamble1 {
		return d.resync(in, Incomplete)
	}

	cmd := hdr.At(HeaderPositionCmd)
	sub := hdr.At(HeaderPositionSub)
	length := int(hdr.At(HeaderPositionLength))<<8 | int(hdr.At(HeaderPositionLength+1))
	frameLen := HeaderSize + length + TrailerSize

	// A frame that can never fit would stall the ring forever
	if length > MaxBodyLength || frameLen > in.Cap() {
		d.stats.Malformed++
		return d.resync(in, Malformed)
	}

	// Wait for the rest without consuming; the header is re-read next time
	if in.Len() < frameLen {
		return Result{Kind: Incomplete}
	}

	frame, _ := in.PeekView(frameLen)
	frame.CopyTo(d.scratch[:frameLen])
	body := d.scratch[HeaderSize : HeaderSize+length]
	chk := d.scratch[HeaderSize+length]

	// A false preamble match inside valid data lands here too, so drop a
	// single byte rather than the whole region
	if Checksum(body) != chk {
		d.stats.ChecksumErrors++
		return d.resync(in, ChecksumMismatch)
	}

	cmdsub := CmdSub(cmd, sub)
	if IsAck(cmd, length) {
		d.consume(in, frameLen)
		d.stats.Acks++
		return Result{Kind: Ack, Message: Message{CmdSub: cmdsub, Checksum: chk}}
	}

	n := 0
	for p := body; len(p) > 0; {
		if n == MaxFields {
			d.stats.Malformed++
			return d.resync(in, Malformed)
		}
		f, used, err := decodeField(p)
		if err != nil {
			d.stats.Malformed++
			return d.resync(in, Malformed)
		}
		d.fields[n] = f
		n++
		p = p[used:]
	}

	d.consume(in, frameLen)
	d.stats.Decoded++
	return Result{
		Kind: Decoded,
		Message: Message{
			CmdSub:   cmdsub,
			Fields:   d.fields[:n:n],
			Length:   length,
			Checksum: chk,
		},
	}
}

// consume drops a validated frame, forwarding it to the tap when set
func (d *Decoder) consume(in *Ring, n int) {
	if d.tap != nil {
		if err := in.MoveInto(d.tap, n, n); err == nil {
			return
		}
		d.stats.TapDropped++
	}
	in.Commit(n)
}

// resync discards one byte so the next call re-scans from the following one
func (d *Decoder) resync(in *Ring, kind ResultKind) Result {
	in.Commit(1)
	d.stats.ResyncBytes++
	return Result{Kind: kind, Skipped: 1}
}

// Reset zeroes the counters
func (d *Decoder) Reset() {
	d.stats = Stats{}
}
