package protocol

import "io"

// DefaultInputCapacity holds two maximum-size frames
const DefaultInputCapacity = 2 * MaxFrameSize

// MessageHandler handles a decoded message. The message is only valid for
// the duration of the call.
type MessageHandler func(msg *Message) error

// AckHandler is called with the cmdsub of every acknowledgement
type AckHandler func(cmdsub uint16)

// TransportStats aggregates decoder and link counters
type TransportStats struct {
	Decoder       Stats
	Sent          uint32 // frames written to the sink
	Chunks        uint32 // sink writes
	HandlerErrors uint32
	InputDropped  uint32 // deliveries refused by backpressure
}

// Transport is the protocol stack for one peer: a receive pipe feeding a
// decoder, and an encoder feeding a sink in chunks. Two transports never
// share buffers.
type Transport struct {
	input    *Pipe
	decoder  *Decoder
	output   *ScratchOutput
	encoder  *Encoder
	sink     io.Writer
	maxChunk int

	handler       MessageHandler
	ackHandler    AckHandler
	resetCallback func() // Called after Reset

	sent          uint32
	chunks        uint32
	handlerErrors uint32
}

// NewTransport creates a Transport writing frames to sink
func NewTransport(sink io.Writer, handler MessageHandler) *Transport {
	return NewTransportSize(sink, handler, DefaultInputCapacity)
}

// NewTransportSize creates a Transport with a custom receive capacity
func NewTransportSize(sink io.Writer, handler MessageHandler, capacity int) *Transport {
	output := NewScratchOutput()
	return &Transport{
		input:    NewPipe(capacity),
		decoder:  NewDecoder(),
		output:   output,
		encoder:  NewEncoder(output),
		sink:     sink,
		maxChunk: DefaultChunkSize,
		handler:  handler,
	}
}

// Deliver is the producer entry point for received bytes. Deliveries may be
// any size and need not align with frames. ErrCapacityExceeded means the
// delivery was refused whole.
func (t *Transport) Deliver(p []byte) error {
	_, err := t.input.Write(p)
	return err
}

// Write implements io.Writer over Deliver so a reader can be copied in
func (t *Transport) Write(p []byte) (int, error) {
	return t.input.Write(p)
}

// Receive decodes every complete frame buffered so far and dispatches it.
// Call it once per loop tick. It returns the number of messages and acks
// handled.
func (t *Transport) Receive() int {
	handled := 0
	for {
		r := t.input.Decode(t.decoder)
		if !r.Progress() {
			return handled
		}
		switch r.Kind {
		case Decoded:
			handled++
			if t.handler != nil {
				if err := t.handler(&r.Message); err != nil {
					// Handler errors never desync the stream
					t.handlerErrors++
				}
			}
		case Ack:
			handled++
			if t.ackHandler != nil {
				t.ackHandler(r.Message.CmdSub)
			}
		}
	}
}

// Send encodes one frame and writes it to the sink in chunks
func (t *Transport) Send(cmdsub uint16, fill func(e *Encoder)) error {
	t.output.Reset()
	t.encoder.StartMessage(cmdsub)
	if fill != nil {
		fill(t.encoder)
	}
	n, err := t.encoder.EndMessage()
	if err != nil {
		return err
	}
	err = t.SendRaw(t.output.Result()[:n])
	t.output.Reset()
	if err == nil {
		t.sent++
	}
	return err
}

// SendMessage encodes and sends a whole message
func (t *Transport) SendMessage(msg *Message) error {
	return t.Send(msg.CmdSub, func(e *Encoder) {
		for _, f := range msg.Fields {
			e.WriteField(f)
		}
	})
}

// SendRaw writes already-framed bytes to the sink in chunks
func (t *Transport) SendRaw(frame []byte) error {
	return Chunks(frame, t.maxChunk, t.writeChunk)
}

// writeChunk writes one chunk, handling partial writes
func (t *Transport) writeChunk(p []byte) error {
	if t.sink == nil {
		return io.ErrClosedPipe
	}
	written := 0
	for written < len(p) {
		n, err := t.sink.Write(p[written:])
		if err != nil {
			return err
		}
		if n == 0 {
			// No progress - likely disconnect
			return io.ErrShortWrite
		}
		written += n
	}
	t.chunks++
	return nil
}

// Chunks splits frame into pieces of at most max bytes and passes each to
// fn in order. Chunk boundaries carry no protocol meaning.
func Chunks(frame []byte, max int, fn func([]byte) error) error {
	if max <= 0 {
		max = len(frame)
	}
	for len(frame) > 0 {
		n := max
		if n > len(frame) {
			n = len(frame)
		}
		if err := fn(frame[:n]); err != nil {
			return err
		}
		frame = frame[n:]
	}
	return nil
}

// SetMaxChunk sets the largest single sink write
func (t *Transport) SetMaxChunk(n int) {
	t.maxChunk = n
}

// SetSink replaces the sink, e.g. after a reconnect
func (t *Transport) SetSink(sink io.Writer) {
	t.sink = sink
}

// SetHandler sets the message handler
func (t *Transport) SetHandler(handler MessageHandler) {
	t.handler = handler
}

// SetAckHandler sets a callback for acknowledgements
func (t *Transport) SetAckHandler(handler AckHandler) {
	t.ackHandler = handler
}

// SetTap forwards every validated received frame into tap
func (t *Transport) SetTap(tap *Ring) {
	t.decoder.SetTap(tap)
}

// SetResetCallback sets a callback to be called after Reset
func (t *Transport) SetResetCallback(callback func()) {
	t.resetCallback = callback
}

// Reset drops all buffered input and output. It is the cancellation
// primitive for disconnects and watchdog timeouts.
func (t *Transport) Reset() {
	t.input.Reset()
	t.output.Reset()

	if t.resetCallback != nil {
		t.resetCallback()
	}
}

// Pending returns the number of received bytes not yet decoded
func (t *Transport) Pending() int {
	return t.input.Len()
}

// Stats returns a snapshot of the counters
func (t *Transport) Stats() TransportStats {
	return TransportStats{
		Decoder:       t.decoder.Stats(),
		Sent:          t.sent,
		Chunks:        t.chunks,
		HandlerErrors: t.handlerErrors,
		InputDropped:  t.input.Dropped(),
	}
}
