package protocol

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"
)

// chunkRecorder records each write as a separate chunk
type chunkRecorder struct {
	chunks [][]byte
}

func (c *chunkRecorder) Write(p []byte) (int, error) {
	c.chunks = append(c.chunks, append([]byte(nil), p...))
	return len(p), nil
}

func (c *chunkRecorder) joined() []byte {
	return bytes.Join(c.chunks, nil)
}

// shortWriter accepts at most n bytes per call
type shortWriter struct {
	n   int
	buf bytes.Buffer
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.n {
		p = p[:s.n]
	}
	return s.buf.Write(p)
}

type stuckWriter struct{}

func (stuckWriter) Write(p []byte) (int, error) { return 0, nil }

func TestPipeWriteAndDecode(t *testing.T) {
	p := NewPipe(32)
	frame := encodeFrame(t, NewMessage(0x0138, Byte(2)))

	if _, err := p.Write(frame); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if p.Len() != len(frame) {
		t.Errorf("Expected %d bytes, got %d", len(frame), p.Len())
	}

	d := NewDecoder()
	res := p.Decode(d)
	if res.Kind != Decoded || res.Message.Fields[0].Uint8() != 2 {
		t.Errorf("Expected decoded preset 2, got %v", res.Kind)
	}

	p.Write(make([]byte, 30))
	if _, err := p.Write(make([]byte, 3)); err != ErrCapacityExceeded {
		t.Errorf("Expected ErrCapacityExceeded, got %v", err)
	}
	if p.Dropped() != 1 {
		t.Errorf("Expected 1 dropped delivery, got %d", p.Dropped())
	}

	p.Reset()
	if p.Len() != 0 {
		t.Errorf("Expected empty pipe after Reset, got %d", p.Len())
	}
}

func TestPipeConcurrentProducer(t *testing.T) {
	p := NewPipe(4 * MaxFrameSize)
	frame := encodeFrame(t, NewMessage(0x0365, Bool(true)))
	const count = 200

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < count; {
			if _, err := p.Write(frame); err == nil {
				i++
			}
		}
	}()

	d := NewDecoder()
	got := 0
	deadline := time.Now().Add(5 * time.Second)
	for got < count && time.Now().Before(deadline) {
		if res := p.Decode(d); res.Kind == Decoded {
			got++
		}
	}
	wg.Wait()
	if got != count {
		t.Errorf("Expected %d frames, got %d", count, got)
	}
	if d.Stats().ResyncBytes != 0 {
		t.Errorf("Expected no resync, got %d", d.Stats().ResyncBytes)
	}
}

func TestChunks(t *testing.T) {
	frame := make([]byte, 300)
	var sizes []int
	err := Chunks(frame, 128, func(p []byte) error {
		sizes = append(sizes, len(p))
		return nil
	})
	if err != nil {
		t.Fatalf("Chunks failed: %v", err)
	}
	if len(sizes) != 3 || sizes[0] != 128 || sizes[1] != 128 || sizes[2] != 44 {
		t.Errorf("Expected [128 128 44], got %v", sizes)
	}

	boom := errors.New("boom")
	calls := 0
	err = Chunks(frame, 100, func(p []byte) error {
		calls++
		return boom
	})
	if err != boom || calls != 1 {
		t.Errorf("Expected to stop at first error, got %v after %d calls", err, calls)
	}
}

func TestTransportSendChunked(t *testing.T) {
	sink := &chunkRecorder{}
	tr := NewTransport(sink, nil)
	tr.SetMaxChunk(4)

	if err := tr.Send(0x0138, func(e *Encoder) { e.WriteUint8(3) }); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	want := []byte{0x01, 0xFE, 0x01, 0x38, 0x00, 0x02, 0xCC, 0x03, 0xCF}
	if !bytes.Equal(sink.joined(), want) {
		t.Errorf("Expected % x, got % x", want, sink.joined())
	}
	if len(sink.chunks) != 3 {
		t.Errorf("Expected 3 chunks, got %d", len(sink.chunks))
	}
	stats := tr.Stats()
	if stats.Sent != 1 || stats.Chunks != 3 {
		t.Errorf("Unexpected stats %+v", stats)
	}
}

func TestTransportShortWrites(t *testing.T) {
	sink := &shortWriter{n: 2}
	tr := NewTransport(sink, nil)
	msg := NewMessage(0x0104, String("Gain"), Float(0.5))
	if err := tr.SendMessage(&msg); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if !bytes.Equal(sink.buf.Bytes(), encodeFrame(t, msg)) {
		t.Errorf("Frame mangled by short writes")
	}

	tr.SetSink(stuckWriter{})
	if err := tr.SendMessage(&msg); err != io.ErrShortWrite {
		t.Errorf("Expected io.ErrShortWrite, got %v", err)
	}
}

func TestTransportReceive(t *testing.T) {
	var got []Message
	tr := NewTransport(nil, func(msg *Message) error {
		got = append(got, msg.Clone())
		return nil
	})
	var acks []uint16
	tr.SetAckHandler(func(cmdsub uint16) { acks = append(acks, cmdsub) })

	stream := append([]byte{0xAA, 0xBB}, encodeFrame(t, NewMessage(0x0310, Byte(1)))...)
	stream = append(stream, rawFrame(CmdAck, 0x38, nil)...)
	stream = append(stream, encodeFrame(t, NewMessage(0x0311, String("Spark 40")))...)

	// Arbitrary delivery boundaries
	for _, chunk := range [][]byte{stream[:5], stream[5:11], stream[11:]} {
		if err := tr.Deliver(chunk); err != nil {
			t.Fatalf("Deliver failed: %v", err)
		}
		tr.Receive()
	}

	if len(got) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(got))
	}
	if got[0].CmdSub != 0x0310 || got[1].Fields[0].Str() != "Spark 40" {
		t.Errorf("Unexpected messages %s %s", got[0].String(), got[1].String())
	}
	if len(acks) != 1 || acks[0] != 0x0438 {
		t.Errorf("Expected ack 0x0438, got %v", acks)
	}
	if tr.Pending() != 0 {
		t.Errorf("Expected nothing pending, got %d", tr.Pending())
	}
	if tr.Stats().Decoder.ResyncBytes != 2 {
		t.Errorf("Expected 2 resync bytes, got %d", tr.Stats().Decoder.ResyncBytes)
	}
}

func TestTransportHandlerErrorDoesNotDesync(t *testing.T) {
	calls := 0
	tr := NewTransport(nil, func(msg *Message) error {
		calls++
		return errors.New("unhandled")
	})
	tr.Deliver(encodeFrame(t, NewMessage(0x0310, Byte(1))))
	tr.Deliver(encodeFrame(t, NewMessage(0x0310, Byte(2))))
	if n := tr.Receive(); n != 2 || calls != 2 {
		t.Errorf("Expected 2 handled, got %d (%d calls)", n, calls)
	}
	if tr.Stats().HandlerErrors != 2 {
		t.Errorf("Expected 2 handler errors, got %d", tr.Stats().HandlerErrors)
	}
}

func TestTransportReset(t *testing.T) {
	resets := 0
	tr := NewTransportSize(nil, nil, 16)
	tr.SetResetCallback(func() { resets++ })
	tr.Deliver([]byte{Preamble0, Preamble1, 0x03})
	tr.Reset()
	if tr.Pending() != 0 || resets != 1 {
		t.Errorf("Expected cleared input and one callback, got %d pending %d resets", tr.Pending(), resets)
	}
	if err := tr.Deliver(make([]byte, 17)); err != ErrCapacityExceeded {
		t.Errorf("Expected ErrCapacityExceeded, got %v", err)
	}
}

// fakePort connects a HostTransport to a test-side peer
type fakePort struct {
	r *io.PipeReader
	w *io.PipeWriter
}

func (p *fakePort) Read(b []byte) (int, error)  { return p.r.Read(b) }
func (p *fakePort) Write(b []byte) (int, error) { return p.w.Write(b) }
func (p *fakePort) Close() error {
	p.r.Close()
	return p.w.Close()
}

func newFakeLink() (*fakePort, *io.PipeReader, *io.PipeWriter) {
	toHostR, toHostW := io.Pipe()
	fromHostR, fromHostW := io.Pipe()
	return &fakePort{r: toHostR, w: fromHostW}, fromHostR, toHostW
}

func TestHostTransportSendAndWait(t *testing.T) {
	port, peerIn, peerOut := newFakeLink()
	ht := NewHostTransport(port)
	defer ht.Close()

	// Peer: read one frame and acknowledge it
	go func() {
		tr := NewTransport(nil, func(msg *Message) error {
			peerOut.Write(rawFrame(CmdAck, msg.Sub(), nil))
			return nil
		})
		buf := make([]byte, 64)
		for {
			n, err := peerIn.Read(buf)
			if err != nil {
				return
			}
			tr.Deliver(buf[:n])
			tr.Receive()
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := ht.SendAndWait(ctx, 0x0138, func(e *Encoder) { e.WriteUint8(3) })
	if err != nil {
		t.Fatalf("SendAndWait failed: %v", err)
	}
}

func TestHostTransportAckTimeout(t *testing.T) {
	port, peerIn, _ := newFakeLink()
	ht := NewHostTransport(port)
	defer ht.Close()
	go io.Copy(io.Discard, peerIn)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := ht.SendAndWait(ctx, 0x0165, func(e *Encoder) { e.WriteBool(true) })
	if !errors.Is(err, ErrAckTimeout) {
		t.Errorf("Expected ErrAckTimeout, got %v", err)
	}
}

func TestHostTransportResponses(t *testing.T) {
	port, _, peerOut := newFakeLink()
	ht := NewHostTransport(port)
	defer ht.Close()

	frame := encodeFrame(t, NewMessage(0x032F, Uint32(0x01020304)))
	go peerOut.Write(frame)

	msg, err := ht.ReceiveResponse(2 * time.Second)
	if err != nil {
		t.Fatalf("ReceiveResponse failed: %v", err)
	}
	if msg.CmdSub != 0x032F || msg.Fields[0].Num != 0x01020304 {
		t.Errorf("Unexpected response %s", msg.String())
	}
}

func TestHostTransportClose(t *testing.T) {
	port, _, _ := newFakeLink()
	ht := NewHostTransport(port)
	if err := ht.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	select {
	case <-ht.Done():
	case <-time.After(time.Second):
		t.Fatal("Read loop did not exit")
	}
	if _, err := ht.ReceiveResponse(time.Second); err != ErrTransportClosed {
		t.Errorf("Expected ErrTransportClosed, got %v", err)
	}
	// Second close is a no-op
	ht.Close()
}
