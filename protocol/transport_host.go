package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	// ErrAckTimeout is returned when the peer does not acknowledge in time
	ErrAckTimeout = errors.New("ack timeout")
	// ErrTransportClosed is returned after Close
	ErrTransportClosed = errors.New("transport stopped")
)

// DefaultAckTimeout bounds SendCommand
const DefaultAckTimeout = 2 * time.Second

// HostTransport runs a Transport over a blocking port (serial device or
// Bluetooth socket) from a hosted environment. A background goroutine reads
// the port and decodes; senders may wait for the matching acknowledgement.
type HostTransport struct {
	port io.ReadWriteCloser
	link *Transport

	// Channel for acknowledgements, carrying the acked cmdsub
	ackChan chan uint16

	// Channel for responses, cloned out of decoder storage
	responseChan chan Message

	// Response handler (optional callback for async responses), run on the
	// read goroutine
	responseHandler MessageHandler

	writeMutex sync.Mutex
	readMutex  sync.Mutex

	// Stop channel for graceful shutdown
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
	readErr   error
}

// NewHostTransport creates a host-side transport and starts its reader
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:         port,
		ackChan:      make(chan uint16, 4),
		responseChan: make(chan Message, 16),
		stopChan:     make(chan struct{}),
		doneChan:     make(chan struct{}),
	}
	t.link = NewTransport(port, t.dispatchMessage)
	t.link.SetAckHandler(t.dispatchAck)

	go t.readLoop()

	return t
}

// SetMaxChunk limits single writes, e.g. to a Bluetooth MTU
func (t *HostTransport) SetMaxChunk(n int) {
	t.writeMutex.Lock()
	t.link.SetMaxChunk(n)
	t.writeMutex.Unlock()
}

// SetResponseHandler sets a callback for handling responses asynchronously.
// Set it before traffic starts.
func (t *HostTransport) SetResponseHandler(handler MessageHandler) {
	t.responseHandler = handler
}

// Send encodes and writes a frame without waiting
func (t *HostTransport) Send(cmdsub uint16, fill func(e *Encoder)) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if err := t.link.Send(cmdsub, fill); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// SendMessage encodes and writes a whole message without waiting
func (t *HostTransport) SendMessage(msg *Message) error {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	if err := t.link.SendMessage(msg); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// SendCommand sends a command and waits for its acknowledgement
func (t *HostTransport) SendCommand(cmdsub uint16, fill func(e *Encoder)) error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultAckTimeout)
	defer cancel()
	return t.SendAndWait(ctx, cmdsub, fill)
}

// SendAndWait sends a command and blocks until an acknowledgement with the
// same subcommand arrives, ctx ends or the transport stops
func (t *HostTransport) SendAndWait(ctx context.Context, cmdsub uint16, fill func(e *Encoder)) error {
	t.drainAcks()
	if err := t.Send(cmdsub, fill); err != nil {
		return err
	}
	if err := t.waitForAck(ctx, uint8(cmdsub)); err != nil {
		return fmt.Errorf("command 0x%04x: %w", cmdsub, err)
	}
	return nil
}

// waitForAck waits for an ack of sub, skipping stale ones
func (t *HostTransport) waitForAck(ctx context.Context, sub uint8) error {
	for {
		select {
		case acked := <-t.ackChan:
			if uint8(acked) == sub {
				return nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return ErrAckTimeout
			}
			return ctx.Err()
		case <-t.stopChan:
			return ErrTransportClosed
		}
	}
}

func (t *HostTransport) drainAcks() {
	for {
		select {
		case <-t.ackChan:
		default:
			return
		}
	}
}

// ReceiveResponse waits for the next response message
func (t *HostTransport) ReceiveResponse(timeout time.Duration) (Message, error) {
	select {
	case resp := <-t.responseChan:
		return resp, nil

	case <-time.After(timeout):
		return Message{}, fmt.Errorf("response timeout after %v", timeout)

	case <-t.stopChan:
		return Message{}, ErrTransportClosed
	}
}

// readLoop reads the port and decodes on the same goroutine, so the
// pipe has exactly one producer and one consumer
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.readMutex.Lock()
			if derr := t.link.Deliver(buffer[:n]); derr != nil {
				// Full of garbage that never framed: start over
				t.link.Reset()
				_ = t.link.Deliver(buffer[:n])
			}
			t.link.Receive()
			t.readMutex.Unlock()
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				t.readErr = err
				return
			}
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) dispatchAck(cmdsub uint16) {
	select {
	case t.ackChan <- cmdsub:
	default:
		// Nobody is waiting
	}
}

// dispatchMessage routes a response to the handler and the response channel
func (t *HostTransport) dispatchMessage(msg *Message) error {
	var err error
	if t.responseHandler != nil {
		err = t.responseHandler(msg)
	}

	c := msg.Clone()
	select {
	case t.responseChan <- c:
	default:
		// Response channel full, drop oldest
		select {
		case <-t.responseChan:
		default:
		}
		t.responseChan <- c
	}
	return err
}

// Stats returns the link counters
func (t *HostTransport) Stats() TransportStats {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()
	t.readMutex.Lock()
	defer t.readMutex.Unlock()
	return t.link.Stats()
}

// Err returns the error that ended the read loop, if any. Valid after Done
// is closed.
func (t *HostTransport) Err() error {
	<-t.doneChan
	return t.readErr
}

// Done is closed when the read loop exits
func (t *HostTransport) Done() <-chan struct{} {
	return t.doneChan
}

// Close stops the transport and closes the port. The port is closed first
// so a blocked Read returns.
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan // Wait for read loop to finish
	})
	return err
}
