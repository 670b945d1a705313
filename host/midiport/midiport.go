// Package midiport feeds MIDI input ports on the host into the bridge. The
// gomidi listener runs on its own goroutine and only ever writes raw bytes
// into the bridge's MIDI pipe.
package midiport

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // Register rtmidi driver
)

// ErrNoPort is returned when no input port matches
var ErrNoPort = errors.New("no MIDI input port")

// ListInPorts returns the names of available MIDI input ports
func ListInPorts() []string {
	ins := midi.GetInPorts()
	names := make([]string, 0, len(ins))
	for _, in := range ins {
		names = append(names, in.String())
	}
	return names
}

// Shutdown cleans up the MIDI driver
func Shutdown() {
	midi.CloseDriver()
}

// matchPort picks a port name. An empty want takes the only port; otherwise
// an exact name wins over a case-insensitive substring.
func matchPort(names []string, want string) (string, bool) {
	if want == "" {
		if len(names) == 1 {
			return names[0], true
		}
		return "", false
	}
	for _, name := range names {
		if name == want {
			return name, true
		}
	}
	lw := strings.ToLower(want)
	for _, name := range names {
		if strings.Contains(strings.ToLower(name), lw) {
			return name, true
		}
	}
	return "", false
}

// Listener forwards one input port into a writer, usually a protocol.Pipe
type Listener struct {
	mu     sync.Mutex
	name   string
	port   drivers.In
	stop   func()
	dst    io.Writer
	logger *slog.Logger

	received atomic.Uint32
	dropped  atomic.Uint32
	failed   atomic.Bool
}

// Open starts listening on the port matching name and writes every message
// to dst
func Open(name string, dst io.Writer, logger *slog.Logger) (*Listener, error) {
	if logger == nil {
		logger = slog.Default()
	}

	found, ok := matchPort(ListInPorts(), name)
	if !ok {
		return nil, fmt.Errorf("%w matching %q", ErrNoPort, name)
	}

	var port drivers.In
	for _, in := range midi.GetInPorts() {
		if in.String() == found {
			port = in
			break
		}
	}
	if port == nil {
		return nil, fmt.Errorf("%w: %s disappeared", ErrNoPort, found)
	}

	l := &Listener{name: found, port: port, dst: dst, logger: logger}

	stop, err := midi.ListenTo(port, func(msg midi.Message, timestampms int32) {
		l.forward(msg)
	}, midi.HandleError(func(listenErr error) {
		l.failed.Store(true)
		logger.Warn("MIDI listener error, device likely disconnected", "device", found, "err", listenErr)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", found, err)
	}
	l.stop = stop

	logger.Info("MIDI input connected", "device", found)
	return l, nil
}

// forward hands one message to the writer. A full pipe drops the message.
func (l *Listener) forward(msg []byte) {
	l.received.Add(1)
	if _, err := l.dst.Write(msg); err != nil {
		l.dropped.Add(1)
		l.logger.Debug("MIDI message dropped", "device", l.name, "err", err)
	}
}

// Name returns the connected port name
func (l *Listener) Name() string {
	return l.name
}

// Received returns the number of messages seen
func (l *Listener) Received() uint32 {
	return l.received.Load()
}

// Dropped returns the number of messages the writer refused
func (l *Listener) Dropped() uint32 {
	return l.dropped.Load()
}

// Failed reports whether the driver signalled an error, e.g. an unplug
func (l *Listener) Failed() bool {
	return l.failed.Load()
}

// Close stops the listener and closes the port
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stop != nil {
		l.stop()
		l.stop = nil
	}
	if l.port != nil {
		err := l.port.Close()
		l.port = nil
		l.logger.Info("MIDI input closed", "device", l.name)
		return err
	}
	return nil
}
