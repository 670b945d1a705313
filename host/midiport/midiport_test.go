package midiport

import (
	"bytes"
	"io"
	"log/slog"
	"testing"

	"gitlab.com/gomidi/midi/v2"

	"sparkbox/protocol"
)

func TestMatchPort(t *testing.T) {
	names := []string{"Midi Through:Midi Through Port-0 14:0", "FCB1010:FCB1010 MIDI 1 20:0"}

	cases := []struct {
		want  string
		found string
		ok    bool
	}{
		{"FCB1010:FCB1010 MIDI 1 20:0", "FCB1010:FCB1010 MIDI 1 20:0", true},
		{"fcb1010", "FCB1010:FCB1010 MIDI 1 20:0", true},
		{"through", "Midi Through:Midi Through Port-0 14:0", true},
		{"launchpad", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		found, ok := matchPort(names, c.want)
		if found != c.found || ok != c.ok {
			t.Errorf("matchPort(%q) = %q %v, want %q %v", c.want, found, ok, c.found, c.ok)
		}
	}

	if found, ok := matchPort(names[1:], ""); !ok || found != names[1] {
		t.Errorf("Expected the only port, got %q %v", found, ok)
	}
}

func TestListenerForward(t *testing.T) {
	pipe := protocol.NewPipe(6)
	l := &Listener{name: "test", dst: pipe, logger: slog.New(slog.NewTextHandler(io.Discard, nil))}

	l.forward(midi.ControlChange(0, 80, 127))
	l.forward(midi.ProgramChange(1, 3))
	// No room left for a third message
	l.forward(midi.NoteOn(0, 60, 100))

	if l.Received() != 3 {
		t.Errorf("Expected 3 received, got %d", l.Received())
	}
	if l.Dropped() != 1 {
		t.Errorf("Expected 1 dropped, got %d", l.Dropped())
	}

	buf := make([]byte, 16)
	n := pipe.Read(buf)
	want := []byte{0xB0, 80, 127, 0xC1, 3}
	if !bytes.Equal(buf[:n], want) {
		t.Errorf("Expected % x, got % x", want, buf[:n])
	}
}
