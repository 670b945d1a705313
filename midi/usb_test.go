package midi

import "testing"

func TestUnpackUSB(t *testing.T) {
	p := NewParser()
	var events []Event
	emit := func(e Event) { events = append(events, e) }

	packets := [][4]byte{
		{0x09, 0x90, 0x3C, 0x7F}, // note on
		{0x00, 0x00, 0x00, 0x00}, // CIN 0, ignored
		{0x1C, 0xC0, 0x05, 0x00}, // program change on cable 1
		{0x0F, 0xF8, 0x00, 0x00}, // timing clock
	}
	total := 0
	for _, pkt := range packets {
		total += UnpackUSB(pkt, p, emit)
	}

	if total != 3 || len(events) != 3 {
		t.Fatalf("Expected 3 events, got %d", total)
	}
	if events[0].Kind() != KindNoteOn || events[0].Data2 != 0x7F {
		t.Errorf("Expected note on, got %+v", events[0])
	}
	if events[1].Kind() != KindProgramChange || events[1].Data1 != 5 {
		t.Errorf("Expected program change 5, got %+v", events[1])
	}
	if !events[2].IsRealtime() {
		t.Errorf("Expected realtime, got %+v", events[2])
	}
	if Cable(packets[2]) != 1 {
		t.Errorf("Expected cable 1, got %d", Cable(packets[2]))
	}
	// The trailing pad byte of the program change must not leak
	if p.Dropped() != 0 {
		t.Errorf("Expected no dropped bytes, got %d", p.Dropped())
	}
}

func TestPackUSB(t *testing.T) {
	tests := []struct {
		name  string
		cable uint8
		e     Event
		want  [4]byte
	}{
		{"note on", 0, Event{Status: 0x91, Data1: 60, Data2: 100, Arity: 2}, [4]byte{0x09, 0x91, 60, 100}},
		{"note off", 0, Event{Status: 0x80, Data1: 60, Arity: 2}, [4]byte{0x08, 0x80, 60, 0}},
		{"control change", 2, Event{Status: 0xB0, Data1: 7, Data2: 127, Arity: 2}, [4]byte{0x2B, 0xB0, 7, 127}},
		{"program change", 0, Event{Status: 0xC0, Data1: 3, Arity: 1}, [4]byte{0x0C, 0xC0, 3, 0}},
		{"realtime", 0, Event{Status: Start}, [4]byte{0x0F, Start, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PackUSB(tt.cable, tt.e)
			if got != tt.want {
				t.Errorf("Expected % x, got % x", tt.want, got)
			}

			// Round trip through the parser
			var back Event
			n := UnpackUSB(got, NewParser(), func(e Event) { back = e })
			if n != 1 || back != tt.e {
				t.Errorf("Expected %+v back, got %+v", tt.e, back)
			}
		})
	}
}
