package core

import (
	"errors"
	"testing"

	"sparkbox/protocol"
)

// recordingSender keeps every message the amp sends
type recordingSender struct {
	sent []protocol.Message
	err  error
}

func (s *recordingSender) SendMessage(msg *protocol.Message) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, msg.Clone())
	return nil
}

func (s *recordingSender) last(t *testing.T) protocol.Message {
	t.Helper()
	if len(s.sent) == 0 {
		t.Fatal("Nothing was sent")
	}
	return s.sent[len(s.sent)-1]
}

func TestAmpChangeHardwarePreset(t *testing.T) {
	link := &recordingSender{}
	amp := NewAmp(link)

	if err := amp.ChangeHardwarePreset(5); err != nil {
		t.Fatalf("ChangeHardwarePreset failed: %v", err)
	}

	msg := link.last(t)
	want := protocol.NewMessage(CmdChangeHardwarePreset, protocol.Byte(1))
	if !msg.Equal(&want) {
		t.Errorf("Expected %s with preset 1, got %s", want.String(), msg.String())
	}

	state := amp.State()
	if !state.PresetKnown || state.CurrentPreset != 1 {
		t.Errorf("Expected preset 1 known, got %d (%v)", state.CurrentPreset, state.PresetKnown)
	}
	if state.Pending != 1 {
		t.Errorf("Expected 1 pending command, got %d", state.Pending)
	}
}

func TestAmpNotConnected(t *testing.T) {
	amp := NewAmp(nil)

	if err := amp.TunerOnOff(true); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if amp.State().TunerOn {
		t.Error("Tuner state changed without a send")
	}
}

func TestAmpSendErrorLeavesState(t *testing.T) {
	link := &recordingSender{err: errors.New("link down")}
	amp := NewAmp(link)

	if err := amp.TurnEffectOnOff("DistortionTS9", true); err == nil {
		t.Fatal("Expected send error")
	}
	if _, known := amp.EffectOn("DistortionTS9"); known {
		t.Error("Effect state recorded after failed send")
	}
	if amp.State().Pending != 0 {
		t.Errorf("Expected 0 pending, got %d", amp.State().Pending)
	}
}

func TestAmpToggleEffect(t *testing.T) {
	link := &recordingSender{}
	amp := NewAmp(link)

	if err := amp.ToggleEffect("Overdrive"); err != nil {
		t.Fatalf("ToggleEffect failed: %v", err)
	}
	if on, _ := amp.EffectOn("Overdrive"); !on {
		t.Error("Expected unknown pedal to toggle on")
	}
	if err := amp.ToggleEffect("Overdrive"); err != nil {
		t.Fatalf("ToggleEffect failed: %v", err)
	}
	if on, _ := amp.EffectOn("Overdrive"); on {
		t.Error("Expected second toggle to switch off")
	}

	msg := link.last(t)
	want := protocol.NewMessage(CmdTurnEffectOnOff, protocol.PrefixedString("Overdrive"), protocol.Bool(false))
	if !msg.Equal(&want) {
		t.Errorf("Unexpected message %s", msg.String())
	}
}

func TestAmpChangeEffectParameterClamps(t *testing.T) {
	link := &recordingSender{}
	amp := NewAmp(link)

	if err := amp.ChangeEffectParameter("Twin", 2, 1.5); err != nil {
		t.Fatalf("ChangeEffectParameter failed: %v", err)
	}
	if got := link.last(t).Fields[2].Float; got != 1 {
		t.Errorf("Expected value clamped to 1, got %v", got)
	}

	if err := amp.ChangeEffectParameter("Twin", 2, -0.25); err != nil {
		t.Fatalf("ChangeEffectParameter failed: %v", err)
	}
	if got := link.last(t).Fields[2].Float; got != 0 {
		t.Errorf("Expected value clamped to 0, got %v", got)
	}
}

func TestAmpChangeEffectKeepsState(t *testing.T) {
	link := &recordingSender{}
	amp := NewAmp(link)

	if err := amp.TurnEffectOnOff("Booster", true); err != nil {
		t.Fatal(err)
	}
	if err := amp.ChangeEffect("Booster", "Compressor"); err != nil {
		t.Fatal(err)
	}
	if _, known := amp.EffectOn("Booster"); known {
		t.Error("Old pedal still tracked")
	}
	if on, known := amp.EffectOn("Compressor"); !on || !known {
		t.Error("New pedal did not inherit the on state")
	}
}

func TestAmpHandleAck(t *testing.T) {
	link := &recordingSender{}
	amp := NewAmp(link)

	_ = amp.RequestName()
	_ = amp.RequestSerial()
	amp.HandleAck(0x0411)

	state := amp.State()
	if state.Pending != 1 {
		t.Errorf("Expected 1 pending, got %d", state.Pending)
	}
	if state.LastAck != 0x0411 {
		t.Errorf("Expected last ack 0x0411, got 0x%04x", state.LastAck)
	}

	amp.HandleAck(0x0423)
	amp.HandleAck(0x0423)
	if amp.State().Pending != 0 {
		t.Errorf("Expected pending to stop at 0, got %d", amp.State().Pending)
	}
}

func TestAmpResponses(t *testing.T) {
	amp := NewAmp(&recordingSender{})
	registry := NewCommandRegistry()
	amp.RegisterHandlers(registry)

	var changes []uint8
	amp.OnPresetChanged = func(p uint8) { changes = append(changes, p) }

	msgs := []protocol.Message{
		protocol.NewMessage(RspName, protocol.PrefixedString("Spark 40")),
		protocol.NewMessage(RspSerial, protocol.String("S40D123")),
		protocol.NewMessage(RspFirmware, protocol.Uint32(0x01070E20)),
		protocol.NewMessage(RspHardwarePresetNumber, protocol.Byte(2)),
		protocol.NewMessage(RspHardwarePresetChanged, protocol.Byte(2)),
		protocol.NewMessage(RspHardwarePresetChanged, protocol.Byte(3)),
		protocol.NewMessage(RspEffectOnOffChanged, protocol.PrefixedString("ChorusAnalog"), protocol.Bool(true)),
		protocol.NewMessage(RspTunerOutput, protocol.Float(440), protocol.Float(-0.5)),
	}
	for i := range msgs {
		if err := registry.Dispatch(&msgs[i]); err != nil {
			t.Fatalf("Dispatch %s failed: %v", msgs[i].String(), err)
		}
	}

	state := amp.State()
	if state.Name != "Spark 40" {
		t.Errorf("Expected name 'Spark 40', got '%s'", state.Name)
	}
	if state.Serial != "S40D123" {
		t.Errorf("Expected serial 'S40D123', got '%s'", state.Serial)
	}
	if fw := state.FirmwareString(); fw != "1.7.14.32" {
		t.Errorf("Expected firmware 1.7.14.32, got %s", fw)
	}
	if state.CurrentPreset != 3 {
		t.Errorf("Expected preset 3, got %d", state.CurrentPreset)
	}
	if len(changes) != 2 || changes[0] != 2 || changes[1] != 3 {
		t.Errorf("Expected preset changes [2 3], got %v", changes)
	}
	if on, _ := amp.EffectOn("ChorusAnalog"); !on {
		t.Error("Expected ChorusAnalog on")
	}
	if state.TunerNote != 440 || state.TunerOffset != -0.5 {
		t.Errorf("Unexpected tuner output %v %v", state.TunerNote, state.TunerOffset)
	}
}

func TestAmpPresetOutOfRange(t *testing.T) {
	amp := NewAmp(&recordingSender{})
	registry := NewCommandRegistry()
	amp.RegisterHandlers(registry)

	msg := protocol.NewMessage(RspHardwarePresetChanged, protocol.Byte(NumPresets))
	if err := registry.Dispatch(&msg); !errors.Is(err, ErrPresetOutOfRange) {
		t.Errorf("Expected ErrPresetOutOfRange, got %v", err)
	}
	if amp.State().PresetKnown {
		t.Error("Out of range preset was recorded")
	}
}
