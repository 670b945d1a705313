package protocol

import "testing"

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	data1 := []byte{1, 2, 3}
	if err := scratch.Output(data1); err != nil {
		t.Fatalf("Output failed: %v", err)
	}

	if scratch.CurPosition() != 3 {
		t.Errorf("Expected position 3, got %d", scratch.CurPosition())
	}

	result := scratch.Result()
	if len(result) != 3 {
		t.Errorf("Expected 3 bytes in result, got %d", len(result))
	}

	data2 := []byte{4, 5}
	scratch.Output(data2)

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	// Test Update
	scratch.Update(0, 99)
	result = scratch.Result()
	if result[0] != 99 {
		t.Errorf("Expected first byte to be 99, got %d", result[0])
	}

	// Test DataSince
	since := scratch.DataSince(2)
	if len(since) != 3 || since[0] != 3 {
		t.Errorf("DataSince(2) failed: expected [3 4 5], got %v", since)
	}

	// Test Rewind
	scratch.Rewind(1)
	if scratch.CurPosition() != 1 {
		t.Errorf("After rewind, expected position 1, got %d", scratch.CurPosition())
	}

	// Test Reset
	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputFull(t *testing.T) {
	scratch := NewScratchOutput()
	if err := scratch.Output(make([]byte, MessageMax)); err != nil {
		t.Fatalf("Expected a full-size write to fit, got %v", err)
	}
	if err := scratch.Output([]byte{1}); err != ErrCapacityExceeded {
		t.Errorf("Expected ErrCapacityExceeded, got %v", err)
	}
	if scratch.CurPosition() != MessageMax {
		t.Errorf("Failed write must not move the position, got %d", scratch.CurPosition())
	}
}

func TestScratchUpdateOutOfRangePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Expected panic updating past the write position")
		}
	}()
	scratch := NewScratchOutput()
	scratch.Output([]byte{1})
	scratch.Update(1, 0)
}
