package protocol

// OutputBuffer provides an abstraction for writing outgoing protocol data
type OutputBuffer interface {
	// Output appends data, failing without a partial write if it does not fit
	Output(data []byte) error

	// CurPosition returns the current write position
	CurPosition() int

	// Update modifies a byte at a specific position
	Update(pos int, val byte)

	// Rewind truncates the buffer back to pos, dropping an aborted frame
	Rewind(pos int)
}

// publisher is implemented by outputs whose writes stay invisible until the
// frame is complete (Ring)
type publisher interface {
	Publish()
}

// ScratchOutput implements OutputBuffer using a fixed-size scratch buffer
type ScratchOutput struct {
	buf [MessageMax]byte
	pos int
}

// NewScratchOutput creates a new ScratchOutput
func NewScratchOutput() *ScratchOutput {
	return &ScratchOutput{pos: 0}
}

func (s *ScratchOutput) Output(data []byte) error {
	if s.pos+len(data) > len(s.buf) {
		return ErrCapacityExceeded
	}
	s.pos += copy(s.buf[s.pos:], data)
	return nil
}

func (s *ScratchOutput) CurPosition() int {
	return s.pos
}

func (s *ScratchOutput) Update(pos int, val byte) {
	if pos < 0 || pos >= s.pos {
		panic("protocol: scratch update out of range")
	}
	s.buf[pos] = val
}

func (s *ScratchOutput) Rewind(pos int) {
	if pos < 0 || pos > s.pos {
		panic("protocol: scratch rewind out of range")
	}
	s.pos = pos
}

// DataSince returns data from a specific position to current
func (s *ScratchOutput) DataSince(pos int) []byte {
	if pos > s.pos {
		return nil
	}
	return s.buf[pos:s.pos]
}

// Result returns all data written so far
func (s *ScratchOutput) Result() []byte {
	return s.buf[:s.pos]
}

// Reset clears the buffer
func (s *ScratchOutput) Reset() {
	s.pos = 0
}
