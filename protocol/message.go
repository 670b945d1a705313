package protocol

// Message is a decoded, checksum-validated frame
type Message struct {
	CmdSub   uint16
	Fields   []Field
	Length   int  // declared body length
	Checksum byte // trailing checksum byte
}

// NewMessage builds an outgoing message from field values
func NewMessage(cmdsub uint16, fields ...Field) Message {
	return Message{CmdSub: cmdsub, Fields: fields}
}

// Cmd returns the command class
func (m *Message) Cmd() uint8 {
	return uint8(m.CmdSub >> 8)
}

// Sub returns the subcommand
func (m *Message) Sub() uint8 {
	return uint8(m.CmdSub)
}

// Equal compares the command and fields; Length and Checksum are derived
// and ignored
func (m *Message) Equal(o *Message) bool {
	if m.CmdSub != o.CmdSub || len(m.Fields) != len(o.Fields) {
		return false
	}
	for i := range m.Fields {
		if !m.Fields[i].Equal(o.Fields[i]) {
			return false
		}
	}
	return true
}

// Matches reports whether the field types follow layout exactly
func (m *Message) Matches(layout []FieldType) bool {
	if len(m.Fields) != len(layout) {
		return false
	}
	for i, t := range layout {
		if m.Fields[i].Type != t {
			return false
		}
	}
	return true
}

// Clone returns a copy that no longer aliases decoder storage
func (m *Message) Clone() Message {
	c := *m
	c.Fields = make([]Field, len(m.Fields))
	for i, f := range m.Fields {
		c.Fields[i] = f.clone()
	}
	return c
}

// String returns a short description for logs, e.g. "0x0138[byte]"
func (m *Message) String() string {
	s := "0x" + hex8(m.Cmd()) + hex8(m.Sub()) + "["
	for i, f := range m.Fields {
		if i > 0 {
			s += " "
		}
		s += f.Type.String()
	}
	return s + "]"
}
