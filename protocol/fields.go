package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// ErrMalformedField is returned for a field that cannot be encoded or that
// runs past the end of the body
var ErrMalformedField = errors.New("malformed field")

// FieldType is the one-byte tag that precedes every field in a body. The
// same table drives the encoder and the decoder.
type FieldType uint8

const (
	FieldString         FieldType = 0xA0 // NUL-terminated bytes
	FieldPrefixedString FieldType = 0xD9 // length byte + bytes
	FieldFloat          FieldType = 0xCA // float32, big-endian
	FieldByte           FieldType = 0xCC // 1 byte
	FieldBool           FieldType = 0xC3 // 1 byte, nonzero = true
	FieldUint32         FieldType = 0xCE // 4 bytes, big-endian
)

const maxPrefixedString = 0xFF

var nulTerminator = []byte{0}

// Valid reports whether t is a known tag
func (t FieldType) Valid() bool {
	switch t {
	case FieldString, FieldPrefixedString, FieldFloat, FieldByte, FieldBool, FieldUint32:
		return true
	}
	return false
}

func (t FieldType) String() string {
	switch t {
	case FieldString:
		return "string"
	case FieldPrefixedString:
		return "prefixed_string"
	case FieldFloat:
		return "float"
	case FieldByte:
		return "byte"
	case FieldBool:
		return "bool"
	case FieldUint32:
		return "uint32"
	default:
		return "unknown(0x" + hex8(uint8(t)) + ")"
	}
}

// Field is one typed value of a message body. Num holds byte, bool (0/1) and
// uint32 values; Float holds float values; Text holds both string kinds.
type Field struct {
	Type  FieldType
	Num   uint32
	Float float32
	Text  []byte
}

// String creates a NUL-terminated string field
func String(s string) Field {
	return Field{Type: FieldString, Text: []byte(s)}
}

// PrefixedString creates a length-prefixed string field
func PrefixedString(s string) Field {
	return Field{Type: FieldPrefixedString, Text: []byte(s)}
}

// Float creates a float field
func Float(f float32) Field {
	return Field{Type: FieldFloat, Float: f}
}

// Byte creates a byte field
func Byte(b uint8) Field {
	return Field{Type: FieldByte, Num: uint32(b)}
}

// Bool creates a boolean field
func Bool(b bool) Field {
	f := Field{Type: FieldBool}
	if b {
		f.Num = 1
	}
	return f
}

// Uint32 creates a uint32 field
func Uint32(v uint32) Field {
	return Field{Type: FieldUint32, Num: v}
}

// Str returns the text of a string field
func (f Field) Str() string {
	return string(f.Text)
}

// Uint8 returns the value of a byte field
func (f Field) Uint8() uint8 {
	return uint8(f.Num)
}

// On returns the value of a bool field
func (f Field) On() bool {
	return f.Num != 0
}

// Equal compares type and value. Floats compare bitwise so NaN round-trips.
func (f Field) Equal(o Field) bool {
	if f.Type != o.Type {
		return false
	}
	switch f.Type {
	case FieldString, FieldPrefixedString:
		return bytes.Equal(f.Text, o.Text)
	case FieldFloat:
		return math.Float32bits(f.Float) == math.Float32bits(o.Float)
	default:
		return f.Num == o.Num
	}
}

// clone detaches Text from decoder storage
func (f Field) clone() Field {
	if f.Text != nil {
		f.Text = append([]byte(nil), f.Text...)
	}
	return f
}

// encodedSize returns the wire size of f including its tag
func encodedSize(f Field) (int, error) {
	switch f.Type {
	case FieldString:
		if bytes.IndexByte(f.Text, 0) >= 0 {
			return 0, ErrMalformedField
		}
		return 1 + len(f.Text) + 1, nil
	case FieldPrefixedString:
		if len(f.Text) > maxPrefixedString {
			return 0, ErrMalformedField
		}
		return 1 + 1 + len(f.Text), nil
	case FieldFloat, FieldUint32:
		return 5, nil
	case FieldByte, FieldBool:
		return 2, nil
	default:
		return 0, ErrMalformedField
	}
}

// encodeField writes the tag and payload of f through body
func encodeField(body func([]byte), f Field) {
	var tmp [5]byte
	tmp[0] = byte(f.Type)
	switch f.Type {
	case FieldString:
		body(tmp[:1])
		body(f.Text)
		body(nulTerminator)
	case FieldPrefixedString:
		tmp[1] = byte(len(f.Text))
		body(tmp[:2])
		body(f.Text)
	case FieldFloat:
		binary.BigEndian.PutUint32(tmp[1:], math.Float32bits(f.Float))
		body(tmp[:5])
	case FieldUint32:
		binary.BigEndian.PutUint32(tmp[1:], f.Num)
		body(tmp[:5])
	case FieldByte:
		tmp[1] = byte(f.Num)
		body(tmp[:2])
	case FieldBool:
		if f.Num != 0 {
			tmp[1] = 1
		}
		body(tmp[:2])
	}
}

// decodeField reads one field from the start of data and returns it with the
// number of bytes used. Text aliases data.
func decodeField(data []byte) (Field, int, error) {
	if len(data) == 0 {
		return Field{}, 0, ErrMalformedField
	}
	t := FieldType(data[0])
	p := data[1:]
	switch t {
	case FieldString:
		i := bytes.IndexByte(p, 0)
		if i < 0 {
			return Field{}, 0, ErrMalformedField
		}
		return Field{Type: t, Text: p[:i:i]}, 1 + i + 1, nil
	case FieldPrefixedString:
		if len(p) < 1 || len(p) < 1+int(p[0]) {
			return Field{}, 0, ErrMalformedField
		}
		n := int(p[0])
		return Field{Type: t, Text: p[1 : 1+n : 1+n]}, 2 + n, nil
	case FieldFloat:
		if len(p) < 4 {
			return Field{}, 0, ErrMalformedField
		}
		return Field{Type: t, Float: math.Float32frombits(binary.BigEndian.Uint32(p))}, 5, nil
	case FieldUint32:
		if len(p) < 4 {
			return Field{}, 0, ErrMalformedField
		}
		return Field{Type: t, Num: binary.BigEndian.Uint32(p)}, 5, nil
	case FieldByte:
		if len(p) < 1 {
			return Field{}, 0, ErrMalformedField
		}
		return Field{Type: t, Num: uint32(p[0])}, 2, nil
	case FieldBool:
		if len(p) < 1 {
			return Field{}, 0, ErrMalformedField
		}
		f := Field{Type: t}
		if p[0] != 0 {
			f.Num = 1
		}
		return f, 2, nil
	default:
		return Field{}, 0, ErrMalformedField
	}
}

const hexDigits = "0123456789abcdef"

// hex8 formats a byte as two hex digits without fmt
func hex8(b uint8) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
