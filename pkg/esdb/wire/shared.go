package wire

import (
	"encoding/binary"
	"fmt"

	uuid "github.com/satori/go.uuid"
)

type Empty struct{}

func (m *Empty) AppendWire(b []byte) []byte {
	return b
}

func (m *Empty) UnmarshalWire(b []byte) error {
	_, err := parseFields(b)
	return err
}

type StructuredUUID struct {
	MostSignificantBits  int64
	LeastSignificantBits int64
}

func (m *StructuredUUID) AppendWire(b []byte) []byte {
	b = appendVarint(b, 1, uint64(m.MostSignificantBits))
	return appendVarint(b, 2, uint64(m.LeastSignificantBits))
}

func (m *StructuredUUID) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.MostSignificantBits = int64(f.varint)
		case 2:
			m.LeastSignificantBits = int64(f.varint)
		}
		return nil
	})
}

// UUID is either structured or in its canonical string form.
type UUID struct {
	Structured *StructuredUUID
	Text       *string
}

// NewUUID returns the string form of id, which is what the client requests through UUIDOption.
func NewUUID(id uuid.UUID) *UUID {
	s := id.String()
	return &UUID{Text: &s}
}

// NewStructuredUUID returns the structured form of id.
func NewStructuredUUID(id uuid.UUID) *UUID {
	return &UUID{Structured: &StructuredUUID{
		MostSignificantBits:  int64(binary.BigEndian.Uint64(id[:8])),
		LeastSignificantBits: int64(binary.BigEndian.Uint64(id[8:])),
	}}
}

// Parse returns the identifier in either representation.
func (m *UUID) Parse() (uuid.UUID, error) {
	switch {
	case m == nil:
		return uuid.Nil, fmt.Errorf("missing uuid")
	case m.Text != nil:
		return uuid.FromString(*m.Text)
	case m.Structured != nil:
		var id uuid.UUID
		binary.BigEndian.PutUint64(id[:8], uint64(m.Structured.MostSignificantBits))
		binary.BigEndian.PutUint64(id[8:], uint64(m.Structured.LeastSignificantBits))
		return id, nil
	default:
		return uuid.Nil, fmt.Errorf("empty uuid")
	}
}

func (m *UUID) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Structured)
	if m.Text != nil {
		b = appendString(b, 2, *m.Text)
	}
	return b
}

func (m *UUID) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Structured, err = sub[StructuredUUID](f)
		case 2:
			s := f.string()
			m.Text = &s
		}
		return err
	})
}

type UUIDOption struct {
	Structured *Empty
	Text       *Empty
}

func (m *UUIDOption) AppendWire(b []byte) []byte {
	b = appendMessage(b, 1, m.Structured)
	return appendMessage(b, 2, m.Text)
}

func (m *UUIDOption) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) (err error) {
		switch f.num {
		case 1:
			m.Structured, err = sub[Empty](f)
		case 2:
			m.Text, err = sub[Empty](f)
		}
		return err
	})
}

type StreamIdentifier struct {
	StreamName []byte
}

// NewStreamIdentifier returns the identifier of the named stream.
func NewStreamIdentifier(name string) *StreamIdentifier {
	return &StreamIdentifier{StreamName: []byte(name)}
}

// Name returns the stream name, or the empty string when m is nil.
func (m *StreamIdentifier) Name() string {
	if m == nil {
		return ""
	}
	return string(m.StreamName)
}

func (m *StreamIdentifier) AppendWire(b []byte) []byte {
	return appendBytes(b, 3, m.StreamName)
}

func (m *StreamIdentifier) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		if f.num == 3 {
			m.StreamName = f.bytes
		}
		return nil
	})
}

// Position is a position in the global log.
type Position struct {
	CommitPosition  uint64
	PreparePosition uint64
}

func (m *Position) AppendWire(b []byte) []byte {
	b = appendVarint(b, 1, m.CommitPosition)
	return appendVarint(b, 2, m.PreparePosition)
}

func (m *Position) UnmarshalWire(b []byte) error {
	return decodeMessage(b, func(f field) error {
		switch f.num {
		case 1:
			m.CommitPosition = f.varint
		case 2:
			m.PreparePosition = f.varint
		}
		return nil
	})
}

// Uint64 returns a pointer to v, for optional fields.
func Uint64(v uint64) *uint64 {
	return &v
}

// Int32 returns a pointer to v, for optional fields.
func Int32(v int32) *int32 {
	return &v
}
