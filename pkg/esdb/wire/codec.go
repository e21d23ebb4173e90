// Package wire holds the protocol buffer messages exchanged with the event store, their binary encoding and the
// gRPC service descriptors of the streams and persistent subscriptions services.
//
// Messages are plain Go structs. Oneof groups are represented by pointer fields of which at most one is set; the
// encoder writes whichever is set and the decoder sets whichever it reads.
package wire

import (
	"fmt"
	"sort"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Message is implemented by every wire message.
type Message interface {
	// AppendWire appends the binary encoding of the message to b.
	AppendWire(b []byte) []byte
	// UnmarshalWire decodes the binary encoding into the message, which is expected to be zero.
	UnmarshalWire(b []byte) error
}

// Codec is a gRPC codec for wire messages. It registers under the name "proto" so that the content-subtype
// matches what the server expects.
type Codec struct{}

func (Codec) Marshal(v interface{}) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.AppendWire(nil), nil
}

func (Codec) Unmarshal(data []byte, v interface{}) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return errors.Wrapf(m.UnmarshalWire(data), "wire: failed to decode %T", v)
}

func (Codec) Name() string {
	return "proto"
}

// Marshal encodes m.
func Marshal(m Message) []byte {
	return m.AppendWire(nil)
}

// Unmarshal decodes b into m.
func Unmarshal(b []byte, m Message) error {
	return m.UnmarshalWire(b)
}

// field is a single decoded field. Only one of varint or bytes is meaningful, depending on typ.
type field struct {
	num    protowire.Number
	typ    protowire.Type
	varint uint64
	bytes  []byte
}

func (f field) bool() bool {
	return f.varint != 0
}

func (f field) uint64() *uint64 {
	v := f.varint
	return &v
}

func (f field) int32() int32 {
	return int32(int64(f.varint))
}

func (f field) string() string {
	return string(f.bytes)
}

func parseFields(b []byte) ([]field, error) {
	var fields []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := field{num: num, typ: typ}
		switch typ {
		case protowire.VarintType:
			f.varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			var v []byte
			v, n = protowire.ConsumeBytes(b)
			if n >= 0 {
				f.bytes = append([]byte{}, v...)
			}
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return nil, errors.Wrapf(protowire.ParseError(n), "field %d", num)
		}
		b = b[n:]
		fields = append(fields, f)
	}
	return fields, nil
}

// decodeMessage reads fields from b and hands those with a known type to fn. Fields whose wire type does not match
// what fn expects are the caller's responsibility; unknown fields are skipped.
func decodeMessage(b []byte, fn func(f field) error) error {
	fields, err := parseFields(b)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if err := fn(f); err != nil {
			return errors.Wrapf(err, "field %d", f.num)
		}
	}
	return nil
}

// sub decodes a nested message field into a newly allocated message.
func sub[T any, P interface {
	*T
	Message
}](f field) (P, error) {
	if f.typ != protowire.BytesType {
		return nil, fmt.Errorf("expected length-delimited field, got wire type %d", f.typ)
	}
	m := P(new(T))
	if err := m.UnmarshalWire(f.bytes); err != nil {
		return nil, err
	}
	return m, nil
}

func appendMessage[T any, P interface {
	*T
	Message
}](b []byte, num protowire.Number, m P) []byte {
	if m == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.AppendWire(nil))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendOptionalVarint(b []byte, num protowire.Number, v *uint64) []byte {
	if v == nil {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, *v)
}

func appendInt32(b []byte, num protowire.Number, v int32) []byte {
	return appendVarint(b, num, uint64(int64(v)))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return appendVarint(b, num, 1)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendStringMap(b []byte, num protowire.Number, m map[string]string) []byte {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		var entry []byte
		entry = protowire.AppendTag(entry, 1, protowire.BytesType)
		entry = protowire.AppendString(entry, k)
		entry = protowire.AppendTag(entry, 2, protowire.BytesType)
		entry = protowire.AppendString(entry, m[k])
		b = protowire.AppendTag(b, num, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeMapEntry(f field) (key, value string, err error) {
	err = decodeMessage(f.bytes, func(ef field) error {
		switch ef.num {
		case 1:
			key = ef.string()
		case 2:
			value = ef.string()
		}
		return nil
	})
	return key, value, err
}
