// Package encoding defines the canonical binary form of terms and
// statements. It is the protobuf wire format with fixed field numbers:
// fields are written in ascending order, repeated fields keep their order
// and every present scalar is written, even when zero. Signatures are taken
// over this form, so it must never change for existing field numbers.
package encoding

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field is one decoded wire field. Varint fields set Varint, length
// delimited fields set Bytes.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// ReadFields splits a message into its fields, in wire order.
func ReadFields(b []byte) ([]Field, error) {
	var out []Field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			return nil, fmt.Errorf("field %d: unsupported wire type %d", num, typ)
		}
		if n < 0 {
			return nil, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func AppendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendMessage writes the message produced by fn as field num.
func AppendMessage(b []byte, num protowire.Number, fn func([]byte) []byte) []byte {
	return AppendBytes(b, num, fn(nil))
}

func expect(f Field, typ protowire.Type) error {
	if f.Type != typ {
		return fmt.Errorf("field %d: expected wire type %d, got %d", f.Num, typ, f.Type)
	}
	return nil
}
