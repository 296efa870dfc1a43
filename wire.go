/*
 *  wire.go
 *  gax
 *
 *  Created by Haibao Tang on 03/10/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers follow vg.proto so that the records interoperate with vg.

// fieldFunc decodes the value of one field and returns the bytes consumed.
// Returning 0 with no error marks the field as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

func truncated(n int) error {
	return fmt.Errorf("%w: %v", ErrTruncatedRecord, protowire.ParseError(n))
}

// walkMessage visits every field of a message. Unknown fields are appended
// verbatim to unknown when it is not nil.
func walkMessage(b []byte, unknown *[]byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return truncated(n)
		}
		tag := b[:n]
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return fmt.Errorf("field %d: %w", num, err)
		}
		if m == 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return truncated(m)
			}
			if unknown != nil {
				*unknown = append(*unknown, tag...)
				*unknown = append(*unknown, b[:m]...)
			}
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(typ protowire.Type, b []byte) (uint64, int, error) {
	if typ != protowire.VarintType {
		return 0, 0, fmt.Errorf("%w: wire type %d, want varint", ErrMalformedField, typ)
	}
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, 0, truncated(n)
	}
	return v, n, nil
}

func consumeBytes(typ protowire.Type, b []byte) ([]byte, int, error) {
	if typ != protowire.BytesType {
		return nil, 0, fmt.Errorf("%w: wire type %d, want bytes", ErrMalformedField, typ)
	}
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return nil, 0, truncated(n)
	}
	return v, n, nil
}

func consumeDouble(typ protowire.Type, b []byte) (float64, int, error) {
	if typ != protowire.Fixed64Type {
		return 0, 0, fmt.Errorf("%w: wire type %d, want fixed64", ErrMalformedField, typ)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, 0, truncated(n)
	}
	return math.Float64frombits(v), n, nil
}

// consumeRepeatedVarint reads either a packed list or a single element
func consumeRepeatedVarint(typ protowire.Type, b []byte, add func(uint64)) (int, error) {
	if typ == protowire.VarintType {
		v, n, err := consumeVarint(typ, b)
		if err == nil {
			add(v)
		}
		return n, err
	}
	packed, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	for len(packed) > 0 {
		v, m := protowire.ConsumeVarint(packed)
		if m < 0 {
			return 0, truncated(m)
		}
		add(v)
		packed = packed[m:]
	}
	return n, nil
}

func appendVarintField(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func appendBoolField(b []byte, num protowire.Number, v bool) []byte {
	return appendVarintField(b, num, protowire.EncodeBool(v))
}

func appendStringField(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytesField(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendMessageField(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendDoubleField(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendPackedField(b []byte, num protowire.Number, values []uint64) []byte {
	if len(values) == 0 {
		return b
	}
	var packed []byte
	for _, v := range values {
		packed = protowire.AppendVarint(packed, v)
	}
	return appendMessageField(b, num, packed)
}

// int32Wire checks that v fits an int32 field and sign-extends it the way
// protobuf encodes negative int32 values
func int32Wire(v int64, what string) (uint64, error) {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %s %d does not fit int32", ErrEncodingOverflow, what, v)
	}
	return uint64(v), nil
}

func uint32Wire(v int, what string) (uint64, error) {
	if v < 0 || int64(v) > math.MaxUint32 {
		return 0, fmt.Errorf("%w: %s %d does not fit uint32", ErrEncodingOverflow, what, v)
	}
	return uint64(v), nil
}

func decodeInt32(v uint64) int32 {
	return int32(int64(v))
}

// Position: node_id = 1, offset = 2, is_reverse = 3, name = 4
func marshalPosition(p *Position) []byte {
	var b []byte
	b = appendVarintField(b, 1, uint64(p.NodeID))
	b = appendVarintField(b, 2, uint64(p.Offset))
	b = appendBoolField(b, 3, p.IsReverse)
	b = appendStringField(b, 4, p.Name)
	return b
}

func unmarshalPosition(b []byte) (Position, error) {
	var p Position
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2, 3:
			v, n, err := consumeVarint(typ, b)
			switch num {
			case 1:
				p.NodeID = int64(v)
			case 2:
				p.Offset = int64(v)
			case 3:
				p.IsReverse = protowire.DecodeBool(v)
			}
			return n, err
		case 4:
			v, n, err := consumeBytes(typ, b)
			p.Name = string(v)
			return n, err
		}
		return 0, nil
	})
	return p, err
}

// Edit: from_length = 1, to_length = 2, sequence = 3
func marshalEdit(e *Edit) ([]byte, error) {
	from, err := int32Wire(int64(e.FromLength), "from_length")
	if err != nil {
		return nil, err
	}
	to, err := int32Wire(int64(e.ToLength), "to_length")
	if err != nil {
		return nil, err
	}
	var b []byte
	b = appendVarintField(b, 1, from)
	b = appendVarintField(b, 2, to)
	b = appendStringField(b, 3, e.Sequence)
	return b, nil
}

func unmarshalEdit(b []byte) (Edit, error) {
	var e Edit
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1, 2:
			v, n, err := consumeVarint(typ, b)
			if num == 1 {
				e.FromLength = int(decodeInt32(v))
			} else {
				e.ToLength = int(decodeInt32(v))
			}
			return n, err
		case 3:
			v, n, err := consumeBytes(typ, b)
			e.Sequence = string(v)
			return n, err
		}
		return 0, nil
	})
	if err != nil {
		return e, err
	}
	if _, err := Classify(e); err != nil {
		return e, err
	}
	return e, nil
}

// Mapping: position = 1, edit = 2, rank = 5
func marshalMapping(m *Mapping) ([]byte, error) {
	var b []byte
	b = appendMessageField(b, 1, marshalPosition(&m.Position))
	for i := range m.Edits {
		e, err := marshalEdit(&m.Edits[i])
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, 2, e)
	}
	b = appendVarintField(b, 5, uint64(m.Rank))
	return b, nil
}

func unmarshalMapping(b []byte) (Mapping, error) {
	var m Mapping
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			m.Position, err = unmarshalPosition(v)
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			e, err := unmarshalEdit(v)
			m.Edits = append(m.Edits, e)
			return n, err
		case 5:
			v, n, err := consumeVarint(typ, b)
			m.Rank = int64(v)
			return n, err
		}
		return 0, nil
	})
	return m, err
}

// Path: name = 1, mapping = 2, is_circular = 3, length = 4
func marshalPath(p *Path) ([]byte, error) {
	var b []byte
	b = appendStringField(b, 1, p.Name)
	for i := range p.Mappings {
		m, err := marshalMapping(&p.Mappings[i])
		if err != nil {
			return nil, err
		}
		b = appendMessageField(b, 2, m)
	}
	b = appendBoolField(b, 3, p.IsCircular)
	b = appendVarintField(b, 4, uint64(p.Length))
	return b, nil
}

func unmarshalPath(b []byte) (Path, error) {
	var p Path
	err := walkMessage(b, nil, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case 1:
			v, n, err := consumeBytes(typ, b)
			p.Name = string(v)
			return n, err
		case 2:
			v, n, err := consumeBytes(typ, b)
			if err != nil {
				return 0, err
			}
			m, err := unmarshalMapping(v)
			p.Mappings = append(p.Mappings, m)
			return n, err
		case 3, 4:
			v, n, err := consumeVarint(typ, b)
			if num == 3 {
				p.IsCircular = protowire.DecodeBool(v)
			} else {
				p.Length = int64(v)
			}
			return n, err
		}
		return 0, nil
	})
	return p, err
}
