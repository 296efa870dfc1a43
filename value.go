/*
 *  value.go
 *  gax
 *
 *  Created by Haibao Tang on 03/05/20
 *  Copyright © 2020 Haibao Tang. All rights reserved.
 */

package gax

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Kind tells which variant a Value holds
type Kind int

// Value kinds, KindNull is the zero Value
const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindStruct
)

// Value is a typed annotation or tag value. Exactly one variant is meaningful,
// selected by Kind.
type Value struct {
	kind   Kind
	b      bool
	i      int64
	f      float64
	s      string
	list   []Value
	fields Annotation
}

// Annotation is the open key -> value store attached to alignments
type Annotation map[string]Value

// BoolValue makes a bool Value
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// IntValue makes an int Value
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }

// FloatValue makes a float Value
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }

// StringValue makes a string Value
func StringValue(s string) Value { return Value{kind: KindString, s: s} }

// ListValue makes a list Value
func ListValue(items ...Value) Value { return Value{kind: KindList, list: items} }

// StructValue makes a nested struct Value
func StructValue(fields Annotation) Value { return Value{kind: KindStruct, fields: fields} }

// Kind returns the variant held
func (v Value) Kind() Kind { return v.kind }

// Bool returns the bool variant
func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }

// Str returns the string variant
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }

// List returns the list variant
func (v Value) List() ([]Value, bool) { return v.list, v.kind == KindList }

// Struct returns the struct variant
func (v Value) Struct() (Annotation, bool) { return v.fields, v.kind == KindStruct }

// Int returns the value as an integer. Floats holding a whole number qualify,
// since protobuf Struct stores every number as a double.
func (v Value) Int() (int64, bool) {
	switch v.kind {
	case KindInt:
		return v.i, true
	case KindFloat:
		if v.f == math.Trunc(v.f) && math.Abs(v.f) < 1<<53 {
			return int64(v.f), true
		}
	}
	return 0, false
}

// Float returns the value as a float, ints are widened
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindFloat:
		return v.f, true
	case KindInt:
		return float64(v.i), true
	}
	return 0, false
}

// Text formats scalar values the way they appear in a GAF tag
func (v Value) Text() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return v.s
	}
	return fmt.Sprint(v.goValue())
}

// Equal compares two values structurally. Ints and floats compare by value
// since they come back from a protobuf Struct as doubles.
func (v Value) Equal(o Value) bool {
	if x, ok := v.Float(); ok {
		y, ok := o.Float()
		return ok && x == y
	}
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindString:
		return v.s == o.s
	case KindList:
		if len(v.list) != len(o.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(o.list[i]) {
				return false
			}
		}
		return true
	}
	return v.fields.Equal(o.fields)
}

func (v Value) goValue() interface{} {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindString:
		return v.s
	case KindList:
		items := make([]interface{}, len(v.list))
		for i, item := range v.list {
			items[i] = item.goValue()
		}
		return items
	case KindStruct:
		return v.fields
	}
	return nil
}

// Keys returns the annotation keys in sorted order
func (a Annotation) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal compares two annotations
func (a Annotation) Equal(o Annotation) bool {
	if len(a) != len(o) {
		return false
	}
	for k, v := range a {
		w, ok := o[k]
		if !ok || !v.Equal(w) {
			return false
		}
	}
	return true
}

// Clone copies the top level of the annotation
func (a Annotation) Clone() Annotation {
	if a == nil {
		return nil
	}
	c := make(Annotation, len(a))
	for k, v := range a {
		c[k] = v
	}
	return c
}

// toProto converts the value into a google.protobuf.Value
func (v Value) toProto() *structpb.Value {
	switch v.kind {
	case KindBool:
		return structpb.NewBoolValue(v.b)
	case KindInt:
		return structpb.NewNumberValue(float64(v.i))
	case KindFloat:
		return structpb.NewNumberValue(v.f)
	case KindString:
		return structpb.NewStringValue(v.s)
	case KindList:
		values := make([]*structpb.Value, len(v.list))
		for i, item := range v.list {
			values[i] = item.toProto()
		}
		return structpb.NewListValue(&structpb.ListValue{Values: values})
	case KindStruct:
		return structpb.NewStructValue(v.fields.toProto())
	}
	return structpb.NewNullValue()
}

func (a Annotation) toProto() *structpb.Struct {
	s := &structpb.Struct{Fields: make(map[string]*structpb.Value, len(a))}
	for k, v := range a {
		s.Fields[k] = v.toProto()
	}
	return s
}

func valueFromProto(p *structpb.Value) Value {
	switch k := p.GetKind().(type) {
	case *structpb.Value_BoolValue:
		return BoolValue(k.BoolValue)
	case *structpb.Value_NumberValue:
		return FloatValue(k.NumberValue)
	case *structpb.Value_StringValue:
		return StringValue(k.StringValue)
	case *structpb.Value_ListValue:
		items := make([]Value, len(k.ListValue.GetValues()))
		for i, item := range k.ListValue.GetValues() {
			items[i] = valueFromProto(item)
		}
		return ListValue(items...)
	case *structpb.Value_StructValue:
		return StructValue(annotationFromProto(k.StructValue))
	}
	return Value{}
}

func annotationFromProto(s *structpb.Struct) Annotation {
	a := make(Annotation, len(s.GetFields()))
	for k, v := range s.GetFields() {
		a[k] = valueFromProto(v)
	}
	return a
}

// marshalAnnotation encodes the annotation as a google.protobuf.Struct message
func marshalAnnotation(a Annotation) ([]byte, error) {
	return proto.MarshalOptions{Deterministic: true}.Marshal(a.toProto())
}

// unmarshalAnnotation decodes a google.protobuf.Struct message
func unmarshalAnnotation(b []byte) (Annotation, error) {
	s := new(structpb.Struct)
	if err := proto.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("%w: annotation: %v", ErrTruncatedRecord, err)
	}
	return annotationFromProto(s), nil
}
