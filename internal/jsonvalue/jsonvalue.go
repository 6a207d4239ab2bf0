// Package jsonvalue implements a JSON-shaped value model used for
// function-calling schemas and for values exchanged with the model loop.
package jsonvalue

import (
	"encoding/json"
	"math"
	"reflect"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	Null Kind = iota
	String
	Int
	Double
	Bool
	Array
	Object
)

// Value is an immutable JSON value. The zero Value is null.
type Value struct {
	kind   Kind
	str    string
	i      int64
	f      float64
	b      bool
	items  []Value
	fields map[string]Value
}

func NewNull() Value { return Value{} }
func NewString(s string) Value { return Value{kind: String, str: s} }
func NewInt(i int64) Value { return Value{kind: Int, i: i} }
func NewDouble(f float64) Value { return Value{kind: Double, f: f} }
func NewBool(b bool) Value { return Value{kind: Bool, b: b} }

// NewArray copies items into an array value.
func NewArray(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: Array, items: cp}
}

// NewObject copies fields into an object value.
func NewObject(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: Object, fields: cp}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsString() (string, bool) { return v.str, v.kind == String }
func (v Value) AsInt() (int64, bool) { return v.i, v.kind == Int }
func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == Double }
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == Bool }

// AsArray returns a copy of the elements.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != Array {
		return nil, false
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp, true
}

// AsObject returns a copy of the fields.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != Object {
		return nil, false
	}
	cp := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		cp[k] = f
	}
	return cp, true
}

// Native returns the dynamic Go form of v: string, bool, int64, float64,
// []any, map[string]any or nil.
func (v Value) Native() any {
	switch v.kind {
	case String:
		return v.str
	case Int:
		return v.i
	case Double:
		return v.f
	case Bool:
		return v.b
	case Array:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Native()
		}
		return out
	case Object:
		out := make(map[string]any, len(v.fields))
		for k, f := range v.fields {
			out[k] = f.Native()
		}
		return out
	}
	return nil
}

// MarshalJSON encodes v through its native form.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Native())
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && reflect.DeepEqual(v.Native(), o.Native())
}

// FromNative converts a dynamic Go value. It reports false for any value
// outside the JSON-native set, and drops unconvertible elements of slices
// and maps.
func FromNative(x any) (Value, bool) {
	switch t := x.(type) {
	case nil:
		return NewNull(), true
	case string:
		return NewString(t), true
	case bool:
		return NewBool(t), true
	case []any:
		items := make([]Value, 0, len(t))
		for _, e := range t {
			if item, ok := FromNative(e); ok {
				items = append(items, item)
			}
		}
		return Value{kind: Array, items: items}, true
	case map[string]any:
		fields := make(map[string]Value, len(t))
		for k, e := range t {
			if f, ok := FromNative(e); ok {
				fields[k] = f
			}
		}
		return Value{kind: Object, fields: fields}, true
	}
	if n, ok := ClassifyNumber(x); ok {
		if n.Integral {
			return NewInt(n.Int), true
		}
		return NewDouble(n.Float), true
	}
	return Value{}, false
}

// Number is a classified numeric value.
type Number struct {
	Integral bool
	Int      int64
	Float    float64
}

// ClassifyNumber disambiguates numeric host values. Booleans are never
// numbers. A value is integral when it has no fractional part and is
// exactly representable as int64; otherwise it is a double.
func ClassifyNumber(x any) (Number, bool) {
	switch t := x.(type) {
	case int:
		return Number{Integral: true, Int: int64(t)}, true
	case int8:
		return Number{Integral: true, Int: int64(t)}, true
	case int16:
		return Number{Integral: true, Int: int64(t)}, true
	case int32:
		return Number{Integral: true, Int: int64(t)}, true
	case int64:
		return Number{Integral: true, Int: t}, true
	case uint:
		return fromUint(uint64(t)), true
	case uint8:
		return Number{Integral: true, Int: int64(t)}, true
	case uint16:
		return Number{Integral: true, Int: int64(t)}, true
	case uint32:
		return Number{Integral: true, Int: int64(t)}, true
	case uint64:
		return fromUint(t), true
	case float32:
		return fromFloat(float64(t)), true
	case float64:
		return fromFloat(t), true
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return Number{Integral: true, Int: i}, true
		}
		f, err := t.Float64()
		if err != nil {
			return Number{}, false
		}
		return fromFloat(f), true
	}
	return Number{}, false
}

func fromUint(u uint64) Number {
	if u <= math.MaxInt64 {
		return Number{Integral: true, Int: int64(u)}
	}
	return Number{Float: float64(u)}
}

// 2^63 as float64; int64 conversions are exact strictly below it.
const twoTo63 = float64(1 << 63)

func fromFloat(f float64) Number {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return Number{Float: f}
	}
	if f >= -twoTo63 && f < twoTo63 {
		return Number{Integral: true, Int: int64(f)}
	}
	return Number{Float: f}
}
