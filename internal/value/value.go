// Package value implements the structured value type carried by the tool
// protocol: a tagged union of strings, numbers, booleans, arrays, objects,
// null and binary payloads.
package value

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindArray
	KindObject
	KindBinary
)

// String returns the variant name.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindBinary:
		return "binary"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Value is an immutable structured value. The zero Value is Null.
//
// Constructors and accessors copy slices and maps so a Value can be shared
// between goroutines without synchronization.
type Value struct {
	kind   Kind
	str    string
	i      int64
	f      float64
	b      bool
	items  []Value
	fields map[string]Value
	mime   *string
	data   []byte
}

// Null returns the null value.
func Null() Value { return Value{} }

// String returns a string value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: KindInt, i: i} }

// Double returns a floating point value.
func Double(f float64) Value { return Value{kind: KindDouble, f: f} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Array returns an array value holding a copy of items.
func Array(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindArray, items: cp}
}

// Object returns an object value holding a copy of fields.
func Object(fields map[string]Value) Value {
	cp := make(map[string]Value, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return Value{kind: KindObject, fields: cp}
}

// Binary returns a binary value. mimeType may be nil when unknown.
func Binary(mimeType *string, data []byte) Value {
	v := Value{kind: KindBinary, data: bytes.Clone(data)}
	if mimeType != nil {
		m := *mimeType
		v.mime = &m
	}
	return v
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is null.
func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsInt() (int64, bool) { return v.i, v.kind == KindInt }

func (v Value) AsDouble() (float64, bool) { return v.f, v.kind == KindDouble }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// AsArray returns a copy of the array elements.
func (v Value) AsArray() ([]Value, bool) {
	if v.kind != KindArray {
		return nil, false
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp, true
}

// AsObject returns a copy of the object fields.
func (v Value) AsObject() (map[string]Value, bool) {
	if v.kind != KindObject {
		return nil, false
	}
	cp := make(map[string]Value, len(v.fields))
	for k, f := range v.fields {
		cp[k] = f
	}
	return cp, true
}

// Field returns a single object field without copying the whole object.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.fields[name]
	return f, ok
}

// AsBinary returns the mime type (nil when unknown) and a copy of the payload.
func (v Value) AsBinary() (*string, []byte, bool) {
	if v.kind != KindBinary {
		return nil, nil, false
	}
	var mime *string
	if v.mime != nil {
		m := *v.mime
		mime = &m
	}
	return mime, bytes.Clone(v.data), true
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindString:
		return v.str == o.str
	case KindInt:
		return v.i == o.i
	case KindDouble:
		return v.f == o.f
	case KindBool:
		return v.b == o.b
	case KindArray:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, f := range v.fields {
			of, ok := o.fields[k]
			if !ok || !f.Equal(of) {
				return false
			}
		}
		return true
	case KindBinary:
		if (v.mime == nil) != (o.mime == nil) {
			return false
		}
		if v.mime != nil && *v.mime != *o.mime {
			return false
		}
		return bytes.Equal(v.data, o.data)
	}
	return false
}

// GoString renders v for debugging, with object keys sorted.
func (v Value) GoString() string {
	var sb strings.Builder
	v.writeDebug(&sb)
	return sb.String()
}

// formatDouble keeps doubles distinguishable from ints: 2 renders as "2.0".
func formatDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if strings.ContainsAny(s, ".eIN") {
		return s
	}
	return s + ".0"
}

func (v Value) writeDebug(sb *strings.Builder) {
	switch v.kind {
	case KindNull:
		sb.WriteString("null")
	case KindString:
		fmt.Fprintf(sb, "%q", v.str)
	case KindInt:
		fmt.Fprintf(sb, "%d", v.i)
	case KindDouble:
		sb.WriteString(formatDouble(v.f))
	case KindBool:
		fmt.Fprintf(sb, "%t", v.b)
	case KindArray:
		sb.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				sb.WriteString(", ")
			}
			item.writeDebug(sb)
		}
		sb.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(sb, "%q: ", k)
			v.fields[k].writeDebug(sb)
		}
		sb.WriteByte('}')
	case KindBinary:
		mime := "unknown"
		if v.mime != nil {
			mime = *v.mime
		}
		fmt.Fprintf(sb, "data(%s, %d bytes)", mime, len(v.data))
	}
}
