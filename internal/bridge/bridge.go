// Package bridge converts between the tool protocol's structured values and
// the JSON value model used by the model loop.
package bridge

import (
	"github.com/young1lin/chatbridge/internal/jsonvalue"
	"github.com/young1lin/chatbridge/internal/value"
)

// ToJSON converts a structured value into a JSON value. Binary payloads have
// no JSON equivalent and degrade to "[Data: <mime>]" or "[Data: unknown]".
func ToJSON(v value.Value) jsonvalue.Value {
	switch v.Kind() {
	case value.KindString:
		s, _ := v.AsString()
		return jsonvalue.NewString(s)
	case value.KindInt:
		i, _ := v.AsInt()
		return jsonvalue.NewInt(i)
	case value.KindDouble:
		f, _ := v.AsDouble()
		return jsonvalue.NewDouble(f)
	case value.KindBool:
		b, _ := v.AsBool()
		return jsonvalue.NewBool(b)
	case value.KindArray:
		items, _ := v.AsArray()
		out := make([]jsonvalue.Value, len(items))
		for i, item := range items {
			out[i] = ToJSON(item)
		}
		return jsonvalue.NewArray(out...)
	case value.KindObject:
		fields, _ := v.AsObject()
		out := make(map[string]jsonvalue.Value, len(fields))
		for k, f := range fields {
			out[k] = ToJSON(f)
		}
		return jsonvalue.NewObject(out)
	case value.KindBinary:
		mime, _, _ := v.AsBinary()
		if mime == nil {
			return jsonvalue.NewString("[Data: unknown]")
		}
		return jsonvalue.NewString("[Data: " + *mime + "]")
	}
	return jsonvalue.NewNull()
}

// ToStructured converts a JSON-native Go value (string, bool, any numeric
// type, json.Number, []any, map[string]any, nil) into a structured value.
// It reports false when x is outside that set. Elements of arrays and
// objects that cannot be converted are dropped.
func ToStructured(x any) (value.Value, bool) {
	switch t := x.(type) {
	case nil:
		return value.Null(), true
	case string:
		return value.String(t), true
	case bool:
		return value.Bool(t), true
	case []any:
		items := make([]value.Value, 0, len(t))
		for _, e := range t {
			if item, ok := ToStructured(e); ok {
				items = append(items, item)
			}
		}
		return value.Array(items...), true
	case map[string]any:
		return value.Object(ToStructuredMap(t)), true
	case jsonvalue.Value:
		return fromJSON(t), true
	}
	if n, ok := jsonvalue.ClassifyNumber(x); ok {
		if n.Integral {
			return value.Int(n.Int), true
		}
		return value.Double(n.Float), true
	}
	return value.Value{}, false
}

// fromJSON keeps the Int/Double tag of v instead of reclassifying numbers,
// so ToStructured(ToJSON(v)) returns v for trees without binary payloads.
func fromJSON(v jsonvalue.Value) value.Value {
	switch v.Kind() {
	case jsonvalue.String:
		s, _ := v.AsString()
		return value.String(s)
	case jsonvalue.Int:
		i, _ := v.AsInt()
		return value.Int(i)
	case jsonvalue.Double:
		f, _ := v.AsDouble()
		return value.Double(f)
	case jsonvalue.Bool:
		b, _ := v.AsBool()
		return value.Bool(b)
	case jsonvalue.Array:
		items, _ := v.AsArray()
		out := make([]value.Value, len(items))
		for i, item := range items {
			out[i] = fromJSON(item)
		}
		return value.Array(out...)
	case jsonvalue.Object:
		fields, _ := v.AsObject()
		out := make(map[string]value.Value, len(fields))
		for k, f := range fields {
			out[k] = fromJSON(f)
		}
		return value.Object(out)
	}
	return value.Null()
}

// ToStructuredMap converts every entry of m, silently dropping entries that
// cannot be converted.
func ToStructuredMap(m map[string]any) map[string]value.Value {
	out := make(map[string]value.Value, len(m))
	for k, e := range m {
		if v, ok := ToStructured(e); ok {
			out[k] = v
		}
	}
	return out
}

// ToNative converts a structured value into its dynamic Go form, going
// through ToJSON so binary payloads degrade the same way.
func ToNative(v value.Value) any {
	return ToJSON(v).Native()
}
