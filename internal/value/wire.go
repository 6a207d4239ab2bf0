package value

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// ErrInvalidDocument is returned by Parse for malformed JSON input.
var ErrInvalidDocument = errors.New("value: invalid JSON document")

// MarshalJSON encodes v in its wire form. Binary values become data URLs.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindString:
		return writeJSON(buf, v.str)
	case KindInt:
		buf.WriteString(strconv.FormatInt(v.i, 10))
	case KindDouble:
		return writeJSON(buf, v.f)
	case KindBool:
		buf.WriteString(strconv.FormatBool(v.b))
	case KindArray:
		buf.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		keys := make([]string, 0, len(v.fields))
		for k := range v.fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, k); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := v.fields[k].encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case KindBinary:
		return writeJSON(buf, dataURL(v.mime, v.data))
	default:
		return fmt.Errorf("value: unknown kind %d", int(v.kind))
	}
	return nil
}

func writeJSON(buf *bytes.Buffer, x any) error {
	b, err := json.Marshal(x)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}

func dataURL(mime *string, data []byte) string {
	m := ""
	if mime != nil {
		m = *mime
	}
	return "data:" + m + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (v *Value) UnmarshalJSON(b []byte) error {
	parsed, err := Parse(b)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Parse decodes a wire document. Number literals without a fraction or
// exponent that fit in int64 decode as Int, everything else as Double.
// Strings holding base64 data URLs decode as Binary.
func Parse(doc []byte) (Value, error) {
	if !gjson.ValidBytes(doc) {
		return Value{}, ErrInvalidDocument
	}
	return fromResult(gjson.ParseBytes(doc), true), nil
}

// ParseText decodes a wire document like Parse but keeps data URLs as plain
// strings. Schemas and other documents that only describe data use it.
func ParseText(doc []byte) (Value, error) {
	if !gjson.ValidBytes(doc) {
		return Value{}, ErrInvalidDocument
	}
	return fromResult(gjson.ParseBytes(doc), false), nil
}

func fromResult(r gjson.Result, dataURLs bool) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		if !strings.ContainsAny(r.Raw, ".eE") {
			if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
				return Int(i)
			}
		}
		return Double(r.Num)
	case gjson.String:
		if !dataURLs {
			return String(r.Str)
		}
		if mime, data, ok := parseDataURL(r.Str); ok {
			return Binary(mime, data)
		}
		return String(r.Str)
	}
	if r.IsArray() {
		items := make([]Value, 0)
		r.ForEach(func(_, item gjson.Result) bool {
			items = append(items, fromResult(item, dataURLs))
			return true
		})
		return Value{kind: KindArray, items: items}
	}
	fields := make(map[string]Value)
	r.ForEach(func(key, item gjson.Result) bool {
		fields[key.String()] = fromResult(item, dataURLs)
		return true
	})
	return Value{kind: KindObject, fields: fields}
}

// parseDataURL accepts "data:[<mime>];base64,<payload>".
func parseDataURL(s string) (*string, []byte, bool) {
	if !strings.HasPrefix(s, "data:") {
		return nil, nil, false
	}
	header, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, nil, false
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, nil, false
	}
	var mime *string
	if m := strings.TrimSuffix(header, ";base64"); m != "" {
		mime = &m
	}
	return mime, data, true
}
