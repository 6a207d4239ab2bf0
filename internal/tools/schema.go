package tools

import (
	"github.com/young1lin/chatbridge/internal/bridge"
	"github.com/young1lin/chatbridge/internal/jsonvalue"
	"github.com/young1lin/chatbridge/internal/value"
)

// EmptySchema returns the permissive-empty object schema used whenever a
// tool advertises no usable input schema.
func EmptySchema() map[string]jsonvalue.Value {
	return map[string]jsonvalue.Value{
		"type":                 jsonvalue.NewString("object"),
		"properties":           jsonvalue.NewObject(nil),
		"additionalProperties": jsonvalue.NewBool(false),
	}
}

// AdaptSchema converts a tool's input schema into function-calling
// parameters. Function calling requires an object, so a missing or
// non-object schema yields EmptySchema.
func AdaptSchema(schema *value.Value) map[string]jsonvalue.Value {
	if schema == nil {
		return EmptySchema()
	}
	if obj, ok := bridge.ToJSON(*schema).AsObject(); ok {
		return obj
	}
	return EmptySchema()
}

// NativeSchema is AdaptSchema in dynamic form, ready for JSON encoding.
func NativeSchema(schema *value.Value) map[string]any {
	adapted := AdaptSchema(schema)
	out := make(map[string]any, len(adapted))
	for k, v := range adapted {
		out[k] = v.Native()
	}
	return out
}
