package mcp

import (
	"encoding/json"
	"strings"
)

type param struct {
	name     string
	typ      string
	desc     string
	required bool
	enum     []string
	def      any
}

// objectSchema renders a flat JSON Schema object for a tool's arguments.
func objectSchema(params ...param) json.RawMessage {
	props := make(map[string]any, len(params))
	required := []string{}
	for _, p := range params {
		prop := map[string]any{"type": p.typ}
		if p.desc != "" {
			prop["description"] = p.desc
		}
		if len(p.enum) > 0 {
			prop["enum"] = p.enum
		}
		if p.def != nil {
			prop["default"] = p.def
		}
		props[p.name] = prop
		if p.required {
			required = append(required, p.name)
		}
	}
	schema := map[string]any{
		"type":                 "object",
		"properties":           props,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		panic(err)
	}
	return raw
}

func limitParam(def int) param {
	return param{name: "limit", typ: "integer", desc: "Maximum number of results.", def: def}
}

// decodeArgs unmarshals tool arguments; empty input decodes to the zero value.
func decodeArgs(input json.RawMessage, v any) error {
	trimmed := strings.TrimSpace(string(input))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	if err := json.Unmarshal(input, v); err != nil {
		return invalidInput("invalid arguments: %v", err)
	}
	return nil
}

// resolveLimit applies def when limit was omitted and rejects non-positive
// values.
func resolveLimit(limit *int, def int) (int, error) {
	if limit == nil {
		return def, nil
	}
	if *limit <= 0 {
		return 0, invalidInput("parameter 'limit' must be greater than zero")
	}
	return *limit, nil
}

func requireString(name, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", invalidInput("parameter '%s' must be a non-empty string", name)
	}
	return v, nil
}

// isNull reports whether raw is absent or JSON null.
func isNull(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s == "" || s == "null"
}
