package mcp

import (
	"bytes"
	"encoding/json"
	"strings"
)

const maxArgLength = 4096

// decodeArgs strictly decodes tool arguments into out. Missing arguments
// decode as an empty object.
func decodeArgs(raw json.RawMessage, out any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		raw = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return ToolError{Code: ErrorInvalidArgument, Message: "invalid arguments", Details: map[string]any{"error": err.Error()}}
	}
	return nil
}

// requireString trims value and rejects it when empty or oversized.
func requireString(name, value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ToolError{Code: ErrorInvalidArgument, Message: name + " is required"}
	}
	if len(value) > maxArgLength {
		return "", ToolError{Code: ErrorInvalidArgument, Message: name + " is too long"}
	}
	return value, nil
}
