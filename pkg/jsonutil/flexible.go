package jsonutil

import (
	"bytes"
	"encoding/json"
	"strings"
)

// NullPlaceholder is how the exporter prints a null cell when it stringifies rows.
const NullPlaceholder = "None"

// FlexibleStringValue converts a json.RawMessage to a string, handling cells
// exported as numbers, booleans or nested values instead of strings.
// Returns ok=false for null, empty input and the exporter's "None".
func FlexibleStringValue(raw json.RawMessage) (string, bool) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return "", false
	}

	// Try string first
	var strVal string
	if err := json.Unmarshal(trimmed, &strVal); err == nil {
		if strVal == NullPlaceholder {
			return "", false
		}
		return strVal, true
	}

	// Numbers keep their literal text so large identifiers are not rounded.
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var val any
	if err := dec.Decode(&val); err != nil {
		return string(trimmed), true
	}

	switch v := val.(type) {
	case json.Number:
		return v.String(), true
	case bool:
		if v {
			return "true", true
		}
		return "false", true
	}

	// Objects and arrays: compact form
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return string(trimmed), true
	}
	return strings.TrimSpace(buf.String()), true
}
