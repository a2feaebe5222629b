package marshal

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/ohler55/ojg/oj"
)

// ParseJSON decodes data, reporting failures as a *SyntaxError naming file.
func ParseJSON(file string, data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, &SyntaxError{File: file, Message: "unexpected end of input"}
	}
	v, err := oj.Parse(data)
	if err != nil {
		var pe *oj.ParseError
		if errors.As(err, &pe) {
			return nil, &SyntaxError{File: file, Line: pe.Line, Column: pe.Column, Message: pe.Message}
		}
		return nil, &SyntaxError{File: file, Message: err.Error()}
	}
	return v, nil
}

// ParseObject decodes data and requires a JSON object at the top level.
func ParseObject(file string, data []byte) (map[string]any, error) {
	v, err := ParseJSON(file, data)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, &SyntaxError{File: file, Message: "expected a JSON object"}
	}
	return obj, nil
}

// EncodeJSON renders v as two-space indented JSON with sorted object keys
// and a trailing newline. HTML characters are not escaped so template
// content stays readable.
func EncodeJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// EncodeCompactJSON renders v on a single line without HTML escaping.
func EncodeCompactJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
