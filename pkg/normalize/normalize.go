// Package normalize cleans model responses and parses structured output.
//
// Cleanup is a fixed sequence applied once, never recursively:
//
//  1. trim surrounding whitespace
//  2. drop one fenced block wrapper (opening ``` line, and a closing ``` line if present)
//  3. drop one layer of whole-string quote wrapping (" or '')
//
// Nested fences are not supported.
package normalize

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const fence = "```"

// ResponseParseError is returned when a cleaned response is not a JSON object.
// Raw always holds the untouched model output.
type ResponseParseError struct {
	Err error
	Raw string
}

func (e *ResponseParseError) Error() string {
	return fmt.Sprintf("parse structured response: %v\nraw response:\n%s", e.Err, e.Raw)
}

func (e *ResponseParseError) Unwrap() error {
	return e.Err
}

// Normalize applies the cleanup sequence to a raw response.
func Normalize(raw string) string {
	text := strings.TrimSpace(raw)
	text = stripFence(text)
	return stripQuotes(text)
}

func stripFence(text string) string {
	if !strings.HasPrefix(text, fence) {
		return text
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), fence) {
		lines = lines[:n-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripQuotes(text string) string {
	switch {
	case len(text) >= 4 && strings.HasPrefix(text, "''") && strings.HasSuffix(text, "''"):
		return text[2 : len(text)-2]
	case len(text) >= 2 && text[0] == '"' && text[len(text)-1] == '"':
		// A whole-string JSON literal is unwrapped by decoding it, which also
		// undoes the escaping a model adds when it quotes a JSON document.
		var decoded string
		if err := json.Unmarshal([]byte(text), &decoded); err == nil {
			return decoded
		}
		return text[1 : len(text)-1]
	default:
		return text
	}
}

// Field is one top-level key of a structured response.
type Field struct {
	Key   string
	Value json.RawMessage
}

// Structured is a JSON object that keeps its keys in document order.
type Structured struct {
	fields []Field
	index  map[string]int
}

// ParseStructured normalizes raw and decodes it as a JSON object.
func ParseStructured(raw string) (*Structured, error) {
	cleaned := Normalize(raw)

	var probe any
	if err := json.Unmarshal([]byte(cleaned), &probe); err != nil {
		return nil, &ResponseParseError{Err: err, Raw: raw}
	}
	if _, ok := probe.(map[string]any); !ok {
		return nil, &ResponseParseError{Err: fmt.Errorf("expected a JSON object, got %s", gjson.Parse(cleaned).Type), Raw: raw}
	}

	s := &Structured{index: make(map[string]int)}
	gjson.Parse(cleaned).ForEach(func(key, value gjson.Result) bool {
		s.set(key.String(), json.RawMessage(value.Raw))
		return true
	})
	return s, nil
}

// FromMap builds a Structured value from a map. Keys are sorted.
func FromMap(m map[string]any) (*Structured, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return ParseStructured(string(data))
}

func (s *Structured) set(key string, value json.RawMessage) {
	if i, ok := s.index[key]; ok {
		s.fields[i].Value = value
		return
	}
	s.index[key] = len(s.fields)
	s.fields = append(s.fields, Field{Key: key, Value: value})
}

// Keys returns the top-level keys in document order.
func (s *Structured) Keys() []string {
	keys := make([]string, len(s.fields))
	for i, f := range s.fields {
		keys[i] = f.Key
	}
	return keys
}

// Fields returns a copy of the top-level fields in document order.
func (s *Structured) Fields() []Field {
	out := make([]Field, len(s.fields))
	copy(out, s.fields)
	return out
}

// Has reports whether key is present.
func (s *Structured) Has(key string) bool {
	_, ok := s.index[key]
	return ok
}

// Raw returns the JSON text of key.
func (s *Structured) Raw(key string) (json.RawMessage, bool) {
	i, ok := s.index[key]
	if !ok {
		return nil, false
	}
	return s.fields[i].Value, true
}

// Get returns the value of key as a gjson result; it does not exist when
// key is absent.
func (s *Structured) Get(key string) gjson.Result {
	raw, ok := s.Raw(key)
	if !ok {
		return gjson.Result{}
	}
	return gjson.ParseBytes(raw)
}

// Len returns the number of top-level keys.
func (s *Structured) Len() int {
	return len(s.fields)
}

// Map decodes the object into a plain map.
func (s *Structured) Map() (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		var v any
		if err := json.Unmarshal(f.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", f.Key, err)
		}
		out[f.Key] = v
	}
	return out, nil
}
