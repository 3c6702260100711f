// Package document merges header data with the generated résumé body and
// renders the result.
package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/zen-systems/tailor/pkg/normalize"
)

// HeaderKey is the top-level key the header data is stored under.
const HeaderKey = "header"

// KeyCollisionError is returned when body keys clash with the header.
type KeyCollisionError struct {
	Keys []string
}

func (e *KeyCollisionError) Error() string {
	return fmt.Sprintf("résumé body keys collide with header: %s", strings.Join(e.Keys, ", "))
}

// IOError is returned when a rendered document cannot be written.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// Document is the final résumé: header data plus the generated body.
type Document struct {
	Header json.RawMessage
	Body   *normalize.Structured
}

// Merge combines header and body. A body key named "header", or one that
// also appears at the top level of the header data, is a collision.
func Merge(header json.RawMessage, body *normalize.Structured) (*Document, error) {
	parsed := gjson.ParseBytes(header)
	if !gjson.ValidBytes(header) || !parsed.IsObject() {
		return nil, fmt.Errorf("header data must be a JSON object")
	}
	if body == nil {
		return nil, fmt.Errorf("résumé body is required")
	}

	headerKeys := make(map[string]struct{})
	parsed.ForEach(func(key, _ gjson.Result) bool {
		headerKeys[key.String()] = struct{}{}
		return true
	})

	var collisions []string
	for _, key := range body.Keys() {
		if key == HeaderKey {
			collisions = append(collisions, key)
			continue
		}
		if _, ok := headerKeys[key]; ok {
			collisions = append(collisions, key)
		}
	}
	if len(collisions) > 0 {
		sort.Strings(collisions)
		return nil, &KeyCollisionError{Keys: collisions}
	}

	return &Document{Header: header, Body: body}, nil
}

// JSON serializes the document with the header first and body keys in the
// order the model produced them.
func (d *Document) JSON() ([]byte, error) {
	out := []byte("{}")
	out, err := sjson.SetRawBytes(out, HeaderKey, d.Header)
	if err != nil {
		return nil, fmt.Errorf("set header: %w", err)
	}
	for _, field := range d.Body.Fields() {
		out, err = sjson.SetRawBytes(out, escapePath(field.Key), field.Value)
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", field.Key, err)
		}
	}
	return out, nil
}

// Indented returns JSON() formatted with two-space indentation.
func (d *Document) Indented() ([]byte, error) {
	data, err := d.JSON()
	if err != nil {
		return nil, err
	}
	return pretty.Pretty(data), nil
}

// Map decodes the document into a plain map.
func (d *Document) Map() (map[string]any, error) {
	data, err := d.JSON()
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// escapePath escapes the characters sjson treats as path syntax.
func escapePath(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch r {
		case '.', '*', '?', '\\', '|', '#', '@', ':', '!', '=', '<', '>', '%':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// FileName builds the output file name from company, position and optional job id.
func FileName(company, position, jobID, ext string) string {
	parts := []string{sanitize(company), sanitize(position)}
	if id := sanitize(jobID); id != "" {
		parts = append(parts, id)
	}
	return strings.Join(parts, "_") + ext
}

func sanitize(name string) string {
	return strings.ReplaceAll(strings.Join(strings.Fields(name), "_"), "/", "_")
}
