// Package inputs loads the job description, résumé and header data for a run.
package inputs

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"gopkg.in/yaml.v3"
)

// MissingInputError is returned when a required file does not exist.
type MissingInputError struct {
	Path string
	What string
}

func (e *MissingInputError) Error() string {
	if e.What != "" {
		return fmt.Sprintf("missing %s: %s", e.What, e.Path)
	}
	return fmt.Sprintf("missing file: %s", e.Path)
}

// LoadText reads a UTF-8 text file.
func LoadText(path, what string) (string, error) {
	data, err := readFile(path, what)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// LoadResume reads the base résumé as plain text. PDF and DOCX files are
// converted; anything else is read as text.
func LoadResume(path string) (string, error) {
	data, err := readFile(path, "resume")
	if err != nil {
		return "", err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf":
		return extractPDFText(data)
	case ".docx":
		return extractDocxText(data)
	default:
		return string(data), nil
	}
}

// LoadHeader reads header data and returns it as a JSON object.
// JSON files are kept verbatim; YAML files are converted.
func LoadHeader(path string) (json.RawMessage, error) {
	data, err := readFile(path, "header data")
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var value map[string]any
		if err := yaml.Unmarshal(data, &value); err != nil {
			return nil, fmt.Errorf("parse header %s: %w", path, err)
		}
		if value == nil {
			return nil, fmt.Errorf("header %s must be a key-value document", path)
		}
		out, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("convert header %s: %w", path, err)
		}
		return out, nil
	default:
		trimmed := bytes.TrimSpace(data)
		var probe any
		if err := json.Unmarshal(trimmed, &probe); err != nil {
			return nil, fmt.Errorf("parse header %s: %w", path, err)
		}
		if _, ok := probe.(map[string]any); !ok {
			return nil, fmt.Errorf("header %s must be a JSON object", path)
		}
		return json.RawMessage(trimmed), nil
	}
}

func readFile(path, what string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingInputError{Path: path, What: what}
		}
		return nil, fmt.Errorf("read %s %s: %w", what, path, err)
	}
	return data, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	var text strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		content, err := page.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("failed to read pdf page %d: %w", i, err)
		}
		text.WriteString(content)
	}
	return text.String(), nil
}

func extractDocxText(data []byte) (string, error) {
	doc, err := docx.ReadDocxFromMemory(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse docx: %w", err)
	}
	defer doc.Close()

	return stripXML(doc.Editable().GetContent()), nil
}

// stripXML turns WordprocessingML into plain text, one paragraph per line.
func stripXML(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = strings.ReplaceAll(content, "<w:br/>", "\n")
	content = strings.ReplaceAll(content, "<w:tab/>", "\t")

	var out strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			out.WriteRune(r)
		}
	}
	return strings.TrimSpace(html.UnescapeString(out.String()))
}
