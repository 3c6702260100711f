package document

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/nguyenthenguyen/docx"
	"github.com/tidwall/gjson"
)

// Renderer writes a document to path.
type Renderer interface {
	Render(doc *Document, path string) error
}

// JSONRenderer writes the document as indented JSON.
type JSONRenderer struct{}

// Render writes doc to path.
func (JSONRenderer) Render(doc *Document, path string) error {
	data, err := doc.Indented()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

const (
	headerPlaceholder = "{{HEADER}}"
	bodyPlaceholder   = "{{BODY}}"
)

// DocxRenderer writes the document as a Word file.
type DocxRenderer struct{}

// Render writes doc to path as .docx.
func (DocxRenderer) Render(doc *Document, path string) error {
	skeleton, err := docxSkeleton()
	if err != nil {
		return fmt.Errorf("build docx skeleton: %w", err)
	}

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(skeleton), int64(len(skeleton)))
	if err != nil {
		return fmt.Errorf("open docx skeleton: %w", err)
	}
	defer r.Close()

	d := r.Editable()
	if err := d.Replace(headerPlaceholder, HeaderText(doc.Header), -1); err != nil {
		return fmt.Errorf("fill docx header: %w", err)
	}
	if err := d.Replace(bodyPlaceholder, BodyText(doc), -1); err != nil {
		return fmt.Errorf("fill docx body: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return &IOError{Path: path, Err: err}
	}
	if err := d.WriteToFile(path); err != nil {
		return &IOError{Path: path, Err: err}
	}
	return nil
}

// HeaderText flattens header data: the name first, then the remaining values
// joined on one line.
func HeaderText(header json.RawMessage) string {
	parsed := gjson.ParseBytes(header)
	var lines []string
	if name := parsed.Get("name"); name.Exists() {
		lines = append(lines, name.String())
	}
	var details []string
	parsed.ForEach(func(key, value gjson.Result) bool {
		if key.String() == "name" {
			return true
		}
		details = append(details, flattenInline(value)...)
		return true
	})
	if len(details) > 0 {
		lines = append(lines, strings.Join(details, " | "))
	}
	return strings.Join(lines, "\n")
}

// BodyText renders every body section under an upper-case heading.
func BodyText(doc *Document) string {
	var b strings.Builder
	for i, field := range doc.Body.Fields() {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(sectionTitle(field.Key))
		b.WriteString("\n")
		writeValue(&b, gjson.ParseBytes(field.Value), "")
	}
	return strings.TrimRight(b.String(), "\n")
}

func sectionTitle(key string) string {
	return strings.ToUpper(strings.ReplaceAll(key, "_", " "))
}

func writeValue(b *strings.Builder, value gjson.Result, indent string) {
	switch {
	case value.IsArray():
		for _, item := range value.Array() {
			if item.IsObject() {
				writeObject(b, item, indent)
				continue
			}
			if item.IsArray() {
				writeValue(b, item, indent+"  ")
				continue
			}
			fmt.Fprintf(b, "%s• %s\n", indent, item.String())
		}
	case value.IsObject():
		writeObject(b, value, indent)
	default:
		if s := value.String(); s != "" {
			fmt.Fprintf(b, "%s%s\n", indent, s)
		}
	}
}

// writeObject puts scalar fields on one line and nested lists below it.
func writeObject(b *strings.Builder, obj gjson.Result, indent string) {
	var scalars []string
	var nested []gjson.Result
	var nestedKeys []string
	obj.ForEach(func(key, value gjson.Result) bool {
		if value.IsArray() || value.IsObject() {
			nested = append(nested, value)
			nestedKeys = append(nestedKeys, key.String())
			return true
		}
		if s := value.String(); s != "" {
			scalars = append(scalars, s)
		}
		return true
	})
	if len(scalars) > 0 {
		fmt.Fprintf(b, "%s%s\n", indent, strings.Join(scalars, " | "))
	}
	for i, value := range nested {
		if value.IsObject() {
			fmt.Fprintf(b, "%s%s:\n", indent, nestedKeys[i])
		}
		writeValue(b, value, indent+"  ")
	}
}

func flattenInline(value gjson.Result) []string {
	switch {
	case value.IsArray():
		var out []string
		for _, item := range value.Array() {
			out = append(out, flattenInline(item)...)
		}
		return out
	case value.IsObject():
		var out []string
		value.ForEach(func(_, v gjson.Result) bool {
			out = append(out, flattenInline(v)...)
			return true
		})
		return out
	default:
		if s := value.String(); s != "" {
			return []string{s}
		}
		return nil
	}
}

// docxSkeleton builds a minimal WordprocessingML package with the header and
// body placeholders, one paragraph each.
func docxSkeleton() ([]byte, error) {
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"><Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/><Default Extension="xml" ContentType="application/xml"/><Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/></Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"><Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/></Relationships>`,
		"word/_rels/document.xml.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"></Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
			`<w:p><w:pPr><w:jc w:val="center"/></w:pPr><w:r><w:rPr><w:b/></w:rPr><w:t xml:space="preserve">` + headerPlaceholder + `</w:t></w:r></w:p>` +
			`<w:p><w:r><w:t xml:space="preserve">` + bodyPlaceholder + `</w:t></w:r></w:p>` +
			`<w:sectPr><w:pgSz w:w="12240" w:h="15840"/><w:pgMar w:top="720" w:right="720" w:bottom="720" w:left="720" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>` +
			`</w:body></w:document>`,
	}

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
