package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// OutputKind says how a stage's response is consumed.
type OutputKind string

const (
	// OutputText responses are kept verbatim and may feed later stages.
	OutputText OutputKind = "text"
	// OutputStructured responses are parsed as a JSON object. Only the
	// final stage produces structured output.
	OutputStructured OutputKind = "structured"
)

// Names of the static inputs every run provides.
const (
	InputJobDescription = "job_description"
	InputResume         = "resume"
)

// Stage represents a single step in a pipeline.
type Stage struct {
	Name    string `yaml:"name"`
	Title   string `yaml:"title"`
	Summary string `yaml:"summary,omitempty"`

	// System and User are template files relative to the prompts directory.
	System string `yaml:"system,omitempty"`
	User   string `yaml:"user,omitempty"`

	// SystemTemplate and UserTemplate hold the template text, either inline in
	// the manifest or filled in by LoadTemplates.
	SystemTemplate string `yaml:"system_template,omitempty"`
	UserTemplate   string `yaml:"user_template,omitempty"`

	// Bindings maps a marker such as <RESUME> to its source, written
	// "input:<name>" or "stage:<name>".
	Bindings map[string]string `yaml:"bindings,omitempty"`
	Output   OutputKind        `yaml:"output,omitempty"`
}

// Label returns the title, or the name when no title is set.
func (s *Stage) Label() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Name
}

// Kind returns the declared output, defaulting to text.
func (s *Stage) Kind() OutputKind {
	if s.Output == "" {
		return OutputText
	}
	return s.Output
}

// Markers returns the bound markers in sorted order.
func (s *Stage) Markers() []string {
	markers := make([]string, 0, len(s.Bindings))
	for marker := range s.Bindings {
		markers = append(markers, marker)
	}
	sort.Strings(markers)
	return markers
}

// SourceKind identifies where a binding value comes from.
type SourceKind string

const (
	SourceInput SourceKind = "input"
	SourceStage SourceKind = "stage"
)

// Source is a parsed binding source.
type Source struct {
	Kind SourceKind
	Name string
}

func (s Source) String() string {
	return string(s.Kind) + ":" + s.Name
}

// ParseSource parses "input:<name>" or "stage:<name>".
func ParseSource(value string) (Source, error) {
	kind, name, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok || name == "" {
		return Source{}, fmt.Errorf("invalid binding source %q (want input:<name> or stage:<name>)", value)
	}
	switch SourceKind(kind) {
	case SourceInput, SourceStage:
		return Source{Kind: SourceKind(kind), Name: name}, nil
	default:
		return Source{}, fmt.Errorf("invalid binding source %q: unknown kind %q", value, kind)
	}
}
