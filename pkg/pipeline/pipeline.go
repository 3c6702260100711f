// Package pipeline runs an ordered list of prompt stages against a model,
// threading each stage's output into later stages and recording token usage
// and cost per stage.
package pipeline

// Pipeline represents a multi-stage LLM workflow.
type Pipeline struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Stages      []*Stage `yaml:"stages"`
}

// Stage returns the stage with the given name, or nil.
func (p *Pipeline) Stage(name string) *Stage {
	for _, s := range p.Stages {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Inputs returns the distinct static inputs the stages bind, in order of
// first use.
func (p *Pipeline) Inputs() []string {
	seen := make(map[string]struct{})
	var names []string
	for _, s := range p.Stages {
		for _, marker := range s.Markers() {
			src, err := ParseSource(s.Bindings[marker])
			if err != nil || src.Kind != SourceInput {
				continue
			}
			if _, ok := seen[src.Name]; ok {
				continue
			}
			seen[src.Name] = struct{}{}
			names = append(names, src.Name)
		}
	}
	return names
}
