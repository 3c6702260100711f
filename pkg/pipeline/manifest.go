package pipeline

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/zen-systems/tailor/pkg/inputs"
	"github.com/zen-systems/tailor/pkg/prompt"
)

// LoadManifest reads a pipeline definition from a YAML file.
func LoadManifest(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &inputs.MissingInputError{Path: path, What: "pipeline manifest"}
		}
		return nil, err
	}

	var pipeline Pipeline
	if err := yaml.Unmarshal(data, &pipeline); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}

	return &pipeline, nil
}

// Validate checks the pipeline configuration for errors.
func (p *Pipeline) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("pipeline name is required")
	}
	return ValidateStages(p.Stages)
}

// ValidateStages checks stage names, templates and bindings. Bindings may
// only refer to earlier stages, and only the last stage is structured.
func ValidateStages(stages []*Stage) error {
	if len(stages) == 0 {
		return fmt.Errorf("pipeline must define at least one stage")
	}

	seen := make(map[string]struct{})
	for i, stage := range stages {
		if stage == nil {
			return fmt.Errorf("stage %d is nil", i+1)
		}
		if stage.Name == "" {
			return fmt.Errorf("stage %d: name is required", i+1)
		}
		if _, ok := seen[stage.Name]; ok {
			return fmt.Errorf("duplicate stage name: %s", stage.Name)
		}
		if stage.System == "" && stage.SystemTemplate == "" {
			return fmt.Errorf("stage %s must have a system template", stage.Name)
		}
		if stage.User == "" && stage.UserTemplate == "" {
			return fmt.Errorf("stage %s must have a user template", stage.Name)
		}

		last := i == len(stages)-1
		switch stage.Kind() {
		case OutputText:
			if last {
				return fmt.Errorf("stage %s: final stage must produce structured output", stage.Name)
			}
		case OutputStructured:
			if !last {
				return fmt.Errorf("stage %s: only the final stage may produce structured output", stage.Name)
			}
		default:
			return fmt.Errorf("stage %s: unknown output %q", stage.Name, stage.Output)
		}

		for _, marker := range stage.Markers() {
			if !prompt.IsMarker(marker) {
				return fmt.Errorf("stage %s: invalid marker %q", stage.Name, marker)
			}
			src, err := ParseSource(stage.Bindings[marker])
			if err != nil {
				return fmt.Errorf("stage %s: %s: %w", stage.Name, marker, err)
			}
			if src.Kind != SourceStage {
				continue
			}
			if src.Name == stage.Name {
				return fmt.Errorf("stage %s: %s refers to its own output", stage.Name, marker)
			}
			if _, ok := seen[src.Name]; !ok {
				return fmt.Errorf("stage %s: %s refers to stage %s, which does not run earlier", stage.Name, marker, src.Name)
			}
		}

		seen[stage.Name] = struct{}{}
	}

	return nil
}

// LoadTemplates reads template files for stages that have no inline
// template. Paths are relative to dir.
func (p *Pipeline) LoadTemplates(dir string) error {
	for _, stage := range p.Stages {
		if stage.SystemTemplate == "" && stage.System != "" {
			text, err := inputs.LoadText(filepath.Join(dir, stage.System), "system template for "+stage.Name)
			if err != nil {
				return err
			}
			stage.SystemTemplate = text
		}
		if stage.UserTemplate == "" && stage.User != "" {
			text, err := inputs.LoadText(filepath.Join(dir, stage.User), "user template for "+stage.Name)
			if err != nil {
				return err
			}
			stage.UserTemplate = text
		}
	}
	return nil
}

// DefaultManifest returns the built-in seven-stage tailoring pipeline.
func DefaultManifest() *Pipeline {
	return &Pipeline{
		Name:        "tailor",
		Description: "Tailor a résumé to a job description in seven prompt stages",
		Stages: []*Stage{
			{
				Name:     "extract_keywords",
				Title:    "Extract Keywords",
				Summary:  "Keywords extracted.",
				System:   "system/step1_jd_analysis.md",
				User:     "user/step1_user.md",
				Bindings: map[string]string{"<JOB_DESCRIPTION>": "input:" + InputJobDescription},
			},
			{
				Name:    "plan_keywords",
				Title:   "Keyword Integration Plan",
				Summary: "Integration plan generated.",
				System:  "system/step2_keyword_mapping.md",
				User:    "user/step2_user.md",
				Bindings: map[string]string{
					"<RESUME>":          "input:" + InputResume,
					"<RANKED_KEYWORDS>": "stage:extract_keywords",
				},
			},
			{
				Name:    "apply_tailoring",
				Title:   "Tailored Resume Draft",
				Summary: "Tailored resume draft generated.",
				System:  "system/step3_generating_points.md",
				User:    "user/step3_user.md",
				Bindings: map[string]string{
					"<INTEGRATION_PLAN>": "stage:plan_keywords",
					"<RESUME>":           "input:" + InputResume,
				},
			},
			{
				Name:     "quantify_metrics",
				Title:    "Quantified Metrics",
				Summary:  "Metrics quantified.",
				System:   "system/step4_quantifying_metrics.md",
				User:     "user/step4_user.md",
				Bindings: map[string]string{"<TAILORED_RESUME>": "stage:apply_tailoring"},
			},
			{
				Name:     "remove_fillers",
				Title:    "Remove Fillers",
				Summary:  "Fillers removed.",
				System:   "system/step5_remove_filler_words.md",
				User:     "user/step5_user.md",
				Bindings: map[string]string{"<TAILORED_RESUME>": "stage:quantify_metrics"},
			},
			{
				Name:     "refine_resume",
				Title:    "Refine Resume",
				Summary:  "Resume refined.",
				System:   "system/step6_resume_refinement.md",
				User:     "user/step6_user.md",
				Bindings: map[string]string{"<TAILORED_RESUME>": "stage:remove_fillers"},
			},
			{
				Name:     "convert_to_json",
				Title:    "Convert to JSON",
				Summary:  "JSON conversion done.",
				System:   "system/step7_convert_to_json.md",
				User:     "user/step7_user.md",
				Bindings: map[string]string{"<TAILORED_RESUME>": "stage:refine_resume"},
				Output:   OutputStructured,
			},
		},
	}
}
