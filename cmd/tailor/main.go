package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/zen-systems/tailor/pkg/adapter"
	"github.com/zen-systems/tailor/pkg/config"
	"github.com/zen-systems/tailor/pkg/inputs"
	"github.com/zen-systems/tailor/pkg/pipeline"
	"github.com/zen-systems/tailor/pkg/prompt"
	"github.com/zen-systems/tailor/pkg/tokens"
)

var (
	configFile   string
	pipelineFlag string
	adapterFlag  string
	modelFlag    string
)

func main() {
	log.SetPrefix("[tailor] ")

	rootCmd := &cobra.Command{
		Use:   "tailor",
		Short: "Tailor a résumé to a job description with a multi-stage LLM pipeline",
		Long: `Tailor runs a fixed sequence of prompt stages over a job description and
	a base résumé: keyword extraction, integration planning, rewriting, metric
	quantification, filler removal, refinement and JSON conversion. The result
	is merged with static header data and written as JSON, Markdown report and
	DOCX.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "path to config file (default tailor.yaml)")
	rootCmd.PersistentFlags().StringVar(&pipelineFlag, "pipeline", "", "pipeline manifest (default built-in seven stages)")
	rootCmd.PersistentFlags().StringVar(&adapterFlag, "adapter", "", "override adapter (openai, anthropic, google, deepseek, mock)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "override model (name or alias)")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(stagesCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(modelsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Override(adapterFlag, modelFlag); err != nil {
		return nil, err
	}
	if pipelineFlag != "" {
		cfg.Pipeline = pipelineFlag
	}
	return cfg, nil
}

// loadPipeline reads the configured manifest, or the built-in one, with its
// templates.
func loadPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	p := pipeline.DefaultManifest()
	if cfg.Pipeline != "" {
		var err error
		p, err = pipeline.LoadManifest(cfg.Pipeline)
		if err != nil {
			return nil, err
		}
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := p.LoadTemplates(cfg.Paths.Prompts); err != nil {
		return nil, err
	}
	return p, nil
}

// mockResponse parses as a résumé body so dry runs reach the output stage.
const mockResponse = `{"summary": "Mock résumé generated without a model.", "skills": ["mock"]}`

func createAdapter(ctx context.Context, cfg *config.Config) (adapter.Adapter, error) {
	if !cfg.HasAdapter(cfg.Adapter) {
		return nil, fmt.Errorf("adapter %s has no API key; set %s", cfg.Adapter, keyVar(cfg.Adapter))
	}

	switch cfg.Adapter {
	case "openai":
		return adapter.NewOpenAIAdapter(cfg.OpenAIAPIKey)
	case "anthropic":
		return adapter.NewAnthropicAdapter(cfg.AnthropicAPIKey)
	case "google":
		return adapter.NewGoogleAdapter(ctx, cfg.GoogleAPIKey)
	case "deepseek":
		return adapter.NewDeepSeekAdapter(cfg.DeepSeekAPIKey, cfg.DeepSeekBaseURL)
	case "mock":
		return adapter.NewMockAdapter(mockResponse), nil
	default:
		return nil, fmt.Errorf("unknown adapter %q", cfg.Adapter)
	}
}

func keyVar(adapterName string) string {
	return strings.ToUpper(adapterName) + "_API_KEY"
}

func newEstimator(cfg *config.Config) (*tokens.Estimator, error) {
	counter, err := tokens.NewCounter(cfg.Tokenizer, cfg.Model)
	if err != nil {
		return nil, err
	}
	return tokens.NewEstimator(counter, cfg.Pricing.Rates())
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [pipeline.yaml]",
		Short: "Validate a pipeline manifest and its templates",
		Long: `Validates the pipeline without calling a model: stage order, bindings,
	template files, and markers in templates that no binding covers.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if len(args) == 1 {
				cfg.Pipeline = args[0]
			}

			p, err := loadPipeline(cfg)
			if err != nil {
				return err
			}

			var problems []string
			for _, stage := range p.Stages {
				for _, tmpl := range []struct{ kind, text string }{
					{"system", stage.SystemTemplate},
					{"user", stage.UserTemplate},
				} {
					if missing := prompt.Unresolved(tmpl.text, stage.Bindings); len(missing) > 0 {
						problems = append(problems, fmt.Sprintf("%s/%s: unbound markers %s", stage.Name, tmpl.kind, strings.Join(missing, ", ")))
					}
				}
			}
			if len(problems) > 0 {
				fmt.Fprintf(os.Stderr, "Found %d validation errors:\n", len(problems))
				for _, problem := range problems {
					fmt.Fprintf(os.Stderr, "  - %s\n", problem)
				}
				if cfg.Markers == prompt.PolicyStrict {
					return fmt.Errorf("validation failed")
				}
			}

			fmt.Printf("Pipeline %q is valid (%d stages).\n", p.Name, len(p.Stages))
			return nil
		},
	}
}

func stagesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stages",
		Short: "List pipeline stages and their bindings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p := pipeline.DefaultManifest()
			if cfg.Pipeline != "" {
				if p, err = pipeline.LoadManifest(cfg.Pipeline); err != nil {
					return err
				}
			}
			if err := p.Validate(); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTAGE\tTITLE\tOUTPUT\tBINDINGS")
			for i, stage := range p.Stages {
				var bindings []string
				for _, marker := range stage.Markers() {
					bindings = append(bindings, marker+"="+stage.Bindings[marker])
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i+1, stage.Name, stage.Label(), stage.Kind(), formatList(bindings))
			}
			return w.Flush()
		},
	}
}

func estimateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "estimate",
		Short: "Estimate input tokens and cost without calling a model",
		Long: `Renders every stage whose bindings are all static inputs and prints its
	input token count and cost. Stages that consume earlier output depend on
	model responses and are listed without an estimate.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			p, err := loadPipeline(cfg)
			if err != nil {
				return err
			}
			static, err := loadStaticInputs(cfg)
			if err != nil {
				return err
			}
			est, err := newEstimator(cfg)
			if err != nil {
				return err
			}

			renderer := prompt.Renderer{Policy: cfg.Markers, Logger: log.Printf}
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "#\tSTAGE\tINPUT TOKENS\tINPUT COST")
			var totalTokens int
			var totalCost float64
			for i, stage := range p.Stages {
				bindings, ok := staticBindings(stage, static)
				if !ok {
					fmt.Fprintf(w, "%d\t%s\t-\t(depends on earlier stages)\n", i+1, stage.Name)
					continue
				}
				system, err := renderer.Render(stage.Name+"/system", stage.SystemTemplate, bindings)
				if err != nil {
					return err
				}
				user, err := renderer.Render(stage.Name+"/user", stage.UserTemplate, bindings)
				if err != nil {
					return err
				}
				n, cost, err := est.Estimate(system+user, tokens.Input)
				if err != nil {
					return err
				}
				totalTokens += n
				totalCost += cost
				fmt.Fprintf(w, "%d\t%s\t%d\t$%.6f\n", i+1, stage.Name, n, cost)
			}
			fmt.Fprintf(w, "\tTOTAL (static stages)\t%d\t$%.6f\n", totalTokens, totalCost)
			fmt.Fprintf(os.Stderr, "Tokenizer: %s, model: %s\n", est.Counter().Name(), cfg.Model)
			return w.Flush()
		},
	}
}

// staticBindings resolves a stage's bindings when all of them are static inputs.
func staticBindings(stage *pipeline.Stage, static map[string]string) (map[string]string, bool) {
	bindings := make(map[string]string, len(stage.Bindings))
	for _, marker := range stage.Markers() {
		src, err := pipeline.ParseSource(stage.Bindings[marker])
		if err != nil || src.Kind != pipeline.SourceInput {
			return nil, false
		}
		value, ok := static[src.Name]
		if !ok {
			return nil, false
		}
		bindings[marker] = value
	}
	return bindings, true
}

func loadStaticInputs(cfg *config.Config) (map[string]string, error) {
	jd, err := inputs.LoadText(cfg.Paths.JobDescription, "job description")
	if err != nil {
		return nil, err
	}
	resume, err := inputs.LoadResume(cfg.Paths.Resume)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		pipeline.InputJobDescription: jd,
		pipeline.InputResume:         resume,
	}, nil
}

func modelsCmd() *cobra.Command {
	var resolveFlag bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available adapters, models, and aliases",
		Long: `Lists adapters and their available models.

	Use --resolve to show aliases and what they resolve to.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			aliases := cfg.Aliases

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			if resolveFlag {
				fmt.Fprintln(w, "ALIAS\tMODEL\tPROVIDER")
				for _, alias := range aliases.ListAliases() {
					model := aliases.Resolve(alias)
					fmt.Fprintf(w, "%s\t%s\t%s\n", alias, model, aliases.GetProviderForModel(model))
				}
				return w.Flush()
			}

			fmt.Fprintln(w, "PROVIDER\tMODELS\tSTATUS")
			for _, provider := range aliases.ListProviders() {
				status := "no key"
				if cfg.HasAdapter(provider) {
					status = "ready"
				}
				if provider == cfg.Adapter {
					status += " (selected: " + cfg.Model + ")"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", provider, formatList(aliases.GetProviderModels(provider)), status)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&resolveFlag, "resolve", false, "show aliases and what they resolve to")

	return cmd
}

func formatList(items []string) string {
	return strings.Join(items, ", ")
}
