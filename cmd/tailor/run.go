package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/zen-systems/tailor/pkg/adapter"
	"github.com/zen-systems/tailor/pkg/config"
	"github.com/zen-systems/tailor/pkg/document"
	"github.com/zen-systems/tailor/pkg/inputs"
	"github.com/zen-systems/tailor/pkg/pipeline"
	"github.com/zen-systems/tailor/pkg/prompt"
	"github.com/zen-systems/tailor/pkg/report"
)

type runOptions struct {
	Company  string
	Position string
	JobID    string
	CopyTo   string
	Quiet    bool
	NoDocx   bool
}

type runOutcome struct {
	RunID    string
	RunDir   string
	DocxPath string
	CopyPath string
	Result   *pipeline.RunResult
}

func runCmd() *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Tailor the résumé to the job description",
		Long: `Runs every pipeline stage in order against the configured job description
	and résumé, then merges the final JSON with the header data.

	Company and position name the output file. They are asked for on the
	terminal when not given as flags.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := promptMissing(os.Stdin, os.Stderr, &opts); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
			defer stop()

			a, err := createAdapter(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to create adapter: %w", err)
			}
			if err := cfg.Aliases.ValidateModel(cfg.Adapter, cfg.Model); err != nil {
				log.Printf("warning: %v", err)
			}

			out, err := runTailor(ctx, cfg, a, opts, os.Stderr)
			if err != nil {
				return err
			}

			fmt.Fprintf(os.Stderr, "Run complete. Results: %s\n", out.RunDir)
			if out.DocxPath != "" {
				fmt.Fprintf(os.Stderr, "Generated DOCX at: %s\n", out.DocxPath)
			}
			if out.CopyPath != "" {
				fmt.Fprintf(os.Stderr, "Copied DOCX to: %s\n", out.CopyPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.Company, "company", "", "company name")
	cmd.Flags().StringVar(&opts.Position, "position", "", "position title")
	cmd.Flags().StringVar(&opts.JobID, "job-id", "", "job ID (optional)")
	cmd.Flags().StringVar(&opts.CopyTo, "copy-to", "", "also write the DOCX into this directory (e.g. ~/Downloads)")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "suppress per-stage output")
	cmd.Flags().BoolVar(&opts.NoDocx, "no-docx", false, "skip DOCX generation")

	return cmd
}

// promptMissing asks for company, position and job ID when they were not
// passed as flags. The job ID is only asked for alongside the others.
func promptMissing(in io.Reader, out io.Writer, opts *runOptions) error {
	if opts.Company != "" && opts.Position != "" {
		return nil
	}

	scanner := bufio.NewScanner(in)
	ask := func(label string) string {
		fmt.Fprintf(out, "%s: ", label)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	if opts.Company == "" {
		opts.Company = ask("Company Name")
	}
	if opts.Position == "" {
		opts.Position = ask("Position")
	}
	if opts.JobID == "" {
		opts.JobID = ask("Job ID (optional)")
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read answers: %w", err)
	}

	if opts.Company == "" || opts.Position == "" {
		return fmt.Errorf("company and position are required")
	}
	return nil
}

// runTailor loads inputs, runs the pipeline and writes every output. Nothing
// is written when a stage fails.
func runTailor(ctx context.Context, cfg *config.Config, a adapter.Adapter, opts runOptions, status io.Writer) (*runOutcome, error) {
	logf := log.Printf
	if opts.Quiet {
		logf = func(string, ...any) {}
	}

	p, err := loadPipeline(cfg)
	if err != nil {
		return nil, err
	}
	static, err := loadStaticInputs(cfg)
	if err != nil {
		return nil, err
	}
	header, err := inputs.LoadHeader(cfg.Paths.Header)
	if err != nil {
		return nil, err
	}
	est, err := newEstimator(cfg)
	if err != nil {
		return nil, err
	}

	exec := &pipeline.Executor{
		Invoker: &pipeline.Invoker{
			Adapter:     a,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
			Timeout:     cfg.Call.Timeout(),
			Retry:       cfg.Call.Retry,
			Backoff:     cfg.Call.Backoff(),
			Logger:      logf,
		},
		Estimator: est,
		Renderer:  prompt.Renderer{Policy: cfg.Markers, Logger: log.Printf},
		Logger:    logf,
	}
	if !opts.Quiet {
		exec.OnStage = func(stage *pipeline.Stage, result *pipeline.StageResult) {
			fmt.Fprintf(status, "\n%s\n", report.StageSummary(stage, result))
		}
	}

	logf("running %d stages with %s/%s (tokenizer %s)", len(p.Stages), a.Name(), cfg.Model, est.Counter().Name())
	result, err := exec.Run(ctx, p.Stages, static)
	if err != nil {
		if result != nil && result.Metrics.Len() > 0 {
			log.Printf("spent before failure:\n%s", report.TotalSummary(result.Metrics.Totals()))
		}
		return nil, err
	}

	doc, err := document.Merge(header, result.Body)
	if err != nil {
		return nil, err
	}

	out := &runOutcome{RunID: uuid.NewString(), Result: result}
	writer, err := report.NewWriter(cfg.Paths.Results, out.RunID)
	if err != nil {
		return nil, err
	}
	out.RunDir = writer.RunDir()

	meta := report.Meta{
		RunID:      out.RunID,
		Pipeline:   p.Name,
		Adapter:    a.Name(),
		Model:      cfg.Model,
		Tokenizer:  est.Counter().Name(),
		InputRate:  est.Rates().Input,
		OutputRate: est.Rates().Output,
		Company:    opts.Company,
		Position:   opts.Position,
		JobID:      opts.JobID,
	}
	if err := writer.Save(meta, result, doc); err != nil {
		return nil, err
	}

	if opts.NoDocx {
		return out, nil
	}

	name := document.FileName(opts.Company, opts.Position, opts.JobID, ".docx")
	out.DocxPath = filepath.Join(cfg.Paths.Resumes, name)
	if err := (document.DocxRenderer{}).Render(doc, out.DocxPath); err != nil {
		return nil, err
	}
	if opts.CopyTo != "" {
		dir, err := expandHome(opts.CopyTo)
		if err != nil {
			return nil, err
		}
		out.CopyPath = filepath.Join(dir, name)
		if err := (document.DocxRenderer{}).Render(doc, out.CopyPath); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}
