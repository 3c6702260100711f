package report

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/zen-systems/tailor/pkg/adapter"
	"github.com/zen-systems/tailor/pkg/document"
	"github.com/zen-systems/tailor/pkg/pipeline"
)

// File names inside a run directory.
const (
	ReportFile   = "report.md"
	RunFile      = "run.json"
	DocumentFile = "tailored_resume.json"
	stagesDir    = "stages"
)

// RunRecord captures run-level metadata.
type RunRecord struct {
	ID             string                `json:"id"`
	Timestamp      time.Time             `json:"timestamp"`
	Pipeline       string                `json:"pipeline"`
	Adapter        string                `json:"adapter"`
	Model          string                `json:"model"`
	Tokenizer      string                `json:"tokenizer"`
	InputRate      float64               `json:"input_rate_usd_per_token"`
	OutputRate     float64               `json:"output_rate_usd_per_token"`
	Company        string                `json:"company,omitempty"`
	Position       string                `json:"position,omitempty"`
	JobID          string                `json:"job_id,omitempty"`
	Stages         []StageRecord         `json:"stages"`
	Totals         pipeline.StageMetrics `json:"totals"`
	ReportedUsage  *adapter.Usage        `json:"reported_usage,omitempty"`
	DurationMillis int64                 `json:"duration_ms"`
	ToolVersions   map[string]string     `json:"tool_versions,omitempty"`
}

// StageRecord captures the outcome of a single stage.
type StageRecord struct {
	Name           string                `json:"name"`
	Title          string                `json:"title"`
	Adapter        string                `json:"adapter"`
	Model          string                `json:"model"`
	Output         string                `json:"output,omitempty"`
	OutputHash     string                `json:"output_hash"`
	Metrics        pipeline.StageMetrics `json:"metrics"`
	ReportedUsage  *adapter.Usage        `json:"reported_usage,omitempty"`
	DurationMillis int64                 `json:"duration_ms"`
}

// Meta describes a run beyond what the pipeline result holds.
type Meta struct {
	RunID      string
	Pipeline   string
	Adapter    string
	Model      string
	Tokenizer  string
	InputRate  float64
	OutputRate float64
	Company    string
	Position   string
	JobID      string
}

// NewRunRecord builds the run.json record from a finished run.
func NewRunRecord(meta Meta, result *pipeline.RunResult) RunRecord {
	record := RunRecord{
		ID:           meta.RunID,
		Timestamp:    result.Started.UTC(),
		Pipeline:     meta.Pipeline,
		Adapter:      meta.Adapter,
		Model:        meta.Model,
		Tokenizer:    meta.Tokenizer,
		InputRate:    meta.InputRate,
		OutputRate:   meta.OutputRate,
		Company:      meta.Company,
		Position:     meta.Position,
		JobID:        meta.JobID,
		Totals:       result.Metrics.Totals(),
		ToolVersions: map[string]string{"go": runtime.Version()},

		ReportedUsage:  result.ReportedUsage(),
		DurationMillis: result.Duration.Milliseconds(),
	}
	for _, s := range result.Stages {
		rec := StageRecord{
			Name:           s.Name,
			Title:          s.Title,
			Metrics:        s.Metrics,
			ReportedUsage:  s.Usage,
			DurationMillis: s.Duration.Milliseconds(),
		}
		if s.Artifact != nil {
			rec.Adapter = s.Artifact.Adapter
			rec.Model = s.Artifact.Model
			rec.OutputHash = hashString(s.Artifact.Content)
		}
		record.Stages = append(record.Stages, rec)
	}
	return record
}

// Writer writes run results to disk.
type Writer struct {
	baseDir string
	runDir  string
}

// NewWriter creates a new writer rooted at baseDir/runID. Run directories
// are private since they hold personal data.
func NewWriter(baseDir, runID string) (*Writer, error) {
	if baseDir == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if runID == "" {
		return nil, fmt.Errorf("run ID is required")
	}

	runDir := filepath.Join(baseDir, runID)
	for _, dir := range []string{runDir, filepath.Join(runDir, stagesDir)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, &document.IOError{Path: dir, Err: err}
		}
		if err := os.Chmod(dir, 0o700); err != nil {
			return nil, &document.IOError{Path: dir, Err: err}
		}
	}

	return &Writer{baseDir: baseDir, runDir: runDir}, nil
}

// RunDir returns the run directory path.
func (w *Writer) RunDir() string {
	return w.runDir
}

// WriteRun writes run metadata to run.json.
func (w *Writer) WriteRun(record RunRecord) error {
	return writeJSON(filepath.Join(w.runDir, RunFile), record)
}

// WriteReport writes the Markdown report.
func (w *Writer) WriteReport(markdown string) error {
	return writeFile(filepath.Join(w.runDir, ReportFile), []byte(markdown))
}

// WriteStageOutput writes a stage's raw output to stages/<NN>-<name>.md and
// returns its path relative to the run directory.
func (w *Writer) WriteStageOutput(index int, name, content string) (string, error) {
	ref := filepath.ToSlash(filepath.Join(stagesDir, fmt.Sprintf("%02d-%s.md", index+1, sanitizeName(name))))
	if err := writeFile(filepath.Join(w.runDir, filepath.FromSlash(ref)), []byte(content)); err != nil {
		return "", err
	}
	return ref, nil
}

// WriteDocument writes the merged résumé JSON and returns its path.
func (w *Writer) WriteDocument(doc *document.Document) (string, error) {
	path := filepath.Join(w.runDir, DocumentFile)
	if err := (document.JSONRenderer{}).Render(doc, path); err != nil {
		return "", err
	}
	if err := os.Chmod(path, 0o600); err != nil {
		return "", &document.IOError{Path: path, Err: err}
	}
	return path, nil
}

// Save writes everything a successful run produces: stage outputs, the
// report, the merged document and run.json.
func (w *Writer) Save(meta Meta, result *pipeline.RunResult, doc *document.Document) error {
	record := NewRunRecord(meta, result)
	for i, s := range result.Stages {
		ref, err := w.WriteStageOutput(s.Index, s.Name, s.Output())
		if err != nil {
			return err
		}
		record.Stages[i].Output = ref
	}
	if err := w.WriteReport(Markdown(result)); err != nil {
		return err
	}
	if doc != nil {
		if _, err := w.WriteDocument(doc); err != nil {
			return err
		}
	}
	return w.WriteRun(record)
}

var unsafeName = regexp.MustCompile(`[^a-z0-9_-]+`)

func sanitizeName(name string) string {
	clean := strings.Trim(unsafeName.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if clean == "" {
		return "stage"
	}
	return clean
}

func hashString(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	return writeFile(path, data)
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return &document.IOError{Path: path, Err: err}
	}
	return nil
}
