package batch

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ArtifactWriter persists batch reports next to the delivered documents.
type ArtifactWriter struct {
	outputDir string
}

// NewArtifactWriter creates a writer rooted at outputDir.
func NewArtifactWriter(outputDir string) *ArtifactWriter {
	return &ArtifactWriter{outputDir: outputDir}
}

// Write stores the report as batch-<id>.json and batch-<id>.md.
func (w *ArtifactWriter) Write(report *Report) error {
	if err := os.MkdirAll(w.outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	if err := w.writeJSON(report); err != nil {
		return err
	}
	return w.writeMarkdown(report)
}

// JSONPath returns where the JSON report of batchID is written.
func (w *ArtifactWriter) JSONPath(batchID string) string {
	return filepath.Join(w.outputDir, "batch-"+batchID+".json")
}

// MarkdownPath returns where the markdown summary of batchID is written.
func (w *ArtifactWriter) MarkdownPath(batchID string) string {
	return filepath.Join(w.outputDir, "batch-"+batchID+".md")
}

func (w *ArtifactWriter) writeJSON(report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(w.JSONPath(report.BatchID), data, 0600); err != nil {
		return fmt.Errorf("failed to write report JSON: %w", err)
	}
	return nil
}

func (w *ArtifactWriter) writeMarkdown(report *Report) error {
	var md strings.Builder

	md.WriteString("# Batch " + report.BatchID + "\n\n")
	md.WriteString(fmt.Sprintf("**Result:** %s\n\n", report.Message))
	md.WriteString(fmt.Sprintf("**Started:** %s\n\n", report.StartedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Finished:** %s\n\n", report.FinishedAt.Format(time.RFC3339)))
	md.WriteString(fmt.Sprintf("**Directory:** `%s`\n\n", report.Directory))

	md.WriteString("## Counts\n\n")
	md.WriteString(fmt.Sprintf("- **Requested:** %d\n", report.Total))
	md.WriteString(fmt.Sprintf("- **Attempted:** %d\n", report.Attempted))
	md.WriteString(fmt.Sprintf("- **Generated:** %d\n", report.SuccessCount))
	md.WriteString(fmt.Sprintf("- **Failed:** %d\n\n", report.FailureCount))

	if report.Aborted {
		md.WriteString("## Aborted\n\n")
		md.WriteString(report.AbortReason + "\n\n")
	}

	if len(report.Failures) > 0 {
		md.WriteString("## Failures\n\n")
		md.WriteString("| Identifier | Step | Reason |\n|---|---|---|\n")
		for _, f := range report.Failures {
			md.WriteString(fmt.Sprintf("| `%s` | %s | %s |\n",
				f.Identifier, f.Step, strings.ReplaceAll(f.Reason, "|", "\\|")))
		}
	}

	if err := os.WriteFile(w.MarkdownPath(report.BatchID), []byte(md.String()), 0600); err != nil {
		return fmt.Errorf("failed to write report markdown: %w", err)
	}
	return nil
}
