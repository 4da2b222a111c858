// Package report persists a JSON summary of one collection run next to its
// workbook.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"xengage/pkg/collector"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/ratelimit"
)

// Report is the machine-readable record of one collection run: what was
// collected, what the fallback policy decided, what went wrong, and what the
// run cost in requests.
type Report struct {
	PostID      string                         `json:"post_id"`
	StartedAt   time.Time                      `json:"started_at"`
	FinishedAt  time.Time                      `json:"finished_at"`
	Counts      map[models.InteractionKind]int `json:"counts"`
	Decision    collector.Decision             `json:"decision"`
	Diagnostics []collector.Diagnostic         `json:"diagnostics,omitempty"`
	Requests    ratelimit.Snapshot             `json:"requests"`
	ExportPath  string                         `json:"export_path"`
}

// FromResult builds the report for a finished run.
func FromResult(res *collector.Result, exportPath string) *Report {
	return &Report{
		PostID:      res.PostID,
		StartedAt:   res.StartedAt,
		FinishedAt:  res.FinishedAt,
		Counts:      res.Counts,
		Decision:    res.Decision,
		Diagnostics: res.Diagnostics,
		Requests:    res.Requests,
		ExportPath:  exportPath,
	}
}

// Writer persists run reports.
type Writer struct {
	logger logger.Logger
}

// NewWriter creates a report writer.
func NewWriter(log logger.Logger) *Writer {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Writer{logger: log}
}

// Write saves the report to disk atomically. The report is an auxiliary
// artifact: callers log a failure and move on, the collected data is already
// safe in the workbook.
func (w *Writer) Write(rep *Report, path string) error {
	tempPath := path + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary report file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(rep); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode report: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync report file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close report file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace report file: %w", err)
	}

	w.logger.DebugWithFields("run report written", map[string]interface{}{
		"post_id": rep.PostID,
		"path":    path,
	})
	return nil
}

// Load reads a report back from disk.
func Load(path string) (*Report, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open report file: %w", err)
	}
	defer file.Close()

	var rep Report
	if err := json.NewDecoder(file).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}
	return &rep, nil
}
