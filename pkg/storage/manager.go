package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// exportTimeFormat is the timestamp carried in export filenames.
const exportTimeFormat = "20060102-150405"

// Manager owns the output directory and the naming of export artifacts.
type Manager struct {
	outputDir string
}

// NewManager creates a storage manager, creating the output directory if it
// does not exist.
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Manager{outputDir: outputDir}, nil
}

// GetOutputDir returns the output directory path.
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// ExportPath returns the workbook path for one collection run:
// engagement_<postID>_<timestamp>.xlsx. An existing file is never
// overwritten; a numeric suffix is appended until the name is free.
func (m *Manager) ExportPath(postID string, at time.Time) string {
	base := fmt.Sprintf("engagement_%s_%s", postID, at.Format(exportTimeFormat))

	path := filepath.Join(m.outputDir, base+".xlsx")
	for n := 1; fileExists(path); n++ {
		path = filepath.Join(m.outputDir, fmt.Sprintf("%s_%d.xlsx", base, n))
	}
	return path
}

// ReportPath returns the run report path that sits next to a workbook:
// the same name with .xlsx swapped for .report.json.
func (m *Manager) ReportPath(exportPath string) string {
	trimmed := exportPath
	if filepath.Ext(trimmed) == ".xlsx" {
		trimmed = trimmed[:len(trimmed)-len(".xlsx")]
	}
	return trimmed + ".report.json"
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
