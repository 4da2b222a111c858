package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"xengage/pkg/collector"
	"xengage/pkg/logger"
	"xengage/pkg/models"
	"xengage/pkg/ratelimit"
)

func sampleResult() *collector.Result {
	return &collector.Result{
		PostID: "1001",
		Counts: map[models.InteractionKind]int{
			models.KindLike:   3,
			models.KindRepost: 1,
			models.KindReply:  2,
		},
		Decision: collector.Decision{ShouldFallback: true, Reason: collector.ReasonAgeExceeded},
		Diagnostics: []collector.Diagnostic{
			{Stage: collector.StageLikes, Kind: models.KindLike, Err: "authorization failed"},
		},
		Requests:   ratelimit.Snapshot{RequestsInWindow: 5, TotalRequests: 5},
		StartedAt:  time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2026, 8, 20, 9, 12, 30, 0, time.UTC),
	}
}

func TestWriteAndLoad(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "engagement_1001_20260820-090000.report.json")

	rep := FromResult(sampleResult(), filepath.Join(tempDir, "engagement_1001_20260820-090000.xlsx"))
	w := NewWriter(logger.NewTestLogger())

	if err := w.Write(rep, path); err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load report: %v", err)
	}
	if loaded.PostID != "1001" {
		t.Errorf("Expected post id 1001, got %s", loaded.PostID)
	}
	if loaded.Counts[models.KindLike] != 3 {
		t.Errorf("Expected 3 likes, got %d", loaded.Counts[models.KindLike])
	}
	if !loaded.Decision.ShouldFallback || loaded.Decision.Reason != collector.ReasonAgeExceeded {
		t.Errorf("Expected AgeExceeded fallback decision, got %+v", loaded.Decision)
	}
	if len(loaded.Diagnostics) != 1 || loaded.Diagnostics[0].Stage != collector.StageLikes {
		t.Errorf("Expected the likes diagnostic to survive, got %+v", loaded.Diagnostics)
	}
	if loaded.Requests.TotalRequests != 5 {
		t.Errorf("Expected 5 total requests, got %d", loaded.Requests.TotalRequests)
	}
	if loaded.ExportPath != rep.ExportPath {
		t.Errorf("Expected export path %s, got %s", rep.ExportPath, loaded.ExportPath)
	}
}

func TestWriteIsIndentedJSON(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, "run.report.json")

	w := NewWriter(logger.NewTestLogger())
	if err := w.Write(FromResult(sampleResult(), "x.xlsx"), path); err != nil {
		t.Fatalf("Failed to write report: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read report: %v", err)
	}
	if !json.Valid(data) {
		t.Fatal("Expected valid JSON")
	}
	// Indented output keeps the artifact reviewable by hand.
	if !strings.Contains(string(data), "\n  \"post_id\": \"1001\",") {
		t.Error("Expected two-space indented keys")
	}

	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("Expected temporary file to be gone after rename")
	}
}

func TestWriteFailurePropagates(t *testing.T) {
	w := NewWriter(logger.NewTestLogger())
	err := w.Write(FromResult(sampleResult(), "x.xlsx"), filepath.Join(t.TempDir(), "missing", "run.report.json"))
	if err == nil {
		t.Fatal("Expected write into a missing directory to fail")
	}
}

func TestLoadMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.report.json")); err == nil {
		t.Fatal("Expected loading a missing report to fail")
	}
}
