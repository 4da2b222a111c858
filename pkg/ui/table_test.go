package ui

import (
	"strings"
	"testing"
	"time"
)

func sampleSummary() RunSummary {
	return RunSummary{
		PostID:        "1957110173920",
		Likes:         42,
		Reposts:       7,
		Replies:       12,
		Combined:      61,
		Decision:      "AgeExceeded",
		FallbackRan:   true,
		RequestsUsed:  9,
		RequestBudget: 25,
		Duration:      3*time.Minute + 20*time.Second,
		Diagnostics:   []string{"likes: zero records returned while the engagement hint reports 5"},
	}
}

func TestRenderSummaryContainsCounts(t *testing.T) {
	out := renderSummary(sampleSummary())

	for _, want := range []string{"1957110173920", "42", "Reposts", "ran (AgeExceeded)", "9/25", "3m20s"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestFallbackCell(t *testing.T) {
	tests := []struct {
		summary  RunSummary
		expected string
	}{
		{RunSummary{FallbackRan: true, Decision: "ExplicitOverride"}, "ran (ExplicitOverride)"},
		{RunSummary{Decision: "None"}, "not needed"},
		{RunSummary{Decision: ""}, "not needed"},
		{RunSummary{Decision: "AgeExceeded"}, "skipped (AgeExceeded)"},
	}

	for _, test := range tests {
		result := fallbackCell(test.summary)
		if result != test.expected {
			t.Errorf("fallbackCell(%+v) = %s, expected %s", test.summary, result, test.expected)
		}
	}
}
