package collector

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name             string
		ageDays          float64
		apiReturned      int
		hint             int
		explicitOverride bool
		expected         Decision
	}{
		{
			name:        "old post exceeds horizon",
			ageDays:     8.0,
			apiReturned: 0,
			hint:        0,
			expected:    Decision{ShouldFallback: true, Reason: ReasonAgeExceeded},
		},
		{
			name:        "zero results with nonzero hint",
			ageDays:     3.0,
			apiReturned: 0,
			hint:        5,
			expected:    Decision{ShouldFallback: true, Reason: ReasonZeroWithNonzeroMetric},
		},
		{
			name:        "fresh post with matching counts",
			ageDays:     3.0,
			apiReturned: 2,
			hint:        2,
			expected:    Decision{ShouldFallback: false, Reason: ReasonNone},
		},
		{
			name:             "explicit override on a fresh post",
			ageDays:          1.0,
			apiReturned:      10,
			hint:             10,
			explicitOverride: true,
			expected:         Decision{ShouldFallback: true, Reason: ReasonExplicitOverride},
		},
		{
			name:             "age outranks explicit override",
			ageDays:          10.0,
			apiReturned:      0,
			hint:             3,
			explicitOverride: true,
			expected:         Decision{ShouldFallback: true, Reason: ReasonAgeExceeded},
		},
		{
			name:             "override outranks zero-with-nonzero-metric",
			ageDays:          2.0,
			apiReturned:      0,
			hint:             3,
			explicitOverride: true,
			expected:         Decision{ShouldFallback: true, Reason: ReasonExplicitOverride},
		},
		{
			name:        "exactly at the horizon is not exceeded",
			ageDays:     7.0,
			apiReturned: 1,
			hint:        1,
			expected:    Decision{ShouldFallback: false, Reason: ReasonNone},
		},
		{
			name:        "zero results with zero hint stays put",
			ageDays:     2.0,
			apiReturned: 0,
			hint:        0,
			expected:    Decision{ShouldFallback: false, Reason: ReasonNone},
		},
		{
			name:        "nonzero results with larger hint stays put",
			ageDays:     2.0,
			apiReturned: 1,
			hint:        50,
			expected:    Decision{ShouldFallback: false, Reason: ReasonNone},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.ageDays, tt.apiReturned, tt.hint, tt.explicitOverride)
			assert.Equal(t, tt.expected, got)
		})
	}
}
