package differ

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDiffProcessor_ProcessDiff(t *testing.T) {
	dp := NewDiffProcessor(DefaultDiffConfig())

	left := "title: flat\nprice: 100\nrooms: 2\n"
	right := "title: flat\nprice: 120\nrooms: 2\n"

	stats := CalculateStats(dp.ProcessDiff(left, right), left, right)

	assert.Equal(t, 1, stats.LinesAdded)
	assert.Equal(t, 1, stats.LinesDeleted)
	assert.Equal(t, 3, stats.LinesBefore)
	assert.InDelta(t, 2.0/6.0, stats.Severity(), 1e-9)
	assert.False(t, stats.IsIdentical())
}

func TestCountLines(t *testing.T) {
	tests := []struct {
		text     string
		expected int
	}{
		{"", 0},
		{"a", 1},
		{"a\n", 1},
		{"a\nb", 2},
		{"a\nb\n", 2},
		{"\n\n", 2},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, countLines(tt.text), "%q", tt.text)
	}
}

func TestContentDiffer_Compare(t *testing.T) {
	tests := []struct {
		name     string
		config   DiffConfig
		before   string
		after    string
		verdict  Verdict
		severity float64
	}{
		{name: "identical", config: DefaultDiffConfig(), before: "a\nb\n", after: "a\nb\n", verdict: Unchanged},
		{name: "whitespace only", config: DefaultDiffConfig(), before: "a  b\nc\n", after: "a b\n\nc", verdict: Trivial},
		{name: "whitespace counts when not ignored", config: DiffConfig{}, before: "a b\n", after: "a  b\n", verdict: Drift, severity: 1},
		{name: "full rewrite", config: DefaultDiffConfig(), before: "old\n", after: "new\n", verdict: Drift, severity: 1},
		{name: "one of four lines", config: DefaultDiffConfig(), before: "1\n2\n3\n4\n", after: "1\n2\n3\nX\n", verdict: Drift, severity: 0.25},
		{name: "appended line", config: DefaultDiffConfig(), before: "1\n2\n3\n", after: "1\n2\n3\n4\n", verdict: Drift, severity: 1.0 / 7.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := NewContentDiffer(tt.config).Compare([]byte(tt.before), []byte(tt.after))
			assert.Equal(t, tt.verdict, result.Verdict)
			assert.InDelta(t, tt.severity, result.Severity, 1e-9)
			assert.NotEmpty(t, result.BeforeHash)
			assert.NotEmpty(t, result.AfterHash)
		})
	}
}

func TestContentDiffer_TooLarge(t *testing.T) {
	cd := NewContentDiffer(DiffConfig{MaxDiffBytes: 16})

	result := cd.Compare([]byte("short"), []byte(strings.Repeat("x", 64)))

	assert.Equal(t, Drift, result.Verdict)
	assert.True(t, result.TooLarge)
	assert.Equal(t, 1.0, result.Severity)
}

func TestContentDiffer_LineEndingOnly(t *testing.T) {
	result := NewContentDiffer(DiffConfig{}).Compare([]byte("a\nb"), []byte("a\nb\n"))

	assert.Equal(t, Drift, result.Verdict)
	assert.Greater(t, result.Severity, 0.0)
}
