package differ

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DiffProcessor handles the core diffing logic
type DiffProcessor struct {
	dmp    *diffmatchpatch.DiffMatchPatch
	config DiffConfig
}

// NewDiffProcessor creates a new diff processor
func NewDiffProcessor(config DiffConfig) *DiffProcessor {
	return &DiffProcessor{
		dmp:    diffmatchpatch.New(),
		config: config,
	}
}

// ProcessDiff generates a line based diff between two texts
func (dp *DiffProcessor) ProcessDiff(text1, text2 string) []diffmatchpatch.Diff {
	chars1, chars2, lines := dp.dmp.DiffLinesToChars(text1, text2)
	diffs := dp.dmp.DiffMain(chars1, chars2, false)
	diffs = dp.dmp.DiffCharsToLines(diffs, lines)

	if dp.config.EnableSemanticCleanup {
		diffs = dp.dmp.DiffCleanupSemantic(diffs)
	}
	return diffs
}

// DiffStatistics holds diff calculation results
type DiffStatistics struct {
	LinesAdded   int
	LinesDeleted int
	LinesBefore  int
	LinesAfter   int
}

// IsIdentical reports whether no line was added or removed.
func (s DiffStatistics) IsIdentical() bool {
	return s.LinesAdded == 0 && s.LinesDeleted == 0
}

// Severity scores the share of changed lines in [0, 1].
func (s DiffStatistics) Severity() float64 {
	total := s.LinesBefore + s.LinesAfter
	if total == 0 {
		return 0
	}
	severity := float64(s.LinesAdded+s.LinesDeleted) / float64(total)
	if severity > 1 {
		return 1
	}
	return severity
}

// CalculateStats computes statistics from diff results
func CalculateStats(diffs []diffmatchpatch.Diff, text1, text2 string) DiffStatistics {
	stats := DiffStatistics{
		LinesBefore: countLines(text1),
		LinesAfter:  countLines(text2),
	}

	for _, diff := range diffs {
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			stats.LinesAdded += countLines(diff.Text)
		case diffmatchpatch.DiffDelete:
			stats.LinesDeleted += countLines(diff.Text)
		}
	}
	return stats
}

// countLines counts lines, including a final line without a newline.
func countLines(text string) int {
	if text == "" {
		return 0
	}
	n := strings.Count(text, "\n")
	if !strings.HasSuffix(text, "\n") {
		n++
	}
	return n
}
