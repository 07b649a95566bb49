package differ

import (
	"bytes"
	"strings"

	"github.com/aleister1102/driftwatch/internal/models"
)

// Verdict classifies a comparison.
type Verdict int

const (
	Unchanged Verdict = iota
	Trivial
	Drift
)

func (v Verdict) String() string {
	switch v {
	case Unchanged:
		return "unchanged"
	case Trivial:
		return "trivial"
	case Drift:
		return "drift"
	}
	return "unknown"
}

// Result describes how a fetched snapshot differs from the stored one.
type Result struct {
	Verdict      Verdict
	Severity     float64
	LinesAdded   int
	LinesDeleted int
	BeforeHash   string
	AfterHash    string
	TooLarge     bool
}

// ContentDiffer compares snapshots
type ContentDiffer struct {
	processor *DiffProcessor
	config    DiffConfig
}

// NewContentDiffer creates a new instance of ContentDiffer
func NewContentDiffer(config DiffConfig) *ContentDiffer {
	return &ContentDiffer{
		processor: NewDiffProcessor(config),
		config:    config,
	}
}

// Compare classifies current against previous.
func (cd *ContentDiffer) Compare(previous, current []byte) Result {
	result := Result{
		BeforeHash: models.SnapshotHash(previous),
		AfterHash:  models.SnapshotHash(current),
	}

	if bytes.Equal(previous, current) {
		result.Verdict = Unchanged
		return result
	}

	if cd.config.IgnoreWhitespace && normalizeWhitespace(previous) == normalizeWhitespace(current) {
		result.Verdict = Trivial
		return result
	}

	result.Verdict = Drift

	if cd.config.MaxDiffBytes > 0 && (len(previous) > cd.config.MaxDiffBytes || len(current) > cd.config.MaxDiffBytes) {
		result.TooLarge = true
		result.Severity = 1
		return result
	}

	text1, text2 := string(previous), string(current)
	stats := CalculateStats(cd.processor.ProcessDiff(text1, text2), text1, text2)
	result.LinesAdded = stats.LinesAdded
	result.LinesDeleted = stats.LinesDeleted
	result.Severity = stats.Severity()
	if result.Severity == 0 {
		// Bytes differ but no whole line did, e.g. a changed line ending.
		result.Severity = minimumSeverity
	}
	return result
}

const minimumSeverity = 0.01

func normalizeWhitespace(content []byte) string {
	return strings.Join(strings.Fields(string(content)), " ")
}
