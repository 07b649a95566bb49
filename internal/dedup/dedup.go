// Package dedup decides whether a candidate workflow record represents a new
// outstanding condition or one that an open record already covers.
package dedup

import (
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"
)

// Decision is the outcome of an admission check.
type Decision int

const (
	DecisionAdmit Decision = iota
	DecisionSuppress
)

func (d Decision) String() string {
	if d == DecisionSuppress {
		return "suppress"
	}
	return "admit"
}

// Verdict explains a Decision. ExistingID names the open record that caused a
// suppression.
type Verdict struct {
	Decision   Decision
	ExistingID int64
}

// Admitted reports whether the candidate should be persisted.
func (v Verdict) Admitted() bool {
	return v.Decision == DecisionAdmit
}

// Key is the identity two records must share to be duplicates: the target
// (monitor, organisation, content type, entity) and the reason code.
type Key struct {
	Target models.Target
	Reason string
}

// KeyOf extracts the deduplication key of a workflow record.
func KeyOf(r *models.WorkflowRecord) Key {
	return Key{Target: r.Target(), Reason: r.Reason}
}

// Admit decides whether candidate should be admitted given the records of the
// same kind that are currently open. The caller is responsible for passing only
// open records; any match on target and reason suppresses the candidate.
func Admit(candidate *models.WorkflowRecord, open []*models.WorkflowRecord) Verdict {
	key := KeyOf(candidate)
	for _, existing := range open {
		if existing == nil {
			continue
		}
		if KeyOf(existing) == key {
			return Verdict{Decision: DecisionSuppress, ExistingID: existing.ID}
		}
	}
	return Verdict{Decision: DecisionAdmit}
}

// Gate serialises the admit-check-then-insert sequence per organisation code.
type Gate struct {
	locks *KeyedMutex
}

// NewGate creates a new admission gate
func NewGate(logger zerolog.Logger) *Gate {
	return &Gate{locks: NewKeyedMutex(logger)}
}

// Do runs fn while holding the admission lock of orgCode.
func (g *Gate) Do(orgCode string, fn func() error) error {
	unlock := g.locks.Lock("org:" + orgCode)
	defer unlock()
	return fn()
}
