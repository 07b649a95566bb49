package dedup

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func record(id, monitorID int64, org, reason, entity string) *models.WorkflowRecord {
	return &models.WorkflowRecord{
		ID:          id,
		MonitorID:   monitorID,
		OrgCode:     org,
		ContentType: "listing",
		Reason:      reason,
		Attributes:  models.Attributes{models.AttrEntity: entity},
	}
}

func TestAdmit(t *testing.T) {
	candidate := record(0, 1, "ACME", models.ReasonContentDrift, "listing-1")

	tests := []struct {
		name       string
		open       []*models.WorkflowRecord
		expected   Decision
		existingID int64
	}{
		{name: "no open records", open: nil, expected: DecisionAdmit},
		{
			name:       "same target and reason",
			open:       []*models.WorkflowRecord{record(9, 1, "ACME", models.ReasonContentDrift, "listing-1")},
			expected:   DecisionSuppress,
			existingID: 9,
		},
		{
			name:     "different entity",
			open:     []*models.WorkflowRecord{record(9, 1, "ACME", models.ReasonContentDrift, "listing-2")},
			expected: DecisionAdmit,
		},
		{
			name:     "different reason",
			open:     []*models.WorkflowRecord{record(9, 1, "ACME", "fetch_unreachable", "listing-1")},
			expected: DecisionAdmit,
		},
		{
			name:     "different organisation",
			open:     []*models.WorkflowRecord{record(9, 1, "GLOBEX", models.ReasonContentDrift, "listing-1")},
			expected: DecisionAdmit,
		},
		{
			name:     "different monitor",
			open:     []*models.WorkflowRecord{record(9, 2, "ACME", models.ReasonContentDrift, "listing-1")},
			expected: DecisionAdmit,
		},
		{
			name: "match among several",
			open: []*models.WorkflowRecord{
				nil,
				record(3, 2, "ACME", models.ReasonContentDrift, "listing-1"),
				record(4, 1, "ACME", models.ReasonContentDrift, "listing-1"),
			},
			expected:   DecisionSuppress,
			existingID: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verdict := Admit(candidate, tt.open)
			assert.Equal(t, tt.expected, verdict.Decision)
			assert.Equal(t, tt.existingID, verdict.ExistingID)
			assert.Equal(t, tt.expected == DecisionAdmit, verdict.Admitted())
		})
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "admit", DecisionAdmit.String())
	assert.Equal(t, "suppress", DecisionSuppress.String())
}

func TestGate_SerialisesPerOrganisation(t *testing.T) {
	gate := NewGate(zerolog.Nop())

	var (
		inside  atomic.Int32
		maxSeen atomic.Int32
		wg      sync.WaitGroup
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = gate.Do("ACME", func() error {
				n := inside.Add(1)
				for {
					m := maxSeen.Load()
					if n <= m || maxSeen.CompareAndSwap(m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				inside.Add(-1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestGate_DifferentOrganisationsDoNotBlock(t *testing.T) {
	gate := NewGate(zerolog.Nop())
	done := make(chan struct{})

	_ = gate.Do("ACME", func() error {
		go func() {
			_ = gate.Do("GLOBEX", func() error { return nil })
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Error("GLOBEX admission blocked behind ACME")
		}
		return nil
	})
}

func TestKeyedMutex(t *testing.T) {
	km := NewKeyedMutex(zerolog.Nop())

	assert.Same(t, km.Get("a"), km.Get("a"))
	assert.NotSame(t, km.Get("a"), km.Get("b"))
	assert.Equal(t, 2, km.Count())

	removed := km.Cleanup([]string{"a"})
	assert.Equal(t, 1, removed)
	assert.Equal(t, 1, km.Count())
}
