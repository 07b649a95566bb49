package store

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postgresIntegrationDSN(t *testing.T) string {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("DRIFTWATCH_TEST_POSTGRES_DSN"))
	if dsn == "" {
		t.Skip("DRIFTWATCH_TEST_POSTGRES_DSN not set")
	}
	return dsn
}

func TestPostgresIntegrationRoundTrip(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	ctx := context.Background()

	st, err := Open(ctx, config.StorageConfig{Driver: "postgres", DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, table := range []string{"content_failures", "content_alerts", "content_reviews", "content_changes", "content_monitors"} {
			_, _ = st.exec(ctx, "DROP TABLE IF EXISTS "+table)
		}
		_ = st.Close()
	})
	assert.Equal(t, "postgres", st.Driver())

	m := newMonitor("pg-listing")
	m.Snapshot = []byte("S0")
	require.NoError(t, st.Monitors().Add(ctx, m))

	got, err := st.Monitors().GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("S0"), got.Snapshot)

	r := &models.ContentReview{
		WorkflowRecord: models.WorkflowRecord{RecordKey: "pg-review", MonitorID: m.ID, OrgCode: "ACME", Reason: models.ReasonContentDrift, SessionID: 5},
		Status:         models.ReviewStatusNew,
	}
	require.NoError(t, st.Reviews().Add(ctx, r))
	assert.ErrorIs(t, st.Reviews().Add(ctx, r), models.ErrDuplicateKey)

	open, err := st.Reviews().List(ctx, Query{Where: []Predicate{In("status", models.ReviewStatusNew, models.ReviewStatusInProgress)}})
	require.NoError(t, err)
	assert.Len(t, open, 1)

	max, err := st.MaxSessionID(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.SessionID(5), max)
}

func TestPostgresIntegrationLockOrgSerialisesAdmission(t *testing.T) {
	dsn := postgresIntegrationDSN(t)
	ctx := context.Background()

	st, err := Open(ctx, config.StorageConfig{Driver: "postgres", DSN: dsn}, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	holding := make(chan struct{})
	release := make(chan struct{})
	firstDone := make(chan error, 1)
	go func() {
		firstDone <- st.WithTx(ctx, func(tx *Tx) error {
			if err := tx.LockOrg(ctx, "ACME"); err != nil {
				return err
			}
			close(holding)
			<-release
			return nil
		})
	}()
	<-holding

	// A different organisation is not held up.
	require.NoError(t, st.WithTx(ctx, func(tx *Tx) error {
		return tx.LockOrg(ctx, "GLOBEX")
	}))

	acquired := make(chan time.Time, 1)
	secondDone := make(chan error, 1)
	go func() {
		secondDone <- st.WithTx(ctx, func(tx *Tx) error {
			if err := tx.LockOrg(ctx, "ACME"); err != nil {
				return err
			}
			acquired <- time.Now()
			return nil
		})
	}()

	select {
	case <-acquired:
		t.Fatal("second transaction took the ACME lock while the first still held it")
	case <-time.After(300 * time.Millisecond):
	}

	releasedAt := time.Now()
	close(release)
	require.NoError(t, <-firstDone)

	select {
	case at := <-acquired:
		assert.False(t, at.Before(releasedAt))
	case <-time.After(5 * time.Second):
		t.Fatal("second transaction never took the ACME lock")
	}
	require.NoError(t, <-secondDone)
}
