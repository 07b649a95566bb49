package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/config"
	"github.com/aleister1102/driftwatch/internal/models"
	"github.com/rs/zerolog"

	_ "modernc.org/sqlite"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// handle runs statements against a database or a transaction.
type handle struct {
	q       querier
	dialect dialect
	now     func() time.Time
	// retry is false inside transactions, where the whole unit is retried instead.
	retry bool
}

func (h *handle) run(ctx context.Context, op func() error) error {
	if !h.retry {
		return op()
	}
	return retryOnBusy(ctx, op)
}

func (h *handle) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	query = h.dialect.rebind(query)
	var res sql.Result
	err := h.run(ctx, func() error {
		var execErr error
		res, execErr = h.q.ExecContext(ctx, query, args...)
		return execErr
	})
	return res, err
}

func (h *handle) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	ctx = ensureContext(ctx)
	query = h.dialect.rebind(query)
	var rows *sql.Rows
	err := h.run(ctx, func() error {
		var queryErr error
		rows, queryErr = h.q.QueryContext(ctx, query, args...)
		return queryErr
	})
	return rows, err
}

func (h *handle) queryRow(ctx context.Context, query string, args []any, scan func(*sql.Row) error) error {
	ctx = ensureContext(ctx)
	query = h.dialect.rebind(query)
	return h.run(ctx, func() error {
		return scan(h.q.QueryRowContext(ctx, query, args...))
	})
}

// Monitors returns the content monitor repository.
func (h *handle) Monitors() *Repo[models.ContentMonitor] { return bindRepo(monitorTable, h) }

// Changes returns the content change repository.
func (h *handle) Changes() *Repo[models.ContentChange] { return bindRepo(changeTable, h) }

// Reviews returns the content review repository.
func (h *handle) Reviews() *Repo[models.ContentReview] { return bindRepo(reviewTable, h) }

// Alerts returns the content alert repository.
func (h *handle) Alerts() *Repo[models.ContentAlert] { return bindRepo(alertTable, h) }

// Failures returns the content failure repository.
func (h *handle) Failures() *Repo[models.ContentFailure] { return bindRepo(failureTable, h) }

// Store is the relational record store shared by every component.
type Store struct {
	handle
	db     *sql.DB
	logger zerolog.Logger
}

// Tx is a Store view bound to one database transaction.
type Tx struct {
	handle
}

// LockOrg serialises admission for one organisation across processes until
// the transaction ends. SQLite already serialises writers, so it is a no-op
// there.
func (t *Tx) LockOrg(ctx context.Context, orgCode string) error {
	if t.dialect != dialectPostgres {
		return nil
	}
	if _, err := t.exec(ctx, "SELECT pg_advisory_xact_lock(hashtext(?))", orgCode); err != nil {
		return common.NewPersistenceError("lock", "organisation", err)
	}
	return nil
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// Open connects to the configured backend and ensures the schema exists.
func Open(ctx context.Context, cfg config.StorageConfig, logger zerolog.Logger, opts ...Option) (*Store, error) {
	ctx = ensureContext(ctx)
	logger = logger.With().Str("component", "Store").Str("driver", driverName(cfg)).Logger()

	var (
		db  *sql.DB
		d   dialect
		err error
	)
	if cfg.IsPostgres() {
		d = dialectPostgres
		db, err = openPostgres(ctx, cfg.DSN)
	} else {
		d = dialectSQLite
		db, err = openSQLite(ctx, cfg.SQLitePath)
	}
	if err != nil {
		logger.Error().Err(err).Msg("Failed to open store")
		return nil, err
	}

	s := &Store{
		handle: handle{q: db, dialect: d, now: time.Now, retry: true},
		db:     db,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		logger.Error().Err(err).Msg("Failed to initialize store schema")
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug().Msg("Store opened and schema verified")
	return s, nil
}

func driverName(cfg config.StorageConfig) string {
	if cfg.IsPostgres() {
		return "postgres"
	}
	return "sqlite"
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.HasPrefix(path, "file::memory:") || strings.Contains(path, "mode=memory")
}

func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, common.NewConfigurationError("storage_config", "sqlite_path", "path is empty")
	}
	if !isMemoryPath(path) {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", filepath.Dir(path), err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: writes are serialised and in-memory databases stay shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	return db, nil
}

func openPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, common.NewConfigurationError("storage_config", "dsn", "dsn is empty")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver reports the backend name.
func (s *Store) Driver() string {
	return s.dialect.String()
}

// Ping checks that the backend is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx = ensureContext(ctx)
	if err := s.db.PingContext(ctx); err != nil {
		return err
	}
	var one int
	return s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one)
}

// WithTx runs fn inside one transaction, committing when fn returns nil. When
// SQLite reports the database busy the whole unit is retried, so fn must not
// keep side effects outside the transaction across attempts.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		sqlTx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		tx := &Tx{handle: handle{q: sqlTx, dialect: s.dialect, now: s.now}}

		if err := fn(tx); err != nil {
			if rbErr := sqlTx.Rollback(); rbErr != nil {
				s.logger.Warn().Err(rbErr).Msg("Rollback failed")
			}
			return err
		}
		if err := sqlTx.Commit(); err != nil {
			return fmt.Errorf("commit transaction: %w", err)
		}
		return nil
	})
}

// MaxSessionID returns the highest session id stored on any workflow record,
// or zero when none exist.
func (s *Store) MaxSessionID(ctx context.Context) (models.SessionID, error) {
	query := `SELECT COALESCE(MAX(session_id), 0) FROM (
		SELECT session_id FROM content_changes
		UNION ALL SELECT session_id FROM content_reviews
		UNION ALL SELECT session_id FROM content_alerts
		UNION ALL SELECT session_id FROM content_failures
	) AS sessions`
	var max int64
	if err := s.queryRow(ctx, query, nil, func(row *sql.Row) error { return row.Scan(&max) }); err != nil {
		return 0, common.NewPersistenceError("max", "session_id", err)
	}
	return models.SessionID(max), nil
}

// SetAlertDelivery records the notification delivery id of an alert without
// touching its workflow status.
func (h *handle) SetAlertDelivery(ctx context.Context, alertID int64, deliveryID string) error {
	res, err := h.exec(ctx, "UPDATE content_alerts SET delivery_id = ?, updated_at = ? WHERE id = ?",
		deliveryID, formatTime(h.now().UTC()), alertID)
	if err != nil {
		return common.NewPersistenceError("update", "content_alert", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: content_alert %d", models.ErrRecordNotFound, alertID)
	}
	return nil
}

// LastSweepAt returns the latest monitor execution time, or nil when no
// monitor ever ran.
func (s *Store) LastSweepAt(ctx context.Context) (*time.Time, error) {
	var raw sql.NullString
	err := s.queryRow(ctx, "SELECT MAX(last_executed_at) FROM content_monitors", nil, func(row *sql.Row) error {
		return row.Scan(&raw)
	})
	if err != nil {
		return nil, common.NewPersistenceError("max", "last_executed_at", err)
	}
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	t, err := parseTime(raw.String)
	if err != nil {
		return nil, common.NewPersistenceError("scan", "last_executed_at", err)
	}
	return &t, nil
}
