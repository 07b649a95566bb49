package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aleister1102/driftwatch/internal/common"
	"github.com/aleister1102/driftwatch/internal/models"
)

// recordMeta points at the identity and audit columns the store maintains.
type recordMeta struct {
	id        *int64
	createdAt *time.Time
	updatedAt *time.Time
}

// Table maps one entity type onto one relational table.
type Table[T any] struct {
	name   string
	entity string
	bind   func(*T) (recordMeta, []field)
}

// Name returns the table name.
func (t *Table[T]) Name() string { return t.name }

func (t *Table[T]) columns() []string {
	var zero T
	_, fields := t.bind(&zero)
	cols := make([]string, 0, len(fields)+3)
	cols = append(cols, "id")
	for _, f := range fields {
		cols = append(cols, f.column)
	}
	return append(cols, "created_at", "updated_at")
}

func (t *Table[T]) scan(row interface{ Scan(dest ...any) error }) (*T, error) {
	rec := new(T)
	meta, fields := t.bind(rec)
	fields = append([]field{int64Col("id", meta.id)}, fields...)
	fields = append(fields, timeCol("created_at", meta.createdAt), timeCol("updated_at", meta.updatedAt))

	targets := make([]any, len(fields))
	decoders := make([]func() error, len(fields))
	for i, f := range fields {
		targets[i], decoders[i] = f.dest()
	}
	if err := row.Scan(targets...); err != nil {
		return nil, err
	}
	for i, decode := range decoders {
		if err := decode(); err != nil {
			return nil, &RowError{Table: t.name, Column: fields[i].column, ID: *meta.id, Err: err}
		}
	}
	return rec, nil
}

// RowError reports a stored row holding a value the mapper cannot decode.
type RowError struct {
	Table  string
	Column string
	ID     int64
	Err    error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s.%s (id %d): %v", e.Table, e.Column, e.ID, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// Predicate is one condition of a List or Count query.
type Predicate struct {
	clause string
	args   []any
}

// Eq matches column = value.
func Eq(column string, value any) Predicate {
	return Predicate{clause: column + " = ?", args: []any{value}}
}

// In matches any of values. An empty set matches nothing.
func In[V any](column string, values ...V) Predicate {
	if len(values) == 0 {
		return Predicate{clause: "1 = 0"}
	}
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = normalizeArg(v)
	}
	return Predicate{clause: column + " IN (" + makePlaceholders(len(values)) + ")", args: args}
}

// Since matches timestamps at or after t.
func Since(column string, t time.Time) Predicate {
	return Predicate{clause: column + " >= ?", args: []any{formatTime(t)}}
}

// Before matches timestamps strictly before t.
func Before(column string, t time.Time) Predicate {
	return Predicate{clause: column + " < ?", args: []any{formatTime(t)}}
}

// Or joins predicates with OR.
func Or(preds ...Predicate) Predicate {
	if len(preds) == 0 {
		return Predicate{clause: "1 = 0"}
	}
	clauses := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		clauses[i] = "(" + p.clause + ")"
		args = append(args, p.args...)
	}
	return Predicate{clause: strings.Join(clauses, " OR "), args: args}
}

// normalizeArg turns string-kinded enums into plain strings for the driver.
func normalizeArg(v any) any {
	switch s := v.(type) {
	case models.ReviewStatus:
		return string(s)
	case models.AlertStatus:
		return string(s)
	case models.FailureStatus:
		return string(s)
	case models.MonitorStatus:
		return string(s)
	case models.SessionID:
		return int64(s)
	}
	return v
}

// Query describes a List call. OrderBy entries are trusted SQL fragments.
type Query struct {
	Where   []Predicate
	OrderBy []string
	Limit   int
	// SkipRow, when set, receives rows that fail to decode and List leaves
	// them out instead of failing.
	SkipRow func(*RowError)
}

func whereClause(preds []Predicate) (string, []any) {
	if len(preds) == 0 {
		return "", nil
	}
	clauses := make([]string, len(preds))
	var args []any
	for i, p := range preds {
		clauses[i] = "(" + p.clause + ")"
		for _, a := range p.args {
			args = append(args, normalizeArg(a))
		}
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", count), ",")
}

// Repo is a Table bound to a connection or transaction.
type Repo[T any] struct {
	table *Table[T]
	h     *handle
}

func bindRepo[T any](t *Table[T], h *handle) *Repo[T] {
	return &Repo[T]{table: t, h: h}
}

// GetByID loads one record or returns models.ErrRecordNotFound.
func (r *Repo[T]) GetByID(ctx context.Context, id int64) (*T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = ?", strings.Join(r.table.columns(), ", "), r.table.name)
	var rec *T
	err := r.h.queryRow(ctx, query, []any{id}, func(row *sql.Row) error {
		var scanErr error
		rec, scanErr = r.table.scan(row)
		return scanErr
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s %d", models.ErrRecordNotFound, r.table.entity, id)
	}
	if err != nil {
		return nil, common.NewPersistenceError("get", r.table.entity, err)
	}
	return rec, nil
}

// Add inserts rec, assigning its id and audit timestamps. A clash on a unique
// key is reported as models.ErrDuplicateKey.
func (r *Repo[T]) Add(ctx context.Context, rec *T) error {
	meta, fields := r.table.bind(rec)
	now := r.h.now().UTC()

	cols := make([]string, 0, len(fields)+2)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		v, err := f.value()
		if err != nil {
			return common.NewPersistenceError("insert", r.table.entity, err)
		}
		cols = append(cols, f.column)
		args = append(args, v)
	}
	cols = append(cols, "created_at", "updated_at")
	args = append(args, formatTime(now), formatTime(now))

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING id",
		r.table.name, strings.Join(cols, ", "), makePlaceholders(len(cols)))

	var id int64
	err := r.h.queryRow(ctx, query, args, func(row *sql.Row) error { return row.Scan(&id) })
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s: %v", models.ErrDuplicateKey, r.table.entity, err)
		}
		return common.NewPersistenceError("insert", r.table.entity, err)
	}

	*meta.id = id
	*meta.createdAt = now
	*meta.updatedAt = now
	return nil
}

// Update writes every mapped column of rec and refreshes updated_at.
func (r *Repo[T]) Update(ctx context.Context, rec *T) error {
	meta, fields := r.table.bind(rec)
	now := r.h.now().UTC()

	sets := make([]string, 0, len(fields)+1)
	args := make([]any, 0, len(fields)+2)
	for _, f := range fields {
		v, err := f.value()
		if err != nil {
			return common.NewPersistenceError("update", r.table.entity, err)
		}
		sets = append(sets, f.column+" = ?")
		args = append(args, v)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(now), *meta.id)

	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = ?", r.table.name, strings.Join(sets, ", "))
	res, err := r.h.exec(ctx, query, args...)
	if err != nil {
		if isDuplicateKey(err) {
			return fmt.Errorf("%w: %s: %v", models.ErrDuplicateKey, r.table.entity, err)
		}
		return common.NewPersistenceError("update", r.table.entity, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s %d", models.ErrRecordNotFound, r.table.entity, *meta.id)
	}
	*meta.updatedAt = now
	return nil
}

// List returns records matching q.
func (r *Repo[T]) List(ctx context.Context, q Query) ([]*T, error) {
	where, args := whereClause(q.Where)
	query := fmt.Sprintf("SELECT %s FROM %s%s", strings.Join(r.table.columns(), ", "), r.table.name, where)
	if len(q.OrderBy) > 0 {
		query += " ORDER BY " + strings.Join(q.OrderBy, ", ")
	} else {
		query += " ORDER BY id ASC"
	}
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := r.h.query(ctx, query, args...)
	if err != nil {
		return nil, common.NewPersistenceError("list", r.table.entity, err)
	}
	defer rows.Close()

	var out []*T
	for rows.Next() {
		rec, err := r.table.scan(rows)
		if err != nil {
			var rowErr *RowError
			if q.SkipRow != nil && errors.As(err, &rowErr) {
				q.SkipRow(rowErr)
				continue
			}
			return nil, common.NewPersistenceError("scan", r.table.entity, err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewPersistenceError("list", r.table.entity, err)
	}
	return out, nil
}

// Count returns the number of records matching every predicate.
func (r *Repo[T]) Count(ctx context.Context, preds ...Predicate) (int, error) {
	where, args := whereClause(preds)
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", r.table.name, where)
	var n int64
	if err := r.h.queryRow(ctx, query, args, func(row *sql.Row) error { return row.Scan(&n) }); err != nil {
		return 0, common.NewPersistenceError("count", r.table.entity, err)
	}
	return int(n), nil
}
