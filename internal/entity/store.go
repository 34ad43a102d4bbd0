package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/metrics"
	"github.com/simas-gestao/simas/internal/session"
)

// Store runs entity operations against the database.
type Store struct {
	db     *db.DB
	audit  *audit.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by the given database and audit log.
func NewStore(database *db.DB, auditStore *audit.Store, logger *zap.Logger) *Store {
	return &Store{db: database, audit: auditStore, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for archive dates and audit
// timestamps.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Now returns the store clock.
func (s *Store) Now() time.Time { return s.now() }

// Audit returns the audit store entries are written to.
func (s *Store) Audit() *audit.Store { return s.audit }

// Do runs fn inside one transaction on behalf of sess. Every write and
// audit entry made through the Repo commits together or not at all.
func (s *Store) Do(ctx context.Context, sess session.Session, fn func(*Repo) error) error {
	var repo *Repo
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		repo = &Repo{tx: tx, audit: s.audit, sess: sess, now: s.now}
		return fn(repo)
	})
	if err != nil {
		return err
	}
	for _, e := range repo.logged {
		metrics.AuditEntry(string(e.Action), e.Table)
	}
	return nil
}

// ListFilter narrows List results. Where keys must be catalogued columns.
type ListFilter struct {
	Where  map[string]string
	Limit  int
	Offset int
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	return getRecord(ctx, s.db, def, id)
}

// List returns records of kind in catalog order.
func (s *Store) List(ctx context.Context, kind Kind, filter ListFilter) ([]Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	return listRecords(ctx, s.db, def, filter)
}

// CountBy returns the number of records of kind per value of column.
func (s *Store) CountBy(ctx context.Context, kind Kind, column string) (map[string]int, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	if !def.HasColumn(column) {
		return nil, fmt.Errorf("%w: coluna %s desconhecida em %s", apperrors.ErrValidation, column, kind)
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf("SELECT COALESCE(%s, ''), COUNT(*) FROM %s GROUP BY 1", column, def.Table))
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", kind, err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var (
			value string
			n     int
		)
		if err := rows.Scan(&value, &n); err != nil {
			return nil, fmt.Errorf("scanning %s count: %w", kind, err)
		}
		counts[value] = n
	}
	return counts, rows.Err()
}

// Create inserts a record through generic CRUD.
func (s *Store) Create(ctx context.Context, sess session.Session, kind Kind, data map[string]any) (Record, error) {
	if err := checkGeneric(sess, kind); err != nil {
		return nil, err
	}
	var created Record
	err := s.Do(ctx, sess, func(r *Repo) error {
		var err error
		created, err = r.Create(ctx, kind, data)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity created", zap.String("entidade", string(kind)), zap.String("usuario", sess.UserID))
	return created, nil
}

// Update changes a record through generic CRUD.
func (s *Store) Update(ctx context.Context, sess session.Session, kind Kind, id string, changes map[string]any) (Record, error) {
	if err := checkGeneric(sess, kind); err != nil {
		return nil, err
	}
	var updated Record
	err := s.Do(ctx, sess, func(r *Repo) error {
		var err error
		updated, err = r.Update(ctx, kind, id, changes)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity updated", zap.String("entidade", string(kind)), zap.String("id", id), zap.String("usuario", sess.UserID))
	return updated, nil
}

// Delete removes a record through generic CRUD.
func (s *Store) Delete(ctx context.Context, sess session.Session, kind Kind, id string) error {
	if err := checkGeneric(sess, kind); err != nil {
		return err
	}
	err := s.Do(ctx, sess, func(r *Repo) error {
		return r.Delete(ctx, kind, id)
	})
	if err != nil {
		return err
	}
	s.logger.Info("entity deleted", zap.String("entidade", string(kind)), zap.String("id", id), zap.String("usuario", sess.UserID))
	return nil
}

// Archive moves a record to its archive table.
func (s *Store) Archive(ctx context.Context, sess session.Session, kind Kind, id, reason string) (Record, error) {
	if err := checkGeneric(sess, kind); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, fmt.Errorf("%w: motivo é obrigatório", apperrors.ErrValidation)
	}
	var archived Record
	err := s.Do(ctx, sess, func(r *Repo) error {
		var err error
		archived, err = r.Archive(ctx, kind, id, reason)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("entity archived", zap.String("entidade", string(kind)), zap.String("id", id), zap.String("usuario", sess.UserID))
	return archived, nil
}

func checkGeneric(sess session.Session, kind Kind) error {
	if err := sess.RequireWrite(); err != nil {
		return err
	}
	def, err := Lookup(string(kind))
	if err != nil {
		return err
	}
	if def.Managed {
		return fmt.Errorf("%w: %s é gerenciado pelo fluxo de atendimentos", apperrors.ErrBusinessRule, kind)
	}
	if def.ReadOnly {
		return fmt.Errorf("%w: %s é somente leitura", apperrors.ErrBusinessRule, kind)
	}
	return nil
}

func getRecord(ctx context.Context, q db.Querier, def *Definition, id string) (Record, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s = ?",
		strings.Join(def.Columns, ", "), def.Table, def.PrimaryKey)
	rec, err := scanRecord(def, q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(def.Kind, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", def.Kind, err)
	}
	return rec, nil
}

func listRecords(ctx context.Context, q db.Querier, def *Definition, filter ListFilter) ([]Record, error) {
	var (
		clauses []string
		args    []any
	)
	for col, value := range filter.Where {
		if !def.HasColumn(col) {
			return nil, fmt.Errorf("%w: coluna %s desconhecida em %s", apperrors.ErrValidation, col, def.Kind)
		}
		clauses = append(clauses, col+" = ?")
		args = append(args, value)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(def.Columns, ", "), def.Table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	orderBy := def.PrimaryKey
	if def.OrderBy != "" {
		orderBy = def.OrderBy + ", " + def.PrimaryKey
	}
	query += " ORDER BY " + orderBy
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", def.Kind, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(def, rows)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", def.Kind, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(def *Definition, sc scanner) (Record, error) {
	values := make([]sql.NullString, len(def.Columns))
	dest := make([]any, len(values))
	for i := range values {
		dest[i] = &values[i]
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}
	rec := make(Record, len(def.Columns))
	for i, col := range def.Columns {
		if values[i].Valid {
			rec[col] = values[i].String
		} else {
			rec[col] = nil
		}
	}
	return rec, nil
}
