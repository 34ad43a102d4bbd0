package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/session"
)

// DateTimeLayout is used for archive dates and DATA_ENTRADA.
const DateTimeLayout = audit.TimeLayout

// Repo performs entity reads and writes inside one transaction on behalf
// of one session. Audited methods append their audit entry through the
// same transaction; raw methods (Insert, Remove, Overwrite) do not and are
// meant for callers that log their own entry, such as restore.
type Repo struct {
	tx    *sql.Tx
	audit *audit.Store
	sess  session.Session
	now   func() time.Time

	// logged holds the entries appended so far; they are counted once the
	// transaction commits.
	logged []audit.Entry
}

// Now returns the repo clock.
func (r *Repo) Now() time.Time { return r.now() }

// Tx exposes the underlying transaction as a Querier.
func (r *Repo) Tx() db.Querier { return r.tx }

// Audit returns the audit store the repo writes to.
func (r *Repo) Audit() *audit.Store { return r.audit }

// Get loads one record by primary key.
func (r *Repo) Get(ctx context.Context, kind Kind, id string) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	return getRecord(ctx, r.tx, def, id)
}

// Exists reports whether a record with the given primary key exists.
func (r *Repo) Exists(ctx context.Context, kind Kind, id string) (bool, error) {
	_, err := r.Get(ctx, kind, id)
	if errors.Is(err, apperrors.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Find returns every record of kind whose column equals value.
func (r *Repo) Find(ctx context.Context, kind Kind, column, value string) ([]Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	return listRecords(ctx, r.tx, def, ListFilter{Where: map[string]string{column: value}})
}

// Create inserts a new record and logs CRIAR.
func (r *Repo) Create(ctx context.Context, kind Kind, data map[string]any) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	if def.ReadOnly {
		return nil, fmt.Errorf("%w: %s é somente leitura", apperrors.ErrBusinessRule, kind)
	}

	rec, err := Normalize(def, data)
	if err != nil {
		return nil, err
	}
	id := rec.String(def.PrimaryKey)
	if id == "" {
		if !def.GeneratedKey {
			return nil, fmt.Errorf("%w: campo %s é obrigatório", apperrors.ErrValidation, def.PrimaryKey)
		}
		id = uuid.New().String()
		rec[def.PrimaryKey] = id
	}
	if def.VersionColumn != "" {
		rec[def.VersionColumn] = "1"
	}

	if err := r.Insert(ctx, kind, rec); err != nil {
		return nil, err
	}
	created, err := getRecord(ctx, r.tx, def, id)
	if err != nil {
		return nil, err
	}
	if err := r.log(ctx, audit.ActionCriar, kind, id, nil, created); err != nil {
		return nil, err
	}
	return created, nil
}

// Update applies changes to an existing record and logs EDITAR. The primary
// key cannot change; the version column, when present, is bumped by the
// repo and ignored in changes. An update that changes nothing writes
// nothing and logs nothing.
func (r *Repo) Update(ctx context.Context, kind Kind, id string, changes map[string]any) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	if def.ReadOnly {
		return nil, fmt.Errorf("%w: %s é somente leitura", apperrors.ErrBusinessRule, kind)
	}

	before, err := getRecord(ctx, r.tx, def, id)
	if err != nil {
		return nil, err
	}
	values, err := Normalize(def, changes)
	if err != nil {
		return nil, err
	}
	if pk, ok := values[def.PrimaryKey]; ok {
		if !Equal(pk, id) {
			return nil, fmt.Errorf("%w: %s não pode ser alterado", apperrors.ErrValidation, def.PrimaryKey)
		}
		delete(values, def.PrimaryKey)
	}
	if def.VersionColumn != "" {
		delete(values, def.VersionColumn)
	}

	after := before.Clone()
	for col, v := range values {
		after[col] = v
	}
	if len(Diff(before, after)) == 0 {
		return before, nil
	}
	if def.VersionColumn != "" {
		values[def.VersionColumn] = strconv.Itoa(Version(def, before) + 1)
	}

	updated, err := r.Overwrite(ctx, kind, id, values)
	if err != nil {
		return nil, err
	}
	if err := r.log(ctx, audit.ActionEditar, kind, id, before, updated); err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete removes a record and logs EXCLUIR.
func (r *Repo) Delete(ctx context.Context, kind Kind, id string) error {
	def, err := Lookup(string(kind))
	if err != nil {
		return err
	}
	if def.ReadOnly || def.Managed {
		return fmt.Errorf("%w: registros de %s não podem ser excluídos", apperrors.ErrBusinessRule, kind)
	}

	before, err := getRecord(ctx, r.tx, def, id)
	if err != nil {
		return err
	}
	if _, err := r.Remove(ctx, kind, id); err != nil {
		return err
	}
	return r.log(ctx, audit.ActionExcluir, kind, id, before, nil)
}

// Archive moves a live record into its archive table with a reason and
// logs ARQUIVAR or INATIVAR. VALOR_NOVO holds the archive row.
func (r *Repo) Archive(ctx context.Context, kind Kind, id, reason string) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}
	if def.Archive == nil {
		return nil, fmt.Errorf("%w: %s não possui arquivo histórico", apperrors.ErrBusinessRule, kind)
	}
	archiveDef := MustLookup(def.Archive.Kind)

	live, err := getRecord(ctx, r.tx, def, id)
	if err != nil {
		return nil, err
	}

	archived := Record{}
	for _, col := range archiveDef.Columns {
		if v, ok := live[col]; ok {
			archived[col] = v
		}
	}
	archived[archiveDef.PrimaryKey] = uuid.New().String()
	archived[def.Archive.ReasonColumn] = strings.TrimSpace(reason)
	archived[def.Archive.DateColumn] = r.now().UTC().Format(DateTimeLayout)

	if err := r.Insert(ctx, def.Archive.Kind, archived); err != nil {
		return nil, err
	}
	if _, err := r.Remove(ctx, kind, id); err != nil {
		return nil, err
	}
	if err := r.log(ctx, def.Archive.Action, kind, id, live, archived); err != nil {
		return nil, err
	}
	return archived, nil
}

// Insert writes rec as a new row without logging. It fails with
// ErrConflict when the primary key is already taken.
func (r *Repo) Insert(ctx context.Context, kind Kind, rec Record) error {
	def, err := Lookup(string(kind))
	if err != nil {
		return err
	}
	id := rec.String(def.PrimaryKey)
	if id == "" {
		return fmt.Errorf("%w: campo %s é obrigatório", apperrors.ErrValidation, def.PrimaryKey)
	}
	exists, err := r.Exists(ctx, kind, id)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: %s %q já existe", apperrors.ErrConflict, kind, id)
	}

	var (
		cols         []string
		placeholders []string
		args         []any
	)
	for _, col := range def.Columns {
		v, ok := rec[col]
		if !ok {
			continue
		}
		cols = append(cols, col)
		placeholders = append(placeholders, "?")
		args = append(args, v)
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		def.Table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
	if _, err := r.tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("inserting %s: %w", kind, err)
	}
	return nil
}

// Remove deletes a row without logging and reports whether it existed.
func (r *Repo) Remove(ctx context.Context, kind Kind, id string) (bool, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return false, err
	}
	res, err := r.tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", def.Table, def.PrimaryKey), id)
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", kind, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("deleting %s: %w", kind, err)
	}
	return n > 0, nil
}

// Overwrite sets the given columns on an existing row without logging and
// returns the row as stored.
func (r *Repo) Overwrite(ctx context.Context, kind Kind, id string, values Record) (Record, error) {
	def, err := Lookup(string(kind))
	if err != nil {
		return nil, err
	}

	var (
		sets []string
		args []any
	)
	for _, col := range def.Columns {
		v, ok := values[col]
		if !ok || col == def.PrimaryKey {
			continue
		}
		sets = append(sets, col+" = ?")
		args = append(args, v)
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
			def.Table, strings.Join(sets, ", "), def.PrimaryKey)
		res, err := r.tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("updating %s: %w", kind, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return nil, notFound(kind, id)
		}
	}
	return getRecord(ctx, r.tx, def, id)
}

// Log appends an audit entry for a change made by the caller.
func (r *Repo) Log(ctx context.Context, entry audit.Entry) (*audit.Entry, error) {
	if entry.User == "" {
		entry.User = r.sess.UserID
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = r.now()
	}
	appended, err := r.audit.Append(ctx, r.tx, entry)
	if err != nil {
		return nil, err
	}
	r.logged = append(r.logged, *appended)
	return appended, nil
}

func (r *Repo) log(ctx context.Context, action audit.Action, kind Kind, id string, before, after Record) error {
	oldValue, err := audit.Snapshot(before)
	if err != nil {
		return err
	}
	newValue, err := audit.Snapshot(after)
	if err != nil {
		return err
	}
	_, err = r.Log(ctx, audit.Entry{
		Action:   action,
		Table:    string(kind),
		RecordID: id,
		OldValue: oldValue,
		NewValue: newValue,
	})
	return err
}

// Version returns the optimistic-lock counter of rec, or 0 when the kind
// is not versioned.
func Version(def *Definition, rec Record) int {
	if def.VersionColumn == "" {
		return 0
	}
	n, _ := strconv.Atoi(rec.String(def.VersionColumn))
	return n
}

func notFound(kind Kind, id string) error {
	return fmt.Errorf("%w: %s %q não encontrado", apperrors.ErrNotFound, kind, id)
}
