package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/db"
)

// Store appends and reads audit entries.
type Store struct {
	db     *db.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB, logger *zap.Logger) *Store {
	return &Store{db: database, logger: logger, now: time.Now}
}

// SetClock replaces the time source used for DATA_HORA.
func (s *Store) SetClock(now func() time.Time) {
	s.now = now
}

// Append writes a new entry through q, which is normally the transaction
// carrying the mutation being logged. ID and Timestamp are filled in when
// empty. The stored entry is returned.
func (s *Store) Append(ctx context.Context, q db.Querier, entry Entry) (*Entry, error) {
	if !entry.Action.Valid() {
		return nil, fmt.Errorf("appending audit entry: unknown action %q", entry.Action)
	}
	if entry.Table == "" || entry.RecordID == "" {
		return nil, errors.New("appending audit entry: table and record id are required")
	}
	if entry.User == "" {
		return nil, errors.New("appending audit entry: user is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = s.now()
	}
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)

	_, err := q.ExecContext(ctx, `
		INSERT INTO audit_log (
			ID_LOG, DATA_HORA, USUARIO, ACAO, TABELA_AFETADA,
			ID_REGISTRO_AFETADO, VALOR_ANTIGO, VALOR_NOVO, ID_LOG_RESTAURADO
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.Format(TimeLayout),
		entry.User,
		string(entry.Action),
		entry.Table,
		entry.RecordID,
		nullJSON(entry.OldValue),
		nullJSON(entry.NewValue),
		nullString(entry.RestoredFrom),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting audit entry: %w", err)
	}

	s.logger.Debug("audit entry appended",
		zap.String("id_log", entry.ID),
		zap.String("acao", string(entry.Action)),
		zap.String("tabela", entry.Table),
		zap.String("registro", entry.RecordID),
		zap.String("usuario", entry.User))
	return &entry, nil
}

// GetByID retrieves a single audit entry.
func (s *Store) GetByID(ctx context.Context, id string) (*Entry, error) {
	return s.Get(ctx, s.db, id)
}

// Get retrieves a single audit entry through q.
func (s *Store) Get(ctx context.Context, q db.Querier, id string) (*Entry, error) {
	row := q.QueryRowContext(ctx, "SELECT "+columns+" FROM audit_log WHERE ID_LOG = ?", id)
	e, err := scanInto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: registro de auditoria %q não encontrado", apperrors.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("reading audit entry: %w", err)
	}
	return e, nil
}

// QueryFilter controls which audit entries are returned by Query.
type QueryFilter struct {
	User         string
	Action       Action
	Table        string
	RecordID     string
	RestoredFrom string
	Since        *time.Time
	Until        *time.Time
	Limit        int
	Offset       int
	// Ascending returns oldest entries first.
	Ascending bool
}

// Query returns audit entries matching the filter, newest first unless
// Ascending is set.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return s.QueryWith(ctx, s.db, filter)
}

// QueryWith runs Query through q.
func (s *Store) QueryWith(ctx context.Context, q db.Querier, filter QueryFilter) ([]Entry, error) {
	var (
		clauses []string
		args    []any
	)

	if filter.User != "" {
		clauses = append(clauses, "USUARIO = ?")
		args = append(args, filter.User)
	}
	if filter.Action != "" {
		clauses = append(clauses, "ACAO = ?")
		args = append(args, string(filter.Action))
	}
	if filter.Table != "" {
		clauses = append(clauses, "TABELA_AFETADA = ?")
		args = append(args, filter.Table)
	}
	if filter.RecordID != "" {
		clauses = append(clauses, "ID_REGISTRO_AFETADO = ?")
		args = append(args, filter.RecordID)
	}
	if filter.RestoredFrom != "" {
		clauses = append(clauses, "ID_LOG_RESTAURADO = ?")
		args = append(args, filter.RestoredFrom)
	}
	if filter.Since != nil {
		clauses = append(clauses, "DATA_HORA >= ?")
		args = append(args, filter.Since.UTC().Format(TimeLayout))
	}
	if filter.Until != nil {
		clauses = append(clauses, "DATA_HORA <= ?")
		args = append(args, filter.Until.UTC().Format(TimeLayout))
	}

	query := "SELECT " + columns + " FROM audit_log"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Ascending {
		query += " ORDER BY DATA_HORA ASC, rowid ASC"
	} else {
		query += " ORDER BY DATA_HORA DESC, rowid DESC"
	}

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	} else if filter.Offset > 0 {
		query += " LIMIT -1"
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanInto(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// CountByAction returns the number of entries per ACAO.
func (s *Store) CountByAction(ctx context.Context) (map[Action]int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT ACAO, COUNT(*) FROM audit_log GROUP BY ACAO")
	if err != nil {
		return nil, fmt.Errorf("counting audit entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Action]int, len(Actions))
	for _, a := range Actions {
		counts[a] = 0
	}
	for rows.Next() {
		var (
			action string
			n      int
		)
		if err := rows.Scan(&action, &n); err != nil {
			return nil, fmt.Errorf("scanning audit count: %w", err)
		}
		counts[Action(action)] = n
	}
	return counts, rows.Err()
}

const columns = "ID_LOG, DATA_HORA, USUARIO, ACAO, TABELA_AFETADA, ID_REGISTRO_AFETADO, VALOR_ANTIGO, VALOR_NOVO, ID_LOG_RESTAURADO"

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanInto(sc scanner) (*Entry, error) {
	var (
		e                            Entry
		ts, action                   string
		oldValue, newValue, restored sql.NullString
	)

	err := sc.Scan(&e.ID, &ts, &e.User, &action, &e.Table, &e.RecordID, &oldValue, &newValue, &restored)
	if err != nil {
		return nil, err
	}

	e.Action = Action(action)
	if t, parseErr := time.Parse(TimeLayout, ts); parseErr == nil {
		e.Timestamp = t
	} else if t, parseErr := time.Parse(time.RFC3339Nano, ts); parseErr == nil {
		e.Timestamp = t
	}
	if oldValue.Valid {
		e.OldValue = json.RawMessage(oldValue.String)
	}
	if newValue.Valid {
		e.NewValue = json.RawMessage(newValue.String)
	}
	e.RestoredFrom = restored.String

	return &e, nil
}

func nullJSON(raw json.RawMessage) sql.NullString {
	if isNull(raw) {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
