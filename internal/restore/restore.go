// Package restore undoes audited changes. The inverse operation is chosen
// strictly by the ACAO of the logged entry, and a successful restore
// appends one RESTAURAR entry without touching the original.
package restore

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/metrics"
	"github.com/simas-gestao/simas/internal/session"
)

// Engine applies inverse operations for audit entries.
type Engine struct {
	store  *entity.Store
	logger *zap.Logger
}

// NewEngine creates an Engine writing through store.
func NewEngine(store *entity.Store, logger *zap.Logger) *Engine {
	return &Engine{store: store, logger: logger}
}

// Result describes a successful restore.
type Result struct {
	Entry  *audit.Entry  `json:"entry"`
	Record entity.Record `json:"record,omitempty"`
}

// Restore undoes the change logged as logID. Stale or conflicting live
// state fails the whole restore and nothing is written.
func (e *Engine) Restore(ctx context.Context, sess session.Session, logID string) (*Result, error) {
	if err := sess.RequireRestore(); err != nil {
		return nil, err
	}

	var (
		res    *Result
		action audit.Action
	)
	err := e.store.Do(ctx, sess, func(r *entity.Repo) error {
		orig, err := r.Audit().Get(ctx, r.Tx(), logID)
		if err != nil {
			return err
		}
		action = orig.Action

		def, err := entity.Lookup(orig.Table)
		if err != nil {
			return fmt.Errorf("%w: tabela %q do registro de auditoria não é restaurável", apperrors.ErrBusinessRule, orig.Table)
		}

		var before, after entity.Record
		switch orig.Action {
		case audit.ActionCriar:
			before, err = undoCreate(ctx, r, def, orig)
		case audit.ActionExcluir:
			after, err = undoDelete(ctx, r, def, orig)
		case audit.ActionArquivar, audit.ActionInativar:
			before, after, err = undoArchive(ctx, r, def, orig)
		case audit.ActionEditar:
			before, after, err = undoEdit(ctx, r, def, orig)
		case audit.ActionRestaurar:
			err = fmt.Errorf("%w: restaurações não podem ser restauradas", apperrors.ErrBusinessRule)
		default:
			err = fmt.Errorf("%w: ação %q não suportada", apperrors.ErrBusinessRule, orig.Action)
		}
		if err != nil {
			return err
		}

		oldValue, err := audit.Snapshot(before)
		if err != nil {
			return err
		}
		newValue, err := audit.Snapshot(after)
		if err != nil {
			return err
		}
		entry, err := r.Log(ctx, audit.Entry{
			Action:       audit.ActionRestaurar,
			Table:        orig.Table,
			RecordID:     orig.RecordID,
			OldValue:     oldValue,
			NewValue:     newValue,
			RestoredFrom: orig.ID,
		})
		if err != nil {
			return err
		}
		res = &Result{Entry: entry, Record: after}
		return nil
	})

	metrics.Restore(string(action), err)
	if err != nil {
		e.logger.Warn("restore failed",
			zap.String("id_log", logID),
			zap.String("usuario", sess.UserID),
			zap.Error(err))
		return nil, err
	}
	e.logger.Info("restore applied",
		zap.String("id_log", logID),
		zap.String("acao", string(action)),
		zap.String("tabela", res.Entry.Table),
		zap.String("registro", res.Entry.RecordID),
		zap.String("usuario", sess.UserID))
	return res, nil
}

// undoCreate deletes the created record.
func undoCreate(ctx context.Context, r *entity.Repo, def *entity.Definition, orig *audit.Entry) (entity.Record, error) {
	if def.Managed {
		return nil, fmt.Errorf("%w: registros de %s não são excluídos fisicamente", apperrors.ErrBusinessRule, def.Kind)
	}
	current, err := currentRecord(ctx, r, def, orig.RecordID)
	if err != nil {
		return nil, err
	}
	if _, err := r.Remove(ctx, def.Kind, orig.RecordID); err != nil {
		return nil, err
	}
	return current, nil
}

// undoDelete recreates the record from VALOR_ANTIGO.
func undoDelete(ctx context.Context, r *entity.Repo, def *entity.Definition, orig *audit.Entry) (entity.Record, error) {
	old, err := snapshot(def, orig.OldValue, "VALOR_ANTIGO")
	if err != nil {
		return nil, err
	}
	if def.Derive != nil {
		def.Derive(old)
	}
	if err := r.Insert(ctx, def.Kind, old); err != nil {
		return nil, err
	}
	return r.Get(ctx, def.Kind, orig.RecordID)
}

// undoArchive moves the record back from its archive table. The archive
// row is located by the key logged in VALOR_NOVO, falling back to the most
// recent archive row of the record.
func undoArchive(ctx context.Context, r *entity.Repo, def *entity.Definition, orig *audit.Entry) (entity.Record, entity.Record, error) {
	if def.Archive == nil {
		return nil, nil, fmt.Errorf("%w: %s não possui arquivo histórico", apperrors.ErrBusinessRule, def.Kind)
	}
	archiveDef := entity.MustLookup(def.Archive.Kind)

	old, err := snapshot(def, orig.OldValue, "VALOR_ANTIGO")
	if err != nil {
		return nil, nil, err
	}

	live, err := r.Exists(ctx, def.Kind, orig.RecordID)
	if err != nil {
		return nil, nil, err
	}
	if live {
		return nil, nil, fmt.Errorf("%w: %s %q já está ativo", apperrors.ErrConflict, def.Kind, orig.RecordID)
	}

	var archived entity.Record
	logged, err := audit.DecodeSnapshot(orig.NewValue)
	if err != nil {
		return nil, nil, err
	}
	if id, _ := logged[archiveDef.PrimaryKey].(string); id != "" {
		archived, err = r.Get(ctx, archiveDef.Kind, id)
	} else {
		var rows []entity.Record
		rows, err = r.Find(ctx, archiveDef.Kind, def.PrimaryKey, orig.RecordID)
		if err == nil && len(rows) == 0 {
			err = fmt.Errorf("%w: nenhum histórico de %s %q", apperrors.ErrNotFound, def.Kind, orig.RecordID)
		}
		if err == nil {
			archived = rows[0]
		}
	}
	if err != nil {
		return nil, nil, stale(err, def.Kind, orig.RecordID)
	}

	if def.Derive != nil {
		def.Derive(old)
	}
	if err := r.Insert(ctx, def.Kind, old); err != nil {
		return nil, nil, err
	}
	if _, err := r.Remove(ctx, archiveDef.Kind, archived.String(archiveDef.PrimaryKey)); err != nil {
		return nil, nil, err
	}
	restored, err := r.Get(ctx, def.Kind, orig.RecordID)
	if err != nil {
		return nil, nil, err
	}
	return archived, restored, nil
}

// undoEdit writes back VALOR_ANTIGO for every field the edit changed. Each
// of those fields must still hold the logged VALOR_NOVO; otherwise the
// record moved on and the restore is stale. Derived columns are recomputed
// over the restored row instead of being copied back.
func undoEdit(ctx context.Context, r *entity.Repo, def *entity.Definition, orig *audit.Entry) (entity.Record, entity.Record, error) {
	old, err := snapshot(def, orig.OldValue, "VALOR_ANTIGO")
	if err != nil {
		return nil, nil, err
	}
	logged, err := snapshot(def, orig.NewValue, "VALOR_NOVO")
	if err != nil {
		return nil, nil, err
	}

	current, err := currentRecord(ctx, r, def, orig.RecordID)
	if err != nil {
		return nil, nil, err
	}

	values := entity.Record{}
	for _, col := range entity.Diff(old, logged) {
		if col == def.VersionColumn || col == def.PrimaryKey || def.IsDerived(col) {
			continue
		}
		if !entity.Equal(current[col], logged[col]) {
			return nil, nil, fmt.Errorf("%w: %s %q foi alterado depois deste registro (campo %s)",
				apperrors.ErrStale, def.Kind, orig.RecordID, col)
		}
		values[col] = old[col]
	}
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%w: a edição não alterou nenhum campo", apperrors.ErrBusinessRule)
	}
	if def.Derive != nil {
		next := current.Clone()
		for col, v := range values {
			next[col] = v
		}
		def.Derive(next)
		for _, col := range def.Derived {
			if !entity.Equal(next[col], current[col]) {
				values[col] = next[col]
			}
		}
	}
	if def.VersionColumn != "" {
		values[def.VersionColumn] = fmt.Sprint(entity.Version(def, current) + 1)
	}

	restored, err := r.Overwrite(ctx, def.Kind, orig.RecordID, values)
	if err != nil {
		return nil, nil, err
	}
	return current, restored, nil
}

func currentRecord(ctx context.Context, r *entity.Repo, def *entity.Definition, id string) (entity.Record, error) {
	current, err := r.Get(ctx, def.Kind, id)
	if err != nil {
		return nil, stale(err, def.Kind, id)
	}
	return current, nil
}

func snapshot(def *entity.Definition, raw []byte, field string) (entity.Record, error) {
	row, err := audit.DecodeSnapshot(raw)
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, fmt.Errorf("%w: registro de auditoria sem %s", apperrors.ErrBusinessRule, field)
	}
	return entity.Normalize(def, row)
}

// stale turns a missing live record into ErrStale.
func stale(err error, kind entity.Kind, id string) error {
	if errors.Is(err, apperrors.ErrNotFound) {
		return fmt.Errorf("%w: %s %q não existe mais", apperrors.ErrStale, kind, id)
	}
	return err
}
