package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Action describes what was done to the affected record.
type Action string

const (
	ActionCriar     Action = "CRIAR"
	ActionEditar    Action = "EDITAR"
	ActionExcluir   Action = "EXCLUIR"
	ActionArquivar  Action = "ARQUIVAR"
	ActionInativar  Action = "INATIVAR"
	ActionRestaurar Action = "RESTAURAR"
)

// Actions lists every action in the order they are reported.
var Actions = []Action{ActionCriar, ActionEditar, ActionExcluir, ActionArquivar, ActionInativar, ActionRestaurar}

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// TimeLayout is the fixed-width UTC layout of DATA_HORA. Lexical order
// matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// Entry is a single audit trail record. Entries are never modified once
// written; a restore appends a new RESTAURAR entry pointing back through
// RestoredFrom.
type Entry struct {
	ID           string          `json:"ID_LOG"`
	Timestamp    time.Time       `json:"DATA_HORA"`
	User         string          `json:"USUARIO"`
	Action       Action          `json:"ACAO"`
	Table        string          `json:"TABELA_AFETADA"`
	RecordID     string          `json:"ID_REGISTRO_AFETADO"`
	OldValue     json.RawMessage `json:"VALOR_ANTIGO"`
	NewValue     json.RawMessage `json:"VALOR_NOVO"`
	RestoredFrom string          `json:"ID_LOG_RESTAURADO,omitempty"`
}

// Snapshot encodes a row for VALOR_ANTIGO or VALOR_NOVO. A nil map yields
// a nil snapshot, stored as NULL.
func Snapshot(row map[string]any) (json.RawMessage, error) {
	if row == nil {
		return nil, nil
	}
	b, err := json.Marshal(row)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	return b, nil
}

// DecodeSnapshot decodes a stored snapshot. Numbers stay json.Number so
// values written back are byte-identical to the logged ones.
func DecodeSnapshot(raw json.RawMessage) (map[string]any, error) {
	if isNull(raw) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var row map[string]any
	if err := dec.Decode(&row); err != nil {
		return nil, fmt.Errorf("decoding snapshot: %w", err)
	}
	return row, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
