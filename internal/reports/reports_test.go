package reports

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/atendimento"
	"github.com/simas-gestao/simas/internal/audit"
	"github.com/simas-gestao/simas/internal/db"
	"github.com/simas-gestao/simas/internal/entity"
	"github.com/simas-gestao/simas/internal/session"
	"github.com/simas-gestao/simas/internal/workflow"
)

const cpfAna = "52998224725"

var editor = session.Session{UserID: "ana", Role: session.RoleEditor}

func setup(t *testing.T) *Service {
	t.Helper()
	database, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := entity.NewStore(database, audit.NewStore(database, zap.NewNop()), zap.NewNop())
	store.SetClock(func() time.Time { return time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC) })
	svc := atendimento.NewService(store, zap.NewNop())
	ctx := context.Background()

	_, err = store.Create(ctx, session.System(), entity.KindPessoa, map[string]any{"CPF": cpfAna, "NOME": "Ana"})
	require.NoError(t, err)

	mk := func(tipo workflow.TipoPedido, date string, status workflow.StatusPedido) {
		a, _, err := svc.Create(ctx, editor, workflow.NewRequest{CPF: cpfAna, TipoPedido: tipo, Remetente: "Ouvidoria", DataAgendamento: date})
		require.NoError(t, err)
		if status != workflow.StatusAguardando {
			_, err = svc.Transition(ctx, editor, a.ID, workflow.StatusChange{StatusPedido: status, Justificativa: "motivo"})
			require.NoError(t, err)
		}
	}
	mk(workflow.TipoContratacao, "2024-03-10", workflow.StatusAguardando)
	mk(workflow.TipoContratacao, "2024-03-10", workflow.StatusAcatado)
	mk(workflow.TipoOrientacao, "", workflow.StatusDeclinado)

	return NewService(store, svc)
}

func TestBuild(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	tests := []struct {
		id    string
		want  map[string]int
		total int
	}{
		{AtendimentosPorStatus, map[string]int{"Aguardando": 1, "Acatado": 1, "Declinado": 1}, 3},
		{KanbanResumo, map[string]int{"aguardando": 1, "prontos": 1, "concluidos": 0, "declinados": 1}, 3},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			rep, err := s.Build(ctx, tt.id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, rep.Counts)
			assert.Equal(t, tt.total, rep.Total)
		})
	}
}

func TestBuildPorTipoZeroFills(t *testing.T) {
	s := setup(t)
	rep, err := s.Build(context.Background(), AtendimentosPorTipo)
	require.NoError(t, err)
	assert.Len(t, rep.Counts, len(workflow.TiposPedido))
	assert.Equal(t, 2, rep.Counts[string(workflow.TipoContratacao)])
	assert.Equal(t, 1, rep.Counts[string(workflow.TipoOrientacao)])
	assert.Equal(t, 0, rep.Counts[string(workflow.TipoDemissao)])
}

func TestBuildAuditoria(t *testing.T) {
	s := setup(t)
	rep, err := s.Build(context.Background(), AuditoriaPorAcao)
	require.NoError(t, err)
	// One Pessoa and three requests created, two transitions.
	assert.Equal(t, 4, rep.Counts["CRIAR"])
	assert.Equal(t, 2, rep.Counts["EDITAR"])
	assert.Equal(t, 0, rep.Counts["RESTAURAR"])
	assert.Len(t, rep.Counts, len(audit.Actions))
}

func TestBuildUnknown(t *testing.T) {
	s := setup(t)
	_, err := s.Build(context.Background(), "folha-de-pagamento")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRoutes(t *testing.T) {
	s := setup(t)
	r := chi.NewRouter()
	RegisterRoutes(r, s, zap.NewNop())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/atendimentos-por-status", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var rep Report
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&rep))
	assert.Equal(t, 3, rep.Total)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var ids []string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&ids))
	assert.Equal(t, IDs(), ids)
}
