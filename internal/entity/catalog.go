// Package entity is the generic, audited CRUD layer over the SIMAS tables.
// Every mutation made through a Repo appends one audit entry in the same
// transaction as the write itself.
package entity

import (
	"fmt"
	"slices"

	"github.com/simas-gestao/simas/internal/apperrors"
	"github.com/simas-gestao/simas/internal/audit"
)

// Kind names an entity type as it appears in URLs and TABELA_AFETADA.
type Kind string

const (
	KindPessoa            Kind = "Pessoa"
	KindVaga              Kind = "Vaga"
	KindContrato          Kind = "Contrato"
	KindContratoHistorico Kind = "ContratoHistorico"
	KindServidor          Kind = "Servidor"
	KindServidorInativo   Kind = "ServidorInativo"
	KindAlocacao          Kind = "Alocacao"
	KindNomeacao          Kind = "Nomeacao"
	KindProtocolo         Kind = "Protocolo"
	KindAtendimento       Kind = "Atendimento"
)

// ArchiveSpec describes where a live row goes when it is archived or
// deactivated.
type ArchiveSpec struct {
	Kind         Kind
	Action       audit.Action
	ReasonColumn string
	DateColumn   string
}

// Definition is the catalog entry for one entity type.
type Definition struct {
	Kind       Kind
	Table      string
	PrimaryKey string
	// Columns is the write whitelist, primary key included.
	Columns []string
	// GeneratedKey means a missing primary key is filled with a UUID.
	GeneratedKey bool
	Archive      *ArchiveSpec
	// ReadOnly kinds are only written by archive and restore.
	ReadOnly bool
	// Managed kinds are written by their own service, never by generic CRUD.
	Managed       bool
	VersionColumn string
	OrderBy       string
	// Derived columns are computed from the rest of the row by Derive and
	// are never restored from a snapshot.
	Derived []string
	Derive  func(Record)
}

// IsDerived reports whether col is computed by d.Derive.
func (d *Definition) IsDerived(col string) bool {
	return slices.Contains(d.Derived, col)
}

// HasColumn reports whether col is a known column of d.
func (d *Definition) HasColumn(col string) bool {
	return slices.Contains(d.Columns, col)
}

var catalog = map[Kind]*Definition{
	KindPessoa: {
		Kind:       KindPessoa,
		Table:      "pessoas",
		PrimaryKey: "CPF",
		Columns:    []string{"CPF", "NOME", "DATA_NASCIMENTO", "EMAIL", "TELEFONE"},
		OrderBy:    "NOME",
	},
	KindVaga: {
		Kind:         KindVaga,
		Table:        "vagas",
		PrimaryKey:   "ID_VAGA",
		Columns:      []string{"ID_VAGA", "CARGO", "LOTACAO", "STATUS_VAGA"},
		GeneratedKey: true,
		OrderBy:      "CARGO",
	},
	KindContrato: {
		Kind:         KindContrato,
		Table:        "contratos",
		PrimaryKey:   "ID_CONTRATO",
		Columns:      []string{"ID_CONTRATO", "CPF", "FUNCAO", "SALARIO", "LOTACAO", "DATA_INICIO", "DATA_FIM"},
		GeneratedKey: true,
		Archive: &ArchiveSpec{
			Kind:         KindContratoHistorico,
			Action:       audit.ActionArquivar,
			ReasonColumn: "MOTIVO_ARQUIVAMENTO",
			DateColumn:   "DATA_ARQUIVAMENTO",
		},
		OrderBy: "DATA_INICIO DESC",
	},
	KindContratoHistorico: {
		Kind:       KindContratoHistorico,
		Table:      "contratos_historico",
		PrimaryKey: "ID_HISTORICO",
		Columns: []string{"ID_HISTORICO", "ID_CONTRATO", "CPF", "FUNCAO", "SALARIO", "LOTACAO",
			"DATA_INICIO", "DATA_FIM", "MOTIVO_ARQUIVAMENTO", "DATA_ARQUIVAMENTO"},
		GeneratedKey: true,
		ReadOnly:     true,
		OrderBy:      "DATA_ARQUIVAMENTO DESC",
	},
	KindServidor: {
		Kind:       KindServidor,
		Table:      "servidores",
		PrimaryKey: "MATRICULA",
		Columns:    []string{"MATRICULA", "CPF", "CARGO", "VINCULO", "DATA_ADMISSAO"},
		Archive: &ArchiveSpec{
			Kind:         KindServidorInativo,
			Action:       audit.ActionInativar,
			ReasonColumn: "MOTIVO_INATIVACAO",
			DateColumn:   "DATA_INATIVACAO",
		},
		OrderBy: "MATRICULA",
	},
	KindServidorInativo: {
		Kind:       KindServidorInativo,
		Table:      "servidores_inativos",
		PrimaryKey: "ID_HISTORICO",
		Columns: []string{"ID_HISTORICO", "MATRICULA", "CPF", "CARGO", "VINCULO", "DATA_ADMISSAO",
			"MOTIVO_INATIVACAO", "DATA_INATIVACAO"},
		GeneratedKey: true,
		ReadOnly:     true,
		OrderBy:      "DATA_INATIVACAO DESC",
	},
	KindAlocacao: {
		Kind:         KindAlocacao,
		Table:        "alocacoes",
		PrimaryKey:   "ID_ALOCACAO",
		Columns:      []string{"ID_ALOCACAO", "MATRICULA", "CPF", "LOTACAO", "FUNCAO", "DATA_INICIO"},
		GeneratedKey: true,
		OrderBy:      "DATA_INICIO DESC",
	},
	KindNomeacao: {
		Kind:         KindNomeacao,
		Table:        "nomeacoes",
		PrimaryKey:   "ID_NOMEACAO",
		Columns:      []string{"ID_NOMEACAO", "CPF", "CARGO_COMISSIONADO", "SIMBOLO", "DATA_NOMEACAO"},
		GeneratedKey: true,
		OrderBy:      "DATA_NOMEACAO DESC",
	},
	KindProtocolo: {
		Kind:         KindProtocolo,
		Table:        "protocolos",
		PrimaryKey:   "ID_PROTOCOLO",
		Columns:      []string{"ID_PROTOCOLO", "CPF", "TIPO_PROTOCOLO", "DESCRICAO", "DATA_PROTOCOLO"},
		GeneratedKey: true,
		OrderBy:      "DATA_PROTOCOLO DESC",
	},
	KindAtendimento: {
		Kind:       KindAtendimento,
		Table:      "atendimentos",
		PrimaryKey: "ID_ATENDIMENTO",
		Columns: []string{"ID_ATENDIMENTO", "CPF", "TIPO_PEDIDO", "REMETENTE", "RESPONSAVEL",
			"STATUS_PEDIDO", "JUSTIFICATIVA", "DATA_AGENDAMENTO", "DATA_ENTRADA", "ID_VAGA",
			"TIPO_DE_ACAO", "ENTIDADE_ALVO", "STATUS_AGENDAMENTO", "VERSAO"},
		GeneratedKey:  true,
		Managed:       true,
		VersionColumn: "VERSAO",
		OrderBy:       "DATA_ENTRADA DESC",
		Derived:       atendimentoDerived,
		Derive:        deriveAtendimento,
	},
}

// Lookup returns the definition for an entity name.
func Lookup(name string) (*Definition, error) {
	def, ok := catalog[Kind(name)]
	if !ok {
		return nil, fmt.Errorf("%w: entidade %q desconhecida", apperrors.ErrNotFound, name)
	}
	return def, nil
}

// MustLookup is Lookup for kinds declared in this package.
func MustLookup(kind Kind) *Definition {
	def, err := Lookup(string(kind))
	if err != nil {
		panic(err)
	}
	return def
}

// Kinds returns every catalogued kind in a stable order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(catalog))
	for k := range catalog {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}

// ArchivedFrom returns the live kind whose archive table is kind.
func ArchivedFrom(kind Kind) (*Definition, bool) {
	for _, def := range catalog {
		if def.Archive != nil && def.Archive.Kind == kind {
			return def, true
		}
	}
	return nil, false
}
