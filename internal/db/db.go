package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/simas-gestao/simas/internal/apperrors"
)

// DB wraps a sql.DB with SIMAS-specific helpers.
type DB struct {
	*sql.DB
	path string
}

// Querier is satisfied by both *sql.DB and *sql.Tx, so read and write
// helpers can run inside or outside a transaction.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Open creates or opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	sqlDB, err := sql.Open("sqlite", fileDSN(path, 5000))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	d := &DB{DB: sqlDB, path: path}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// fileDSN takes the write lock when a transaction begins, so concurrent
// writers queue on busy_timeout instead of failing on lock upgrade.
func fileDSN(path string, busyTimeoutMS int) string {
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_txlock=immediate",
		path, busyTimeoutMS)
}

// OpenMemory creates an in-memory SQLite database (useful for testing).
func OpenMemory() (*DB, error) {
	sqlDB, err := sql.Open("sqlite", ":memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every new connection to :memory: is a fresh, empty database.
	sqlDB.SetMaxOpenConns(1)

	d := &DB{DB: sqlDB, path: ":memory:"}
	if err := d.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return d, nil
}

// Path returns the filesystem path of the database, or ":memory:".
func (d *DB) Path() string { return d.path }

// InTx runs fn inside a transaction. The transaction commits when fn returns
// nil and rolls back otherwise. Callers must not touch d.DB from inside fn.
// A database still locked after busy_timeout surfaces as ErrConflict.
func (d *DB) InTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, nil)
	if err != nil {
		return busy(fmt.Errorf("beginning transaction: %w", err))
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return busy(err)
	}
	if err := tx.Commit(); err != nil {
		return busy(fmt.Errorf("committing transaction: %w", err))
	}
	return nil
}

func busy(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_BUSY {
		return fmt.Errorf("%w: banco de dados ocupado, tente novamente (%w)", apperrors.ErrConflict, err)
	}
	return err
}

// Tables lists the user tables present in the database.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	rows, err := d.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// migrate runs all schema migrations.
func (d *DB) migrate() error {
	_, err := d.Exec(schema)
	return err
}

// schema contains the full database schema. New tables are added here.
// Column names mirror the field names exchanged with the admin panel.
// Values are stored as TEXT; the entity layer owns typing.
const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
    ID_LOG TEXT PRIMARY KEY,
    DATA_HORA TEXT NOT NULL,
    USUARIO TEXT NOT NULL,
    ACAO TEXT NOT NULL CHECK(ACAO IN ('CRIAR','EDITAR','EXCLUIR','ARQUIVAR','INATIVAR','RESTAURAR')),
    TABELA_AFETADA TEXT NOT NULL,
    ID_REGISTRO_AFETADO TEXT NOT NULL,
    VALOR_ANTIGO TEXT,
    VALOR_NOVO TEXT,
    ID_LOG_RESTAURADO TEXT
);

CREATE INDEX IF NOT EXISTS idx_audit_data_hora ON audit_log(DATA_HORA);
CREATE INDEX IF NOT EXISTS idx_audit_usuario ON audit_log(USUARIO);
CREATE INDEX IF NOT EXISTS idx_audit_registro ON audit_log(TABELA_AFETADA, ID_REGISTRO_AFETADO);
CREATE INDEX IF NOT EXISTS idx_audit_acao ON audit_log(ACAO);

CREATE TRIGGER IF NOT EXISTS audit_log_no_update BEFORE UPDATE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TRIGGER IF NOT EXISTS audit_log_no_delete BEFORE DELETE ON audit_log
BEGIN
    SELECT RAISE(ABORT, 'audit_log is append-only');
END;

CREATE TABLE IF NOT EXISTS pessoas (
    CPF TEXT PRIMARY KEY,
    NOME TEXT,
    DATA_NASCIMENTO TEXT,
    EMAIL TEXT,
    TELEFONE TEXT
);

CREATE TABLE IF NOT EXISTS vagas (
    ID_VAGA TEXT PRIMARY KEY,
    CARGO TEXT,
    LOTACAO TEXT,
    STATUS_VAGA TEXT
);

CREATE TABLE IF NOT EXISTS contratos (
    ID_CONTRATO TEXT PRIMARY KEY,
    CPF TEXT,
    FUNCAO TEXT,
    SALARIO TEXT,
    LOTACAO TEXT,
    DATA_INICIO TEXT,
    DATA_FIM TEXT
);

CREATE INDEX IF NOT EXISTS idx_contratos_cpf ON contratos(CPF);

CREATE TABLE IF NOT EXISTS contratos_historico (
    ID_HISTORICO TEXT PRIMARY KEY,
    ID_CONTRATO TEXT NOT NULL,
    CPF TEXT,
    FUNCAO TEXT,
    SALARIO TEXT,
    LOTACAO TEXT,
    DATA_INICIO TEXT,
    DATA_FIM TEXT,
    MOTIVO_ARQUIVAMENTO TEXT,
    DATA_ARQUIVAMENTO TEXT
);

CREATE INDEX IF NOT EXISTS idx_contratos_historico_contrato ON contratos_historico(ID_CONTRATO);

CREATE TABLE IF NOT EXISTS servidores (
    MATRICULA TEXT PRIMARY KEY,
    CPF TEXT,
    CARGO TEXT,
    VINCULO TEXT,
    DATA_ADMISSAO TEXT
);

CREATE INDEX IF NOT EXISTS idx_servidores_cpf ON servidores(CPF);

CREATE TABLE IF NOT EXISTS servidores_inativos (
    ID_HISTORICO TEXT PRIMARY KEY,
    MATRICULA TEXT NOT NULL,
    CPF TEXT,
    CARGO TEXT,
    VINCULO TEXT,
    DATA_ADMISSAO TEXT,
    MOTIVO_INATIVACAO TEXT,
    DATA_INATIVACAO TEXT
);

CREATE INDEX IF NOT EXISTS idx_servidores_inativos_matricula ON servidores_inativos(MATRICULA);

CREATE TABLE IF NOT EXISTS alocacoes (
    ID_ALOCACAO TEXT PRIMARY KEY,
    MATRICULA TEXT,
    CPF TEXT,
    LOTACAO TEXT,
    FUNCAO TEXT,
    DATA_INICIO TEXT
);

CREATE INDEX IF NOT EXISTS idx_alocacoes_cpf ON alocacoes(CPF);

CREATE TABLE IF NOT EXISTS nomeacoes (
    ID_NOMEACAO TEXT PRIMARY KEY,
    CPF TEXT,
    CARGO_COMISSIONADO TEXT,
    SIMBOLO TEXT,
    DATA_NOMEACAO TEXT
);

CREATE TABLE IF NOT EXISTS protocolos (
    ID_PROTOCOLO TEXT PRIMARY KEY,
    CPF TEXT,
    TIPO_PROTOCOLO TEXT,
    DESCRICAO TEXT,
    DATA_PROTOCOLO TEXT
);

CREATE TABLE IF NOT EXISTS atendimentos (
    ID_ATENDIMENTO TEXT PRIMARY KEY,
    CPF TEXT NOT NULL,
    TIPO_PEDIDO TEXT NOT NULL,
    REMETENTE TEXT,
    RESPONSAVEL TEXT,
    STATUS_PEDIDO TEXT NOT NULL,
    JUSTIFICATIVA TEXT,
    DATA_AGENDAMENTO TEXT,
    DATA_ENTRADA TEXT,
    ID_VAGA TEXT,
    TIPO_DE_ACAO TEXT,
    ENTIDADE_ALVO TEXT,
    STATUS_AGENDAMENTO TEXT,
    VERSAO TEXT
);

CREATE INDEX IF NOT EXISTS idx_atendimentos_status ON atendimentos(STATUS_PEDIDO);
CREATE INDEX IF NOT EXISTS idx_atendimentos_cpf ON atendimentos(CPF);
`
