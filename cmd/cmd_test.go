package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/simas-gestao/simas/internal/config"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		t.Fatalf("simas %s: %v\n%s", strings.Join(args, " "), err, out.String())
	}
	return out.String()
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.DatabasePath = filepath.Join(dir, "simas.db")
	cfg.JWTSecret = "0123456789abcdef0123"
	path := filepath.Join(dir, "simas.yml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	out := run(t, "version")
	if !strings.Contains(out, "simas "+Version) {
		t.Errorf("unexpected output %q", out)
	}
}

func TestDerive(t *testing.T) {
	out := run(t, "derive", "--status", "Acatado", "--tipo", "exoneracao do servico publico", "--data", "2000-01-01")

	var got map[string]string
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("unmarshal %q: %v", out, err)
	}
	if got["TIPO_DE_ACAO"] != "INATIVAR" || got["ENTIDADE_ALVO"] != "Servidor" {
		t.Errorf("unexpected derivation %v", got)
	}
	if got["bucket"] != "prontos" {
		t.Errorf("expected bucket prontos, got %q", got["bucket"])
	}
}

func TestMigrateSeedAndToken(t *testing.T) {
	path := writeConfig(t)

	out := run(t, "migrate", "--config", path)
	if !strings.Contains(out, "Schema up to date") {
		t.Errorf("unexpected migrate output %q", out)
	}

	seedFile := filepath.Join(filepath.Dir(path), "seed.yml")
	doc := "Pessoa:\n  - CPF: \"52998224725\"\n    NOME: Ana\nVaga:\n  - ID_VAGA: v1\n"
	if err := os.WriteFile(seedFile, []byte(doc), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("CI", "true")
	out = run(t, "seed", seedFile, "--config", path)
	if !strings.Contains(out, "Pessoa") {
		t.Errorf("unexpected seed output %q", out)
	}

	out = run(t, "token", "--config", path, "--user", "ana", "--role", "editor")
	if strings.Count(strings.TrimSpace(out), ".") != 2 {
		t.Errorf("expected a JWT, got %q", out)
	}
}
