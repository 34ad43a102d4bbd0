package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard, saves the result to
// path and returns it.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Configuração do SIMAS")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Port.
	portPrompt := promptui.Prompt{
		Label:   "Porta HTTP",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 1 || n > 65535 {
				return fmt.Errorf("porta inválida")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 2. Database path.
	dbPrompt := promptui.Prompt{
		Label:   "Arquivo do banco de dados",
		Default: cfg.DatabasePath,
	}
	cfg.DatabasePath, err = dbPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("database path: %w", err)
	}

	// 3. Log format.
	formatPrompt := promptui.Select{
		Label: "Formato de log",
		Items: []string{string(LogFormatJSON), string(LogFormatConsole)},
	}
	_, format, err := formatPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("log format: %w", err)
	}
	cfg.LogFormat = LogFormat(format)

	// 4. Secret, generated unless the operator supplies one.
	secretPrompt := promptui.Prompt{
		Label: "Segredo JWT (vazio para gerar)",
		Mask:  '*',
	}
	secret, err := secretPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("jwt secret: %w", err)
	}
	if secret == "" {
		secret, err = GenerateSecret()
		if err != nil {
			return nil, err
		}
	}
	cfg.JWTSecret = secret

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguração salva em %s\n", path)
	return cfg, nil
}

// GenerateSecret returns 32 random bytes hex-encoded.
func GenerateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
