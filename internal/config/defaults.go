package config

// DefaultConfig returns a Config with sensible defaults.
// JWTSecret is left empty on purpose so a deployment cannot start without one.
func DefaultConfig() *Config {
	return &Config{
		Port:                  8080,
		DatabasePath:          "data/simas.db",
		TokenTTLHours:         12,
		LogLevel:              "info",
		LogFormat:             LogFormatJSON,
		AllowAllOrigins:       false,
		RequestTimeoutSeconds: 30,
	}
}
