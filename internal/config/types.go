package config

// LogFormat selects the zap encoder.
type LogFormat string

const (
	LogFormatJSON    LogFormat = "json"
	LogFormatConsole LogFormat = "console"
)

// Config is the top-level SIMAS configuration, corresponding to simas.yml.
type Config struct {
	Port                  int       `yaml:"port" koanf:"port"`
	DatabasePath          string    `yaml:"database_path" koanf:"database_path"`
	JWTSecret             string    `yaml:"jwt_secret" koanf:"jwt_secret"`
	TokenTTLHours         int       `yaml:"token_ttl_hours" koanf:"token_ttl_hours"`
	LogLevel              string    `yaml:"log_level" koanf:"log_level"`
	LogFormat             LogFormat `yaml:"log_format" koanf:"log_format"`
	AllowAllOrigins       bool      `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	RequestTimeoutSeconds int       `yaml:"request_timeout_seconds" koanf:"request_timeout_seconds"`
}
