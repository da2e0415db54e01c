package config

import (
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"go.uber.org/dig"

	"github.com/amaslov/tokengate/internal/provider/openai"
	"github.com/amaslov/tokengate/internal/provider/openrouter"
)

// Config represents the gateway configuration.
type Config struct {
	Server     ServerConfig
	CORS       CORSConfig
	Metering   MeteringConfig
	Ledger     LedgerConfig
	Redis      RedisConfig
	Postgres   PostgresConfig
	OpenAI     openai.Config
	OpenRouter openrouter.Config
}

// ServerConfig contains HTTP server settings. The write timeout leaves
// headroom above the vision operation's 300s ceiling.
type ServerConfig struct {
	Port         int `env:"SERVER_PORT"          envDefault:"8080"`
	ReadTimeout  int `env:"SERVER_READ_TIMEOUT"  envDefault:"30"`
	WriteTimeout int `env:"SERVER_WRITE_TIMEOUT" envDefault:"330"`
}

// CORSConfig contains CORS policy settings.
type CORSConfig struct {
	AllowedOrigins   []string `env:"CORS_ALLOWED_ORIGINS"   envSeparator:"," envDefault:"*"`
	AllowedMethods   []string `env:"CORS_ALLOWED_METHODS"   envSeparator:"," envDefault:"GET,POST,PUT,DELETE,OPTIONS"`
	AllowedHeaders   []string `env:"CORS_ALLOWED_HEADERS"   envSeparator:"," envDefault:"Content-Type,Authorization"`
	AllowCredentials bool     `env:"CORS_ALLOW_CREDENTIALS"                  envDefault:"true"`
	MaxAge           int      `env:"CORS_MAX_AGE"                            envDefault:"86400"`
}

// MeteringConfig contains pricing and fallback settings for the metering
// pipeline.
type MeteringConfig struct {
	ProfitMultiplier     float64  `env:"METERING_PROFIT_MULTIPLIER" envDefault:"10"`
	ChatFallbackModels   []string `env:"CHAT_FALLBACK_MODELS"       envSeparator:"," envDefault:"gpt-4o-mini,gpt-4o,openai/gpt-4o-mini"`
	VisionFallbackModels []string `env:"VISION_FALLBACK_MODELS"     envSeparator:"," envDefault:"gpt-4o,openai/gpt-4o,anthropic/claude-3.5-sonnet"`
	ChatSystemPrompt     string   `env:"CHAT_SYSTEM_PROMPT"`
	VisionSystemPrompt   string   `env:"VISION_SYSTEM_PROMPT"`
}

// LedgerConfig selects the TokenLedger backend.
type LedgerConfig struct {
	Backend string `env:"LEDGER_BACKEND" envDefault:"memory"` // memory, redis or postgres
}

// RedisConfig contains Redis connection settings for the redis ledger.
type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR"       envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB"         envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"tokengate:balance:"`
}

// PostgresConfig contains the connection string for the postgres ledger and
// usage recorder.
type PostgresConfig struct {
	DSN string `env:"POSTGRES_DSN"`
}

// DepConfig is used for dependency injection with dig. The provider configs
// share the type name Config across packages, so those fields are named.
type DepConfig struct {
	dig.Out
	*ServerConfig
	*CORSConfig
	*MeteringConfig
	*LedgerConfig
	*RedisConfig
	*PostgresConfig
	OpenAI     *openai.Config
	OpenRouter *openrouter.Config
}

// Load loads environment files and parses configuration.
func Load() *Config {
	for _, file := range []string{".env"} {
		_ = godotenv.Load(file)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		panic(err)
	}

	return &cfg
}

// ParseDependenciesConfig returns pointers to sub-configs for dependency injection.
func ParseDependenciesConfig(cfg *Config) DepConfig {
	return DepConfig{
		ServerConfig:   &cfg.Server,
		CORSConfig:     &cfg.CORS,
		MeteringConfig: &cfg.Metering,
		LedgerConfig:   &cfg.Ledger,
		RedisConfig:    &cfg.Redis,
		PostgresConfig: &cfg.Postgres,
		OpenAI:         &cfg.OpenAI,
		OpenRouter:     &cfg.OpenRouter,
	}
}
