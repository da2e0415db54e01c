package openrouter

// Config contains OpenRouter provider configuration.
type Config struct {
	APIKey     string   `env:"OPENROUTER_API_KEY"`
	BaseURL    string   `env:"OPENROUTER_BASE_URL"     envDefault:"https://openrouter.ai/api/v1"`
	Timeout    int      `env:"OPENROUTER_TIMEOUT"      envDefault:"300"`
	MaxRetries int      `env:"OPENROUTER_MAX_RETRIES"  envDefault:"3"`
	Referer    string   `env:"OPENROUTER_REFERER"`
	Title      string   `env:"OPENROUTER_TITLE"`
	Models     []string `env:"OPENROUTER_MODELS"       envSeparator:"," envDefault:"openai/gpt-4o,openai/gpt-4o-mini,anthropic/claude-3.5-sonnet,anthropic/claude-3-haiku,google/gemini-flash-1.5"`
}
