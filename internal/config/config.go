package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string     `envconfig:"ENVIRONMENT" default:"development"`
	LogLevelRaw string     `envconfig:"LOG_LEVEL" default:"info"`
	LogLevel    slog.Level `ignored:"true"`

	LogFile        string `envconfig:"LOG_FILE" default:"logs/generator.log"`
	LogMaxSizeMB   int    `envconfig:"LOG_MAX_SIZE_MB" default:"10"`
	LogMaxBackups  int    `envconfig:"LOG_MAX_BACKUPS" default:"5"`
	LogMaxAgeDays  int    `envconfig:"LOG_MAX_AGE_DAYS" default:"30"`
	LogFileEnabled bool   `envconfig:"LOG_FILE_ENABLED" default:"true"`

	SettingsFile string `envconfig:"SETTINGS_FILE" default:"prompt/config.json"`

	GeminiAPIKey      string        `envconfig:"GEMINI_API_KEY"`
	GroqAPIKey        string        `envconfig:"GROQ_API_KEY"`
	GroqBaseURL       string        `envconfig:"GROQ_BASE_URL" default:"https://api.groq.com/openai/v1"`
	OpenRouterAPIKey  string        `envconfig:"OPENROUTER_API_KEY"`
	OpenRouterBaseURL string        `envconfig:"OPENROUTER_BASE_URL" default:"https://openrouter.ai/api"`
	LLMTimeout        time.Duration `envconfig:"LLM_TIMEOUT" default:"120s"`

	// RedisURL is optional; empty disables the progress cache and event publishing.
	RedisURL string `envconfig:"REDIS_URL"`

	// PlaybackPace scales simulated playback time to wall-clock time.
	PlaybackPace float64 `envconfig:"PLAYBACK_PACE" default:"1.0"`
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	cfg.LogLevel = parseLogLevel(cfg.LogLevelRaw)
	return &cfg, nil
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
