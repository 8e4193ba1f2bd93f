package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	DBPath   string `env:"DB_PATH"   envDefault:"newsinsight.sqlite"`

	HTTP    HTTPConfig
	Session SessionConfig
	NewsAPI NewsAPIConfig
	LLM     LLMConfig
	Ingest  IngestConfig

	TelegramToken string `env:"TELEGRAM_TOKEN"`
}

type HTTPConfig struct {
	Addr              string        `env:"HTTP_ADDR"                envDefault:":8080"`
	AuthRatePerSec    float64       `env:"HTTP_AUTH_RATE_PER_SEC"   envDefault:"1"`
	AuthBurst         int           `env:"HTTP_AUTH_BURST"          envDefault:"5"`
	ShutdownTimeout   time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT"    envDefault:"10s"`
	SecureCookies     bool          `env:"HTTP_SECURE_COOKIES"      envDefault:"false"`
	ReadHeaderTimeout time.Duration `env:"HTTP_READ_HEADER_TIMEOUT" envDefault:"10s"`
}

type SessionConfig struct {
	Secret    string        `env:"SESSION_SECRET,required,notEmpty"`
	TTL       time.Duration `env:"SESSION_TTL"        envDefault:"168h"`
	Issuer    string        `env:"SESSION_ISSUER"     envDefault:"newsinsight"`
	CacheSize int           `env:"SESSION_CACHE_SIZE" envDefault:"1024"`
}

type NewsAPIConfig struct {
	APIKey   string        `env:"NEWS_API_KEY"`
	BaseURL  string        `env:"NEWS_API_BASE_URL" envDefault:"https://newsapi.org/v2"`
	Timeout  time.Duration `env:"NEWS_API_TIMEOUT"  envDefault:"30s"`
	Language string        `env:"NEWS_API_LANGUAGE" envDefault:"en"`
	PageSize int           `env:"NEWS_API_PAGE_SIZE" envDefault:"10"`
}

type LLMConfig struct {
	APIKey    string `env:"LLM_API_KEY"`
	BaseURL   string `env:"LLM_BASE_URL"   envDefault:"https://openrouter.ai/api/v1"`
	Model     string `env:"LLM_MODEL"      envDefault:"anthropic/claude-3-haiku"`
	MaxTokens int64  `env:"LLM_MAX_TOKENS" envDefault:"1000"`
	Referer   string `env:"LLM_REFERER"    envDefault:"https://newsinsight.app"`
	Title     string `env:"LLM_TITLE"      envDefault:"NewsInsight App"`
}

type IngestConfig struct {
	Schedule string        `env:"INGEST_SCHEDULE"  envDefault:"0 * * * *"`
	Timeout  time.Duration `env:"INGEST_TIMEOUT"   envDefault:"15m"`
	Workers  int           `env:"INGEST_WORKERS"   envDefault:"1"`
	OnStart  bool          `env:"INGEST_ON_START"  envDefault:"false"`
}

// Load reads an optional .env file and then parses the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.Ingest.Workers < 1 {
		cfg.Ingest.Workers = 1
	}

	return cfg, nil
}

func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
