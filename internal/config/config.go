package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	BotToken       string  `env:"BOT_TOKEN,required"`
	AllowedUserIDs []int64 `env:"ALLOWED_USER_IDS" envSeparator:","`
	LogLevel       string  `env:"LOG_LEVEL" envDefault:"info"`

	// Extraction
	ExtractorProvider string `env:"EXTRACTOR_PROVIDER" envDefault:"openrouter"`
	OpenRouterKey     string `env:"OPENROUTER_API_KEY"`
	OpenRouterModel   string `env:"OPENROUTER_MODEL" envDefault:"google/gemini-2.5-flash"`
	GeminiKey         string `env:"GEMINI_API_KEY"`
	GeminiModel       string `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`

	// Ledger: Firefly III
	FireflyURL                string `env:"FIREFLY_URL,required"`
	FireflyToken              string `env:"FIREFLY_TOKEN,required"`
	FireflyDefaultAccountID   string `env:"FIREFLY_DEFAULT_ACCOUNT_ID"`
	FireflyDefaultAccountName string `env:"FIREFLY_DEFAULT_ACCOUNT_NAME"`

	// Journal of confirmed submissions, disabled when empty
	DatabaseURL string `env:"DATABASE_URL"`

	// Intake tunables
	BatchDebounceMs       int  `env:"BATCH_DEBOUNCE_MS" envDefault:"500"`
	SessionMaxAgeHours    int  `env:"SESSION_MAX_AGE_HOURS" envDefault:"24"`
	MaxProcessingAttempts int  `env:"MAX_PROCESSING_ATTEMPTS" envDefault:"3"`
	MinTags               int  `env:"MIN_TAGS" envDefault:"0"`
	AllowEmptyFinalize    bool `env:"ALLOW_EMPTY_FINALIZE" envDefault:"false"`

	// Bot behavior
	DropPendingUpdates bool `env:"BOT_DROP_PENDING_UPDATES" envDefault:"false"`

	// Telegram logging
	LogTelegramChatID int64 `env:"LOG_TELEGRAM_CHAT_ID"`
	LogTopicError     int   `env:"LOG_TOPIC_ERROR"`
	LogTopicSubmitted int   `env:"LOG_TOPIC_SUBMITTED"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.ExtractorProvider {
	case ProviderOpenRouter:
		if c.OpenRouterKey == "" {
			return fmt.Errorf("OPENROUTER_API_KEY is required for provider %q", c.ExtractorProvider)
		}
	case ProviderGemini:
		if c.GeminiKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for provider %q", c.ExtractorProvider)
		}
	default:
		return fmt.Errorf("unknown EXTRACTOR_PROVIDER %q", c.ExtractorProvider)
	}
	if c.BatchDebounceMs <= 0 {
		return fmt.Errorf("BATCH_DEBOUNCE_MS must be positive")
	}
	if c.MaxProcessingAttempts <= 0 {
		return fmt.Errorf("MAX_PROCESSING_ATTEMPTS must be positive")
	}
	if c.MinTags < 0 {
		return fmt.Errorf("MIN_TAGS must not be negative")
	}
	return nil
}

// IsAllowed reports whether the Telegram user may use the bot. An empty
// allowlist admits everyone.
func (c *Config) IsAllowed(telegramID int64) bool {
	if len(c.AllowedUserIDs) == 0 {
		return true
	}
	for _, id := range c.AllowedUserIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

func (c *Config) AllowedUserIDsString() string {
	parts := make([]string, len(c.AllowedUserIDs))
	for i, id := range c.AllowedUserIDs {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func (c *Config) BatchDebounce() time.Duration {
	return time.Duration(c.BatchDebounceMs) * time.Millisecond
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.SessionMaxAgeHours) * time.Hour
}

func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
