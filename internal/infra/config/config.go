package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL     string
	TablePrefix     string
	TelegramToken   string // empty disables the bot
	AdminTelegramID int64
	LogLevel        string
	Environment     string
	CronSpec        string
	JobTimeout      time.Duration
	LangFile        string // optional override of the message catalog
	TracesFile      string // enables tracing when set
	RunOnce         bool
}

// BotEnabled reports whether a Telegram bot token is configured.
func (c *AppConfig) BotEnabled() bool {
	return c.TelegramToken != ""
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.TablePrefix = os.Getenv("DB_TABLE_PREFIX")
	if cfg.TablePrefix == "" {
		cfg.TablePrefix = "mdl_"
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}
	if cfg.BotEnabled() && cfg.AdminTelegramID == 0 {
		return nil, fmt.Errorf("ADMIN_TELEGRAM_ID is not set")
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	cfg.CronSpec = os.Getenv("CRON_SPEC_AUTOAPPROVE")
	if cfg.CronSpec == "" {
		cfg.CronSpec = "*/30 * * * *" // every 30 minutes
	}

	cfg.JobTimeout = 5 * time.Minute
	if v := os.Getenv("JOB_TIMEOUT"); v != "" {
		cfg.JobTimeout, err = time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JOB_TIMEOUT: %w", err)
		}
		if cfg.JobTimeout <= 0 {
			return nil, fmt.Errorf("invalid JOB_TIMEOUT: must be positive")
		}
	}

	cfg.LangFile = os.Getenv("LANG_FILE")
	cfg.TracesFile = os.Getenv("TRACES_FILE")

	if v := os.Getenv("RUN_ONCE"); v != "" {
		cfg.RunOnce, err = strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid RUN_ONCE: %w", err)
		}
	}

	return cfg, nil
}
