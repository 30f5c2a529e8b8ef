package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	BotToken   string
	BotBaseURL string
	BotChatID  int64

	PublishBaseURL   string
	PublishToken     string
	PublishAccountID string

	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	StoragePath    string
	StorageBaseURL string

	RequireApproval bool
	ProductionCron  string

	SettingsCacheTTL time.Duration
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		BotToken:         os.Getenv("TELEGRAM_BOT_TOKEN"),
		BotBaseURL:       getEnv("TELEGRAM_BASE_URL", "https://api.telegram.org"),
		BotChatID:        getEnvInt64("TELEGRAM_CHAT_ID", 0),
		PublishBaseURL:   getEnv("PUBLISH_BASE_URL", "https://graph.example.com/v19.0"),
		PublishToken:     os.Getenv("PUBLISH_ACCESS_TOKEN"),
		PublishAccountID: os.Getenv("PUBLISH_ACCOUNT_ID"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		GeminiModel:      getEnv("GEMINI_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:    getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		StoragePath:      getEnv("STORAGE_PATH", "./storage"),
		StorageBaseURL:   "",
		RequireApproval:  getEnvBool("REQUIRE_APPROVAL", true),
		ProductionCron:   os.Getenv("PRODUCTION_CRON"),
		SettingsCacheTTL: time.Second * time.Duration(getEnvInt("SETTINGS_CACHE_TTL_SECONDS", 60)),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	cfg.StorageBaseURL = getEnv("STORAGE_BASE_URL", "http://localhost:"+cfg.Port+"/static")

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RequireApproval && cfg.BotChatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is required when approval is enabled")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
