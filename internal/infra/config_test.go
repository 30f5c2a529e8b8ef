package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("TELEGRAM_CHAT_ID", "42")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when DATABASE_URL missing")
	}
}

func TestLoadConfigRequiresChatIDWhenApprovalEnabled(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("REQUIRE_APPROVAL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when TELEGRAM_CHAT_ID missing with approval enabled")
	}

	t.Setenv("REQUIRE_APPROVAL", "false")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.RequireApproval {
		t.Fatal("RequireApproval should be false")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.BotChatID != 42 {
		t.Fatalf("BotChatID = %d, want 42", cfg.BotChatID)
	}
	if cfg.StorageBaseURL != "http://localhost:8080/static" {
		t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
	}
	if cfg.SettingsCacheTTL != time.Minute {
		t.Fatalf("SettingsCacheTTL = %s, want 1m", cfg.SettingsCacheTTL)
	}
	if !cfg.RequireApproval {
		t.Fatal("RequireApproval should default to true")
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("TELEGRAM_CHAT_ID", "42")
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.StorageBaseURL != "http://localhost:1919/static" {
		t.Fatalf("StorageBaseURL = %q", cfg.StorageBaseURL)
	}
}
