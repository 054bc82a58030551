package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPathRespectsExplicitOverrides(t *testing.T) {
	t.Setenv("MUCBOT_HOME", "/srv/muchome")
	t.Setenv("MUCBOT_CONFIG", "~/.mucbot/custom.json")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join("/srv/muchome", ".mucbot", "custom.json") {
		t.Fatalf("unexpected config path: %q", path)
	}
}

func TestConfigPathDefaultsToHome(t *testing.T) {
	t.Setenv("MUCBOT_CONFIG", "")
	t.Setenv("MUCBOT_HOME", "")
	t.Setenv("HOME", "/home/bots")

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	if path != filepath.Join("/home/bots", ConfigDir, ConfigFile) {
		t.Fatalf("unexpected config path: %q", path)
	}
}

func TestLoadLayersFileUnderEnv(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("MUCBOT_HOME", "")
	t.Setenv("MUCBOT_CONFIG", "")
	t.Setenv("BOT_NICK", "env_bot")
	t.Setenv("OLLAMA_HOST_VALUE", "http://ollama.internal:11434")

	dir := filepath.Join(tmp, ConfigDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	fileCfg := `{
		"bot": {"jid": "bot@example.org", "nick": "file_bot", "minResponseIntervalSeconds": 10},
		"ai": {"ollamaUrl": "${OLLAMA_HOST_VALUE}"}
	}`
	if err := os.WriteFile(filepath.Join(dir, ConfigFile), []byte(fileCfg), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Bot.JID != "bot@example.org" {
		t.Errorf("expected file value for jid, got %q", cfg.Bot.JID)
	}
	if cfg.Bot.Nick != "env_bot" {
		t.Errorf("expected env to beat file for nick, got %q", cfg.Bot.Nick)
	}
	if cfg.Bot.MinResponseIntervalSeconds != 10 {
		t.Errorf("expected file to beat default for interval, got %d", cfg.Bot.MinResponseIntervalSeconds)
	}
	if cfg.AI.OllamaURL != "http://ollama.internal:11434" {
		t.Errorf("expected ${VAR} substitution, got %q", cfg.AI.OllamaURL)
	}
	if cfg.Bot.LogLevel != "INFO" {
		t.Errorf("expected untouched default log level, got %q", cfg.Bot.LogLevel)
	}
}

func TestLoadWithoutFileUsesDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MUCBOT_HOME", "")
	t.Setenv("MUCBOT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Gateway.URL != "http://127.0.0.1:5280" {
		t.Fatalf("unexpected gateway url: %q", cfg.Gateway.URL)
	}
}

func TestLoadExpandsTranscriptHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("MUCBOT_HOME", "")
	t.Setenv("MUCBOT_CONFIG", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Transcript.Path != filepath.Join(tmp, ".mucbot", "transcript.db") {
		t.Fatalf("unexpected transcript path: %q", cfg.Transcript.Path)
	}
}

func TestSaveRoundTrips(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("MUCBOT_HOME", "")
	t.Setenv("MUCBOT_CONFIG", "")

	cfg := DefaultConfig()
	cfg.Bot.Nick = "saved_bot"
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("config path: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat saved config: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("config file should be private, got mode %v", info.Mode().Perm())
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Bot.Nick != "saved_bot" {
		t.Fatalf("unexpected nick after round trip: %q", loaded.Bot.Nick)
	}
}
