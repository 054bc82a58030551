package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bot.LogLevel != "INFO" {
		t.Errorf("expected default log level INFO, got %s", cfg.Bot.LogLevel)
	}
	if !cfg.Bot.TypingEffect {
		t.Error("expected typing effect enabled by default")
	}
	if cfg.Bot.MinResponseIntervalSeconds != 30 {
		t.Errorf("expected default response interval 30, got %d", cfg.Bot.MinResponseIntervalSeconds)
	}
	if cfg.Bot.Debug {
		t.Error("expected debug disabled by default")
	}
	if cfg.Gateway.URL != "http://127.0.0.1:5280" {
		t.Errorf("unexpected default gateway url: %s", cfg.Gateway.URL)
	}
	if cfg.Trace.Topic != "mucbot.trace" || cfg.Trace.ClientID != "mucbot" {
		t.Errorf("unexpected trace defaults: %+v", cfg.Trace)
	}
	if cfg.Trace.Enabled() {
		t.Error("expected trace mirror disabled without brokers")
	}
	if !cfg.Transcript.Enabled() {
		t.Error("expected transcript enabled by default")
	}
}

func TestResponseInterval(t *testing.T) {
	b := BotConfig{MinResponseIntervalSeconds: 45}
	if b.ResponseInterval() != 45*time.Second {
		t.Fatalf("unexpected interval: %v", b.ResponseInterval())
	}
}

func TestValidateReportsAllMissing(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure for empty config")
	}
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %T", err)
	}
	want := []string{
		"BOT_JID", "BOT_PASSWORD", "BOT_NICK", "ADMIN_JID", "MUC_ROOM",
		"AI_DEFAULT_MODEL", "AI_CODE_MODEL", "OLLAMA_URL",
	}
	if !reflect.DeepEqual(cfgErr.Missing, want) {
		t.Fatalf("unexpected missing list: %v", cfgErr.Missing)
	}
	for _, name := range want {
		if !strings.Contains(err.Error(), name) {
			t.Errorf("error message misses %s: %q", name, err.Error())
		}
	}
}

func TestValidateCompleteConfig(t *testing.T) {
	cfg := completeConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateWhitespaceCountsAsMissing(t *testing.T) {
	cfg := completeConfig()
	cfg.Bot.Nick = "   "

	err := cfg.Validate()
	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected *ConfigError, got %v", err)
	}
	if !reflect.DeepEqual(cfgErr.Missing, []string{"BOT_NICK"}) {
		t.Fatalf("unexpected missing list: %v", cfgErr.Missing)
	}
}

func TestTraceBrokerList(t *testing.T) {
	tc := TraceConfig{Brokers: " kafka-1:9092, ,kafka-2:9092 "}
	want := []string{"kafka-1:9092", "kafka-2:9092"}
	if got := tc.BrokerList(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected broker list: %v", got)
	}
	if !tc.Enabled() {
		t.Fatal("expected trace enabled with brokers configured")
	}
}

func TestTranscriptDisabledOnEmptyPath(t *testing.T) {
	tc := TranscriptConfig{Path: "  "}
	if tc.Enabled() {
		t.Fatal("expected transcript disabled for blank path")
	}
}

func completeConfig() *Config {
	cfg := DefaultConfig()
	cfg.Bot.JID = "bot@example.org"
	cfg.Bot.Password = "secret"
	cfg.Bot.Nick = "ai_bot"
	cfg.Bot.AdminJID = "admin@example.org"
	cfg.Bot.Room = "room@conference.example.org"
	cfg.AI.DefaultModel = "gemma3:12b"
	cfg.AI.CodeModel = "qwen2.5-coder:7b"
	cfg.AI.OllamaURL = "http://127.0.0.1:11434"
	return cfg
}
