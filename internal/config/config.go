// Package config provides configuration types and loading for mucbot.
package config

import (
	"strings"
	"time"
)

// Config is the root configuration struct.
// Top-level groups: Bot, AI, Gateway, Transcript, Trace.
type Config struct {
	Bot        BotConfig        `json:"bot"`
	AI         AIConfig         `json:"ai"`
	Gateway    GatewayConfig    `json:"gateway"`
	Transcript TranscriptConfig `json:"transcript"`
	Trace      TraceConfig      `json:"trace"`
}

// ---------------------------------------------------------------------------
// Bot – XMPP identity and room behaviour
// ---------------------------------------------------------------------------

// BotConfig groups the bot's XMPP identity and reply policy. The env
// names are the bare ones the original deployment used.
type BotConfig struct {
	JID                        string `json:"jid" envconfig:"BOT_JID"`
	Password                   string `json:"password" envconfig:"BOT_PASSWORD"`
	Nick                       string `json:"nick" envconfig:"BOT_NICK"`
	Room                       string `json:"room" envconfig:"MUC_ROOM"`
	AdminJID                   string `json:"adminJid" envconfig:"ADMIN_JID"`
	Debug                      bool   `json:"debug" envconfig:"IS_DEBUG"`
	LogLevel                   string `json:"logLevel" envconfig:"LOGGING_LEVEL"`
	TypingEffect               bool   `json:"typingEffect" envconfig:"ENABLE_TYPING_EFFECT"`
	MinResponseIntervalSeconds int    `json:"minResponseIntervalSeconds" envconfig:"MIN_RESPONSE_INTERVAL_SECONDS"`
}

// ResponseInterval returns the minimum time between replies.
func (b BotConfig) ResponseInterval() time.Duration {
	return time.Duration(b.MinResponseIntervalSeconds) * time.Second
}

// ---------------------------------------------------------------------------
// AI – inference backend
// ---------------------------------------------------------------------------

// AIConfig groups the Ollama backend settings.
type AIConfig struct {
	OllamaURL    string `json:"ollamaUrl" envconfig:"OLLAMA_URL"`
	DefaultModel string `json:"defaultModel" envconfig:"AI_DEFAULT_MODEL"`
	CodeModel    string `json:"codeModel" envconfig:"AI_CODE_MODEL"`
}

// ---------------------------------------------------------------------------
// Gateway – session gateway daemon
// ---------------------------------------------------------------------------

// GatewayConfig groups the session gateway connection settings.
type GatewayConfig struct {
	URL   string `json:"url" envconfig:"GATEWAY_URL"`
	Token string `json:"token" envconfig:"GATEWAY_TOKEN"`
}

// ---------------------------------------------------------------------------
// Transcript – room transcript store
// ---------------------------------------------------------------------------

// TranscriptConfig groups the sqlite transcript settings. An empty
// path disables the store.
type TranscriptConfig struct {
	Path string `json:"path" envconfig:"TRANSCRIPT_DB"`
}

// Enabled reports whether the transcript store is configured.
func (t TranscriptConfig) Enabled() bool {
	return strings.TrimSpace(t.Path) != ""
}

// ---------------------------------------------------------------------------
// Trace – Kafka decision-trace mirror
// ---------------------------------------------------------------------------

// TraceConfig groups the Kafka trace mirror settings. An empty broker
// list disables the mirror.
type TraceConfig struct {
	Brokers  string `json:"brokers" envconfig:"KAFKA_BROKERS"`
	Topic    string `json:"topic" envconfig:"KAFKA_TRACE_TOPIC"`
	ClientID string `json:"clientId" envconfig:"KAFKA_CLIENT_ID"`
}

// Enabled reports whether the trace mirror is configured.
func (t TraceConfig) Enabled() bool {
	return len(t.BrokerList()) > 0
}

// BrokerList splits the comma-separated broker string.
func (t TraceConfig) BrokerList() []string {
	var out []string
	for _, b := range strings.Split(t.Brokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// ConfigError reports required settings that are missing. All missing
// names are collected so the operator fixes them in one pass.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "missing required settings: " + strings.Join(e.Missing, ", ")
}

// Validate checks that every required setting has a value.
func (c *Config) Validate() error {
	var missing []string
	check := func(name, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, name)
		}
	}
	check("BOT_JID", c.Bot.JID)
	check("BOT_PASSWORD", c.Bot.Password)
	check("BOT_NICK", c.Bot.Nick)
	check("ADMIN_JID", c.Bot.AdminJID)
	check("MUC_ROOM", c.Bot.Room)
	check("AI_DEFAULT_MODEL", c.AI.DefaultModel)
	check("AI_CODE_MODEL", c.AI.CodeModel)
	check("OLLAMA_URL", c.AI.OllamaURL)
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Bot: BotConfig{
			LogLevel:                   "INFO",
			TypingEffect:               true,
			MinResponseIntervalSeconds: 30,
		},
		Gateway: GatewayConfig{
			URL: "http://127.0.0.1:5280", // Local daemon default
		},
		Transcript: TranscriptConfig{
			Path: "~/.mucbot/transcript.db",
		},
		Trace: TraceConfig{
			Topic:    "mucbot.trace",
			ClientID: "mucbot",
		},
	}
}
