// Package config provides YAML-based configuration loading for crewdesk.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend modes select how a user message is answered.
const (
	ModeSimulate = "simulate"
	ModeWebhook  = "webhook"
	ModeStream   = "stream"
)

// Config is the top-level crewdesk configuration, loaded from crewdesk.yaml.
type Config struct {
	Mode         string             `yaml:"mode"`
	Detect       *bool              `yaml:"detect"`
	Database     DatabaseConfig     `yaml:"database"`
	Sessions     SessionsConfig     `yaml:"sessions"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Webhook      WebhookConfig      `yaml:"webhook"`
	Crew         CrewConfig         `yaml:"crew"`
	Notify       NotifyConfig       `yaml:"notify"`
	Server       ServerConfig       `yaml:"server"`
	Export       ExportConfig       `yaml:"export"`
	Log          LogConfig          `yaml:"log"`
}

// DatabaseConfig selects the persistence backend behind the key-value store.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (default) or "mysql"
	Path   string `yaml:"path"`   // sqlite file path
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	Name   string `yaml:"name"`
	User   string `yaml:"user"`
}

// SessionsConfig holds the session store caps.
type SessionsConfig struct {
	MaxSessions     int `yaml:"max_sessions"`
	MaxMessages     int `yaml:"max_messages"`
	ReducedSessions int `yaml:"reduced_sessions"`
	ReducedMessages int `yaml:"reduced_messages"`
	MaxValueBytes   int `yaml:"max_value_bytes"`
}

// OrchestratorConfig describes the streaming crew orchestrator endpoint.
type OrchestratorConfig struct {
	URL         string        `yaml:"url"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	TaskType    string        `yaml:"task_type"`
}

// WebhookConfig describes the request/response workflow webhook.
type WebhookConfig struct {
	URL          string        `yaml:"url"`
	APIKey       string        `yaml:"api_key"`
	APIKeyHeader string        `yaml:"api_key_header"`
	UserID       string        `yaml:"user_id"`
	Timeout      time.Duration `yaml:"timeout"`
}

// CrewConfig is forwarded to the orchestrator untouched.
type CrewConfig struct {
	Agents    []map[string]any `yaml:"agents" json:"agents"`
	Providers []map[string]any `yaml:"providers" json:"providers"`
	System    map[string]any   `yaml:"system" json:"system"`
}

// NotifyConfig controls out-of-band notifications.
type NotifyConfig struct {
	Command string        `yaml:"command"`
	Slack   ChannelConfig `yaml:"slack"`
	Discord ChannelConfig `yaml:"discord"`
}

// ChannelConfig holds a bot token and target channel for a chat platform.
type ChannelConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ExportConfig controls scheduled session exports.
type ExportConfig struct {
	Dir      string `yaml:"dir"`
	Schedule string `yaml:"schedule"` // 5-field cron expression; empty disables
}

// LogConfig controls the zerolog setup.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// DetectEnabled reports whether handoff/collaboration detection runs before dispatch.
func (c *Config) DetectEnabled() bool {
	return c.Detect == nil || *c.Detect
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv lets secrets come from the environment instead of the file.
func (c *Config) applyEnv() {
	if v := os.Getenv("CREWDESK_WEBHOOK_API_KEY"); v != "" {
		c.Webhook.APIKey = v
	}
	if v := os.Getenv("CREWDESK_SLACK_BOT_TOKEN"); v != "" {
		c.Notify.Slack.BotToken = v
	}
	if v := os.Getenv("CREWDESK_DISCORD_BOT_TOKEN"); v != "" {
		c.Notify.Discord.BotToken = v
	}
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeSimulate
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "crewdesk.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "crewdesk"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.Sessions.MaxSessions == 0 {
		c.Sessions.MaxSessions = 20
	}
	if c.Sessions.MaxMessages == 0 {
		c.Sessions.MaxMessages = 500
	}
	if c.Sessions.ReducedSessions == 0 {
		c.Sessions.ReducedSessions = min(5, c.Sessions.MaxSessions)
	}
	if c.Sessions.ReducedMessages == 0 {
		c.Sessions.ReducedMessages = min(50, c.Sessions.MaxMessages)
	}
	if c.Sessions.MaxValueBytes == 0 {
		c.Sessions.MaxValueBytes = 5 * 1024 * 1024
	}
	if c.Orchestrator.IdleTimeout == 0 {
		c.Orchestrator.IdleTimeout = 90 * time.Second
	}
	if c.Orchestrator.TaskType == "" {
		c.Orchestrator.TaskType = "general"
	}
	if c.Webhook.APIKeyHeader == "" {
		c.Webhook.APIKeyHeader = "X-N8N-API-KEY"
	}
	if c.Webhook.UserID == "" {
		c.Webhook.UserID = "crewdesk-user"
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = 60 * time.Second
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Export.Dir == "" {
		c.Export.Dir = "exports"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Mode {
	case ModeSimulate:
	case ModeWebhook:
		if c.Webhook.URL == "" {
			errs = append(errs, "webhook.url is required in webhook mode")
		}
	case ModeStream:
		if c.Orchestrator.URL == "" {
			errs = append(errs, "orchestrator.url is required in stream mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("mode %q is not one of simulate, webhook, stream", c.Mode))
	}
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql", c.Database.Driver))
	}
	if c.Sessions.MaxSessions < 1 {
		errs = append(errs, "sessions.max_sessions must be at least 1")
	}
	if c.Sessions.MaxMessages < 1 {
		errs = append(errs, "sessions.max_messages must be at least 1")
	}
	if c.Sessions.ReducedSessions > c.Sessions.MaxSessions {
		errs = append(errs, "sessions.reduced_sessions must not exceed sessions.max_sessions")
	}
	if c.Sessions.ReducedMessages > c.Sessions.MaxMessages {
		errs = append(errs, "sessions.reduced_messages must not exceed sessions.max_messages")
	}
	if c.Orchestrator.IdleTimeout < 0 {
		errs = append(errs, "orchestrator.idle_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
