package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
mode: stream
detect: false

database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  name: crewdesk_alice
  user: alice

sessions:
  max_sessions: 10
  max_messages: 200
  reduced_sessions: 3
  reduced_messages: 20

orchestrator:
  url: http://localhost:8000/api/crew
  idle_timeout: 45s
  task_type: research

webhook:
  url: https://n8n.example.com/webhook/agent
  api_key: secret
  user_id: alice

crew:
  agents:
    - id: researcher
      name: Research Agent
      enabled: true
  providers:
    - id: groq
      enabled: true
  system:
    theme: dark

notify:
  command: "notify-send 'crewdesk' '{{.Title}}'"
  slack:
    bot_token: xoxb-1
    channel_id: C01

server:
  port: 9090

export:
  dir: /var/backups/crewdesk
  schedule: "0 3 * * *"

log:
  level: debug
  pretty: true
`

const minimalYAML = `
mode: simulate
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Mode != ModeStream {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeStream)
	}
	if cfg.DetectEnabled() {
		t.Error("DetectEnabled() = true, want false")
	}
	if cfg.Database.Driver != "mysql" || cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.Name != "crewdesk_alice" || cfg.Database.User != "alice" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Sessions.MaxSessions != 10 || cfg.Sessions.MaxMessages != 200 {
		t.Errorf("Sessions = %+v", cfg.Sessions)
	}
	if cfg.Orchestrator.IdleTimeout != 45*time.Second {
		t.Errorf("IdleTimeout = %v, want 45s", cfg.Orchestrator.IdleTimeout)
	}
	if cfg.Orchestrator.TaskType != "research" {
		t.Errorf("TaskType = %q, want research", cfg.Orchestrator.TaskType)
	}
	if cfg.Webhook.APIKeyHeader != "X-N8N-API-KEY" {
		t.Errorf("APIKeyHeader = %q", cfg.Webhook.APIKeyHeader)
	}
	if len(cfg.Crew.Agents) != 1 || cfg.Crew.Agents[0]["name"] != "Research Agent" {
		t.Errorf("Crew.Agents = %v", cfg.Crew.Agents)
	}
	if cfg.Crew.System["theme"] != "dark" {
		t.Errorf("Crew.System = %v", cfg.Crew.System)
	}
	if cfg.Notify.Slack.ChannelID != "C01" {
		t.Errorf("Notify.Slack = %+v", cfg.Notify.Slack)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Export.Schedule != "0 3 * * *" {
		t.Errorf("Export.Schedule = %q", cfg.Export.Schedule)
	}
	if cfg.Log.Level != "debug" || !cfg.Log.Pretty {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestParse_MinimalConfigDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !cfg.DetectEnabled() {
		t.Error("DetectEnabled() should default to true")
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.Path != "crewdesk.db" {
		t.Errorf("Database = %+v, want sqlite crewdesk.db", cfg.Database)
	}
	if cfg.Sessions.MaxSessions != 20 {
		t.Errorf("MaxSessions = %d, want 20", cfg.Sessions.MaxSessions)
	}
	if cfg.Sessions.MaxMessages != 500 {
		t.Errorf("MaxMessages = %d, want 500", cfg.Sessions.MaxMessages)
	}
	if cfg.Sessions.ReducedSessions != 5 || cfg.Sessions.ReducedMessages != 50 {
		t.Errorf("reduced caps = %d/%d, want 5/50", cfg.Sessions.ReducedSessions, cfg.Sessions.ReducedMessages)
	}
	if cfg.Orchestrator.IdleTimeout != 90*time.Second {
		t.Errorf("IdleTimeout = %v, want 90s", cfg.Orchestrator.IdleTimeout)
	}
	if cfg.Webhook.Timeout != 60*time.Second {
		t.Errorf("Webhook.Timeout = %v, want 60s", cfg.Webhook.Timeout)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
}

func TestParse_EmptyDefaultsToSimulate(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Mode != ModeSimulate {
		t.Errorf("Mode = %q, want %q", cfg.Mode, ModeSimulate)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown mode", "mode: telepathy", `mode "telepathy"`},
		{"webhook without url", "mode: webhook", "webhook.url is required"},
		{"stream without url", "mode: stream", "orchestrator.url is required"},
		{"bad driver", "database:\n  driver: postgres", `database.driver "postgres"`},
		{"negative caps", "sessions:\n  max_sessions: -1", "max_sessions must be at least 1"},
		{"reduced above max", "sessions:\n  max_sessions: 2\n  reduced_sessions: 3", "reduced_sessions must not exceed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("mode: webhook\ndatabase:\n  driver: oracle"))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "; ") {
		t.Errorf("expected errors joined with '; ', got %q", err.Error())
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("mode: [unterminated"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestParse_EnvOverridesSecrets(t *testing.T) {
	t.Setenv("CREWDESK_WEBHOOK_API_KEY", "from-env")
	t.Setenv("CREWDESK_DISCORD_BOT_TOKEN", "discord-env")

	cfg, err := Parse([]byte("webhook:\n  api_key: from-file"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Webhook.APIKey != "from-env" {
		t.Errorf("APIKey = %q, want from-env", cfg.Webhook.APIKey)
	}
	if cfg.Notify.Discord.BotToken != "discord-env" {
		t.Errorf("Discord.BotToken = %q", cfg.Notify.Discord.BotToken)
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crewdesk.yaml")
	if err := os.WriteFile(path, []byte(fullYAML), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mode != ModeStream {
		t.Errorf("Mode = %q", cfg.Mode)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/crewdesk.yaml")
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Mode != ModeSimulate || cfg.Sessions.MaxSessions != 20 {
		t.Errorf("Default() = %+v", cfg)
	}
}
