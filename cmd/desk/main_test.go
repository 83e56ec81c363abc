package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// runCmd executes a fresh root command and returns its combined output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// writeConfig writes a sqlite-backed config into a temp dir and returns its path.
func writeConfig(t *testing.T, extra string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "crewdesk.yaml")
	body := "database:\n  driver: sqlite\n  path: " + filepath.Join(dir, "desk.db") + "\nlog:\n  level: error\n" + extra
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersionCmd(t *testing.T) {
	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	if !strings.Contains(out, "desk dev") {
		t.Errorf("expected output to contain 'desk dev', got: %s", out)
	}
	if !strings.Contains(out, "commit: none") {
		t.Errorf("expected output to contain 'commit: none', got: %s", out)
	}
}

func TestVersionCmdWithCustomValues(t *testing.T) {
	origVersion, origCommit, origDate := Version, Commit, Date
	Version, Commit, Date = "1.0.0", "abc123", "2026-01-01"
	defer func() { Version, Commit, Date = origVersion, origCommit, origDate }()

	out, err := runCmd(t, "version")
	if err != nil {
		t.Fatalf("version command failed: %v", err)
	}
	for _, want := range []string{"desk 1.0.0", "commit: abc123", "built: 2026-01-01"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected output to contain %q, got: %s", want, out)
		}
	}
}

func TestRootCmdHelp(t *testing.T) {
	out, err := runCmd(t, "--help")
	if err != nil {
		t.Fatalf("help command failed: %v", err)
	}
	for _, want := range []string{"crewdesk", "version", "serve", "chat", "sessions", "webhook", "db"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected help output to contain %q, got: %s", want, out)
		}
	}
}

func TestServeCmd_Help(t *testing.T) {
	out, err := runCmd(t, "serve", "--help")
	if err != nil {
		t.Fatalf("serve --help failed: %v", err)
	}
	if !strings.Contains(out, "--port") || !strings.Contains(out, "crewdesk.yaml") {
		t.Errorf("unexpected help: %s", out)
	}
}

func TestServeCmd_MissingConfig(t *testing.T) {
	_, err := runCmd(t, "serve", "--config", "/nonexistent/crewdesk.yaml")
	if err == nil || !strings.Contains(err.Error(), "load config") {
		t.Errorf("err = %v", err)
	}
}

func TestServeCmd_BadSchedule(t *testing.T) {
	path := writeConfig(t, "export:\n  schedule: \"every day\"\n")
	_, err := runCmd(t, "serve", "--config", path)
	if err == nil || !strings.Contains(err.Error(), "schedule") {
		t.Errorf("err = %v", err)
	}
}

func TestChatCmd_RequiresTerminal(t *testing.T) {
	orig := isTerminal
	isTerminal = func() bool { return false }
	defer func() { isTerminal = orig }()

	_, err := runCmd(t, "chat", "--config", writeConfig(t, ""))
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Errorf("err = %v", err)
	}
}
