package notify

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Command runs a shell command per notice. Template placeholders:
// {{.Title}}, {{.Body}}, {{.Severity}}, {{.SessionID}}.
type Command struct {
	Template string
}

// Notify implements Notifier.
func (c *Command) Notify(ctx context.Context, n Notice) error {
	if c.Template == "" {
		return nil
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", templateNotice(c.Template, n))
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("notify: command failed: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// templateNotice replaces placeholders in the command template with notice values.
func templateNotice(command string, n Notice) string {
	r := strings.NewReplacer(
		"{{.Title}}", n.Title,
		"{{.Body}}", n.Body,
		"{{.Severity}}", n.Severity,
		"{{.SessionID}}", n.SessionID,
	)
	return r.Replace(command)
}
