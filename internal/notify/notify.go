// Package notify delivers out-of-band notices (desktop command, Slack,
// Discord) when a conversation hits a transport failure.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/crewdesk/internal/config"
	"github.com/zulandar/crewdesk/internal/logging"
)

// Severity colors a notice.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityError   = "error"
	SeveritySuccess = "success"
)

// Sidebar colors by severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Notice is one user-visible notification.
type Notice struct {
	Title     string
	Body      string
	Severity  string
	SessionID string
}

// Color maps the notice severity to a sidebar color.
func (n Notice) Color() string {
	switch n.Severity {
	case SeveritySuccess:
		return ColorSuccess
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	default:
		return ColorInfo
	}
}

// Notifier delivers notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice) error
}

// Nop discards every notice.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, Notice) error { return nil }

// Multi fans a notice out to every notifier and joins their errors.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notice) error {
	var errs []error
	for _, nt := range m {
		if err := nt.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Best sends n and logs, rather than returns, any failure.
func Best(ctx context.Context, nt Notifier, n Notice) {
	if nt == nil {
		return
	}
	if err := nt.Notify(ctx, n); err != nil {
		log := logging.For("notify")
		log.Warn().Err(err).Str("title", n.Title).Msg("notification failed")
	}
}

// FromConfig builds a Multi from every configured channel. It returns Nop
// when none is configured.
func FromConfig(cfg config.NotifyConfig) (Notifier, error) {
	var m Multi
	if strings.TrimSpace(cfg.Command) != "" {
		m = append(m, &Command{Template: cfg.Command})
	}
	if cfg.Slack.BotToken != "" {
		s, err := NewSlack(SlackOpts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		m = append(m, s)
	}
	if cfg.Discord.BotToken != "" {
		d, err := NewDiscord(DiscordOpts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		m = append(m, d)
	}
	if len(m) == 0 {
		return Nop{}, nil
	}
	return m, nil
}

func channelRequired(platform, channelID string) error {
	if channelID == "" {
		return fmt.Errorf("notify: %s channel id is required", platform)
	}
	return nil
}
