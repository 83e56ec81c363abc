package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack Web API calls we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts notices to a channel as colored attachments.
type Slack struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a Slack notifier.
type SlackOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if err := channelRequired("slack", opts.ChannelID); err != nil {
		return nil, err
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Slack{client: client, channelID: opts.ChannelID}, nil
}

// Notify implements Notifier.
func (s *Slack) Notify(ctx context.Context, n Notice) error {
	if _, _, err := s.client.PostMessageContext(ctx, s.channelID, slackOptions(n)...); err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

func slackOptions(n Notice) []slackapi.MsgOption {
	att := slackapi.Attachment{
		Title:    n.Title,
		Text:     n.Body,
		Color:    n.Color(),
		Fallback: n.Title,
	}
	if n.SessionID != "" {
		att.Fields = append(att.Fields, slackapi.AttachmentField{Title: "Session", Value: n.SessionID, Short: true})
	}
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(n.Title, false),
		slackapi.MsgOptionAttachments(att),
	}
}
