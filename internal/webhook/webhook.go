// Package webhook is the request/response backend: it posts the mapped
// conversation history to a workflow webhook and turns whatever comes back
// into chat messages. Every outcome, including transport failure, is a
// message; Send never returns an error.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/logging"
)

// Defaults applied by NewClient.
const (
	DefaultAPIKeyHeader = "X-N8N-API-KEY"
	DefaultUserID       = "crewdesk-user"
	DefaultTimeout      = 60 * time.Second

	// QuoteLimit is how many characters of a non-JSON body are quoted back.
	QuoteLimit = 500
)

// Outcome classifies a webhook reply.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeScavenged   Outcome = "scavenged"
	OutcomeNotJSON     Outcome = "not-json"
	OutcomeEmpty       Outcome = "empty"
	OutcomeHTTPError   Outcome = "http-error"
	OutcomeUnreachable Outcome = "unreachable"
)

// Failed reports whether the outcome should be surfaced out of band.
func (o Outcome) Failed() bool {
	return o == OutcomeEmpty || o == OutcomeHTTPError || o == OutcomeUnreachable
}

// Turn is one history entry in the request body.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Payload is the request body.
type Payload struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Messages  []Turn `json:"messages"`
}

// History maps the conversational messages of a session to turns. Other
// kinds (typing, handoff, collaboration, crew updates, warnings) are dropped.
func History(msgs []chat.Message) []Turn {
	turns := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if !m.Kind.Conversational() {
			continue
		}
		role := "assistant"
		if m.Kind == chat.KindUser {
			role = "user"
		}
		turns = append(turns, Turn{Role: role, Content: m.Text})
	}
	return turns
}

// Doer is the subset of *http.Client the Client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client posts conversations to the workflow webhook.
type Client struct {
	http    Doer
	url     string
	apiKey  string
	header  string
	userID  string
	timeout time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	HTTP         Doer
	URL          string
	APIKey       string // optional shared secret
	APIKeyHeader string
	UserID       string
	Timeout      time.Duration
	Now          func() time.Time
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	c := &Client{
		http:    opts.HTTP,
		url:     opts.URL,
		apiKey:  opts.APIKey,
		header:  opts.APIKeyHeader,
		userID:  opts.UserID,
		timeout: opts.Timeout,
		now:     opts.Now,
		log:     logging.For("webhook"),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.header == "" {
		c.header = DefaultAPIKeyHeader
	}
	if c.userID == "" {
		c.userID = DefaultUserID
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c, nil
}

// URL returns the configured endpoint.
func (c *Client) URL() string { return c.url }

// HasAPIKey reports whether requests carry the shared secret.
func (c *Client) HasAPIKey() bool { return c.apiKey != "" }

// Reply is the result of one Send.
type Reply struct {
	Outcome  Outcome
	Status   int
	Messages []chat.Message
	Err      error // transport failure, for logging only
}

// Send posts the history of sessionID and converts the response.
func (c *Client) Send(ctx context.Context, sessionID string, history []chat.Message) Reply {
	payload := Payload{SessionID: sessionID, UserID: c.userID, Messages: History(history)}
	log := c.log.With().Str("session_id", sessionID).Logger()

	status, body, err := c.post(ctx, payload)
	now := c.now()
	if err != nil {
		log.Error().Err(err).Msg("webhook unreachable")
		return Reply{Outcome: OutcomeUnreachable, Err: err, Messages: []chat.Message{
			troubleshooting(fmt.Sprintf("Could not reach the workflow: %v", err), c.checklist(), now),
		}}
	}
	reply := interpret(status, body, c.url, now)
	if reply.Outcome != OutcomeOK {
		log.Warn().Int("status", status).Str("outcome", string(reply.Outcome)).Msg("webhook reply degraded")
	}
	return reply
}

func (c *Client) post(ctx context.Context, payload Payload) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook: encode request: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("webhook: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set(c.header, c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("webhook: send: %w", err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("webhook: read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

// interpret applies the response precedence: HTTP status, empty body,
// non-JSON body, JSON without a response field, JSON with one.
func interpret(status int, body []byte, endpoint string, now time.Time) Reply {
	if status < 200 || status > 299 {
		text := fmt.Sprintf("The workflow returned HTTP %d %s.", status, http.StatusText(status))
		if detail := strings.TrimSpace(string(body)); detail != "" {
			text += "\n\n" + quote(detail)
		}
		return Reply{Outcome: OutcomeHTTPError, Status: status, Messages: []chat.Message{
			troubleshooting(text, httpChecklist, now),
		}}
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return Reply{Outcome: OutcomeEmpty, Status: status, Messages: []chat.Message{
			troubleshooting("The workflow finished but returned nothing.", emptyChecklist(endpoint), now),
		}}
	}

	var v any
	if err := json.Unmarshal(trimmed, &v); err != nil {
		bot := chat.NewMessage(chat.KindBot, "The workflow replied with plain text instead of JSON:\n\n"+quote(string(trimmed)), now)
		warn := chat.NewMessage(chat.KindWarning, "Response was not valid JSON.", now)
		warn.Troubleshooting = append([]string(nil), formatChecklist...)
		return Reply{Outcome: OutcomeNotJSON, Status: status, Messages: []chat.Message{bot, warn}}
	}

	if obj, ok := v.(map[string]any); ok {
		if text, ok := textField(obj, "response"); ok {
			return Reply{Outcome: OutcomeOK, Status: status, Messages: []chat.Message{
				chat.NewMessage(chat.KindBot, text, now),
			}}
		}
	}

	text, field := scavenge(v, trimmed)
	bot := chat.NewMessage(chat.KindBot, text, now)
	note := "Response has no \"response\" field; showing the whole object."
	if field != "" {
		note = fmt.Sprintf("Response has no \"response\" field; showing %q instead.", field)
	}
	warn := chat.NewMessage(chat.KindWarning, note, now)
	warn.Raw = append(json.RawMessage(nil), trimmed...)
	return Reply{Outcome: OutcomeScavenged, Status: status, Messages: []chat.Message{bot, warn}}
}

var scavengeFields = []string{"message", "output", "result", "text"}

// scavenge finds the first usable alternate field, else stringifies v.
func scavenge(v any, raw []byte) (text, field string) {
	if obj, ok := v.(map[string]any); ok {
		for _, f := range scavengeFields {
			if t, ok := textField(obj, f); ok {
				return t, f
			}
		}
	}
	if s, ok := v.(string); ok {
		return s, ""
	}
	return string(raw), ""
}

// textField returns obj[key] as text when present and non-empty.
func textField(obj map[string]any, key string) (string, bool) {
	val, ok := obj[key]
	if !ok || val == nil {
		return "", false
	}
	if s, ok := val.(string); ok {
		return s, s != ""
	}
	b, err := json.Marshal(val)
	if err != nil {
		return "", false
	}
	return string(b), true
}

func quote(s string) string {
	r := []rune(s)
	if len(r) > QuoteLimit {
		return "\"" + string(r[:QuoteLimit]) + "...\""
	}
	return "\"" + s + "\""
}

func troubleshooting(text string, list []string, now time.Time) chat.Message {
	m := chat.NewMessage(chat.KindTroubleshooting, text, now)
	m.Troubleshooting = append([]string(nil), list...)
	return m
}

var httpChecklist = []string{
	"Verify the workflow is active and listening for webhooks",
	"Check the workflow execution log for the failing node",
	"If an API key is configured, make sure it matches what the workflow expects",
}

var formatChecklist = []string{
	"Make the workflow end with a Respond to Webhook node",
	`Return JSON shaped like { "response": "..." }`,
	"Set the response Content-Type to application/json",
}

func emptyChecklist(endpoint string) []string {
	return []string{
		"Check that the workflow has a Respond to Webhook node",
		"Make sure the respond node runs on every branch of the workflow",
		`Return JSON shaped like { "response": "..." }`,
		"Confirm the webhook is set to respond when the last node finishes",
		"Endpoint: " + endpoint,
	}
}

func (c *Client) checklist() []string {
	return []string{
		"Ensure the webhook URL is correct: " + c.url,
		"Verify the workflow is active and listening for webhooks",
		"Check network connectivity to the workflow host",
	}
}
