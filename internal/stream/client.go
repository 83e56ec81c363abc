package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/zulandar/crewdesk/internal/config"
	"github.com/zulandar/crewdesk/internal/logging"
)

// DefaultIdleTimeout bounds the silence between two reads of the stream.
const DefaultIdleTimeout = 90 * time.Second

// ErrStalled is the cancel cause when the orchestrator goes silent.
var ErrStalled = errors.New("stream: orchestrator stalled")

// Request is the body sent to the orchestrator.
type Request struct {
	Prompt          string            `json:"prompt"`
	Type            string            `json:"type"`
	InvolvedAgents  []string          `json:"involved_agents,omitempty"`
	TaskDescription string            `json:"task_description"`
	CrewConfig      config.CrewConfig `json:"crew_config"`
}

// Doer is the subset of *http.Client the Client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client opens orchestrator streams.
type Client struct {
	http        Doer
	url         string
	taskType    string
	crew        config.CrewConfig
	idleTimeout time.Duration
	log         zerolog.Logger
}

// ClientOpts holds parameters for creating a Client.
type ClientOpts struct {
	HTTP        Doer // defaults to a client without an overall timeout
	URL         string
	TaskType    string
	Crew        config.CrewConfig
	IdleTimeout time.Duration
}

// NewClient creates a Client.
func NewClient(opts ClientOpts) (*Client, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("stream: url is required")
	}
	c := &Client{
		http:        opts.HTTP,
		url:         opts.URL,
		taskType:    opts.TaskType,
		crew:        opts.Crew,
		idleTimeout: opts.IdleTimeout,
		log:         logging.For("stream"),
	}
	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.taskType == "" {
		c.taskType = "general"
	}
	if c.idleTimeout <= 0 {
		c.idleTimeout = DefaultIdleTimeout
	}
	return c, nil
}

// IdleTimeout returns the configured stall threshold.
func (c *Client) IdleTimeout() time.Duration {
	return c.idleTimeout
}

// NewRequest fills the task type and crew bundle for prompt.
func (c *Client) NewRequest(prompt string, agents []string, taskDescription string) Request {
	return Request{
		Prompt:          prompt,
		Type:            c.taskType,
		InvolvedAgents:  agents,
		TaskDescription: taskDescription,
		CrewConfig:      c.crew,
	}
}

// Stream posts req and calls handle for every event in arrival order until
// handle returns false, the body ends, or reading fails. Only complete
// records are handled. A read silence longer than the idle timeout aborts
// the stream with ErrStalled.
func (c *Client) Stream(ctx context.Context, req Request, handle func(Event) bool) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("stream: encode request: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("stream: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	watchdog := time.AfterFunc(c.idleTimeout, func() { cancel(ErrStalled) })
	defer watchdog.Stop()

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return c.readErr(ctx, "send", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("stream: orchestrator returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(snippet))
	}

	var dec Decoder
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			watchdog.Reset(c.idleTimeout)
			for _, rec := range dec.Feed(buf[:n]) {
				payload, ok := Payload(rec)
				if !ok {
					continue
				}
				ev := ParseEvent(payload)
				if ev.Type == EventMalformed {
					c.log.Warn().Err(ev.Err).Msg("malformed stream record")
				}
				if !handle(ev) {
					return nil
				}
			}
		}
		if errors.Is(err, io.EOF) {
			if len(bytes.TrimSpace(dec.Pending())) > 0 {
				c.log.Debug().Int("bytes", len(dec.Pending())).Msg("discarding incomplete trailing record")
			}
			return nil
		}
		if err != nil {
			return c.readErr(ctx, "read", err)
		}
	}
}

func (c *Client) readErr(ctx context.Context, op string, err error) error {
	if errors.Is(context.Cause(ctx), ErrStalled) {
		return fmt.Errorf("stream: %s: no data for %s: %w", op, c.idleTimeout, ErrStalled)
	}
	return fmt.Errorf("stream: %s: %w", op, err)
}
