package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// TestPrompt is the synthetic message sent by TestConnection.
const TestPrompt = "This is a connection test. Please respond with a simple confirmation."

// TestResult reports a connection test.
type TestResult struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Response     string `json:"response,omitempty"`
	Error        string `json:"error,omitempty"`
	Details      string `json:"details,omitempty"`
	ResponseTime int64  `json:"responseTime"` // milliseconds
	WebhookURL   string `json:"webhookUrl"`
	HasAPIKey    bool   `json:"hasApiKey"`
}

// TestConnection sends a fixed test payload without touching any session and
// checks that the workflow answers with a response field.
func (c *Client) TestConnection(ctx context.Context) TestResult {
	start := c.now()
	payload := Payload{
		SessionID: fmt.Sprintf("test-session-%d", start.UnixMilli()),
		UserID:    "test-user",
		Messages:  []Turn{{Role: "user", Content: TestPrompt}},
	}
	status, body, err := c.post(ctx, payload)
	res := TestResult{
		ResponseTime: c.now().Sub(start).Milliseconds(),
		WebhookURL:   c.url,
		HasAPIKey:    c.HasAPIKey(),
	}

	switch {
	case err != nil:
		res.Error = "Connection failed"
		res.Details = err.Error()
	case status < 200 || status > 299:
		res.Error = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
		res.Details = strings.TrimSpace(string(body))
	default:
		var obj map[string]any
		if jerr := json.Unmarshal(body, &obj); jerr != nil {
			res.Error = "Invalid response format"
			res.Details = "Expected { response: '...' } but received: " + strings.TrimSpace(string(body))
			break
		}
		text, ok := textField(obj, "response")
		if !ok {
			res.Error = "Invalid response format"
			res.Details = "Expected { response: '...' } but received: " + strings.TrimSpace(string(body))
			break
		}
		res.Success = true
		res.Message = "Connection successful"
		res.Response = text
	}

	ev := c.log.Info()
	if !res.Success {
		ev = c.log.Warn().Str("error", res.Error)
	}
	ev.Int64("response_ms", res.ResponseTime).Bool("success", res.Success).Msg("webhook connection test")
	return res
}
