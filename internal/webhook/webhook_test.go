package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/crewdesk/internal/chat"
)

var testNow = time.Date(2026, 10, 17, 10, 0, 0, 0, time.UTC)

// fakeWebhook answers every request with status and body and records the payload.
func fakeWebhook(t *testing.T, status int, body string) (*httptest.Server, *Payload, *http.Header) {
	t.Helper()
	var got Payload
	var hdr http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hdr = r.Header.Clone()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &got, &hdr
}

func newTestClient(t *testing.T, url, apiKey string) *Client {
	t.Helper()
	c, err := NewClient(ClientOpts{URL: url, APIKey: apiKey, Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func history() []chat.Message {
	return []chat.Message{
		chat.Greeting(testNow),
		chat.NewMessage(chat.KindUser, "Book a flight", testNow),
		chat.NewMessage(chat.KindTyping, "", testNow),
		chat.NewMessage(chat.KindHandoff, "Conversation transferred", testNow),
		chat.NewMessage(chat.KindBotComplex, "Searching fares", testNow),
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("err = %v, want url is required", err)
	}
}

func TestHistory(t *testing.T) {
	got := History(history())
	want := []Turn{
		{Role: "assistant", Content: "Hello! I'm your Enhanced Super Agent. How can I assist you today?"},
		{Role: "user", Content: "Book a flight"},
		{Role: "assistant", Content: "Searching fares"},
	}
	if len(got) != len(want) {
		t.Fatalf("turns = %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("turn[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestSend_RequestShape(t *testing.T) {
	srv, got, hdr := fakeWebhook(t, http.StatusOK, `{"response":"ok"}`)
	c := newTestClient(t, srv.URL, "secret")

	c.Send(context.Background(), "s1", history())

	if got.SessionID != "s1" || got.UserID != DefaultUserID || len(got.Messages) != 3 {
		t.Errorf("payload = %+v", got)
	}
	if hdr.Get(DefaultAPIKeyHeader) != "secret" {
		t.Errorf("api key header = %q", hdr.Get(DefaultAPIKeyHeader))
	}
}

func TestSend_NoAPIKeyHeaderWhenUnset(t *testing.T) {
	srv, _, hdr := fakeWebhook(t, http.StatusOK, `{"response":"ok"}`)
	newTestClient(t, srv.URL, "").Send(context.Background(), "s1", nil)
	if _, ok := (*hdr)[http.CanonicalHeaderKey(DefaultAPIKeyHeader)]; ok {
		t.Error("api key header sent without a key")
	}
}

func TestSend_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
		check   func(t *testing.T, msgs []chat.Message)
	}{
		{
			name:    "response field",
			status:  http.StatusOK,
			body:    `{"response":"Your flight is booked."}`,
			outcome: OutcomeOK,
			check: func(t *testing.T, msgs []chat.Message) {
				if len(msgs) != 1 || msgs[0].Kind != chat.KindBot || msgs[0].Text != "Your flight is booked." {
					t.Errorf("messages = %+v", msgs)
				}
			},
		},
		{
			name:    "output field",
			status:  http.StatusOK,
			body:    `{"output":"From output"}`,
			outcome: OutcomeScavenged,
			check: func(t *testing.T, msgs []chat.Message) {
				if len(msgs) != 2 || msgs[0].Text != "From output" {
					t.Fatalf("messages = %+v", msgs)
				}
				if msgs[1].Kind != chat.KindWarning || !strings.Contains(msgs[1].Text, `"output"`) {
					t.Errorf("warning = %+v", msgs[1])
				}
				if string(msgs[1].Raw) != `{"output":"From output"}` {
					t.Errorf("Raw = %s", msgs[1].Raw)
				}
			},
		},
		{
			name:    "field priority",
			status:  http.StatusOK,
			body:    `{"text":"t","result":"r","message":"m"}`,
			outcome: OutcomeScavenged,
			check: func(t *testing.T, msgs []chat.Message) {
				if msgs[0].Text != "m" {
					t.Errorf("Text = %q, want m", msgs[0].Text)
				}
			},
		},
		{
			name:    "no known field",
			status:  http.StatusOK,
			body:    `{"foo":1}`,
			outcome: OutcomeScavenged,
			check: func(t *testing.T, msgs []chat.Message) {
				if msgs[0].Text != `{"foo":1}` {
					t.Errorf("Text = %q", msgs[0].Text)
				}
			},
		},
		{
			name:    "plain text",
			status:  http.StatusOK,
			body:    "Workflow was started",
			outcome: OutcomeNotJSON,
			check: func(t *testing.T, msgs []chat.Message) {
				if len(msgs) != 2 || !strings.Contains(msgs[0].Text, `"Workflow was started"`) {
					t.Fatalf("messages = %+v", msgs)
				}
				if msgs[1].Kind != chat.KindWarning || len(msgs[1].Troubleshooting) == 0 {
					t.Errorf("warning = %+v", msgs[1])
				}
			},
		},
		{
			name:    "empty body",
			status:  http.StatusOK,
			body:    "  \n",
			outcome: OutcomeEmpty,
			check: func(t *testing.T, msgs []chat.Message) {
				if len(msgs) != 1 || msgs[0].Kind != chat.KindTroubleshooting {
					t.Fatalf("messages = %+v", msgs)
				}
				last := msgs[0].Troubleshooting[len(msgs[0].Troubleshooting)-1]
				if !strings.HasPrefix(last, "Endpoint: http://") {
					t.Errorf("checklist tail = %q, want endpoint", last)
				}
			},
		},
		{
			name:    "http 500",
			status:  http.StatusInternalServerError,
			body:    "node failed",
			outcome: OutcomeHTTPError,
			check: func(t *testing.T, msgs []chat.Message) {
				if len(msgs) != 1 || msgs[0].Kind != chat.KindTroubleshooting {
					t.Fatalf("messages = %+v", msgs)
				}
				if !strings.Contains(msgs[0].Text, "HTTP 500 Internal Server Error") || !strings.Contains(msgs[0].Text, "node failed") {
					t.Errorf("Text = %q", msgs[0].Text)
				}
				if len(msgs[0].Troubleshooting) != len(httpChecklist) {
					t.Errorf("checklist = %v", msgs[0].Troubleshooting)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, _ := fakeWebhook(t, tt.status, tt.body)
			reply := newTestClient(t, srv.URL, "").Send(context.Background(), "s1", history())
			if reply.Outcome != tt.outcome {
				t.Fatalf("Outcome = %q, want %q", reply.Outcome, tt.outcome)
			}
			if reply.Status != tt.status {
				t.Errorf("Status = %d, want %d", reply.Status, tt.status)
			}
			tt.check(t, reply.Messages)
		})
	}
}

func TestSend_QuotesAtMost500Chars(t *testing.T) {
	body := strings.Repeat("é", 700)
	srv, _, _ := fakeWebhook(t, http.StatusOK, body)
	reply := newTestClient(t, srv.URL, "").Send(context.Background(), "s1", nil)
	if reply.Outcome != OutcomeNotJSON {
		t.Fatalf("Outcome = %q", reply.Outcome)
	}
	text := reply.Messages[0].Text
	if n := strings.Count(text, "é"); n != QuoteLimit {
		t.Errorf("quoted runes = %d, want %d", n, QuoteLimit)
	}
}

type failingDoer struct{}

func (failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection refused")
}

func TestSend_Unreachable(t *testing.T) {
	c, _ := NewClient(ClientOpts{URL: "http://workflow.invalid/hook", HTTP: failingDoer{}})
	reply := c.Send(context.Background(), "s1", nil)
	if reply.Outcome != OutcomeUnreachable || reply.Err == nil {
		t.Fatalf("reply = %+v", reply)
	}
	if !reply.Outcome.Failed() {
		t.Error("Failed() = false")
	}
	if len(reply.Messages) != 1 || !strings.Contains(reply.Messages[0].Text, "connection refused") {
		t.Errorf("messages = %+v", reply.Messages)
	}
}

func TestTestConnection(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		success bool
		errText string
	}{
		{"ok", http.StatusOK, `{"response":"pong"}`, true, ""},
		{"missing response", http.StatusOK, `{"output":"pong"}`, false, "Invalid response format"},
		{"not json", http.StatusOK, `pong`, false, "Invalid response format"},
		{"http error", http.StatusNotFound, `no hook`, false, "HTTP 404: Not Found"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, got, _ := fakeWebhook(t, tt.status, tt.body)
			res := newTestClient(t, srv.URL, "k").TestConnection(context.Background())
			if res.Success != tt.success || res.Error != tt.errText {
				t.Errorf("result = %+v", res)
			}
			if res.WebhookURL != srv.URL || !res.HasAPIKey {
				t.Errorf("url/key = %q/%v", res.WebhookURL, res.HasAPIKey)
			}
			if got.UserID != "test-user" || !strings.HasPrefix(got.SessionID, "test-session-") {
				t.Errorf("payload = %+v", got)
			}
			if len(got.Messages) != 1 || got.Messages[0].Content != TestPrompt {
				t.Errorf("messages = %+v", got.Messages)
			}
			if tt.success && res.Response != "pong" {
				t.Errorf("Response = %q", res.Response)
			}
		})
	}
}

func TestTestConnection_Unreachable(t *testing.T) {
	c, _ := NewClient(ClientOpts{URL: "http://workflow.invalid/hook", HTTP: failingDoer{}})
	res := c.TestConnection(context.Background())
	if res.Success || res.Error != "Connection failed" || !strings.Contains(res.Details, "connection refused") {
		t.Errorf("result = %+v", res)
	}
	if res.HasAPIKey {
		t.Error("HasAPIKey = true without a key")
	}
}
