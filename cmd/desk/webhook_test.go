package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/zulandar/crewdesk/internal/webhook"
)

func TestWebhookTestCmd(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-N8N-API-KEY")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":"pong"}`))
	}))
	defer srv.Close()

	cfg := writeConfig(t, "webhook:\n  url: "+srv.URL+"\n  api_key: secret\n")
	out, err := runCmd(t, "webhook", "test", "--config", cfg, "--json")
	if err != nil {
		t.Fatalf("webhook test: %v\n%s", err, out)
	}
	if gotKey != "secret" {
		t.Errorf("api key header = %q", gotKey)
	}
	var res webhook.TestResult
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !res.Success || res.Response != "pong" || !res.HasAPIKey || res.WebhookURL != srv.URL {
		t.Errorf("result = %+v", res)
	}
}

func TestWebhookTestCmd_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "workflow inactive", http.StatusInternalServerError)
	}))
	defer srv.Close()

	out, err := runCmd(t, "webhook", "test", "--config", writeConfig(t, ""), "--url", srv.URL)
	if err == nil || !strings.Contains(err.Error(), "HTTP 500") {
		t.Errorf("err = %v", err)
	}
	if !strings.Contains(out, "workflow inactive") {
		t.Errorf("output missing details: %s", out)
	}
}

func TestWebhookTestCmd_NoURL(t *testing.T) {
	_, err := runCmd(t, "webhook", "test", "--config", writeConfig(t, ""))
	if err == nil || !strings.Contains(err.Error(), "url is required") {
		t.Errorf("err = %v", err)
	}
}
