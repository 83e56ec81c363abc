package exporter

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/crewdesk/internal/kv"
	"github.com/zulandar/crewdesk/internal/session"
)

var testNow = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

type failingSource struct{}

func (failingSource) ExportAllSessions(io.Writer) error { return errors.New("boom") }

func newSessions(t *testing.T) *session.Manager {
	t.Helper()
	m, err := session.NewManager(context.Background(), session.ManagerOpts{
		Store: kv.NewMemoryStore(0),
		Now:   func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	return m
}

func TestNew_Validation(t *testing.T) {
	tests := []struct {
		name string
		opts Opts
		want string
	}{
		{"no source", Opts{Dir: "x"}, "source is required"},
		{"no dir", Opts{Source: failingSource{}}, "dir is required"},
		{"bad schedule", Opts{Source: failingSource{}, Dir: "x", Schedule: "not a cron expr"}, "schedule"},
		{"six fields", Opts{Source: failingSource{}, Dir: "x", Schedule: "0 0 9 * * *"}, "schedule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestNext(t *testing.T) {
	e, err := New(Opts{Source: failingSource{}, Dir: "x", Schedule: "0 9 * * *"})
	if err != nil {
		t.Fatal(err)
	}
	if !e.Scheduled() {
		t.Error("Scheduled() = false")
	}
	got := e.Next(testNow)
	want := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}

	unscheduled, _ := New(Opts{Source: failingSource{}, Dir: "x"})
	if unscheduled.Scheduled() || !unscheduled.Next(testNow).IsZero() {
		t.Error("unscheduled exporter reports a next time")
	}
}

func TestWriteOnce(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	sessions := newSessions(t)
	sessions.CreateSession(context.Background(), "Backup me")

	e, err := New(Opts{Source: sessions, Dir: dir, Now: func() time.Time { return testNow }})
	if err != nil {
		t.Fatal(err)
	}
	path, err := e.WriteOnce()
	if err != nil {
		t.Fatalf("WriteOnce: %v", err)
	}
	if filepath.Base(path) != "chat-sessions-2026-03-01.json" {
		t.Errorf("path = %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc session.Export
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Sessions) != 2 || doc.Sessions[1].Name != "Backup me" {
		t.Errorf("sessions = %+v", doc.Sessions)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestWriteOnce_SourceError(t *testing.T) {
	dir := t.TempDir()
	e, _ := New(Opts{Source: failingSource{}, Dir: dir})
	if _, err := e.WriteOnce(); err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v", err)
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dir has %d entries after failure", len(entries))
	}
}

func TestRun_UnscheduledReturns(t *testing.T) {
	e, _ := New(Opts{Source: failingSource{}, Dir: t.TempDir()})
	done := make(chan struct{})
	go func() {
		e.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run without a schedule did not return")
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	e, _ := New(Opts{Source: failingSource{}, Dir: t.TempDir(), Schedule: "0 9 * * *"})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		e.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop on cancel")
	}
}
