package stream

import (
	"strings"
	"testing"
)

func TestDecoder_SplitsAcrossFeeds(t *testing.T) {
	var d Decoder

	got := d.Feed([]byte(`data: {"type":"status_update","da`))
	if len(got) != 0 {
		t.Fatalf("partial feed returned %d records", len(got))
	}
	got = d.Feed([]byte("ta\":{}}\n\ndata: second\n"))
	if len(got) != 1 {
		t.Fatalf("records = %d, want 1", len(got))
	}
	if string(got[0]) != `data: {"type":"status_update","data":{}}` {
		t.Errorf("record = %q", got[0])
	}
	if string(d.Pending()) != "data: second\n" {
		t.Errorf("Pending = %q", d.Pending())
	}
	got = d.Feed([]byte("\n"))
	if len(got) != 1 || string(got[0]) != "data: second" {
		t.Errorf("records = %q, want [data: second]", got)
	}
}

func TestDecoder_CRLFAndBlankRecords(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("data: a\r\n\r\n\n\ndata: b\r\n\r\n"))
	if len(got) != 2 {
		t.Fatalf("records = %q, want 2", got)
	}
	if string(got[0]) != "data: a" || string(got[1]) != "data: b" {
		t.Errorf("records = %q", got)
	}
}

func TestPayload(t *testing.T) {
	tests := []struct {
		name   string
		record string
		want   string
		ok     bool
	}{
		{"with space", "data: {}", "{}", true},
		{"without space", "data:{}", "{}", true},
		{"multi line", "data: a\ndata: b", "a\nb", true},
		{"skips other fields", "event: update\nid: 7\n: comment\ndata: x", "x", true},
		{"no data", ": keepalive", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Payload([]byte(tt.record))
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if string(got) != tt.want {
				t.Errorf("payload = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, ev Event)
	}{
		{
			name:    "status update",
			payload: `{"type":"status_update","data":{"message":"Starting"}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventStatusUpdate || ev.Message != "Starting" {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "error falls back to error field",
			payload: `{"type":"error","data":{"error":"boom"}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventError || ev.Message != "boom" || !ev.Terminal() {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "task update",
			payload: `{"type":"task_update","data":{"agent_role":"Researcher","task_description":"Find flights","output_summary":"3 options","full_output":"long"}}`,
			check: func(t *testing.T, ev Event) {
				want := TaskUpdate{AgentRole: "Researcher", TaskDescription: "Find flights", OutputSummary: "3 options", FullOutput: "long"}
				if ev.Type != EventTaskUpdate || ev.Task != want {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "final result string",
			payload: `{"type":"final_result","data":{"result":"All done","crew_details":{"agents_used":["A","B"]}}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Result.Result != "All done" || strings.Join(ev.Result.AgentsUsed, ",") != "A,B" {
					t.Errorf("result = %+v", ev.Result)
				}
			},
		},
		{
			name:    "final result object",
			payload: `{"type":"final_result","data":{"result":{"k":1}}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Result.Result != `{"k":1}` {
					t.Errorf("result = %q", ev.Result.Result)
				}
			},
		},
		{
			name:    "stream end without data",
			payload: `{"type":"stream_end"}`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventStreamEnd || ev.Message != "" {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "unknown type",
			payload: `{"type":"heartbeat","data":{}}`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventUnknown || ev.RawType != "heartbeat" {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "invalid json",
			payload: `{"type":`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventMalformed || ev.Err == nil {
					t.Errorf("event = %+v", ev)
				}
			},
		},
		{
			name:    "wrong data shape",
			payload: `{"type":"task_update","data":"oops"}`,
			check: func(t *testing.T, ev Event) {
				if ev.Type != EventMalformed {
					t.Errorf("Type = %q, want malformed", ev.Type)
				}
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, ParseEvent([]byte(tt.payload)))
		})
	}
}
