package server

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/crewdesk/internal/chat"
)

const heartbeatInterval = 15 * time.Second

// sessionEvent is sent whenever the watched session changes.
type sessionEvent struct {
	Revision uint64       `json:"revision"`
	ActiveID string       `json:"activeId"`
	Session  chat.Session `json:"session"`
}

// events streams session changes. The session query parameter picks the
// session to watch; without it the active session is followed.
func (h *handlers) events(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	writeSSE(c.Writer, "connected", map[string]string{"type": "connected"})
	c.Writer.Flush()

	sessions := h.deps.Sessions
	watch := c.Query("session")
	var lastRev uint64
	sent := false
	send := func() bool {
		rev := sessions.Revision()
		if sent && rev == lastRev {
			return true
		}
		lastRev, sent = rev, true
		id := watch
		if id == "" {
			id = sessions.ActiveID()
		}
		s, ok := sessions.Session(id)
		if !ok {
			writeSSE(c.Writer, "deleted", map[string]string{"id": id})
			c.Writer.Flush()
			return watch == ""
		}
		writeSSE(c.Writer, "session", sessionEvent{Revision: rev, ActiveID: sessions.ActiveID(), Session: s})
		c.Writer.Flush()
		return true
	}
	if !send() {
		return
	}

	ctx := c.Request.Context()
	ticker := time.NewTicker(h.deps.Poll)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			writeSSE(c.Writer, "heartbeat", map[string]string{
				"timestamp": time.Now().UTC().Format(time.RFC3339),
			})
			c.Writer.Flush()
		case <-ticker.C:
			if !send() {
				return
			}
		}
	}
}

// writeSSE writes a single SSE event to the writer.
func writeSSE(w io.Writer, event string, data any) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, string(jsonData))
}
