package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/crewdesk/internal/chat"
	"github.com/zulandar/crewdesk/internal/collab"
	"github.com/zulandar/crewdesk/internal/conductor"
	"github.com/zulandar/crewdesk/internal/detect"
	"github.com/zulandar/crewdesk/internal/messaging"
	"github.com/zulandar/crewdesk/internal/session"
	"github.com/zulandar/crewdesk/internal/webhook"
)

type handlers struct {
	deps Deps
}

// registerRoutes sets up all API routes on the Gin router.
func registerRoutes(router *gin.Engine, h *handlers) {
	api := router.Group("/api")

	api.GET("/agents", h.listAgents)
	api.GET("/storage", h.storage)
	api.GET("/export", h.exportAll)

	api.GET("/sessions", h.listSessions)
	api.POST("/sessions", h.createSession)
	api.DELETE("/sessions", h.clearAll)
	api.GET("/sessions/:id", h.getSession)
	api.PATCH("/sessions/:id", h.renameSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.POST("/sessions/:id/activate", h.activateSession)
	api.POST("/sessions/:id/duplicate", h.duplicateSession)
	api.POST("/sessions/:id/clear", h.clearSession)
	api.GET("/sessions/:id/export", h.exportSession)

	api.POST("/sessions/:id/messages", h.sendMessage)
	api.POST("/sessions/:id/handoff", h.handoff)
	api.GET("/sessions/:id/collaborations", h.listCollaborations)
	api.POST("/sessions/:id/collaborations", h.startCollaboration)
	api.GET("/collaborations/:id/messages", h.collaborationMessages)

	api.POST("/chat/webhook", h.webhookProxy)
	api.POST("/webhook/test", h.webhookTest)

	api.GET("/events", h.events)
}

func errorJSON(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *handlers) listAgents(c *gin.Context) {
	c.JSON(http.StatusOK, detect.Agents())
}

func (h *handlers) storage(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Sessions.StorageInfo())
}

// sessionSummary is a session without its messages.
type sessionSummary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	MessageCount int       `json:"messageCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	IsActive     bool      `json:"isActive"`
	CurrentAgent string    `json:"currentAgent,omitempty"`
}

func summarize(s chat.Session) sessionSummary {
	return sessionSummary{
		ID:           s.ID,
		Name:         s.Name,
		MessageCount: s.MessageCount(),
		CreatedAt:    s.CreatedAt,
		LastActivity: s.LastActivity,
		IsActive:     s.IsActive,
		CurrentAgent: s.CurrentAgent,
	}
}

func (h *handlers) listSessions(c *gin.Context) {
	sessions := h.deps.Sessions.Sessions()
	out := make([]sessionSummary, len(sessions))
	for i, s := range sessions {
		out[i] = summarize(s)
	}
	c.JSON(http.StatusOK, gin.H{"sessions": out, "activeId": h.deps.Sessions.ActiveID()})
}

type nameBody struct {
	Name string `json:"name"`
}

func (h *handlers) createSession(c *gin.Context) {
	var body nameBody
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			errorJSON(c, http.StatusBadRequest, err)
			return
		}
	}
	id := h.deps.Sessions.CreateSession(c.Request.Context(), body.Name)
	s, _ := h.deps.Sessions.Session(id)
	c.JSON(http.StatusCreated, s)
}

func (h *handlers) clearAll(c *gin.Context) {
	h.deps.Sessions.ClearAllSessions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"activeId": h.deps.Sessions.ActiveID()})
}

func (h *handlers) getSession(c *gin.Context) {
	s, ok := h.deps.Sessions.Session(c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *handlers) renameSession(c *gin.Context) {
	var body nameBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	id := c.Param("id")
	if _, ok := h.deps.Sessions.Session(id); !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	if !h.deps.Sessions.RenameSession(c.Request.Context(), id, body.Name) {
		errorJSON(c, http.StatusBadRequest, errors.New("name must not be blank"))
		return
	}
	s, _ := h.deps.Sessions.Session(id)
	c.JSON(http.StatusOK, summarize(s))
}

func (h *handlers) deleteSession(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.deps.Sessions.Session(id); !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	if !h.deps.Sessions.DeleteSession(c.Request.Context(), id) {
		errorJSON(c, http.StatusConflict, errors.New("the last session cannot be deleted"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeId": h.deps.Sessions.ActiveID()})
}

func (h *handlers) activateSession(c *gin.Context) {
	if !h.deps.Sessions.SwitchToSession(c.Request.Context(), c.Param("id")) {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"activeId": h.deps.Sessions.ActiveID()})
}

func (h *handlers) duplicateSession(c *gin.Context) {
	id, ok := h.deps.Sessions.DuplicateSession(c.Request.Context(), c.Param("id"))
	if !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	s, _ := h.deps.Sessions.Session(id)
	c.JSON(http.StatusCreated, summarize(s))
}

func (h *handlers) clearSession(c *gin.Context) {
	id := c.Param("id")
	if !h.deps.Sessions.ClearSessionMessages(c.Request.Context(), id) {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	s, _ := h.deps.Sessions.Session(id)
	c.JSON(http.StatusOK, s)
}

func (h *handlers) exportAll(c *gin.Context) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", session.ExportFileName(time.Now())))
	c.Header("Content-Type", "application/json")
	if err := h.deps.Sessions.ExportAllSessions(c.Writer); err != nil {
		c.Error(err)
	}
}

func (h *handlers) exportSession(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.deps.Sessions.Session(id); !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".json"))
	c.Header("Content-Type", "application/json")
	if err := h.deps.Sessions.ExportSession(id, c.Writer); err != nil {
		c.Error(err)
	}
}

type sendBody struct {
	Text string `json:"text"`
}

func (h *handlers) sendMessage(c *gin.Context) {
	var body sendBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	reply, err := h.deps.Conductor.Send(c.Request.Context(), c.Param("id"), body.Text)
	switch {
	case errors.Is(err, conductor.ErrSessionNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case errors.Is(err, conductor.ErrBusy):
		errorJSON(c, http.StatusConflict, err)
	case errors.Is(err, conductor.ErrEmptyMessage):
		errorJSON(c, http.StatusBadRequest, err)
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusOK, reply)
	}
}

type handoffBody struct {
	ToAgent string `json:"toAgent" binding:"required"`
	Reason  string `json:"reason"`
	Note    string `json:"note"`
}

func (h *handlers) handoff(c *gin.Context) {
	var body handoffBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	id := c.Param("id")
	err := h.deps.Conductor.ConfirmHandoff(c.Request.Context(), id, body.ToAgent, body.Reason, body.Note)
	switch {
	case errors.Is(err, conductor.ErrSessionNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case err != nil:
		errorJSON(c, http.StatusBadRequest, err)
	default:
		s, _ := h.deps.Sessions.Session(id)
		c.JSON(http.StatusOK, summarize(s))
	}
}

type collaborationBody struct {
	TaskID string   `json:"taskId" binding:"required"`
	Agents []string `json:"agents"`
}

func (h *handlers) startCollaboration(c *gin.Context) {
	var body collaborationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		errorJSON(c, http.StatusBadRequest, err)
		return
	}
	collabID, err := h.deps.Conductor.StartCollaboration(c.Request.Context(), c.Param("id"), body.TaskID, body.Agents)
	switch {
	case errors.Is(err, conductor.ErrSessionNotFound):
		errorJSON(c, http.StatusNotFound, err)
	case errors.Is(err, conductor.ErrUnknownTask):
		errorJSON(c, http.StatusBadRequest, err)
	case err != nil:
		errorJSON(c, http.StatusInternalServerError, err)
	default:
		c.JSON(http.StatusAccepted, gin.H{"collaborationId": collabID})
	}
}

func (h *handlers) listCollaborations(c *gin.Context) {
	id := c.Param("id")
	if _, ok := h.deps.Sessions.Session(id); !ok {
		errorJSON(c, http.StatusNotFound, conductor.ErrSessionNotFound)
		return
	}
	active := h.deps.Sessions.ActiveCollaborations(id)
	if active == nil {
		active = []string{}
	}
	recorded := []string{}
	if db := h.deps.Conductor.DB(); db != nil {
		ids, err := messaging.Collaborations(db, id)
		if err != nil {
			errorJSON(c, http.StatusInternalServerError, err)
			return
		}
		recorded = append(recorded, ids...)
	}
	c.JSON(http.StatusOK, gin.H{"active": active, "recorded": recorded})
}

func (h *handlers) collaborationMessages(c *gin.Context) {
	db := h.deps.Conductor.DB()
	if db == nil {
		c.JSON(http.StatusOK, []collab.InterAgentMessage{})
		return
	}
	msgs, err := conductor.InterAgentMessages(db, c.Param("id"))
	if err != nil {
		errorJSON(c, http.StatusInternalServerError, err)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

type webhookBody struct {
	SessionID string         `json:"sessionId"`
	Messages  []chat.Message `json:"messages"`
}

type webhookReply struct {
	Outcome  webhook.Outcome `json:"outcome"`
	Status   int             `json:"status,omitempty"`
	Messages []chat.Message  `json:"messages"`
}

// webhookProxy forwards a conversation to the workflow webhook. Every
// outcome, failures included, is answered with 200 so the caller renders
// it as a chat message.
func (h *handlers) webhookProxy(c *gin.Context) {
	var body webhookBody
	if err := c.ShouldBindJSON(&body); err != nil {
		msg := chat.NewMessage(chat.KindTroubleshooting, "The request could not be read: "+err.Error(), time.Now())
		c.JSON(http.StatusOK, webhookReply{Outcome: webhook.OutcomeUnreachable, Messages: []chat.Message{msg}})
		return
	}
	if h.deps.Webhook == nil {
		msg := chat.NewMessage(chat.KindTroubleshooting, "The workflow webhook is not configured on the server.", time.Now())
		msg.Troubleshooting = []string{"Set webhook.url in crewdesk.yaml", "Restart the server after changing the configuration"}
		c.JSON(http.StatusOK, webhookReply{Outcome: webhook.OutcomeUnreachable, Messages: []chat.Message{msg}})
		return
	}
	reply := h.deps.Webhook.Send(c.Request.Context(), body.SessionID, body.Messages)
	c.JSON(http.StatusOK, webhookReply{Outcome: reply.Outcome, Status: reply.Status, Messages: reply.Messages})
}

func (h *handlers) webhookTest(c *gin.Context) {
	if h.deps.Webhook == nil {
		c.JSON(http.StatusInternalServerError, webhook.TestResult{
			Error:      "Webhook URL is not configured on the server.",
			Details:    "Set webhook.url in crewdesk.yaml.",
			WebhookURL: "Not configured",
		})
		return
	}
	c.JSON(http.StatusOK, h.deps.Webhook.TestConnection(c.Request.Context()))
}
