// README: Chat handler; message turns (blocking or SSE), the event stream, history and context.
package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tripmate/internal/agent"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
)

const maxHistoryLimit = 200

type ChatHandler struct {
	agent         *agent.Agent
	bus           *eventbus.Bus
	conversations *conversation.Service
	preferences   *preference.Service
	logger        *slog.Logger
}

func NewChatHandler(a *agent.Agent, bus *eventbus.Bus, conversations *conversation.Service, preferences *preference.Service, logger *slog.Logger) *ChatHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		agent:         a,
		bus:           bus,
		conversations: conversations,
		preferences:   preferences,
		logger:        logger.With("component", "chat_handler"),
	}
}

type chatMessageReq struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatMessageResp struct {
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
	Intent    string `json:"intent"`
}

func (h *ChatHandler) bindMessage(c *gin.Context) (chatMessageReq, bool) {
	var req chatMessageReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return req, false
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if strings.TrimSpace(req.Message) == "" {
		writeError(c, http.StatusBadRequest, "message is required")
		return req, false
	}
	if !isValidSessionID(req.SessionID) {
		writeError(c, http.StatusBadRequest, "invalid session_id")
		return req, false
	}
	return req, true
}

// SendMessage handles POST /chat/message. With ?stream_response=true the
// turn is streamed as SSE, otherwise the reply comes back as JSON.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	req, ok := h.bindMessage(c)
	if !ok {
		return
	}
	if strings.EqualFold(c.Query("stream_response"), "true") {
		writeEventStream(c, h.agent.ProcessMessageStream(c.Request.Context(), req.SessionID, req.Message))
		return
	}

	res, err := h.agent.ProcessMessage(c.Request.Context(), req.SessionID, req.Message)
	if err != nil {
		writeServiceError(c, err, "failed to process message")
		return
	}
	writeJSON(c, http.StatusOK, chatMessageResp{
		Response:  res.Response,
		Timestamp: res.Timestamp,
		Intent:    string(res.Intent),
	})
}

// StreamMessage handles POST /chat/message/stream.
func (h *ChatHandler) StreamMessage(c *gin.Context) {
	req, ok := h.bindMessage(c)
	if !ok {
		return
	}
	writeEventStream(c, h.agent.ProcessMessageStream(c.Request.Context(), req.SessionID, req.Message))
}

// Events handles GET /chat/events/:session_id.
func (h *ChatHandler) Events(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	h.logger.Debug("event stream opened", "session_id", sid)
	writeEventStream(c, h.bus.Stream(c.Request.Context(), sid))
	h.logger.Debug("event stream closed", "session_id", sid)
}

type historyMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata"`
}

type historyResp struct {
	SessionID string                `json:"session_id"`
	Messages  []historyMessage      `json:"messages"`
	Summary   *conversation.Summary `json:"summary"`
}

// History handles GET /chat/history/:session_id.
func (h *ChatHandler) History(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	limit, ok := limitQuery(c, conversation.DefaultHistoryLimit, maxHistoryLimit)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	msgs, err := h.conversations.Recent(ctx, sid, limit)
	if err != nil {
		writeServiceError(c, err, "failed to get conversation history")
		return
	}
	summary, err := h.conversations.Summary(ctx, sid)
	if err != nil {
		writeServiceError(c, err, "failed to get conversation history")
		return
	}

	out := make([]historyMessage, 0, len(msgs))
	for _, m := range msgs {
		meta := m.Metadata
		if meta == nil {
			meta = map[string]any{}
		}
		out = append(out, historyMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Metadata:  meta,
		})
	}
	writeJSON(c, http.StatusOK, historyResp{SessionID: sid, Messages: out, Summary: summary})
}

// Context handles GET /chat/context/:session_id.
func (h *ChatHandler) Context(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	prefs, err := h.preferences.All(ctx, sid)
	if err != nil {
		writeServiceError(c, err, "failed to get context")
		return
	}
	summary, err := h.conversations.Summary(ctx, sid)
	if err != nil {
		writeServiceError(c, err, "failed to get context")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"session_id":   sid,
		"preferences":  prefs,
		"conversation": summary,
	})
}
