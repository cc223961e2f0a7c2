// README: Base handler utilities (JSON helpers, SSE writer, error mapping).
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"

	"tripmate/internal/agent"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
	"tripmate/internal/turnlock"
	"tripmate/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// isValidSessionID accepts UUIDs and other short opaque tokens.
func isValidSessionID(v string) bool {
	if v == "" || len(v) > 128 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' || c == '_' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

// writeServiceError maps domain errors to fixed messages; raw error text is
// never sent to clients.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		writeError(c, http.StatusBadRequest, "message is required")
	case errors.Is(err, preference.ErrBadRequest):
		writeError(c, http.StatusBadRequest, "invalid preferences")
	case errors.Is(err, types.ErrUnsupportedValue):
		writeError(c, http.StatusBadRequest, "unsupported preference value")
	case errors.Is(err, search.ErrUnknownCategory):
		writeError(c, http.StatusBadRequest, "unknown search category")
	case errors.Is(err, session.ErrEmptyTitle):
		writeError(c, http.StatusBadRequest, "title is required")
	case errors.Is(err, preference.ErrNotFound):
		writeError(c, http.StatusNotFound, "preference not found")
	case errors.Is(err, session.ErrNotFound):
		writeError(c, http.StatusNotFound, "session not found")
	case errors.Is(err, turnlock.ErrLockTimeout):
		writeError(c, http.StatusConflict, "session is busy")
	default:
		writeError(c, http.StatusInternalServerError, fallback)
	}
}

// sessionParam reads and validates the :session_id path parameter.
func sessionParam(c *gin.Context) (string, bool) {
	sid := c.Param("session_id")
	if !isValidSessionID(sid) {
		writeError(c, http.StatusBadRequest, "invalid session_id")
		return "", false
	}
	return sid, true
}

// limitQuery parses ?limit=, falling back to def when absent.
func limitQuery(c *gin.Context, def, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		writeError(c, http.StatusBadRequest, "invalid limit")
		return 0, false
	}
	if n > max {
		n = max
	}
	return n, true
}

// writeEventStream relays events as SSE frames until the channel closes or
// the client goes away.
func writeEventStream(c *gin.Context, events <-chan eventbus.Event) {
	h := c.Writer.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)
	c.Writer.WriteHeaderNow()
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			c.Render(-1, sse.Event{Data: ev})
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
