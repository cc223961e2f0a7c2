// README: Session handler; listing, titles, preference edits, on-demand search and clear.
package handlers

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"tripmate/internal/agent"
	"tripmate/internal/eventbus"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
	"tripmate/internal/types"
)

const maxSessionLimit = 200

type SessionHandler struct {
	agent       *agent.Agent
	sessions    *session.Service
	preferences *preference.Service
	search      *search.Facade
	bus         *eventbus.Bus
	logger      *slog.Logger
}

func NewSessionHandler(a *agent.Agent, sessions *session.Service, preferences *preference.Service, facade *search.Facade, bus *eventbus.Bus, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		agent:       a,
		sessions:    sessions,
		preferences: preferences,
		search:      facade,
		bus:         bus,
		logger:      logger.With("component", "session_handler"),
	}
}

// List handles GET /chat/sessions.
func (h *SessionHandler) List(c *gin.Context) {
	limit, ok := limitQuery(c, session.DefaultListLimit, maxSessionLimit)
	if !ok {
		return
	}
	list, err := h.sessions.List(c.Request.Context(), limit)
	if err != nil {
		writeServiceError(c, err, "failed to list sessions")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"sessions": list, "total": len(list)})
}

type createSessionReq struct {
	SessionID string `json:"session_id"`
	Title     string `json:"title"`
}

// Create handles POST /chat/sessions. The body is optional.
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionReq
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid json")
			return
		}
	}
	req.SessionID = strings.TrimSpace(req.SessionID)
	if req.SessionID != "" && !isValidSessionID(req.SessionID) {
		writeError(c, http.StatusBadRequest, "invalid session_id")
		return
	}
	sess, err := h.sessions.Create(c.Request.Context(), req.SessionID, req.Title)
	if err != nil {
		writeServiceError(c, err, "failed to create session")
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{
		"session_id": sess.SessionID,
		"title":      sess.Title,
		"created_at": sess.CreatedAt,
	})
}

type updateTitleReq struct {
	Title string `json:"title"`
}

// UpdateTitle handles PUT /chat/sessions/:session_id/title.
func (h *SessionHandler) UpdateTitle(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	var req updateTitleReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if err := h.sessions.SetTitle(c.Request.Context(), sid, req.Title); err != nil {
		writeServiceError(c, err, "failed to update session title")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "success", "session_id": sid, "title": strings.TrimSpace(req.Title)})
}

// RegenerateTitle handles POST /chat/sessions/:session_id/title/regenerate.
func (h *SessionHandler) RegenerateTitle(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	title, err := h.sessions.Regenerate(c.Request.Context(), sid)
	if err != nil {
		writeServiceError(c, err, "failed to regenerate session title")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "success", "session_id": sid, "title": title})
}

type preferencesReq struct {
	SessionID string         `json:"session_id"`
	Updates   map[string]any `json:"updates"`
}

// UpdatePreferences handles PUT /chat/preferences. Null and empty values
// are ignored; only applied keys are echoed and announced. It waits for any
// running turn on the session.
func (h *SessionHandler) UpdatePreferences(c *gin.Context) {
	var req preferencesReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidSessionID(req.SessionID) {
		writeError(c, http.StatusBadRequest, "invalid session_id")
		return
	}
	updates, err := types.ValuesFromMap(req.Updates)
	if err != nil {
		writeServiceError(c, err, "failed to update preferences")
		return
	}
	applied, err := h.agent.UpdatePreferences(c.Request.Context(), req.SessionID, updates)
	if err != nil {
		writeServiceError(c, err, "failed to update preferences")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "success", "updates": applied, "session_id": req.SessionID})
}

// DeletePreference handles DELETE /chat/preferences/:session_id/:key.
func (h *SessionHandler) DeletePreference(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	key := c.Param("key")
	if err := h.preferences.Delete(c.Request.Context(), sid, key); err != nil {
		writeServiceError(c, err, "failed to delete preference")
		return
	}
	writeJSON(c, http.StatusOK, statusResponse{
		Status:    "success",
		Message:   fmt.Sprintf("Preference %s removed", key),
		SessionID: sid,
	})
}

type searchReq struct {
	SessionID string `json:"session_id"`
	Category  string `json:"category"`
}

// Search handles POST /chat/search; one category against the session's
// current preferences.
func (h *SessionHandler) Search(c *gin.Context) {
	var req searchReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	if !isValidSessionID(req.SessionID) {
		writeError(c, http.StatusBadRequest, "invalid session_id")
		return
	}
	category, err := search.ParseCategory(req.Category)
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	ctx := c.Request.Context()
	tc, err := h.preferences.TravelContext(ctx, req.SessionID)
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	if tc.HasDestination() {
		h.bus.Publish(req.SessionID, eventbus.Action{
			ActionType:  eventbus.ActionWebSearch,
			Description: fmt.Sprintf("Searching %s in %s", category, tc.Destination),
		})
	}
	result, err := h.search.Search(ctx, category, tc)
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"session_id": req.SessionID, "category": category, "result": result})
}

// Clear handles DELETE /chat/session/:session_id once any running turn on
// the session has finished.
func (h *SessionHandler) Clear(c *gin.Context) {
	sid, ok := sessionParam(c)
	if !ok {
		return
	}
	res, err := h.agent.ClearSession(c.Request.Context(), sid)
	if err != nil {
		writeServiceError(c, err, "failed to clear session")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"status":              "success",
		"message":             fmt.Sprintf("Session %s cleared", sid),
		"session_id":          sid,
		"messages_deleted":    res.MessagesDeleted,
		"preferences_deleted": res.PreferencesDeleted,
	})
}
