// README: Health and readiness probes plus the service banner.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const (
	ServiceName = "tripmate"
	pingTimeout = 3 * time.Second
)

// Pinger is anything whose reachability gates readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db      Pinger
	dbType  string
	version string
}

func NewHealthHandler(db Pinger, dbType, version string) *HealthHandler {
	return &HealthHandler{db: db, dbType: dbType, version: version}
}

// Root handles GET /.
func (h *HealthHandler) Root(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"message": "TripMate travel planning API",
		"version": h.version,
		"health":  "/api/v1/health",
	})
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	writeJSON(c, http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   ServiceName,
		"version":   h.version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// Database handles GET /health/database.
func (h *HealthHandler) Database(c *gin.Context) {
	if err := h.ping(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "database": "disconnected", "type": h.dbType})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "healthy", "database": "connected", "type": h.dbType})
}

// Ready handles GET /health/ready.
func (h *HealthHandler) Ready(c *gin.Context) {
	if err := h.ping(c.Request.Context()); err != nil {
		writeJSON(c, http.StatusServiceUnavailable, gin.H{"status": "not ready"})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": "ready"})
}

func (h *HealthHandler) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return h.db.Ping(ctx)
}
