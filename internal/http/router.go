// README: HTTP router registration.
package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"tripmate/internal/agent"
	"tripmate/internal/eventbus"
	"tripmate/internal/http/handlers"
	"tripmate/internal/http/middleware"
	"tripmate/internal/modules/conversation"
	"tripmate/internal/modules/preference"
	"tripmate/internal/modules/session"
	"tripmate/internal/search"
)

type RouterDeps struct {
	Agent         *agent.Agent
	Bus           *eventbus.Bus
	Conversations *conversation.Service
	Preferences   *preference.Service
	Sessions      *session.Service
	Search        *search.Facade
	DB            handlers.Pinger
	DBType        string
	Version       string
	CORSOrigins   []string
	Logger        *slog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(middleware.Recovery(logger), middleware.Logging(logger), middleware.CORS(deps.CORSOrigins))

	health := handlers.NewHealthHandler(deps.DB, deps.DBType, deps.Version)
	chat := handlers.NewChatHandler(deps.Agent, deps.Bus, deps.Conversations, deps.Preferences, logger)
	sessions := handlers.NewSessionHandler(deps.Agent, deps.Sessions, deps.Preferences, deps.Search, deps.Bus, logger)

	r.GET("/", health.Root)

	api := r.Group("/api/v1")
	api.GET("/health", health.Health)
	api.GET("/health/database", health.Database)
	api.GET("/health/ready", health.Ready)

	c := api.Group("/chat")
	c.POST("/message", chat.SendMessage)
	c.POST("/message/stream", chat.StreamMessage)
	c.GET("/events/:session_id", chat.Events)
	c.GET("/history/:session_id", chat.History)
	c.GET("/context/:session_id", chat.Context)

	c.PUT("/preferences", sessions.UpdatePreferences)
	c.DELETE("/preferences/:session_id/:key", sessions.DeletePreference)
	c.POST("/search", sessions.Search)
	c.DELETE("/session/:session_id", sessions.Clear)

	c.GET("/sessions", sessions.List)
	c.POST("/sessions", sessions.Create)
	c.PUT("/sessions/:session_id/title", sessions.UpdateTitle)
	c.POST("/sessions/:session_id/title/regenerate", sessions.RegenerateTitle)

	return r
}
