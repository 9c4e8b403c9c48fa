package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"catmatch/internal/infra/config"
	"catmatch/internal/infra/http/ws"
	"catmatch/internal/infra/obs"
)

type Handlers struct {
	Chat     ChatHTTP
	Presence PresenceHTTP
	Notices  *ws.Hub
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "X-User-ID"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Chat != nil {
		api.GET("/conversations", h.Chat.ListMyConversations)
		api.POST("/conversations", h.Chat.StartConversation)
		api.GET("/conversations/:id/messages", h.Chat.ListMessages)
		api.POST("/conversations/:id/messages", h.Chat.SendMessage)
		api.POST("/conversations/:id/read", h.Chat.MarkConversationRead)
		api.POST("/conversations/:id/typing", h.Chat.SetTyping)
		api.POST("/conversations/:id/watch", h.Chat.Watch)
		api.POST("/conversations/:id/unwatch", h.Chat.Unwatch)
		api.POST("/messages/:id/read", h.Chat.MarkMessageRead)
		api.GET("/unread", h.Chat.Unread)
	}
	if h.Presence != nil {
		api.GET("/presence/online", h.Presence.Online)
	}
	if h.Notices != nil {
		router.GET("/ws", func(c *gin.Context) {
			if err := h.Notices.Serve(c.Writer, c.Request); err != nil && obsMW.Logger != nil {
				obsMW.Logger.Warn("websocket upgrade failed", "error", err)
			}
		})
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
