package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/stafflink/stafflink-chat/internal/auth"
	"github.com/stafflink/stafflink-chat/internal/config"
	"github.com/stafflink/stafflink-chat/internal/core"
	"github.com/stafflink/stafflink-chat/internal/service/chat"
)

// NewServer builds the HTTP server with all routes.
func NewServer(hub *core.Hub, authService *auth.Service, chatService *chat.Service, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	apiHandlers := NewAPIHandlers(authService, logger)
	chatHandlers := NewChatHandlers(chatService, logger)

	api := router.Group("/api")
	api.POST("/login", apiHandlers.Login)

	authorized := api.Group("", AuthMiddleware(authService, logger), WriteGuard(cfg.DemoMode))
	authorized.GET("/conversations", chatHandlers.ListConversations)
	authorized.GET("/conversations/:id", chatHandlers.GetConversation)
	authorized.GET("/conversations/:id/messages", chatHandlers.History)
	authorized.POST("/conversations/:id/messages", chatHandlers.SendMessage)
	authorized.POST("/conversations/:id/read", chatHandlers.MarkRead)
	authorized.POST("/dms", chatHandlers.FindOrCreateDirect)
	authorized.GET("/unread-count", chatHandlers.UnreadCount)

	router.GET("/ws", gin.WrapH(NewWSHandler(hub, authService, logger)))

	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
