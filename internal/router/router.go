// Package router wires the HTTP surface.
package router

import (
	"github.com/gin-gonic/gin"

	"convivo.im.messaging/internal/config"
	"convivo.im.messaging/internal/handler"
	"convivo.im.messaging/internal/jwt"
	"convivo.im.messaging/internal/middleware"
)

// SetupRouter builds the gin engine with all middleware and routes.
func SetupRouter(
	cfg *config.Config,
	jwtService *jwt.Service,
	conversationHandler *handler.ConversationHandler,
	messageHandler *handler.MessageHandler,
) *gin.Engine {
	gin.SetMode(cfg.App.Mode)

	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.CORS(
		cfg.CORS.AllowedOrigins,
		cfg.CORS.AllowedMethods,
		cfg.CORS.AllowCredentials,
	))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.JWTAuth(jwtService))
	{
		conversations := v1.Group("/conversations")
		{
			conversations.GET("", conversationHandler.List)
			conversations.POST("", conversationHandler.Create)
			conversations.GET("/:id", conversationHandler.Get)
			conversations.POST("/:id/read", conversationHandler.MarkRead)
			conversations.POST("/:id/leave", conversationHandler.Leave)
			conversations.GET("/:id/messages", messageHandler.Page)
			conversations.POST("/:id/messages", messageHandler.Send)
		}

		messages := v1.Group("/messages")
		{
			messages.DELETE("/:id", messageHandler.Delete)
			messages.POST("/:id/read", messageHandler.MarkRead)
			messages.POST("/:id/reactions", messageHandler.AddReaction)
			messages.DELETE("/:id/reactions/:emoji", messageHandler.RemoveReaction)
		}

		v1.GET("/unread", conversationHandler.TotalUnread)
	}

	return r
}
