package router

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/adapter/api/handler"
	"faindi/internal/adapter/api/middleware"
)

func SetupChatRouter(e *echo.Echo, chatHandler *handler.ChatHandler, sessionMiddleware *middleware.SessionMiddleware) {
	chatGroup := e.Group("/v1/chats")
	chatGroup.Use(sessionMiddleware.RequireSession)

	chatGroup.GET("", chatHandler.GetUserChats)
	chatGroup.GET("/:userId", chatHandler.GetChat)
	chatGroup.PUT("/:userId/read", chatHandler.MarkChatAsRead)
	chatGroup.POST("/:userId/messages", chatHandler.SendMessage)
	chatGroup.POST("/:userId/feedback", chatHandler.SubmitFeedback)

	// Outbox
	chatGroup.GET("/outbox", chatHandler.GetOutbox)
	chatGroup.POST("/outbox/:clientId/retry", chatHandler.RetryMessage)
}
