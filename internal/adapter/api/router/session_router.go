package router

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/adapter/api/handler"
	"faindi/internal/adapter/api/middleware"
)

func SetupSessionRouter(e *echo.Echo, sessionHandler *handler.SessionHandler, sessionMiddleware *middleware.SessionMiddleware) {
	sessionGroup := e.Group("/v1/session")

	sessionGroup.GET("", sessionHandler.GetSession)
	sessionGroup.POST("/signin", sessionHandler.SignIn)
	sessionGroup.POST("/signup", sessionHandler.SignUp)
	sessionGroup.POST("/verify", sessionHandler.Verify)
	sessionGroup.POST("/verify/resend", sessionHandler.ResendVerify)
	sessionGroup.GET("/username/:username", sessionHandler.CheckUsername)
	sessionGroup.POST("/logout", sessionHandler.Logout)

	sessionGroup.PUT("/info", sessionHandler.UpdateInfo, sessionMiddleware.RequireSession)
	sessionGroup.GET("/notifications", sessionHandler.GetNotifications, sessionMiddleware.RequireSession)
}
