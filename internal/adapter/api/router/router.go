package router

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"faindi/internal/adapter/api/handler"
	"faindi/internal/adapter/api/middleware"
)

func Setup(
	e *echo.Echo,
	h *handler.Handlers,
	sessionMiddleware *middleware.SessionMiddleware,
	originMiddleware *middleware.OriginMiddleware,
	metrics http.Handler,
) {
	e.Use(originMiddleware.CORS())
	e.Use(originMiddleware.RequireAllowedOrigin)

	SetupSessionRouter(e, h.Session, sessionMiddleware)
	SetupCatalogRouter(e, h.Catalog, sessionMiddleware)
	SetupProfileRouter(e, h.Profile, sessionMiddleware)
	SetupChatRouter(e, h.Chat, sessionMiddleware)
	SetupWebSocketRouter(e, h.WebSocket)
	SetupHealthRouter(e, h.Health, metrics)
}
