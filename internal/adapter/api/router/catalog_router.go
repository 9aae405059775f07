package router

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/adapter/api/handler"
	"faindi/internal/adapter/api/middleware"
)

// SetupCatalogRouter mounts the catalog routes. Browsing is public, liking
// needs a session.
func SetupCatalogRouter(e *echo.Echo, catalogHandler *handler.CatalogHandler, sessionMiddleware *middleware.SessionMiddleware) {
	catalogGroup := e.Group("/v1/catalog")

	catalogGroup.GET("/products", catalogHandler.ListProducts)
	catalogGroup.GET("/products/:id", catalogHandler.GetProduct)
	catalogGroup.GET("/categories", catalogHandler.ListCategories)
	catalogGroup.POST("/products/:id/like", catalogHandler.ToggleLike, sessionMiddleware.RequireSession)
}
