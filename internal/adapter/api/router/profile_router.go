package router

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/adapter/api/handler"
	"faindi/internal/adapter/api/middleware"
)

func SetupProfileRouter(e *echo.Echo, profileHandler *handler.ProfileHandler, sessionMiddleware *middleware.SessionMiddleware) {
	profileGroup := e.Group("/v1/profile")
	profileGroup.Use(sessionMiddleware.RequireSession)

	profileGroup.GET("", profileHandler.GetProfile)

	profileGroup.POST("/carts", profileHandler.AddToCart)
	profileGroup.DELETE("/carts/:sellerId/products/:productId", profileHandler.RemoveFromCart)
	profileGroup.POST("/carts/:sellerId/checkout", profileHandler.Checkout)

	profileGroup.POST("/orders/:orderId/delivered", profileHandler.ConfirmDelivery)

	profileGroup.POST("/followings/:userId", profileHandler.Follow)
	profileGroup.DELETE("/followings/:userId", profileHandler.Unfollow)
}
