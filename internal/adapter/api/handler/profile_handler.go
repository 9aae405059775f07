package handler

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/domain/entity"
	"faindi/internal/usecase"
	"faindi/pkg/errors"
	"faindi/pkg/response"
)

type ProfileHandler struct {
	profileUseCase *usecase.ProfileUseCase
	catalogUseCase *usecase.CatalogUseCase
}

func NewProfileHandler(profileUseCase *usecase.ProfileUseCase, catalogUseCase *usecase.CatalogUseCase) *ProfileHandler {
	return &ProfileHandler{
		profileUseCase: profileUseCase,
		catalogUseCase: catalogUseCase,
	}
}

type addToCartRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

type confirmDeliveryRequest struct {
	ProductID string `json:"product_id"`
	SellerID  string `json:"seller_id"`
}

type followRequest struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Avatar   string `json:"avatar"`
}

func (h *ProfileHandler) GetProfile(c echo.Context) error {
	if err := h.profileUseCase.EnsureLoaded(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.profileUseCase.Snapshot())
}

// AddToCart resolves the product from the catalog so the cart entry carries
// the seller and price the UI already shows.
func (h *ProfileHandler) AddToCart(c echo.Context) error {
	var req addToCartRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	if err := c.Validate(&req); err != nil {
		return response.Error(c, err)
	}

	ctx := c.Request().Context()
	if err := h.catalogUseCase.EnsureLoaded(ctx); err != nil {
		return response.Error(c, err)
	}
	product, ok := h.catalogUseCase.Product(req.ProductID)
	if !ok {
		return response.Error(c, errors.NotFound("Product", nil))
	}

	if err := h.profileUseCase.AddToCart(ctx, product); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, h.profileUseCase.Snapshot().Carts)
}

func (h *ProfileHandler) RemoveFromCart(c echo.Context) error {
	err := h.profileUseCase.RemoveFromCart(c.Request().Context(), c.Param("sellerId"), c.Param("productId"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.profileUseCase.Snapshot().Carts)
}

func (h *ProfileHandler) Checkout(c echo.Context) error {
	orders, err := h.profileUseCase.PlaceOrder(c.Request().Context(), c.Param("sellerId"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, orders)
}

func (h *ProfileHandler) ConfirmDelivery(c echo.Context) error {
	var req confirmDeliveryRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	err := h.profileUseCase.ConfirmDelivery(c.Request().Context(), c.Param("orderId"), req.ProductID, req.SellerID)
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.profileUseCase.Snapshot().Orders)
}

func (h *ProfileHandler) Follow(c echo.Context) error {
	var req followRequest
	if err := c.Bind(&req); err != nil {
		return response.Error(c, err)
	}

	user := entity.User{
		ID:       c.Param("userId"),
		Fullname: req.Fullname,
		Username: req.Username,
		Avatar:   req.Avatar,
	}
	if err := h.profileUseCase.Follow(c.Request().Context(), user); err != nil {
		return response.Error(c, err)
	}

	return response.Created(c, h.profileUseCase.Snapshot().Followings)
}

func (h *ProfileHandler) Unfollow(c echo.Context) error {
	if err := h.profileUseCase.Unfollow(c.Request().Context(), c.Param("userId")); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.profileUseCase.Snapshot().Followings)
}
