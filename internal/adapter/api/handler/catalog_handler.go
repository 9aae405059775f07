package handler

import (
	"github.com/labstack/echo/v4"

	"faindi/internal/usecase"
	"faindi/pkg/errors"
	"faindi/pkg/response"
	"faindi/pkg/utils"
)

type CatalogHandler struct {
	catalogUseCase *usecase.CatalogUseCase
}

func NewCatalogHandler(catalogUseCase *usecase.CatalogUseCase) *CatalogHandler {
	return &CatalogHandler{
		catalogUseCase: catalogUseCase,
	}
}

// ListProducts loads the catalog on first use. The search query parameter
// replaces the stored search text when present; page and limit switch to a
// paginated response.
func (h *CatalogHandler) ListProducts(c echo.Context) error {
	if err := h.catalogUseCase.EnsureLoaded(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	if search, ok := c.QueryParams()["search"]; ok {
		h.catalogUseCase.SetSearch(search[0])
	}

	products := h.catalogUseCase.Filter(c.QueryParam("category"))
	if !utils.Requested(c) {
		return response.Success(c, products)
	}

	pagination := utils.GetPaginationParams(c)
	start, end := pagination.Bounds(len(products))
	return response.Paginated(c, products[start:end], int64(len(products)), pagination.Page, pagination.PageSize)
}

func (h *CatalogHandler) GetProduct(c echo.Context) error {
	if err := h.catalogUseCase.EnsureLoaded(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	product, ok := h.catalogUseCase.Product(c.Param("id"))
	if !ok {
		return response.Error(c, errors.NotFound("Product", nil))
	}

	return response.Success(c, product)
}

func (h *CatalogHandler) ListCategories(c echo.Context) error {
	if err := h.catalogUseCase.EnsureLoaded(c.Request().Context()); err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, h.catalogUseCase.Categories())
}

func (h *CatalogHandler) ToggleLike(c echo.Context) error {
	product, err := h.catalogUseCase.ToggleLike(c.Request().Context(), c.Param("id"))
	if err != nil {
		return response.Error(c, err)
	}

	return response.Success(c, product)
}
