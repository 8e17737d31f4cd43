package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
)

type CartHandler struct {
	cart ports.CartService
}

func NewCartHandler(cart ports.CartService) *CartHandler {
	return &CartHandler{cart: cart}
}

type addCartItemRequest struct {
	ProductID int     `json:"product_id" validate:"required"`
	Title     string  `json:"title"      validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gt=0"`
	ImageURL  string  `json:"image_url"`
	Quantity  int     `json:"quantity"   validate:"gt=0"`
}

type setCartQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type cartResponse struct {
	Items       []domain.CartItem `json:"items"`
	TotalItems  int               `json:"total_items"`
	TotalAmount float64           `json:"total_amount"`
}

func (h *CartHandler) snapshot() cartResponse {
	return cartResponse{
		Items:       h.cart.Items(),
		TotalItems:  h.cart.TotalItems(),
		TotalAmount: h.cart.TotalAmount(),
	}
}

// Get handles GET /cart.
func (h *CartHandler) Get(c echo.Context) error {
	return c.JSON(http.StatusOK, h.snapshot())
}

// AddItem handles POST /cart/items.
func (h *CartHandler) AddItem(c echo.Context) error {
	var req addCartItemRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.cart.AddItem(c.Request().Context(), domain.Product{
		ID:        req.ProductID,
		Title:     req.Title,
		UnitPrice: req.UnitPrice,
		ImageURL:  req.ImageURL,
	}, req.Quantity)

	return c.JSON(http.StatusOK, h.snapshot())
}

// SetQuantity handles PUT /cart/items/:product_id. A zero quantity removes
// the line.
func (h *CartHandler) SetQuantity(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	var req setCartQuantityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	if err := h.cart.SetQuantity(c.Request().Context(), productID, req.Quantity); err != nil {
		return err
	}
	return c.JSON(http.StatusOK, h.snapshot())
}

// RemoveItem handles DELETE /cart/items/:product_id.
func (h *CartHandler) RemoveItem(c echo.Context) error {
	productID, err := strconv.Atoi(c.Param("product_id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}

	h.cart.RemoveItem(c.Request().Context(), productID)
	return c.JSON(http.StatusOK, h.snapshot())
}

// Clear handles DELETE /cart.
func (h *CartHandler) Clear(c echo.Context) error {
	h.cart.Clear(c.Request().Context())
	return c.NoContent(http.StatusNoContent)
}
