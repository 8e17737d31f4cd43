package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
)

type OrderHandler struct {
	orders ports.OrderService
	cart   ports.CartService
}

func NewOrderHandler(orders ports.OrderService, cart ports.CartService) *OrderHandler {
	return &OrderHandler{orders: orders, cart: cart}
}

type addressRequest struct {
	Street  string `json:"street"   validate:"required"`
	City    string `json:"city"     validate:"required"`
	ZipCode string `json:"zip_code" validate:"required"`
	Country string `json:"country"  validate:"required"`
}

type checkoutItemRequest struct {
	ProductID int     `json:"product_id" validate:"required"`
	Title     string  `json:"title"      validate:"required"`
	UnitPrice float64 `json:"unit_price" validate:"gt=0"`
	Quantity  int     `json:"quantity"   validate:"gt=0"`
}

type checkoutRequest struct {
	CustomerName    string                `json:"customer_name"  validate:"required"`
	CustomerEmail   string                `json:"customer_email" validate:"required,email"`
	CustomerID      *int                  `json:"customer_id,omitempty"`
	ShippingAddress addressRequest        `json:"shipping_address" validate:"required"`
	// Items is optional: when absent the current cart contents are used and
	// the cart is cleared after the order is placed.
	Items []checkoutItemRequest `json:"items,omitempty" validate:"omitempty,dive"`
}

type setStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=Pending Processing Shipped Delivered Cancelled"`
}

type deleteOrdersRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

type orderItemResponse struct {
	ProductID int     `json:"product_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
	Subtotal  float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      *int                `json:"customer_id,omitempty"`
	CustomerName    string              `json:"customer_name"`
	CustomerEmail   string              `json:"customer_email"`
	Items           []orderItemResponse `json:"items"`
	TotalAmount     float64             `json:"total_amount"`
	Status          string              `json:"status"`
	CreatedAt       string              `json:"created_at"`
	UpdatedAt       string              `json:"updated_at"`
	ShippingAddress domain.Address      `json:"shipping_address"`
}

func toOrderResponse(o domain.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ProductID: it.ProductID,
			Title:     it.Title,
			UnitPrice: it.UnitPrice,
			Quantity:  it.Quantity,
			Subtotal:  it.Subtotal(),
		})
	}
	return orderResponse{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerID:      o.CustomerID,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		Items:           items,
		TotalAmount:     o.TotalAmount,
		Status:          string(o.Status),
		CreatedAt:       o.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       o.UpdatedAt.UTC().Format(time.RFC3339),
		ShippingAddress: o.ShippingAddress,
	}
}

func toOrderListResponse(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

// List handles GET /orders. Admin only.
func (h *OrderHandler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, toOrderListResponse(h.orders.Orders()))
}

// Get handles GET /orders/:id. Admin only.
func (h *OrderHandler) Get(c echo.Context) error {
	o, err := h.orders.Order(c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*o))
}

// Mine handles GET /orders/mine: the signed-in buyer's undelivered orders.
func (h *OrderHandler) Mine(c echo.Context) error {
	return c.JSON(http.StatusOK, toOrderListResponse(h.orders.OwnerOrders()))
}

// MineGrouped handles GET /orders/mine/grouped: per-customer/per-product
// rollups of the buyer's undelivered orders.
func (h *OrderHandler) MineGrouped(c echo.Context) error {
	return c.JSON(http.StatusOK, h.orders.GroupedOwnerOrders())
}

// Checkout handles POST /orders. Without an explicit item list it consumes
// the cart and clears it once the order has been placed.
func (h *OrderHandler) Checkout(c echo.Context) error {
	var req checkoutRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	fromCart := len(req.Items) == 0
	var items []domain.CartItem
	if fromCart {
		items = h.cart.Items()
	} else {
		items = make([]domain.CartItem, 0, len(req.Items))
		for _, it := range req.Items {
			items = append(items, domain.CartItem{
				ProductID: it.ProductID,
				Title:     it.Title,
				UnitPrice: it.UnitPrice,
				Quantity:  it.Quantity,
			})
		}
	}

	ownerEmail, _ := c.Get("email").(string)

	order, err := h.orders.PlaceOrder(c.Request().Context(), ports.CheckoutInput{
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerID:    req.CustomerID,
		OwnerEmail:    ownerEmail,
		ShippingAddress: domain.Address{
			Street:  req.ShippingAddress.Street,
			City:    req.ShippingAddress.City,
			ZipCode: req.ShippingAddress.ZipCode,
			Country: req.ShippingAddress.Country,
		},
		Items: items,
	})
	if err != nil {
		return err
	}

	if fromCart {
		h.cart.Clear(c.Request().Context())
	}

	return c.JSON(http.StatusCreated, toOrderResponse(*order))
}

// SetStatus handles PATCH /orders/:id/status. Admin only.
func (h *OrderHandler) SetStatus(c echo.Context) error {
	var req setStatusRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	o, err := h.orders.SetStatus(c.Request().Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(*o))
}

// DeleteMany handles DELETE /orders. Admin only. It reports per-ID outcomes
// rather than failing the whole batch on a bad ID.
func (h *OrderHandler) DeleteMany(c echo.Context) error {
	var req deleteOrdersRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	return c.JSON(http.StatusOK, h.orders.DeleteMany(c.Request().Context(), req.IDs))
}
