package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
)

// stubOrderService implements ports.OrderService for handler tests.
type stubOrderService struct {
	placeFn func(ctx context.Context, input ports.CheckoutInput) (*domain.Order, error)
	orders  []domain.Order
}

func (s *stubOrderService) Orders() []domain.Order { return s.orders }
func (s *stubOrderService) Order(id string) (*domain.Order, error) {
	for _, o := range s.orders {
		if o.ID == id {
			out := o
			return &out, nil
		}
	}
	return nil, domain.ErrOrderNotFound
}
func (s *stubOrderService) OwnerOrders() []domain.Order                 { return s.orders }
func (s *stubOrderService) GroupedOwnerOrders() []ports.GroupedOrder    { return nil }
func (s *stubOrderService) PlaceOrder(ctx context.Context, input ports.CheckoutInput) (*domain.Order, error) {
	return s.placeFn(ctx, input)
}
func (s *stubOrderService) SetStatus(context.Context, string, domain.OrderStatus) (*domain.Order, error) {
	return nil, domain.ErrOrderNotFound
}
func (s *stubOrderService) DeleteMany(_ context.Context, ids []string) []ports.DeleteReport {
	reports := make([]ports.DeleteReport, 0, len(ids))
	for _, id := range ids {
		reports = append(reports, ports.DeleteReport{ID: id})
	}
	return reports
}
func (s *stubOrderService) SubscribeOrders(func([]domain.Order)) (cancel func()) {
	return func() {}
}
func (s *stubOrderService) SubscribeOwnerOrders(func([]domain.Order)) (cancel func()) {
	return func() {}
}

// stubCartService implements ports.CartService for handler tests.
type stubCartService struct {
	items   []domain.CartItem
	cleared bool
}

func (s *stubCartService) AddItem(_ context.Context, p domain.Product, qty int) {
	s.items = append(s.items, domain.CartItem{ProductID: p.ID, Title: p.Title, UnitPrice: p.UnitPrice, Quantity: qty})
}
func (s *stubCartService) SetQuantity(context.Context, int, int) error { return nil }
func (s *stubCartService) RemoveItem(context.Context, int)             {}
func (s *stubCartService) Clear(context.Context)                       { s.cleared = true }
func (s *stubCartService) Items() []domain.CartItem                    { return s.items }
func (s *stubCartService) TotalItems() int                             { return len(s.items) }
func (s *stubCartService) TotalAmount() float64                        { return 0 }
func (s *stubCartService) Subscribe(func([]domain.CartItem)) (cancel func()) {
	return func() {}
}

const checkoutBody = `{
	"customer_name": "Claire Bernard",
	"customer_email": "claire.b@email.com",
	"shipping_address": {"street":"3 rue Victor Hugo","city":"Nantes","zip_code":"44000","country":"France"}
}`

func TestOrderHandler_CheckoutFromCartClearsCart(t *testing.T) {
	cart := &stubCartService{items: []domain.CartItem{
		{ProductID: 5, Title: "Dune", UnitPrice: 12.50, Quantity: 2},
	}}
	orders := &stubOrderService{
		placeFn: func(_ context.Context, input ports.CheckoutInput) (*domain.Order, error) {
			if len(input.Items) != 1 || input.Items[0].ProductID != 5 {
				t.Fatalf("cart items not forwarded: %+v", input.Items)
			}
			if input.OwnerEmail != "claire.b@email.com" {
				t.Fatalf("owner email not taken from claims: %q", input.OwnerEmail)
			}
			return &domain.Order{
				ID: "ORD-1", OrderNumber: "CMDABC12345",
				CustomerName: input.CustomerName, CustomerEmail: input.CustomerEmail,
				Items:       []domain.OrderItem{{ProductID: 5, Title: "Dune", UnitPrice: 12.50, Quantity: 2}},
				TotalAmount: 25, Status: domain.StatusShipped,
			}, nil
		},
	}
	h := NewOrderHandler(orders, cart)

	c, rec := newTestContext(t, http.MethodPost, "/orders", checkoutBody)
	c.Set("email", "claire.b@email.com")

	if err := h.Checkout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if !cart.cleared {
		t.Fatalf("successful cart checkout must clear the cart")
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["order_number"] != "CMDABC12345" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestOrderHandler_CheckoutWithExplicitItemsKeepsCart(t *testing.T) {
	cart := &stubCartService{}
	orders := &stubOrderService{
		placeFn: func(_ context.Context, input ports.CheckoutInput) (*domain.Order, error) {
			if len(input.Items) != 1 || input.Items[0].ProductID != 9 {
				t.Fatalf("explicit items not forwarded: %+v", input.Items)
			}
			return &domain.Order{
				ID: "ORD-2", OrderNumber: "CMDDEF67890",
				Items:       []domain.OrderItem{{ProductID: 9, Title: "1984", UnitPrice: 15, Quantity: 1}},
				TotalAmount: 15, Status: domain.StatusShipped,
			}, nil
		},
	}
	h := NewOrderHandler(orders, cart)

	body := `{
		"customer_name": "Direct Buyer",
		"customer_email": "direct@email.com",
		"shipping_address": {"street":"s","city":"c","zip_code":"z","country":"f"},
		"items": [{"product_id":9,"title":"1984","unit_price":15,"quantity":1}]
	}`
	c, rec := newTestContext(t, http.MethodPost, "/orders", body)

	if err := h.Checkout(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if cart.cleared {
		t.Fatalf("a direct order must not clear the cart")
	}
}

func TestOrderHandler_CheckoutEmptyCart(t *testing.T) {
	cart := &stubCartService{}
	orders := &stubOrderService{
		placeFn: func(context.Context, ports.CheckoutInput) (*domain.Order, error) {
			return nil, domain.ErrEmptyCart
		},
	}
	h := NewOrderHandler(orders, cart)

	c, _ := newTestContext(t, http.MethodPost, "/orders", checkoutBody)
	if err := h.Checkout(c); !errors.Is(err, domain.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
	if cart.cleared {
		t.Fatalf("failed checkout must not clear the cart")
	}
}

func TestOrderHandler_CheckoutRejectsInvalidPayload(t *testing.T) {
	h := NewOrderHandler(&stubOrderService{
		placeFn: func(context.Context, ports.CheckoutInput) (*domain.Order, error) {
			t.Fatalf("service must not be called for an invalid payload")
			return nil, nil
		},
	}, &stubCartService{})

	c, _ := newTestContext(t, http.MethodPost, "/orders", `{"customer_name":"x"}`)

	var he *echo.HTTPError
	if err := h.Checkout(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestOrderHandler_DeleteManyRejectsEmptyList(t *testing.T) {
	h := NewOrderHandler(&stubOrderService{}, &stubCartService{})

	c, _ := newTestContext(t, http.MethodDelete, "/orders", `{"ids":[]}`)

	var he *echo.HTTPError
	if err := h.DeleteMany(c); !errors.As(err, &he) || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestOrderHandler_GetUnknownOrder(t *testing.T) {
	h := NewOrderHandler(&stubOrderService{}, &stubCartService{})

	c, _ := newTestContext(t, http.MethodGet, "/orders/missing", "")
	c.SetParamNames("id")
	c.SetParamValues("missing")

	if err := h.Get(c); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}
