package ports

import (
	"context"
	"time"

	"github.com/maison-edition/storefront/internal/core/domain"
)

// CheckoutInput carries everything needed to place an order. Items usually
// come from the cart; a direct order passes a single synthesized line.
type CheckoutInput struct {
	CustomerName    string
	CustomerEmail   string
	CustomerID      *int
	OwnerEmail      string // identity email when the buyer is signed in
	ShippingAddress domain.Address
	Items           []domain.CartItem
}

// GroupedOrder is one per-customer/per-product rollup of the grouped view.
type GroupedOrder struct {
	ProductID             int                `json:"product_id"`
	Title                 string             `json:"title"`
	UnitPrice             float64            `json:"unit_price"`
	TotalQuantity         int                `json:"total_quantity"`
	TotalAmount           float64            `json:"total_amount"`
	MostRecentDate        time.Time          `json:"most_recent_date"`
	MostRecentStatus      domain.OrderStatus `json:"most_recent_status"`
	MostRecentOrderNumber string             `json:"most_recent_order_number"`
	CustomerName          string             `json:"customer_name"`
	CustomerEmail         string             `json:"customer_email"`
}

// DeleteReport records, per requested ID, whether the order existed and was
// removed. A bad ID never fails the rest of the batch.
type DeleteReport struct {
	ID      string `json:"id"`
	Removed bool   `json:"removed"`
}

// OrderService owns the order collection and its derived read views.
type OrderService interface {
	// Orders is the admin view: the raw collection sorted by creation date
	// descending.
	Orders() []domain.Order
	// Order returns one order by ID, or domain.ErrOrderNotFound.
	Order(id string) (*domain.Order, error)
	// OwnerOrders is the owner view: orders whose owner email matches the
	// current identity and whose status is not Delivered.
	OwnerOrders() []domain.Order
	// GroupedOwnerOrders reduces the owner view into per-customer/per-product
	// rollups sorted by most recent date descending.
	GroupedOwnerOrders() []GroupedOrder
	// PlaceOrder creates one order from the input. Fails with
	// domain.ErrEmptyCart when no line is purchasable.
	PlaceOrder(ctx context.Context, input CheckoutInput) (*domain.Order, error)
	// SetStatus moves an order to any status and stamps UpdatedAt. Fails with
	// domain.ErrOrderNotFound, leaving the collection unchanged.
	SetStatus(ctx context.Context, id string, status domain.OrderStatus) (*domain.Order, error)
	// DeleteMany removes all matching orders in one mutation and reports the
	// outcome per input ID.
	DeleteMany(ctx context.Context, ids []string) []DeleteReport
	// SubscribeOrders delivers the admin view on every change.
	SubscribeOrders(fn func([]domain.Order)) (cancel func())
	// SubscribeOwnerOrders delivers the owner view whenever either the order
	// collection or the current identity changes.
	SubscribeOwnerOrders(fn func([]domain.Order)) (cancel func())
}
