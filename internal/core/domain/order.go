package domain

import (
	"fmt"
	"math"
	"time"
)

// OrderStatus represents the lifecycle state of an order. Unlike a shipping
// workflow there is no enforced ordering: any status may move to any other.
type OrderStatus string

const (
	StatusPending    OrderStatus = "Pending"
	StatusProcessing OrderStatus = "Processing"
	StatusShipped    OrderStatus = "Shipped"
	StatusDelivered  OrderStatus = "Delivered"
	StatusCancelled  OrderStatus = "Cancelled"
)

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// OrderItem is one purchased line. Display fields are copied from the product
// at order time and never re-resolved.
type OrderItem struct {
	ProductID int     `json:"product_id"`
	Title     string  `json:"title"`
	UnitPrice float64 `json:"unit_price"`
	Quantity  int     `json:"quantity"`
}

// Subtotal returns unit price times quantity for this line.
func (it OrderItem) Subtotal() float64 {
	return it.UnitPrice * float64(it.Quantity)
}

// Address is a shipping destination.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Order is the aggregate root for a placed order. Records are replaced whole on
// every mutation; there is no partial update path.
type Order struct {
	ID              string      `json:"id"`
	OrderNumber     string      `json:"order_number"`
	CustomerID      *int        `json:"customer_id"`
	CustomerName    string      `json:"customer_name"`
	CustomerEmail   string      `json:"customer_email"`
	OwnerEmail      string      `json:"owner_email,omitempty"`
	Items           []OrderItem `json:"items"`
	TotalAmount     float64     `json:"total_amount"`
	Status          OrderStatus `json:"status"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
	ShippingAddress Address     `json:"shipping_address"`
}

// ItemsTotal returns the sum of item subtotals.
func (o Order) ItemsTotal() float64 {
	var total float64
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}

// Validate checks the creation invariants: at least one item, every quantity
// positive, and TotalAmount equal to the sum of the item subtotals.
func (o Order) Validate() error {
	if len(o.Items) == 0 {
		return ErrEmptyCart
	}
	for _, it := range o.Items {
		if it.Quantity <= 0 {
			return fmt.Errorf("order %s: item %d: %w", o.ID, it.ProductID, ErrInvalidQuantity)
		}
	}
	if math.Abs(o.TotalAmount-o.ItemsTotal()) > 1e-9 {
		return fmt.Errorf("order %s: total %.2f does not match item subtotals %.2f", o.ID, o.TotalAmount, o.ItemsTotal())
	}
	if !o.Status.Valid() {
		return fmt.Errorf("order %s: %w: %q", o.ID, ErrInvalidStatus, o.Status)
	}
	return nil
}
