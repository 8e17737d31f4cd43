package ports

import (
	"context"

	"github.com/maison-edition/storefront/internal/core/domain"
)

// CartService owns the single browser-local cart.
type CartService interface {
	// AddItem inserts a new line copying the product's display fields, or
	// increments the existing line's quantity. A quantity <= 0 is a no-op.
	AddItem(ctx context.Context, product domain.Product, quantity int)
	// SetQuantity replaces a line's quantity. Zero removes the line; a
	// negative quantity fails with domain.ErrInvalidQuantity; an unknown
	// product is a logged no-op.
	SetQuantity(ctx context.Context, productID, quantity int) error
	// RemoveItem deletes a line regardless of quantity.
	RemoveItem(ctx context.Context, productID int)
	// Clear empties the cart.
	Clear(ctx context.Context)
	// Items returns a snapshot of the current lines.
	Items() []domain.CartItem
	// TotalItems is the sum of line quantities, recomputed on every call.
	TotalItems() int
	// TotalAmount is the sum of line subtotals, recomputed on every call.
	TotalAmount() float64
	// Subscribe delivers the current lines immediately and on every change.
	Subscribe(fn func([]domain.CartItem)) (cancel func())
}

// FavoriteService owns the per-identity favorite sets. All operations act on
// the current identity's subset, resolved at call time; anonymous calls are
// logged no-ops.
type FavoriteService interface {
	Add(ctx context.Context, productID int)
	Remove(ctx context.Context, productID int)
	IsFavorite(productID int) bool
	// CurrentIDs returns the current identity's favorite product IDs.
	CurrentIDs() []int
	// SubscribeCurrent delivers the active identity's subset whenever the
	// identity or the favorite map changes.
	SubscribeCurrent(fn func([]int)) (cancel func())
}
