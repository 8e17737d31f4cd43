package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/core/ports"
	"github.com/maison-edition/storefront/internal/kv"
	"github.com/maison-edition/storefront/internal/store"
)

// Backing-store key for the cart collection. One implicit cart per origin,
// not partitioned per identity.
const cartKey = "cart_items"

// CartService implements ports.CartService on a reactive collection of cart
// lines.
type CartService struct {
	cart *store.Collection[[]domain.CartItem]
	log  zerolog.Logger
}

var _ ports.CartService = (*CartService)(nil)

func NewCartService(ctx context.Context, kvs kv.Store, log zerolog.Logger) *CartService {
	return &CartService{
		cart: store.New(ctx, kvs, store.Options[[]domain.CartItem]{
			Key:  cartKey,
			Seed: func() []domain.CartItem { return []domain.CartItem{} },
		}, log),
		log: log,
	}
}

// AddItem inserts a new line copying the product's display fields at add
// time, or increments the existing line's quantity. Later changes to the
// canonical product never alter stored lines.
func (s *CartService) AddItem(ctx context.Context, product domain.Product, quantity int) {
	if quantity <= 0 {
		s.log.Warn().Int("product_id", product.ID).Int("quantity", quantity).Msg("ignoring add with non-positive quantity")
		return
	}

	s.cart.Mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ProductID == product.ID {
				items[i].Quantity += quantity
				return items
			}
		}
		return append(items, domain.CartItem{
			ProductID: product.ID,
			Quantity:  quantity,
			Title:     product.Title,
			UnitPrice: product.UnitPrice,
			ImageURL:  product.ImageURL,
		})
	})
}

// SetQuantity replaces a line's quantity. Zero removes the line; a negative
// quantity is rejected; an unknown product is a logged no-op.
func (s *CartService) SetQuantity(ctx context.Context, productID, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("%w: %d", domain.ErrInvalidQuantity, quantity)
	}
	if quantity == 0 {
		s.RemoveItem(ctx, productID)
		return nil
	}

	found := false
	s.cart.Mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		for i := range items {
			if items[i].ProductID == productID {
				items[i].Quantity = quantity
				found = true
				break
			}
		}
		return items
	})
	if !found {
		s.log.Warn().Int("product_id", productID).Msg("set quantity for product not in cart")
	}
	return nil
}

// RemoveItem deletes a line regardless of its quantity.
func (s *CartService) RemoveItem(ctx context.Context, productID int) {
	found := false
	s.cart.Mutate(ctx, func(items []domain.CartItem) []domain.CartItem {
		kept := items[:0]
		for _, it := range items {
			if it.ProductID == productID {
				found = true
				continue
			}
			kept = append(kept, it)
		}
		return kept
	})
	if !found {
		s.log.Warn().Int("product_id", productID).Msg("remove for product not in cart")
	}
}

// Clear empties the cart.
func (s *CartService) Clear(ctx context.Context) {
	s.cart.Mutate(ctx, func([]domain.CartItem) []domain.CartItem {
		return []domain.CartItem{}
	})
}

// Items returns a snapshot of the current lines.
func (s *CartService) Items() []domain.CartItem {
	return s.cart.Snapshot()
}

// TotalItems recomputes the sum of line quantities.
func (s *CartService) TotalItems() int {
	count, _ := domain.CartTotals(s.cart.Snapshot())
	return count
}

// TotalAmount recomputes the sum of line subtotals.
func (s *CartService) TotalAmount() float64 {
	_, amount := domain.CartTotals(s.cart.Snapshot())
	return amount
}

// Subscribe delivers the current lines immediately and on every change.
func (s *CartService) Subscribe(fn func([]domain.CartItem)) (cancel func()) {
	return s.cart.Subscribe(fn)
}

// Close stops the underlying collection.
func (s *CartService) Close() {
	s.cart.Close()
}
