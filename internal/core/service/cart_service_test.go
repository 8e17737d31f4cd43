package service

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/core/domain"
	"github.com/maison-edition/storefront/internal/kv/memory"
)

var testProduct = domain.Product{ID: 4, Title: "Le Petit Prince", UnitPrice: 8.50, ImageURL: "/img/4.jpg"}

func newTestCartService(t *testing.T, hub *memory.Hub) *CartService {
	t.Helper()
	svc := NewCartService(context.Background(), hub.OpenContext(), zerolog.Nop())
	t.Cleanup(svc.Close)
	return svc
}

func TestCartService_StartsEmpty(t *testing.T) {
	svc := newTestCartService(t, memory.NewHub())

	if len(svc.Items()) != 0 {
		t.Fatalf("expected empty cart")
	}
	if svc.TotalItems() != 0 || svc.TotalAmount() != 0 {
		t.Fatalf("expected zero totals")
	}
}

func TestCartService_AddItemMergesLines(t *testing.T) {
	svc := newTestCartService(t, memory.NewHub())
	ctx := context.Background()

	svc.AddItem(ctx, testProduct, 2)
	svc.AddItem(ctx, testProduct, 1)

	items := svc.Items()
	if len(items) != 1 {
		t.Fatalf("expected one merged line, got %d", len(items))
	}
	if items[0].Quantity != 3 {
		t.Fatalf("expected quantity 3, got %d", items[0].Quantity)
	}
	if items[0].Title != testProduct.Title || items[0].UnitPrice != testProduct.UnitPrice {
		t.Fatalf("display fields not copied: %+v", items[0])
	}
	if svc.TotalItems() != 3 || svc.TotalAmount() != 25.5 {
		t.Fatalf("unexpected totals: %d, %f", svc.TotalItems(), svc.TotalAmount())
	}
}

func TestCartService_AddItemNonPositiveQuantityIsNoOp(t *testing.T) {
	svc := newTestCartService(t, memory.NewHub())
	ctx := context.Background()

	svc.AddItem(ctx, testProduct, 0)
	svc.AddItem(ctx, testProduct, -1)

	if len(svc.Items()) != 0 {
		t.Fatalf("non-positive add must not create a line")
	}
}

func TestCartService_SetQuantity(t *testing.T) {
	svc := newTestCartService(t, memory.NewHub())
	ctx := context.Background()

	svc.AddItem(ctx, testProduct, 2)

	if err := svc.SetQuantity(ctx, testProduct.ID, 5); err != nil {
		t.Fatalf("set quantity: %v", err)
	}
	if got := svc.Items()[0].Quantity; got != 5 {
		t.Fatalf("expected quantity 5, got %d", got)
	}

	if err := svc.SetQuantity(ctx, testProduct.ID, -1); !errors.Is(err, domain.ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if got := svc.Items()[0].Quantity; got != 5 {
		t.Fatalf("rejected update must leave the line alone, got %d", got)
	}

	// Zero removes the line entirely.
	if err := svc.SetQuantity(ctx, testProduct.ID, 0); err != nil {
		t.Fatalf("set quantity to zero: %v", err)
	}
	if len(svc.Items()) != 0 {
		t.Fatalf("zero quantity must remove the line")
	}

	// Unknown product is a no-op, not an error.
	if err := svc.SetQuantity(ctx, 999, 3); err != nil {
		t.Fatalf("unknown product must not error: %v", err)
	}
	if len(svc.Items()) != 0 {
		t.Fatalf("unknown product must not create a line")
	}
}

func TestCartService_RemoveAndClear(t *testing.T) {
	svc := newTestCartService(t, memory.NewHub())
	ctx := context.Background()

	other := domain.Product{ID: 8, Title: "Candide", UnitPrice: 5}
	svc.AddItem(ctx, testProduct, 2)
	svc.AddItem(ctx, other, 1)

	svc.RemoveItem(ctx, testProduct.ID)
	items := svc.Items()
	if len(items) != 1 || items[0].ProductID != other.ID {
		t.Fatalf("remove deleted the wrong line: %+v", items)
	}

	svc.Clear(ctx)
	if len(svc.Items()) != 0 {
		t.Fatalf("clear must empty the cart")
	}
}

func TestCartService_PersistsAcrossInstances(t *testing.T) {
	hub := memory.NewHub()
	ctx := context.Background()

	first := newTestCartService(t, hub)
	first.AddItem(ctx, testProduct, 2)
	first.Close()

	second := newTestCartService(t, hub)
	items := second.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("cart not restored from backing store: %+v", items)
	}
}

func TestCartService_ReconcilesPeerContext(t *testing.T) {
	hub := memory.NewHub()
	ctx := context.Background()

	a := newTestCartService(t, hub)
	b := newTestCartService(t, hub)

	a.AddItem(ctx, testProduct, 2)

	items := b.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("peer add not reconciled: %+v", items)
	}

	b.Clear(ctx)
	if len(a.Items()) != 0 {
		t.Fatalf("peer clear not reconciled")
	}
}
