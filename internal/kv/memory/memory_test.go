package memory

import (
	"context"
	"testing"

	"github.com/maison-edition/storefront/internal/kv"
)

func TestHub_SetVisibleToAllContexts(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	if err := a.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	for _, c := range []*Context{a, b} {
		got, ok, err := c.Get(ctx, "k")
		if err != nil || !ok || got != "v" {
			t.Fatalf("get: got=%q ok=%v err=%v", got, ok, err)
		}
	}
}

func TestHub_WriterNotNotified(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	var aGot, bGot []kv.Change
	a.Subscribe("k", func(ch kv.Change) { aGot = append(aGot, ch) })
	b.Subscribe("k", func(ch kv.Change) { bGot = append(bGot, ch) })

	if err := a.Set(ctx, "k", "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}

	if len(aGot) != 0 {
		t.Fatalf("writer was notified of its own write: %v", aGot)
	}
	if len(bGot) != 1 || bGot[0].Value != "v1" || !bGot[0].Present {
		t.Fatalf("peer notification wrong: %v", bGot)
	}
}

func TestHub_RemoveNotifiesWithAbsentChange(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	if err := a.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}

	var got []kv.Change
	b.Subscribe("k", func(ch kv.Change) { got = append(got, ch) })

	if err := a.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(got) != 1 || got[0].Present {
		t.Fatalf("expected one absent change, got %v", got)
	}

	// Removing an absent key is a silent no-op.
	got = got[:0]
	if err := a.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove absent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("removal of absent key notified: %v", got)
	}
}

func TestHub_CancelStopsDelivery(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	calls := 0
	cancel := b.Subscribe("k", func(kv.Change) { calls++ })

	_ = a.Set(ctx, "k", "v1")
	cancel()
	_ = a.Set(ctx, "k", "v2")

	if calls != 1 {
		t.Fatalf("expected exactly one delivery, got %d", calls)
	}
}

func TestHub_ClosedContextNotNotified(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	calls := 0
	b.Subscribe("k", func(kv.Change) { calls++ })

	if err := b.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	_ = a.Set(ctx, "k", "v")

	if calls != 0 {
		t.Fatalf("closed context received %d notifications", calls)
	}
}

func TestHub_SubscriptionIsPerKey(t *testing.T) {
	hub := NewHub()
	a := hub.OpenContext()
	b := hub.OpenContext()
	ctx := context.Background()

	var got []kv.Change
	b.Subscribe("watched", func(ch kv.Change) { got = append(got, ch) })

	_ = a.Set(ctx, "other", "x")
	_ = a.Set(ctx, "watched", "y")

	if len(got) != 1 || got[0].Key != "watched" {
		t.Fatalf("expected only watched-key changes, got %v", got)
	}
}
