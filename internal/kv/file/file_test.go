package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/maison-edition/storefront/internal/kv"
)

func TestStore_MissingFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	s := Open(path, zerolog.Nop())

	_, ok, err := s.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if ok {
		t.Fatalf("expected empty store")
	}
}

func TestStore_RoundTripAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	s := Open(path, zerolog.Nop())
	if err := s.Set(ctx, "orders", `[{"id":"ORD-1"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Set(ctx, "cart", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}

	reopened := Open(path, zerolog.Nop())
	got, ok, err := reopened.Get(ctx, "orders")
	if err != nil || !ok {
		t.Fatalf("get after reopen: ok=%v err=%v", ok, err)
	}
	if got != `[{"id":"ORD-1"}]` {
		t.Fatalf("value corrupted across reopen: %s", got)
	}
}

func TestStore_RemoveDeletesKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()

	s := Open(path, zerolog.Nop())
	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.Remove(ctx, "k"); err != nil {
		t.Fatalf("remove: %v", err)
	}

	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("key still present after remove")
	}
	if _, ok, _ := Open(path, zerolog.Nop()).Get(ctx, "k"); ok {
		t.Fatalf("key still present after remove and reopen")
	}
}

func TestStore_UnparsableFileStartsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	if err := os.WriteFile(path, []byte("{corrupt"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s := Open(path, zerolog.Nop())
	if _, ok, _ := s.Get(context.Background(), "k"); ok {
		t.Fatalf("expected empty store after unparsable file")
	}
}

func TestStore_SubscribeNeverFires(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.json")
	ctx := context.Background()
	s := Open(path, zerolog.Nop())

	fired := false
	cancel := s.Subscribe("k", func(kv.Change) { fired = true })
	defer cancel()

	if err := s.Set(ctx, "k", "v"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if fired {
		t.Fatalf("file store has no peers, subscription must not fire")
	}
}
