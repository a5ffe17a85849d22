package tenant

import (
	"context"
	"errors"
	"testing"
)

func TestFindOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	first, err := store.FindOrCreate(ctx, "g1", "!")
	if err != nil {
		t.Fatal(err)
	}
	if first.Prefix != "!" || first.APIEnabled {
		t.Errorf("new tenant = %+v", first)
	}

	first.Prefix = "?"
	first.APIEnabled = true
	if err := store.Save(ctx, first); err != nil {
		t.Fatal(err)
	}

	// A second lookup must return the saved record, not reset it.
	again, err := store.FindOrCreate(ctx, "g1", "!")
	if err != nil {
		t.Fatal(err)
	}
	if again.Prefix != "?" || !again.APIEnabled {
		t.Errorf("existing tenant = %+v", again)
	}
}

func TestFindUnknownTenant(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Find(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	rec, err := store.FindOrCreate(ctx, "g1", "!")
	if err != nil {
		t.Fatal(err)
	}
	rec.Keys = append(rec.Keys, "hash")

	fresh, err := store.Find(ctx, "g1")
	if err != nil {
		t.Fatal(err)
	}
	if len(fresh.Keys) != 0 {
		t.Errorf("mutation through returned record leaked into the store: %v", fresh.Keys)
	}
}
