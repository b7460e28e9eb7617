// Package storagetest holds the behaviour every storage.Backend must share,
// run by each backend's own tests.
package storagetest

import (
	"context"
	"errors"
	"testing"

	"github.com/FranksOps/catalogsync/internal/storage"
)

// Run exercises b against the storage.Backend contract. b must start empty.
func Run(t *testing.T, b storage.Backend) {
	t.Helper()
	ctx := context.Background()

	first := []storage.Record{
		{Name: "Ель искусственная 150 см", Price: "2 990 ₽"},
		{Name: "Гирлянда 10 м", Price: "790 ₽"},
		{Name: "Ветка еловая", Price: "149 ₽"},
	}

	n, err := b.Replace(ctx, first)
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	if n != len(first) {
		t.Fatalf("expected %d saved, got %d", len(first), n)
	}

	products, err := b.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != len(first) {
		t.Fatalf("expected %d products, got %d", len(first), len(products))
	}

	seen := make(map[int64]bool)
	var maxFirst int64
	for i, p := range products {
		if p.Name != first[i].Name || p.Price != first[i].Price {
			t.Errorf("product %d: expected %+v, got %+v", i, first[i], p)
		}
		if seen[p.ID] {
			t.Errorf("duplicate id %d", p.ID)
		}
		seen[p.ID] = true
		if i > 0 && p.ID <= products[i-1].ID {
			t.Errorf("expected ids in insertion order, got %d after %d", p.ID, products[i-1].ID)
		}
		if p.ID > maxFirst {
			maxFirst = p.ID
		}
	}

	// Get
	got, err := b.Get(ctx, products[1].ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != products[1] {
		t.Errorf("expected %+v, got %+v", products[1], got)
	}
	if _, err := b.Get(ctx, 999999); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound for missing id, got %v", err)
	}

	// Update only the price
	price := "699 ₽"
	updated, err := b.Update(ctx, products[1].ID, storage.Update{Price: &price})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Price != price || updated.Name != products[1].Name {
		t.Errorf("expected only price to change, got %+v", updated)
	}
	if _, err := b.Update(ctx, 999999, storage.Update{Price: &price}); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound updating missing id, got %v", err)
	}

	// Empty update returns the product unchanged
	same, err := b.Update(ctx, products[0].ID, storage.Update{})
	if err != nil {
		t.Fatalf("empty Update failed: %v", err)
	}
	if same != products[0] {
		t.Errorf("expected %+v, got %+v", products[0], same)
	}

	// Delete
	if err := b.Delete(ctx, products[2].ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := b.Delete(ctx, products[2].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}
	if _, err := b.Get(ctx, products[2].ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected deleted product to be gone, got %v", err)
	}

	// A second replace drops everything, including API edits, and assigns fresh ids.
	second := []storage.Record{
		{Name: "Шар ёлочный", Price: "99 ₽"},
		{Name: "Мишура", Price: "59 ₽"},
	}
	if _, err := b.Replace(ctx, second); err != nil {
		t.Fatalf("second Replace failed: %v", err)
	}
	products, err = b.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(products) != len(second) {
		t.Fatalf("expected %d products after replace, got %d", len(second), len(products))
	}
	for i, p := range products {
		if p.Name != second[i].Name {
			t.Errorf("product %d: expected %q, got %q", i, second[i].Name, p.Name)
		}
		if p.ID <= maxFirst {
			t.Errorf("expected fresh id above %d, got %d", maxFirst, p.ID)
		}
	}
}
