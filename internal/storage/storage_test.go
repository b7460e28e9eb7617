package storage

import (
	"context"
	"testing"
)

func TestUpdate_Empty(t *testing.T) {
	if !(Update{}).Empty() {
		t.Errorf("expected zero Update to be empty")
	}

	name := "Ель"
	if (Update{Name: &name}).Empty() {
		t.Errorf("expected Update with name to be non-empty")
	}
}

// Ensure Backend interface exists and is implementable
type mockBackend struct{}

func (m *mockBackend) Replace(ctx context.Context, records []Record) (int, error) {
	return len(records), nil
}
func (m *mockBackend) List(ctx context.Context) ([]Product, error) { return nil, nil }
func (m *mockBackend) Get(ctx context.Context, id int64) (Product, error) {
	return Product{}, ErrNotFound
}
func (m *mockBackend) Update(ctx context.Context, id int64, upd Update) (Product, error) {
	return Product{}, ErrNotFound
}
func (m *mockBackend) Delete(ctx context.Context, id int64) error { return ErrNotFound }
func (m *mockBackend) Close() error                               { return nil }

func TestBackendInterface(t *testing.T) {
	var b Backend = &mockBackend{}
	_ = b
}
