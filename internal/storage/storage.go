package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a product id does not exist in the store.
var ErrNotFound = errors.New("product not found")

// Record is a name/price pair extracted from a catalog page, before it is persisted.
type Record struct {
	Name  string `json:"name" yaml:"name"`
	Price string `json:"price" yaml:"price"`
}

// Product is a persisted Record. IDs are assigned by the backend on insert.
type Product struct {
	ID    int64  `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	Price string `json:"price" yaml:"price"`
}

// Update carries the fields to change on a product. A nil field is left untouched.
type Update struct {
	Name  *string
	Price *string
}

// Empty reports whether the update changes nothing.
func (u Update) Empty() bool {
	return u.Name == nil && u.Price == nil
}

// Backend defines the interface for the persisted product catalog.
type Backend interface {
	// Replace discards every stored product and inserts records in order, in a
	// single transaction. On error the previous contents are left intact.
	Replace(ctx context.Context, records []Record) (int, error)
	// List returns all products ordered by id.
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id int64) (Product, error)
	Update(ctx context.Context, id int64, upd Update) (Product, error)
	Delete(ctx context.Context, id int64) error
	Close() error
}
