package jsonbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/FranksOps/catalogsync/internal/storage"
)

// ensure jsonBackend implements storage.Backend
var _ storage.Backend = (*jsonBackend)(nil)

// snapshot is immutable once published; writers build a new one and swap it in.
type snapshot struct {
	products []storage.Product
	index    map[int64]int
}

func newSnapshot(products []storage.Product) *snapshot {
	s := &snapshot{
		products: products,
		index:    make(map[int64]int, len(products)),
	}
	for i, p := range products {
		s.index[p.ID] = i
	}
	return s
}

// fileFormat is the on-disk layout.
type fileFormat struct {
	NextID   int64             `json:"next_id"`
	Products []storage.Product `json:"products"`
}

type jsonBackend struct {
	path    string
	current atomic.Pointer[snapshot]

	// mu serializes writers; readers only load current.
	mu     sync.Mutex
	nextID int64
}

// New creates a snapshot-backed storage.Backend. Readers see a consistent
// catalog without locking because every write publishes a whole new snapshot.
// If path is non-empty the catalog is loaded from and persisted to that JSON
// file (write to a temp file, then rename); an empty path keeps it in memory.
func New(path string) (storage.Backend, error) {
	b := &jsonBackend{path: path, nextID: 1}

	ff := fileFormat{NextID: 1}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read catalog file: %w", err)
		default:
			if err := json.Unmarshal(data, &ff); err != nil {
				return nil, fmt.Errorf("decode catalog file: %w", err)
			}
		}
	}

	for _, p := range ff.Products {
		if p.ID >= ff.NextID {
			ff.NextID = p.ID + 1
		}
	}
	b.nextID = ff.NextID
	b.current.Store(newSnapshot(ff.Products))
	return b, nil
}

func (b *jsonBackend) Replace(ctx context.Context, records []storage.Record) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	next := b.nextID
	products := make([]storage.Product, len(records))
	for i, r := range records {
		products[i] = storage.Product{ID: next, Name: r.Name, Price: r.Price}
		next++
	}

	if err := b.publish(products, next); err != nil {
		return 0, err
	}
	return len(records), nil
}

func (b *jsonBackend) List(ctx context.Context) ([]storage.Product, error) {
	s := b.current.Load()
	out := make([]storage.Product, len(s.products))
	copy(out, s.products)
	return out, nil
}

func (b *jsonBackend) Get(ctx context.Context, id int64) (storage.Product, error) {
	s := b.current.Load()
	i, ok := s.index[id]
	if !ok {
		return storage.Product{}, storage.ErrNotFound
	}
	return s.products[i], nil
}

func (b *jsonBackend) Update(ctx context.Context, id int64, upd storage.Update) (storage.Product, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.current.Load()
	i, ok := s.index[id]
	if !ok {
		return storage.Product{}, storage.ErrNotFound
	}
	if upd.Empty() {
		return s.products[i], nil
	}

	products := make([]storage.Product, len(s.products))
	copy(products, s.products)
	if upd.Name != nil {
		products[i].Name = *upd.Name
	}
	if upd.Price != nil {
		products[i].Price = *upd.Price
	}

	if err := b.publish(products, b.nextID); err != nil {
		return storage.Product{}, err
	}
	return products[i], nil
}

func (b *jsonBackend) Delete(ctx context.Context, id int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.current.Load()
	i, ok := s.index[id]
	if !ok {
		return storage.ErrNotFound
	}

	products := make([]storage.Product, 0, len(s.products)-1)
	products = append(products, s.products[:i]...)
	products = append(products, s.products[i+1:]...)

	return b.publish(products, b.nextID)
}

func (b *jsonBackend) Close() error {
	return nil
}

// publish persists products (when file-backed) and then makes them visible.
// Must be called with mu held. A failed write leaves the current snapshot in place.
func (b *jsonBackend) publish(products []storage.Product, nextID int64) error {
	if b.path != "" {
		if err := b.writeFile(fileFormat{NextID: nextID, Products: products}); err != nil {
			return err
		}
	}
	b.nextID = nextID
	b.current.Store(newSnapshot(products))
	return nil
}

func (b *jsonBackend) writeFile(ff fileFormat) error {
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return fmt.Errorf("encode catalog: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp catalog: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write temp catalog: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("sync temp catalog: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close temp catalog: %w", err)
	}

	if err := os.Rename(tmpName, b.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename catalog: %w", err)
	}
	return nil
}
