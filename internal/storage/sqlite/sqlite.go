package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/FranksOps/catalogsync/internal/storage"
	_ "modernc.org/sqlite"
)

// ensure sqliteBackend implements storage.Backend
var _ storage.Backend = (*sqliteBackend)(nil)

type sqliteBackend struct {
	db *sql.DB
}

// AUTOINCREMENT keeps ids from being reused after a full replace.
const schema = `
CREATE TABLE IF NOT EXISTS products (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	price TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_products_name ON products(name);
`

// WAL lets readers keep seeing the previous catalog while a replace is in flight.
const pragmas = "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

// New creates a new SQLite-backed storage.Backend. dsn is a file path or a
// "file:" URI; WAL and a busy timeout are enabled unless the dsn sets its own pragmas.
func New(dsn string) (storage.Backend, error) {
	if !strings.Contains(dsn, "_pragma=") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + pragmas
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &sqliteBackend{db: db}, nil
}

func (b *sqliteBackend) Replace(ctx context.Context, records []storage.Record) (int, error) {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin replace: %w", err)
	}
	// Rollback after a successful Commit is a no-op.
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return 0, fmt.Errorf("delete products: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO products (name, price) VALUES (?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Name, r.Price); err != nil {
			return 0, fmt.Errorf("insert product %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit replace: %w", err)
	}
	return len(records), nil
}

func (b *sqliteBackend) List(ctx context.Context) ([]storage.Product, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT id, name, price FROM products ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	defer rows.Close()

	products := []storage.Product{}
	for rows.Next() {
		var p storage.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (b *sqliteBackend) Get(ctx context.Context, id int64) (storage.Product, error) {
	var p storage.Product
	err := b.db.QueryRowContext(ctx, `SELECT id, name, price FROM products WHERE id = ?`, id).
		Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Product{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (b *sqliteBackend) Update(ctx context.Context, id int64, upd storage.Update) (storage.Product, error) {
	if upd.Empty() {
		return b.Get(ctx, id)
	}

	var p storage.Product
	err := b.db.QueryRowContext(ctx, `
	UPDATE products SET name = COALESCE(?, name), price = COALESCE(?, price)
	WHERE id = ?
	RETURNING id, name, price
	`, upd.Name, upd.Price, id).Scan(&p.ID, &p.Name, &p.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Product{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Product{}, fmt.Errorf("update product %d: %w", id, err)
	}
	return p, nil
}

func (b *sqliteBackend) Delete(ctx context.Context, id int64) error {
	res, err := b.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete product %d: %w", id, err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (b *sqliteBackend) Close() error {
	return b.db.Close()
}
