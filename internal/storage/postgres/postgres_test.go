package postgres

import (
	"context"
	"os"
	"testing"

	"github.com/FranksOps/catalogsync/internal/storage/storagetest"
)

func TestPostgresBackend(t *testing.T) {
	// Only run this test if CATALOGSYNC_TEST_PG_DSN is set
	dsn := os.Getenv("CATALOGSYNC_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: CATALOGSYNC_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	b, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres backend: %v", err)
	}
	defer b.Close()

	// The shared contract expects an empty table.
	if _, err := b.Replace(ctx, nil); err != nil {
		t.Fatalf("Failed to clear products: %v", err)
	}

	storagetest.Run(t, b)
}
