package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/FranksOps/catalogsync/internal/metrics"
	"github.com/FranksOps/catalogsync/internal/notify"
	"github.com/FranksOps/catalogsync/internal/storage"
)

// Broadcaster delivers a notification to live subscribers.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg string) int
}

// Replacer swaps the stored catalog for a freshly scraped one.
type Replacer struct {
	store    storage.Backend
	notifier Broadcaster
	logger   *slog.Logger
}

// NewReplacer creates a Replacer. notifier may be nil.
func NewReplacer(store storage.Backend, notifier Broadcaster, logger *slog.Logger) *Replacer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Replacer{store: store, notifier: notifier, logger: logger}
}

// Replace stores records in place of the current catalog and broadcasts one
// "saved N products" message. An empty slice leaves the store untouched and
// broadcasts nothing. On error the previous catalog stays in place.
func (r *Replacer) Replace(ctx context.Context, records []storage.Record) (int, error) {
	if len(records) == 0 {
		r.logger.Warn("no products scraped, keeping stored catalog")
		return 0, nil
	}

	n, err := r.store.Replace(ctx, records)
	if err != nil {
		return 0, fmt.Errorf("replace catalog: %w", err)
	}
	metrics.ProductsStored.Set(float64(n))
	r.logger.Info("catalog replaced", "count", n)

	if r.notifier != nil {
		r.notifier.Broadcast(ctx, notify.Saved(n))
	}
	return n, nil
}
