// Package notify fans out short text notifications to live subscribers.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FranksOps/catalogsync/internal/metrics"
)

// DefaultSendTimeout bounds one delivery to one subscriber.
const DefaultSendTimeout = 5 * time.Second

// Subscriber receives broadcast messages. Implementations must be comparable
// (pointer types) since they key the subscriber set.
type Subscriber interface {
	Send(ctx context.Context, msg string) error
}

// Hub keeps the set of live subscribers.
type Hub struct {
	mu          sync.RWMutex
	subs        map[Subscriber]struct{}
	sendTimeout time.Duration
	logger      *slog.Logger
}

// NewHub creates an empty Hub. sendTimeout <= 0 means DefaultSendTimeout.
func NewHub(sendTimeout time.Duration, logger *slog.Logger) *Hub {
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		subs:        make(map[Subscriber]struct{}),
		sendTimeout: sendTimeout,
		logger:      logger,
	}
}

// Subscribe adds s to the set.
func (h *Hub) Subscribe(s Subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
	h.logger.Debug("subscriber added", "subscribers", n)
}

// Unsubscribe removes s. Removing an absent subscriber is a no-op.
func (h *Hub) Unsubscribe(s Subscriber) {
	h.mu.Lock()
	delete(h.subs, s)
	n := len(h.subs)
	h.mu.Unlock()

	metrics.Subscribers.Set(float64(n))
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends msg to every current subscriber concurrently and returns
// how many deliveries succeeded. A subscriber whose delivery fails or times
// out is removed; the others are unaffected.
func (h *Hub) Broadcast(ctx context.Context, msg string) int {
	h.mu.RLock()
	snapshot := make([]Subscriber, 0, len(h.subs))
	for s := range h.subs {
		snapshot = append(snapshot, s)
	}
	h.mu.RUnlock()

	if len(snapshot) == 0 {
		return 0
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed []Subscriber
	)
	for _, s := range snapshot {
		wg.Add(1)
		go func(s Subscriber) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, h.sendTimeout)
			defer cancel()

			if err := s.Send(sendCtx, msg); err != nil {
				h.logger.Warn("dropping subscriber after failed delivery", "err", err)
				mu.Lock()
				failed = append(failed, s)
				mu.Unlock()
			}
		}(s)
	}
	wg.Wait()

	for _, s := range failed {
		h.Unsubscribe(s)
		if c, ok := s.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	metrics.BroadcastFailures.Add(float64(len(failed)))

	return len(snapshot) - len(failed)
}

// Saved is sent after a scrape cycle replaces the catalog.
func Saved(n int) string { return fmt.Sprintf("saved %d products", n) }

// Loaded is sent when the full catalog is read.
func Loaded(n int) string { return fmt.Sprintf("loaded %d products", n) }

// Found is sent when a single product is read.
func Found(id int64) string { return fmt.Sprintf("product %d found", id) }

// Updated is sent after a product is modified.
func Updated(id int64) string { return fmt.Sprintf("product %d updated", id) }

// Deleted is sent after a product is removed.
func Deleted(id int64) string { return fmt.Sprintf("product %d deleted", id) }
