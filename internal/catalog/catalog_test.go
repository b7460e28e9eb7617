package catalog

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/FranksOps/catalogsync/internal/scraper"
	"github.com/FranksOps/catalogsync/internal/storage"
	"github.com/FranksOps/catalogsync/internal/storage/jsonbackend"
)

type recordingBroadcaster struct {
	mu   sync.Mutex
	msgs []string
}

func (b *recordingBroadcaster) Broadcast(ctx context.Context, msg string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.msgs = append(b.msgs, msg)
	return 1
}

func (b *recordingBroadcaster) messages() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.msgs...)
}

// failingStore wraps a backend and rejects every Replace.
type failingStore struct {
	storage.Backend
}

func (f failingStore) Replace(ctx context.Context, records []storage.Record) (int, error) {
	return 0, errors.New("disk full")
}

type staticCollector struct {
	tr    scraper.Traversal
	calls int
	url   string
}

func (c *staticCollector) Collect(ctx context.Context, startURL string) scraper.Traversal {
	c.calls++
	c.url = startURL
	return c.tr
}

func newStore(t *testing.T, seed ...storage.Record) storage.Backend {
	t.Helper()
	b, err := jsonbackend.New("")
	if err != nil {
		t.Fatalf("jsonbackend.New: %v", err)
	}
	if len(seed) > 0 {
		if _, err := b.Replace(context.Background(), seed); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return b
}

func records(names ...string) []storage.Record {
	out := make([]storage.Record, len(names))
	for i, n := range names {
		out[i] = storage.Record{Name: n, Price: "1 ₽"}
	}
	return out
}

func TestReplacer_Empty(t *testing.T) {
	store := newStore(t, records("old")...)
	bc := &recordingBroadcaster{}
	r := NewReplacer(store, bc, nil)

	n, err := r.Replace(context.Background(), nil)
	if err != nil || n != 0 {
		t.Fatalf("expected (0, nil), got (%d, %v)", n, err)
	}

	products, _ := store.List(context.Background())
	if len(products) != 1 || products[0].Name != "old" {
		t.Errorf("expected stored catalog untouched, got %#v", products)
	}
	if len(bc.messages()) != 0 {
		t.Errorf("expected no broadcast, got %v", bc.messages())
	}
}

func TestReplacer_SavesAndBroadcastsOnce(t *testing.T) {
	store := newStore(t, records("old1", "old2", "old3", "old4")...)
	bc := &recordingBroadcaster{}
	r := NewReplacer(store, bc, nil)

	n, err := r.Replace(context.Background(), records("a", "b", "c"))
	if err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 saved, got %d", n)
	}

	products, _ := store.List(context.Background())
	if len(products) != 3 || products[0].Name != "a" || products[2].Name != "c" {
		t.Errorf("expected exactly the new records in order, got %#v", products)
	}

	msgs := bc.messages()
	if len(msgs) != 1 || msgs[0] != "saved 3 products" {
		t.Errorf("expected one 'saved 3 products' broadcast, got %v", msgs)
	}
}

func TestReplacer_StoreFailure(t *testing.T) {
	inner := newStore(t, records("keep")...)
	bc := &recordingBroadcaster{}
	r := NewReplacer(failingStore{inner}, bc, nil)

	if _, err := r.Replace(context.Background(), records("x")); err == nil {
		t.Fatalf("expected error from failing store")
	}

	products, _ := inner.List(context.Background())
	if len(products) != 1 || products[0].Name != "keep" {
		t.Errorf("expected prior catalog preserved, got %#v", products)
	}
	if len(bc.messages()) != 0 {
		t.Errorf("expected no broadcast after failure, got %v", bc.messages())
	}
}

func TestReplacer_NilNotifier(t *testing.T) {
	r := NewReplacer(newStore(t), nil, nil)
	if n, err := r.Replace(context.Background(), records("a")); err != nil || n != 1 {
		t.Errorf("expected (1, nil), got (%d, %v)", n, err)
	}
}

func TestSyncer_RunCycle(t *testing.T) {
	tests := []struct {
		name     string
		tr       scraper.Traversal
		store    func(storage.Backend) storage.Backend
		outcome  Outcome
		saved    int
		wantErr  bool
		wantMsgs int
		stored   int
	}{
		{
			name:     "saved",
			tr:       scraper.Traversal{Records: records("a", "b", "c", "d"), Pages: 2},
			outcome:  OutcomeSaved,
			saved:    4,
			wantMsgs: 1,
			stored:   4,
		},
		{
			name:     "partial traversal is saved",
			tr:       scraper.Traversal{Records: records("a"), Pages: 1, Err: scraper.ErrTransport},
			outcome:  OutcomeSaved,
			saved:    1,
			wantMsgs: 1,
			stored:   1,
		},
		{
			name:    "empty",
			tr:      scraper.Traversal{Records: []storage.Record{}},
			outcome: OutcomeEmpty,
			stored:  2,
		},
		{
			name:    "scrape failure",
			tr:      scraper.Traversal{Records: []storage.Record{}, Err: &scraper.StatusError{Code: 500}},
			outcome: OutcomeFailed,
			wantErr: true,
			stored:  2,
		},
		{
			name:    "store failure",
			tr:      scraper.Traversal{Records: records("a"), Pages: 1},
			store:   func(b storage.Backend) storage.Backend { return failingStore{b} },
			outcome: OutcomeFailed,
			wantErr: true,
			stored:  2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inner := newStore(t, records("old1", "old2")...)
			var store storage.Backend = inner
			if tt.store != nil {
				store = tt.store(inner)
			}

			bc := &recordingBroadcaster{}
			col := &staticCollector{tr: tt.tr}
			s := NewSyncer(col, NewReplacer(store, bc, nil), "https://shop.example/catalog/x/", nil)

			if _, ok := s.Last(); ok {
				t.Errorf("expected no report before the first cycle")
			}

			rep, err := s.RunCycle(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunCycle error = %v, wantErr %v", err, tt.wantErr)
			}
			if rep.Outcome != tt.outcome {
				t.Errorf("expected outcome %s, got %s", tt.outcome, rep.Outcome)
			}
			if rep.Saved != tt.saved {
				t.Errorf("expected saved %d, got %d", tt.saved, rep.Saved)
			}
			if rep.ID == "" {
				t.Errorf("expected a cycle id")
			}
			if col.url != "https://shop.example/catalog/x/" {
				t.Errorf("collector called with %q", col.url)
			}
			if got := len(bc.messages()); got != tt.wantMsgs {
				t.Errorf("expected %d broadcasts, got %d", tt.wantMsgs, got)
			}

			products, _ := inner.List(context.Background())
			if len(products) != tt.stored {
				t.Errorf("expected %d stored products, got %d", tt.stored, len(products))
			}

			last, ok := s.Last()
			if !ok || last.ID != rep.ID {
				t.Errorf("Last() did not return the latest report")
			}
			if tt.wantErr && last.Error == "" {
				t.Errorf("expected error text on report")
			}
		})
	}
}
