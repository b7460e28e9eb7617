package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/FranksOps/catalogsync/internal/metrics"
	"github.com/FranksOps/catalogsync/internal/scraper"
	"github.com/google/uuid"
)

// Collector walks the catalog and returns everything it found.
type Collector interface {
	Collect(ctx context.Context, startURL string) scraper.Traversal
}

// Outcome classifies a finished cycle.
type Outcome string

const (
	OutcomeSaved  Outcome = "saved"
	OutcomeEmpty  Outcome = "empty"
	OutcomeFailed Outcome = "failed"
)

// previewSize is how many scraped records are logged per cycle.
const previewSize = 3

// Report describes one scrape cycle.
type Report struct {
	ID        string        `json:"id"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Pages     int           `json:"pages"`
	Fetched   int           `json:"fetched"`
	Saved     int           `json:"saved"`
	Outcome   Outcome       `json:"outcome"`
	Err       error         `json:"-"`
	Error     string        `json:"error,omitempty"`
}

// Syncer runs scrape cycles: collect every page, then replace the store.
type Syncer struct {
	collector Collector
	replacer  *Replacer
	startURL  string
	logger    *slog.Logger

	mu   sync.RWMutex
	last *Report
}

// NewSyncer creates a Syncer that starts every traversal at startURL.
func NewSyncer(collector Collector, replacer *Replacer, startURL string, logger *slog.Logger) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		collector: collector,
		replacer:  replacer,
		startURL:  startURL,
		logger:    logger,
	}
}

// Collect runs a traversal without touching the store.
func (s *Syncer) Collect(ctx context.Context) scraper.Traversal {
	return s.collector.Collect(ctx, s.startURL)
}

// RunCycle performs one full cycle. A traversal that stops early still has
// its records saved; an error is returned only when nothing could be scraped
// because of a failure, or when the store rejected the replace.
func (s *Syncer) RunCycle(ctx context.Context) (Report, error) {
	rep := Report{
		ID:        uuid.NewString(),
		StartedAt: time.Now(),
	}
	logger := s.logger.With("cycle", rep.ID)
	logger.Info("scrape cycle started", "url", s.startURL)

	tr := s.collector.Collect(ctx, s.startURL)
	rep.Pages = tr.Pages
	rep.Fetched = len(tr.Records)

	for i := 0; i < len(tr.Records) && i < previewSize; i++ {
		logger.Info("scraped product", "name", tr.Records[i].Name, "price", tr.Records[i].Price)
	}

	if len(tr.Records) == 0 && tr.Err != nil {
		rep.Outcome = OutcomeFailed
		rep.Err = fmt.Errorf("scrape: %w", tr.Err)
	} else {
		if tr.Err != nil {
			logger.Warn("saving partial catalog", "pages", tr.Pages, "err", tr.Err)
		}
		n, err := s.replacer.Replace(ctx, tr.Records)
		switch {
		case err != nil:
			rep.Outcome = OutcomeFailed
			rep.Err = err
		case n == 0:
			rep.Outcome = OutcomeEmpty
		default:
			rep.Outcome = OutcomeSaved
			rep.Saved = n
		}
	}

	rep.Duration = time.Since(rep.StartedAt)
	if rep.Err != nil {
		rep.Error = rep.Err.Error()
	}
	metrics.RecordCycle(string(rep.Outcome), rep.Duration)

	logger.Info("scrape cycle finished",
		"outcome", rep.Outcome, "pages", rep.Pages, "count", rep.Fetched, "saved", rep.Saved, "duration", rep.Duration)

	s.mu.Lock()
	s.last = &rep
	s.mu.Unlock()

	return rep, rep.Err
}

// Last returns the most recent cycle report, if any cycle has finished.
func (s *Syncer) Last() (Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Report{}, false
	}
	return *s.last, true
}
