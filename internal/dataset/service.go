// Package dataset owns the single mutable pair of the pipeline: the
// current hydrated batch and its refresh metadata. Each refresh replaces
// the batch wholesale; views are always derived fresh from it.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/msgroups/sessionvault/internal/fetch"
	"github.com/msgroups/sessionvault/internal/session"
)

// ErrSuperseded reports that a refresh completed after a newer refresh
// had already started; its result was discarded to avoid an out-of-order
// overwrite.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// Meta describes the state of the current batch.
type Meta struct {
	LastSync        time.Time // zero until the first successful refresh
	RowCount        int
	IngestionErrors int // consecutive failed refreshes since the last success
}

// Service fetches, hydrates, and holds the current batch.
type Service struct {
	fetcher  fetch.Fetcher
	hydrator *session.Hydrator
	logger   *slog.Logger
	now      func() time.Time

	mu         sync.RWMutex
	records    []session.Record
	meta       Meta
	generation uint64
}

// New creates a Service around the given fetcher.
func New(fetcher fetch.Fetcher, hydrator *session.Hydrator) *Service {
	return &Service{
		fetcher:  fetcher,
		hydrator: hydrator,
		logger:   slog.Default(),
		now:      time.Now,
	}
}

// WithLogger sets the logger for the service.
func (s *Service) WithLogger(logger *slog.Logger) *Service {
	s.logger = logger
	return s
}

// WithClock sets the time source, mockable for testing.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Refresh fetches a complete payload, hydrates it, and replaces the
// current batch. Concurrent refreshes follow a cancel-and-replace policy:
// each call claims a generation, and a result whose generation has been
// passed by a newer call is discarded with ErrSuperseded.
func (s *Service) Refresh(ctx context.Context) (Meta, error) {
	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.mu.Unlock()

	raws, err := s.fetcher.Fetch(ctx)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		if gen == s.generation {
			s.meta.IngestionErrors++
		}
		return s.meta, fmt.Errorf("refresh: %w", err)
	}

	records := s.hydrator.HydrateAll(raws)
	sortByOpenDesc(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		s.logger.Debug("discarding stale refresh result", "generation", gen, "current", s.generation)
		return s.meta, ErrSuperseded
	}

	s.records = records
	s.meta = Meta{
		LastSync: s.now(),
		RowCount: len(records),
	}
	s.logger.Info("batch refreshed", "rows", len(records))
	return s.meta, nil
}

// Replace installs a batch directly, bypassing the fetcher. Used to seed
// the service from an archived snapshot when the source is unreachable.
func (s *Service) Replace(raws []session.RawRecord, fetchedAt time.Time) Meta {
	records := s.hydrator.HydrateAll(raws)
	sortByOpenDesc(records)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.records = records
	s.meta = Meta{LastSync: fetchedAt, RowCount: len(records)}
	return s.meta
}

// Records returns the current batch, newest ts_open first. The returned
// slice is the canonical dataset and must be treated as read-only.
func (s *Service) Records() []session.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records
}

// Meta returns the refresh metadata for the current batch.
func (s *Service) Meta() Meta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

// sortByOpenDesc orders a batch newest-opened first, records without a
// resolvable open timestamp last. The sort is stable so source order
// breaks ties.
func sortByOpenDesc(records []session.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i].TSOpen, records[j].TSOpen
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.After(*b)
		}
	})
}
