package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/msgroups/sessionvault/internal/session"
)

// loadBatch fetches the current batch from the configured source, falling
// back to the most recent archived snapshot when the source is unreachable
// or not configured. The returned time is when the batch was fetched.
func loadBatch(ctx context.Context) ([]session.Record, time.Time, error) {
	hydrator := newHydrator()

	fetcher, err := newFetcher()
	if err == nil {
		raws, ferr := fetcher.Fetch(ctx)
		if ferr == nil {
			return hydrator.HydrateAll(raws), time.Now(), nil
		}
		logger.Warn("source unreachable, trying archive", "error", ferr)
		err = ferr
	}

	s, serr := openArchive()
	if serr != nil {
		return nil, time.Time{}, fmt.Errorf("source unavailable (%v) and %w", err, serr)
	}
	defer s.Close()

	raws, info, serr := s.LoadLatest()
	if serr != nil {
		return nil, time.Time{}, fmt.Errorf("load snapshot: %w", serr)
	}
	if info == nil {
		return nil, time.Time{}, fmt.Errorf("source unavailable (%v) and no archived snapshot to fall back to", err)
	}

	fmt.Fprintf(os.Stderr, "Source unreachable, using snapshot %d from %s\n",
		info.ID, info.FetchedAt.Local().Format("2006-01-02 15:04:05"))
	return hydrator.HydrateAll(raws), info.FetchedAt, nil
}
