// Package fetch retrieves raw session batches from the configured data
// source. The pipeline does not care how a batch was fetched: every
// adapter yields the same full-schema raw records.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/msgroups/sessionvault/internal/session"
)

// Fetcher yields one complete raw batch per call. A refresh either
// returns a new batch or reports failure; retry policy belongs to the
// caller.
type Fetcher interface {
	Fetch(ctx context.Context) ([]session.RawRecord, error)
}

// maxPayloadBytes caps a single fetch payload. Published sheets are a few
// megabytes at most; anything larger is a misconfigured URL.
const maxPayloadBytes = 64 << 20

// HTTPDoer is the subset of http.Client the fetchers need.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewHTTPClient returns the default client used by the HTTP fetchers.
func NewHTTPClient() *http.Client {
	return &http.Client{Timeout: 30 * time.Second}
}

func fetchBody(ctx context.Context, client HTTPDoer, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	// The sheet export URL serves stale copies aggressively without this.
	req.Header.Set("Cache-Control", "no-store")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %s", url, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return body, nil
}
