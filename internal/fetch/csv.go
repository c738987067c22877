package fetch

import (
	"context"
	"fmt"
	"os"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
	"github.com/msgroups/sessionvault/internal/tabular"
)

// CSVFetcher pulls a published delimited-text export over HTTP.
type CSVFetcher struct {
	URL    string
	Client HTTPDoer
}

// NewCSVFetcher returns a CSVFetcher with the default HTTP client.
func NewCSVFetcher(url string) *CSVFetcher {
	return &CSVFetcher{URL: url, Client: NewHTTPClient()}
}

// Fetch downloads and parses the export. Malformed rows are dropped by
// the parser, not surfaced as errors.
func (f *CSVFetcher) Fetch(ctx context.Context) ([]session.RawRecord, error) {
	body, err := fetchBody(ctx, f.Client, f.URL)
	if err != nil {
		return nil, err
	}
	return tabular.Parse(string(body), schema.Headers), nil
}

// FileFetcher reads a delimited-text export from local disk. Used for
// offline work and testing against saved exports.
type FileFetcher struct {
	Path string
}

// Fetch reads and parses the file.
func (f *FileFetcher) Fetch(ctx context.Context) ([]session.RawRecord, error) {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	return tabular.Parse(string(body), schema.Headers), nil
}
