package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/msgroups/sessionvault/internal/schema"
	"github.com/msgroups/sessionvault/internal/session"
)

// JSONFetcher pulls rows from a JSON endpoint. The expected shape is
// {"ok": true, "rows": [{...}, ...]} (the Apps Script list handler);
// a bare {"rows": [...]} document is accepted too.
type JSONFetcher struct {
	URL    string
	Client HTTPDoer
}

// NewJSONFetcher returns a JSONFetcher with the default HTTP client.
func NewJSONFetcher(url string) *JSONFetcher {
	return &JSONFetcher{URL: url, Client: NewHTTPClient()}
}

type rowsEnvelope struct {
	OK    *bool                        `json:"ok"`
	Rows  []map[string]json.RawMessage `json:"rows"`
	Error string                       `json:"error"`
}

// Fetch downloads the document and normalizes each row to a full-schema
// raw record. Unknown keys are ignored; missing keys default to "".
func (f *JSONFetcher) Fetch(ctx context.Context) ([]session.RawRecord, error) {
	body, err := fetchBody(ctx, f.Client, f.URL)
	if err != nil {
		return nil, err
	}

	var env rowsEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode rows document: %w", err)
	}
	if env.OK != nil && !*env.OK {
		if env.Error != "" {
			return nil, fmt.Errorf("endpoint reported failure: %s", env.Error)
		}
		return nil, fmt.Errorf("endpoint reported failure")
	}
	if env.Rows == nil {
		return nil, fmt.Errorf("unexpected document shape: no rows array")
	}

	records := make([]session.RawRecord, 0, len(env.Rows))
	for _, row := range env.Rows {
		rec := session.NewRawRecord()
		for _, h := range schema.Headers {
			if v, ok := row[h]; ok {
				rec[h] = stringify(v)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// stringify renders a JSON scalar the way the sheet would: numbers
// without a trailing ".0", booleans as true/false, null as "".
func stringify(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return ""
	}
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		if val == math.Trunc(val) && math.Abs(val) < 1e15 {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		// nested arrays/objects have no column representation
		return ""
	}
}
