// Package tabular converts between delimited text and raw session records.
//
// The parser is deliberately more forgiving than encoding/csv: published
// sheet exports arrive with reordered columns, ragged rows, and stray
// blank lines, and ingestion must never fail on them. Parsing is
// best-effort: the scanner always terminates and returns whatever rows
// it could read.
package tabular

import (
	"strings"

	"github.com/msgroups/sessionvault/internal/session"
)

// Parse scans delimited text into raw records keyed by the given header
// names. The first row is consumed as the header row and matched by name,
// not position: source columns may be reordered, missing (defaulted to ""),
// or extra (ignored). Rows that are empty or all-blank are dropped.
func Parse(text string, headers []string) []session.RawRecord {
	rows := scan(text)
	if len(rows) == 0 {
		return nil
	}

	hdr := rows[0]
	for i := range hdr {
		hdr[i] = strings.TrimSpace(hdr[i])
	}

	// Column index per expected header, -1 when absent from the source.
	idx := make([]int, len(headers))
	for i, h := range headers {
		idx[i] = -1
		for j, name := range hdr {
			if name == h {
				idx[i] = j
				break
			}
		}
	}

	var records []session.RawRecord
	for _, row := range rows[1:] {
		if allBlank(row) {
			continue
		}
		rec := make(session.RawRecord, len(headers))
		for i, h := range headers {
			if j := idx[i]; j >= 0 && j < len(row) {
				rec[h] = row[j]
			} else {
				rec[h] = ""
			}
		}
		records = append(records, rec)
	}
	return records
}

// scan splits text into rows of fields with a single left-to-right pass.
// Three states: unquoted field, quoted field, field boundary. A field
// opened with a quote may contain literal commas and newlines; "" inside
// a quoted field is an escaped quote; \r is discarded. Malformed quoting
// never aborts the scan.
func scan(text string) [][]string {
	var (
		rows     [][]string
		row      []string
		field    strings.Builder
		inQuotes bool
	)

	pushField := func() {
		row = append(row, field.String())
		field.Reset()
	}
	pushRow := func() {
		rows = append(rows, row)
		row = nil
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(c)
			}
			continue
		}
		switch c {
		case '"':
			inQuotes = true
		case ',':
			pushField()
		case '\n':
			pushField()
			pushRow()
		case '\r':
			// discarded
		default:
			field.WriteByte(c)
		}
	}
	if field.Len() > 0 || len(row) > 0 {
		pushField()
		pushRow()
	}
	return rows
}

func allBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
