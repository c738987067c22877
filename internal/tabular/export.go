package tabular

import "strings"

// FieldSource is anything that can serialize itself one header at a time.
// Both raw and hydrated session records satisfy it.
type FieldSource interface {
	Field(name string) string
}

// Export serializes records in the canonical column order as delimited
// text: header row first, then one row per record. Every field is quoted
// and embedded quotes are doubled, so the output round-trips through
// Parse with the same header list.
func Export[T FieldSource](records []T, headers []string) string {
	var b strings.Builder

	for i, h := range headers {
		if i > 0 {
			b.WriteByte(',')
		}
		writeQuoted(&b, h)
	}

	for _, rec := range records {
		b.WriteByte('\n')
		for i, h := range headers {
			if i > 0 {
				b.WriteByte(',')
			}
			writeQuoted(&b, rec.Field(h))
		}
	}
	return b.String()
}

func writeQuoted(b *strings.Builder, v string) {
	b.WriteByte('"')
	b.WriteString(strings.ReplaceAll(v, `"`, `""`))
	b.WriteByte('"')
}
