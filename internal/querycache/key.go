package querycache

import (
	"sort"
	"strings"

	"propdesk/internal/model"
)

// Normalize returns a copy of filters with empty values dropped, so that
// {"minPrice": "", "bhk": "2"} and {"bhk": "2"} share a cache slot.
func Normalize(filters map[string]string) map[string]string {
	out := make(map[string]string, len(filters))
	for k, v := range filters {
		if v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// KeyFor builds the canonical cache key for a kind and normalized filter
// set: filter names are sorted so map iteration order cannot split slots.
func KeyFor(kind model.Kind, filters map[string]string) string {
	names := make([]string, 0, len(filters))
	for k := range filters {
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(string(kind))
	for _, k := range names {
		b.WriteByte('&')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(filters[k])
	}
	return b.String()
}
