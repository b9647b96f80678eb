package radar

import (
	"sort"
	"strings"
	"time"

	"tenderradar/internal/flatten"
)

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02-01-2006",
}

// DateColumn picks the column a filtered batch should be ordered by: a
// closing-date column when present, a publication-date column otherwise.
// Empty when the schema has neither.
func DateColumn(fields []string) string {
	for _, want := range []string{"FechaCierre", "FechaPublicacion"} {
		for _, f := range fields {
			if strings.Contains(f, want) {
				return f
			}
		}
	}
	return ""
}

// SortByDate orders records ascending by the given date column, in place and
// stably. Records whose value is missing or unparseable sort last, keeping
// their relative order.
func SortByDate(records []flatten.Record, column string) {
	if column == "" {
		return
	}
	sort.SliceStable(records, func(i, j int) bool {
		ti, oki := ParseDate(records[i].Get(column).String())
		tj, okj := ParseDate(records[j].Get(column).String())
		if oki && okj {
			return ti.Before(tj)
		}
		return oki && !okj
	})
}

// ParseDate tries the date layouts the API has been seen to emit.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}
