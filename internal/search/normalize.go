package search

import (
	"sort"
	"strings"
	"time"

	"github.com/mohammad-safakhou/searchbrief/models"
)

const (
	PastEventMarker    = "(Event has already occurred)"
	OngoingEventMarker = "(Currently happening)"

	rangeSeparator = "–"
)

var dateLayouts = []struct {
	layout   string
	dateOnly bool
}{
	{time.RFC3339, false},
	{time.RFC3339Nano, false},
	{"2006-01-02T15:04:05", false},
	{"2006-01-02", true},
	{"January 2, 2006", true},
	{"Jan 2, 2006", true},
}

// ParseDate parses a single provider date. dateOnly reports whether the value
// carried no time of day.
func ParseDate(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, l := range dateLayouts {
		if t, err := time.Parse(l.layout, s); err == nil {
			return t, l.dateOnly, true
		}
	}
	return time.Time{}, false, false
}

// parseRange parses "start–end". A date-only end covers the whole day.
func parseRange(s string) (start, end time.Time, ok bool) {
	parts := strings.Split(s, rangeSeparator)
	if len(parts) != 2 {
		return time.Time{}, time.Time{}, false
	}
	start, _, okStart := ParseDate(parts[0])
	end, endDateOnly, okEnd := ParseDate(parts[1])
	if !okStart || !okEnd || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	if endDateOnly {
		end = end.Add(24*time.Hour - time.Nanosecond)
	}
	return start, end, true
}

// sortKey is the instant used for ordering: the date itself or a range start.
func sortKey(r models.SearchResult) (time.Time, bool) {
	d := string(r.Date)
	if strings.Contains(d, rangeSeparator) {
		start, _, ok := parseRange(d)
		return start, ok
	}
	t, _, ok := ParseDate(d)
	return t, ok
}

// Dedup keeps the first occurrence of each link across batches taken in
// priority order. Items without a link are dropped.
func Dedup(batches [][]models.SearchResult) []models.SearchResult {
	seen := make(map[string]struct{})
	var out []models.SearchResult
	for _, batch := range batches {
		for _, r := range batch {
			link := strings.TrimSpace(r.Link)
			if link == "" {
				continue
			}
			if _, ok := seen[link]; ok {
				continue
			}
			seen[link] = struct{}{}
			out = append(out, r)
		}
	}
	return out
}

// Sort orders results newest first. Dated items come before undated ones;
// equal dates and undated items fall back to the source name, and remaining
// ties keep arrival order.
func Sort(results []models.SearchResult) {
	keys := make([]time.Time, len(results))
	dated := make([]bool, len(results))
	for i, r := range results {
		keys[i], dated[i] = sortKey(r)
	}
	idx := make([]int, len(results))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		i, j := idx[a], idx[b]
		if dated[i] != dated[j] {
			return dated[i]
		}
		if dated[i] && !keys[i].Equal(keys[j]) {
			return keys[i].After(keys[j])
		}
		return results[i].Source < results[j].Source
	})
	sorted := make([]models.SearchResult, len(results))
	for pos, i := range idx {
		sorted[pos] = results[i]
	}
	copy(results, sorted)
}

// Annotate appends an event-status marker to the snippet. A snippet that
// already carries a marker is left alone.
func Annotate(r models.SearchResult, now time.Time) models.SearchResult {
	if strings.Contains(r.Snippet, PastEventMarker) || strings.Contains(r.Snippet, OngoingEventMarker) {
		return r
	}
	d := string(r.Date)
	if strings.Contains(d, rangeSeparator) {
		start, end, ok := parseRange(d)
		switch {
		case !ok:
		case !now.Before(start) && !now.After(end):
			r.Snippet = appendMarker(r.Snippet, OngoingEventMarker)
		case now.After(end):
			r.Snippet = appendMarker(r.Snippet, PastEventMarker)
		}
		return r
	}
	if t, _, ok := ParseDate(d); ok && t.Before(now) {
		r.Snippet = appendMarker(r.Snippet, PastEventMarker)
	}
	return r
}

func appendMarker(snippet, marker string) string {
	if snippet == "" {
		return marker
	}
	return snippet + " " + marker
}

// Normalize dedups, sorts and annotates provider batches. The input is not
// modified.
func Normalize(batches [][]models.SearchResult, now time.Time) []models.SearchResult {
	out := Dedup(batches)
	Sort(out)
	for i := range out {
		out[i] = Annotate(out[i], now)
	}
	return out
}
