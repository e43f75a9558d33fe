package search

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/searchbrief/models"
)

func res(link, source, date string) models.SearchResult {
	return models.SearchResult{Title: link, Snippet: "about " + link, Link: link, Source: source, Date: models.NullString(date)}
}

func links(rs []models.SearchResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Link
	}
	return out
}

func TestDedupKeepsFirstByPriority(t *testing.T) {
	google := []models.SearchResult{res("https://a", "Google", ""), res("https://b", "Google", "")}
	bing := []models.SearchResult{res("https://b", "Bing", ""), res("https://c", "Bing", ""), res("", "Bing", "")}

	out := Dedup([][]models.SearchResult{google, nil, bing})
	require.Len(t, out, 3)
	assert.Equal(t, []string{"https://a", "https://b", "https://c"}, links(out))
	assert.Equal(t, "Google", out[1].Source)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	now := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)
	raw := [][]models.SearchResult{
		{res("https://a", "Google", "2024-06-01"), res("https://dup", "Google", "")},
		{res("https://dup", "Bing", "2024-12-01T10:00:00Z"), res("https://c", "Bing", "2025-01-01–2025-01-10")},
	}

	first := Normalize(raw, now)
	second := Normalize(raw, now)
	assert.Equal(t, first, second)

	seen := map[string]bool{}
	for _, r := range first {
		assert.False(t, seen[r.Link], "duplicate link %s", r.Link)
		seen[r.Link] = true
	}
	assert.Equal(t, "about https://a", raw[0][0].Snippet, "input must not be modified")
}

func TestSortNewestFirstThenSource(t *testing.T) {
	rs := []models.SearchResult{
		res("u1", "Google", ""),
		res("d-old", "Google", "2023-01-01"),
		res("u2", "Bing", ""),
		res("d-new", "Bing", "2024-03-01T08:00:00Z"),
		res("d-same-g", "Google", "2023-06-01"),
		res("d-same-b", "Bing", "2023-06-01"),
	}
	Sort(rs)
	assert.Equal(t, []string{"d-new", "d-same-b", "d-same-g", "d-old", "u2", "u1"}, links(rs))

	// an undated item never overtakes a dated one, even with a smaller source
	mixed := []models.SearchResult{
		res("undated-aaa", "Aardvark", ""),
		res("dated-zzz", "Zebra", "2020-01-01"),
	}
	Sort(mixed)
	assert.Equal(t, []string{"dated-zzz", "undated-aaa"}, links(mixed))
}

func TestSortIsStableAndResortNoop(t *testing.T) {
	rs := []models.SearchResult{
		res("first", "Google", ""),
		res("second", "Google", ""),
		res("third", "Google", "not a date"),
	}
	Sort(rs)
	assert.Equal(t, []string{"first", "second", "third"}, links(rs))

	rs = []models.SearchResult{
		res("a", "Serper", "Jan 2, 2024"),
		res("b", "Brave", ""),
		res("c", "Google", "January 3, 2024"),
		res("d", "Brave", "2024-01-02"),
	}
	Sort(rs)
	once := append([]models.SearchResult(nil), rs...)
	Sort(rs)
	assert.Equal(t, once, rs)
	assert.Equal(t, []string{"c", "d", "a", "b"}, links(rs))
}

func TestAnnotatePastEventOnce(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r := Annotate(res("x", "Google", "2024-01-01"), now)
	assert.Equal(t, "about x "+PastEventMarker, r.Snippet)

	again := Annotate(r, now)
	assert.Equal(t, 1, strings.Count(again.Snippet, PastEventMarker))
}

func TestAnnotateOngoingRange(t *testing.T) {
	now := time.Date(2025, 1, 5, 9, 30, 0, 0, time.UTC)
	r := Annotate(res("x", "Google", "2025-01-01–2025-01-10"), now)
	assert.Contains(t, r.Snippet, OngoingEventMarker)
	assert.NotContains(t, r.Snippet, PastEventMarker)

	lastDay := time.Date(2025, 1, 10, 23, 0, 0, 0, time.UTC)
	assert.Contains(t, Annotate(res("x", "Google", "2025-01-01–2025-01-10"), lastDay).Snippet, OngoingEventMarker)
}

func TestAnnotateLeavesFutureAndUnknownDates(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "about x", Annotate(res("x", "Google", "2026-01-01"), now).Snippet)
	assert.Equal(t, "about x", Annotate(res("x", "Google", "3 days ago"), now).Snippet)
	assert.Equal(t, "about x", Annotate(res("x", "Google", ""), now).Snippet)
	assert.Equal(t, "about x", Annotate(res("x", "Google", "2026-01-01–2026-01-05"), now).Snippet)
}

func TestParseDateLayouts(t *testing.T) {
	for _, in := range []string{
		"2024-05-01T10:00:00Z",
		"2024-05-01T10:00:00.1234567Z",
		"2024-05-01T10:00:00",
		"2024-05-01",
		"May 1, 2024",
		"January 2, 2006",
	} {
		_, _, ok := ParseDate(in)
		assert.True(t, ok, in)
	}
	_, _, ok := ParseDate("yesterday")
	assert.False(t, ok)
}
