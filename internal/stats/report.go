package stats

import (
	"cmp"
	"slices"
	"strings"
	"time"
)

type KeywordCount struct {
	Keyword string
	Count   int
}

type DayCount struct {
	Day   string
	Count int
}

// TopKeywords ranks keywords by count, highest first. Equal counts are
// ordered lexicographically so the output is stable.
func TopKeywords(keywords map[string]int, limit int) []KeywordCount {
	out := make([]KeywordCount, 0, len(keywords))
	for k, n := range keywords {
		out = append(out, KeywordCount{Keyword: k, Count: n})
	}
	slices.SortFunc(out, func(a, b KeywordCount) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Keyword, b.Keyword)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Days returns every daily bucket in ascending key order, which is
// chronological for well-formed keys.
func Days(daily map[string]int) []DayCount {
	out := make([]DayCount, 0, len(daily))
	for d, n := range daily {
		out = append(out, DayCount{Day: d, Count: n})
	}
	slices.SortFunc(out, func(a, b DayCount) int { return strings.Compare(a.Day, b.Day) })
	return out
}

// RecentDays keeps buckets whose date lies 0..window-1 whole days before
// today, newest first. Keys that are not dates are skipped.
func RecentDays(daily map[string]int, today time.Time, window int) []DayCount {
	ref := calendarDay(today)

	var out []DayCount
	for key, n := range daily {
		d, err := time.Parse(DateLayout, key)
		if err != nil {
			continue
		}
		age := int(ref.Sub(calendarDay(d)) / (24 * time.Hour))
		if age >= 0 && age < window {
			out = append(out, DayCount{Day: key, Count: n})
		}
	}
	slices.SortFunc(out, func(a, b DayCount) int { return strings.Compare(b.Day, a.Day) })
	return out
}

// calendarDay maps t's local date onto UTC midnight so day differences
// are exact regardless of DST.
func calendarDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
