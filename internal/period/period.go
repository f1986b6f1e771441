// Package period turns report period names and explicit dates into half-open
// time ranges in a given location.
package period

import (
	"fmt"
	"strings"
	"time"
)

const (
	Today     = "today"
	Yesterday = "yesterday"
	Last7Days = "last7days"
	ThisMonth = "thismonth"
	LastMonth = "lastmonth"
	ThisYear  = "thisyear"
	AllTime   = "alltime"
)

const dateLayout = "2006-01-02"

// Range is [From, To). A nil bound is open.
type Range struct {
	From *time.Time
	To   *time.Time
}

func (r Range) Contains(t time.Time) bool {
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.To != nil && !t.Before(*r.To) {
		return false
	}
	return true
}

// Key is a stable string form used for cache keys.
func (r Range) Key() string {
	from, to := "-", "-"
	if r.From != nil {
		from = r.From.UTC().Format(time.RFC3339)
	}
	if r.To != nil {
		to = r.To.UTC().Format(time.RFC3339)
	}
	return from + "_" + to
}

func bounded(from, to time.Time) Range {
	return Range{From: &from, To: &to}
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Named resolves a period name relative to now, in now's location.
// An empty name means all time.
func Named(name string, now time.Time) (Range, error) {
	today := midnight(now)
	y, m, _ := today.Date()
	loc := today.Location()

	switch strings.ToLower(strings.TrimSpace(name)) {
	case Today:
		return bounded(today, today.AddDate(0, 0, 1)), nil
	case Yesterday:
		return bounded(today.AddDate(0, 0, -1), today), nil
	case Last7Days:
		return bounded(today.AddDate(0, 0, -6), today.AddDate(0, 0, 1)), nil
	case ThisMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return bounded(start, start.AddDate(0, 1, 0)), nil
	case LastMonth:
		end := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return bounded(end.AddDate(0, -1, 0), end), nil
	case ThisYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return bounded(start, start.AddDate(1, 0, 0)), nil
	case AllTime, "":
		return Range{}, nil
	default:
		return Range{}, fmt.Errorf("unknown period %q", name)
	}
}

// Between parses inclusive calendar dates (YYYY-MM-DD) in loc.
func Between(from, to string, loc *time.Location) (Range, error) {
	start, err := time.ParseInLocation(dateLayout, strings.TrimSpace(from), loc)
	if err != nil {
		return Range{}, fmt.Errorf("invalid from date %q", from)
	}
	end, err := time.ParseInLocation(dateLayout, strings.TrimSpace(to), loc)
	if err != nil {
		return Range{}, fmt.Errorf("invalid to date %q", to)
	}
	if end.Before(start) {
		return Range{}, fmt.Errorf("to date is before from date")
	}
	return bounded(start, end.AddDate(0, 0, 1)), nil
}

// Resolve prefers explicit dates when both are given, otherwise the period name.
func Resolve(name, from, to string, now time.Time) (Range, error) {
	if strings.TrimSpace(from) != "" && strings.TrimSpace(to) != "" {
		return Between(from, to, now.Location())
	}
	return Named(name, now)
}

func SameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
