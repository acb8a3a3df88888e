package models

import (
	"sort"
	"strings"
	"time"
)

// Period is the bucket granularity of the time-series chart
type Period string

const (
	PeriodMonth   Period = "month"
	PeriodQuarter Period = "quarter"
	PeriodYear    Period = "year"
)

// Periods lists the selectable periods in display order
var Periods = []Period{PeriodMonth, PeriodQuarter, PeriodYear}

// ParsePeriod maps user input to a Period, falling back to month
func ParsePeriod(s string) Period {
	switch Period(strings.ToLower(strings.TrimSpace(s))) {
	case PeriodQuarter:
		return PeriodQuarter
	case PeriodYear:
		return PeriodYear
	default:
		return PeriodMonth
	}
}

// Label returns the human-readable name of the period
func (p Period) Label() string {
	switch p {
	case PeriodQuarter:
		return "Quarter"
	case PeriodYear:
		return "Year"
	default:
		return "Month"
	}
}

// BucketEnd returns the last calendar day of the period containing t
func (p Period) BucketEnd(t time.Time) time.Time {
	y, m, _ := t.Date()
	switch p {
	case PeriodQuarter:
		endMonth := ((int(m)-1)/3)*3 + 3
		return time.Date(y, time.Month(endMonth)+1, 0, 0, 0, 0, 0, time.UTC)
	case PeriodYear:
		return time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC)
	default:
		return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC)
	}
}

// NextBucketEnd returns the end of the period following the one ending at end
func (p Period) NextBucketEnd(end time.Time) time.Time {
	return p.BucketEnd(end.AddDate(0, 0, 1))
}

// Selection is the user's current view state
type Selection struct {
	Period     Period   `json:"period"`
	Categories []string `json:"categories"`
}

// DefaultSelection is monthly with no category filter
func DefaultSelection() Selection {
	return Selection{Period: PeriodMonth}
}

// IsSelected reports whether the category is part of the filter
func (s Selection) IsSelected(category string) bool {
	for _, c := range s.Categories {
		if c == category {
			return true
		}
	}
	return false
}

// FilterKey identifies the category filter independent of order
func (s Selection) FilterKey() string {
	cats := make([]string, len(s.Categories))
	copy(cats, s.Categories)
	sort.Strings(cats)
	return strings.Join(cats, "\x1f")
}

// Key identifies the whole selection
func (s Selection) Key() string {
	return string(s.Period) + "\x1e" + s.FilterKey()
}
