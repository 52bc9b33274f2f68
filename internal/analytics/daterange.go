package analytics

import (
	"fmt"
	"strings"
	"time"

	"retailpulse/backend/internal/domain"
)

// MaxRangeDays bounds a single request window.
const MaxRangeDays = 3660

var dateLayouts = []string{
	domain.DateLayout,
	"2006/01/02",
	"20060102",
	"02-01-2006",
	"02/01/2006",
}

// Range is an inclusive window of calendar days in UTC.
type Range struct {
	Start time.Time
	End   time.Time
}

// RangeRequest carries the raw query parameters. Start and End win over
// Days; Days counts back from End (or today) inclusively.
type RangeRequest struct {
	Start string
	End   string
	Days  int
}

func NewRange(start, end time.Time) (Range, error) {
	start, end = Day(start), Day(end)
	if start.After(end) {
		return Range{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidDateRange, start.Format(domain.DateLayout), end.Format(domain.DateLayout))
	}
	r := Range{Start: start, End: end}
	if r.Len() > MaxRangeDays {
		return Range{}, fmt.Errorf("%w: window exceeds %d days", ErrInvalidDateRange, MaxRangeDays)
	}
	return r, nil
}

// ResolveRange converts request parameters into a concrete window.
func ResolveRange(req RangeRequest, defaultDays int, today time.Time) (Range, error) {
	end := Day(today)
	if strings.TrimSpace(req.End) != "" {
		parsed, err := ParseDate(req.End)
		if err != nil {
			return Range{}, err
		}
		end = parsed
	}

	if strings.TrimSpace(req.Start) != "" {
		start, err := ParseDate(req.Start)
		if err != nil {
			return Range{}, err
		}
		return NewRange(start, end)
	}

	days := req.Days
	if days <= 0 {
		days = defaultDays
	}
	if days <= 0 {
		days = 1
	}
	return NewRange(end.AddDate(0, 0, -(days - 1)), end)
}

func ParseDate(raw string) (time.Time, error) {
	value := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q", ErrInvalidDateRange, raw)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Len is the number of calendar days in the window.
func (r Range) Len() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Days enumerates every calendar day in ascending order.
func (r Range) Days() []time.Time {
	out := make([]time.Time, 0, r.Len())
	for d := r.Start; !d.After(r.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (r Range) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Split cuts the window into consecutive sub-windows of at most size days.
func (r Range) Split(size int) []Range {
	if size <= 0 {
		return []Range{r}
	}
	out := make([]Range, 0, r.Len()/size+1)
	for start := r.Start; !start.After(r.End); start = start.AddDate(0, 0, size) {
		end := start.AddDate(0, 0, size-1)
		if end.After(r.End) {
			end = r.End
		}
		out = append(out, Range{Start: start, End: end})
	}
	return out
}

func (r Range) String() string {
	return r.Start.Format(domain.DateLayout) + " ~ " + r.End.Format(domain.DateLayout)
}
