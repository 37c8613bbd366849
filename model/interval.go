package model

import "time"

const DateLayout = "2006-01-02"

// Interval is a closed range of calendar days, inclusive on both ends.
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start, end time.Time) Interval {
	return Interval{Start: Day(start), End: Day(end)}
}

// Day truncates t to midnight UTC of its calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// Valid requires a strictly positive length; zero-length stays are rejected.
func (i Interval) Valid() bool { return i.Start.Before(i.End) }

// Overlaps reports whether a and b share at least one day. A range ending
// on day X and another starting on day X overlap.
func Overlaps(a, b Interval) bool {
	return !a.Start.After(b.End) && !a.End.Before(b.Start)
}

func (i Interval) Contains(day time.Time) bool {
	day = Day(day)
	return !day.Before(i.Start) && !day.After(i.End)
}

// Clip returns the part of i inside w, and false when they do not overlap.
func (i Interval) Clip(w Interval) (Interval, bool) {
	if !Overlaps(i, w) {
		return Interval{}, false
	}
	out := i
	if out.Start.Before(w.Start) {
		out.Start = w.Start
	}
	if out.End.After(w.End) {
		out.End = w.End
	}
	return out, true
}

// Days lists every day from Start to End inclusive.
func (i Interval) Days() []time.Time {
	if i.End.Before(i.Start) {
		return nil
	}
	var out []time.Time
	for d := i.Start; !d.After(i.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

func (i Interval) String() string {
	return FormatDate(i.Start) + ".." + FormatDate(i.End)
}
