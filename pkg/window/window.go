// Package window enumerates calendar months as the harvest's unit of work.
package window

import (
	"fmt"
	"iter"
	"time"
)

// TimeWindow is one calendar month
type TimeWindow struct {
	Year  int
	Month int
}

// New returns the window for year and month
func New(year, month int) TimeWindow {
	return TimeWindow{Year: year, Month: month}
}

// Next returns the following month, rolling December into January
func (w TimeWindow) Next() TimeWindow {
	if w.Month >= 12 {
		return TimeWindow{Year: w.Year + 1, Month: 1}
	}
	return TimeWindow{Year: w.Year, Month: w.Month + 1}
}

// Before reports whether w precedes o
func (w TimeWindow) Before(o TimeWindow) bool {
	if w.Year != o.Year {
		return w.Year < o.Year
	}
	return w.Month < o.Month
}

// Valid reports whether the month is in 1..12
func (w TimeWindow) Valid() bool {
	return w.Month >= 1 && w.Month <= 12
}

// FirstDay is the first calendar day of the window
func (w TimeWindow) FirstDay() time.Time {
	return time.Date(w.Year, time.Month(w.Month), 1, 0, 0, 0, 0, time.UTC)
}

// LastDay is the last calendar day of the window, honouring leap years
func (w TimeWindow) LastDay() time.Time {
	return w.FirstDay().AddDate(0, 1, -1)
}

// String renders the window as YYYY-MM
func (w TimeWindow) String() string {
	return fmt.Sprintf("%04d-%02d", w.Year, w.Month)
}

// Parse reads the YYYY-MM form produced by String
func Parse(s string) (TimeWindow, error) {
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("invalid window %q (want YYYY-MM): %w", s, err)
	}
	return TimeWindow{Year: t.Year(), Month: int(t.Month())}, nil
}

// Range yields every month from start through December of endYear inclusive.
// The sequence is empty when start lies after endYear.
func Range(start TimeWindow, endYear int) iter.Seq[TimeWindow] {
	return func(yield func(TimeWindow) bool) {
		for w := start; w.Year <= endYear; w = w.Next() {
			if !yield(w) {
				return
			}
		}
	}
}
