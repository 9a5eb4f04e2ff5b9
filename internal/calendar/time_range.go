package calendar

import (
	"errors"
	"time"
)

var ErrInvalidDate = errors.New("invalid date, expected YYYY-MM-DD")

// DateLayout — формат даты в query-параметрах.
const DateLayout = "2006-01-02"

// TimeRange представляет временной интервал [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Duration — длительность интервала.
func (tr TimeRange) Duration() time.Duration {
	return tr.End.Sub(tr.Start)
}

// Contains — t лежит в [Start, End).
func (tr TimeRange) Contains(t time.Time) bool {
	return !t.Before(tr.Start) && t.Before(tr.End)
}

// DayWindow возвращает сутки [полночь date в loc, +24h) в UTC.
// loc == nil означает UTC.
func DayWindow(date time.Time, loc *time.Location) TimeRange {
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, loc)
	return TimeRange{
		Start: start.UTC(),
		End:   start.Add(24 * time.Hour).UTC(),
	}
}

// ParseDate разбирает дату вида 2025-01-31.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}
