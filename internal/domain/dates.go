package domain

import (
	"strings"
	"time"
)

const DayLayout = "2006-01-02"

// DayOf truncates t to its UTC calendar day.
func DayOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDay accepts YYYY-MM-DD or an RFC 3339 timestamp.
func ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(DayLayout, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return DayOf(t), nil
}

func FormatDay(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// AddMonthsClamped moves t forward by n calendar months, keeping the day of
// month when possible and clamping to the last day otherwise (Jan 31 + 1 = Feb 28/29).
func AddMonthsClamped(t time.Time, n int) time.Time {
	t = DayOf(t)
	firstOfTarget := time.Date(t.Year(), t.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	day := t.Day()
	if day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, 0, 0, 0, 0, time.UTC)
}

// NextOccurrence returns the first date of the schedule anchored at anchor
// that falls after prev. Monthly and yearly steps are counted from the anchor,
// so a schedule on the 31st clamps in short months and returns to the 31st.
func NextOccurrence(anchor, prev time.Time, recurrence string) time.Time {
	anchor, prev = DayOf(anchor), DayOf(prev)
	if recurrence == RecurrenceWeekly {
		return prev.AddDate(0, 0, 7)
	}

	step := 1
	if recurrence == RecurrenceYearly {
		step = 12
	}
	elapsed := (prev.Year()-anchor.Year())*12 + int(prev.Month()) - int(anchor.Month())
	n := elapsed - elapsed%step
	if n < 0 {
		n = 0
	}
	next := AddMonthsClamped(anchor, n)
	for !next.After(prev) {
		n += step
		next = AddMonthsClamped(anchor, n)
	}
	return next
}
