package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	ThisMonth Period = "this_month"
	LastMonth Period = "last_month"
	Last7Days Period = "last_7_days"
)

// DateLayout is the calendar date format exchanged with clients.
const DateLayout = "2006-01-02"

type (
	// Period is a coarse named time window resolved relative to a reference date.
	Period string

	// Date is a calendar day at UTC midnight.
	Date struct {
		time.Time
	}

	// DateInterval is an inclusive range of calendar days in UTC.
	DateInterval struct {
		From Date
		To   Date
	}
)

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the UTC calendar day of t.
func DateOf(t time.Time) Date {
	y, m, d := t.UTC().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return DateOf(t), nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

// AddDays returns the date n days later (earlier for negative n).
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// Start is the lower bound instant of the interval (From at 00:00 UTC).
func (i DateInterval) Start() time.Time {
	return i.From.Time
}

// End is the upper bound instant of the interval (To at 23:59:59.999 UTC),
// so anything recorded during the To day is included.
func (i DateInterval) End() time.Time {
	return i.To.Time.Add(24*time.Hour - time.Millisecond)
}

// Days lists every calendar day of the interval in ascending order.
func (i DateInterval) Days() []Date {
	var days []Date
	for d := i.From; !d.After(i.To.Time); d = d.AddDays(1) {
		days = append(days, d)
	}
	return days
}

// ParsePeriod maps an arbitrary key to a Period, defaulting to ThisMonth.
func ParsePeriod(s string) Period {
	switch p := Period(strings.TrimSpace(s)); p {
	case ThisMonth, LastMonth, Last7Days:
		return p
	}
	return ThisMonth
}

// ResolveDateRange converts a period into a concrete interval relative to today.
// Unknown periods resolve like ThisMonth.
func ResolveDateRange(period Period, today Date) DateInterval {
	year, month, _ := today.Date()

	switch period {
	case LastMonth:
		// time.Date normalizes month 0 to December of the previous year,
		// and day 0 of the current month to the last day of the previous one.
		from := DateOf(time.Date(year, month-1, 1, 0, 0, 0, 0, time.UTC))
		to := DateOf(time.Date(year, month, 0, 0, 0, 0, 0, time.UTC))
		return DateInterval{From: from, To: to}
	case Last7Days:
		return DateInterval{From: today.AddDays(-6), To: today}
	default:
		return DateInterval{From: NewDate(year, int(month), 1), To: today}
	}
}

// ResolveDateRangeString resolves period against the client's "today"
// (YYYY-MM-DD). An empty todayStr means the current UTC date according to now.
// Callers should pass the client's local date to avoid mismatches near midnight.
func ResolveDateRangeString(period, todayStr string, now func() time.Time) (DateInterval, error) {
	var today Date
	if strings.TrimSpace(todayStr) == "" {
		if now == nil {
			now = time.Now
		}
		today = DateOf(now())
	} else {
		d, err := ParseDate(todayStr)
		if err != nil {
			return DateInterval{}, err
		}
		today = d
	}
	return ResolveDateRange(ParsePeriod(period), today), nil
}
