package core

import (
	"testing"
	"time"
)

func TestResolveDateRange(t *testing.T) {
	cases := []struct {
		name     string
		period   Period
		today    Date
		from, to string
	}{
		{"this month", ThisMonth, NewDate(2025, 2, 15), "2025-02-01", "2025-02-15"},
		{"this month first day", ThisMonth, NewDate(2025, 3, 1), "2025-03-01", "2025-03-01"},
		{"last month across year", LastMonth, NewDate(2025, 1, 10), "2024-12-01", "2024-12-31"},
		{"last month leap february", LastMonth, NewDate(2024, 3, 31), "2024-02-01", "2024-02-29"},
		{"last month february", LastMonth, NewDate(2025, 3, 5), "2025-02-01", "2025-02-28"},
		{"last month thirty days", LastMonth, NewDate(2025, 5, 31), "2025-04-01", "2025-04-30"},
		{"last 7 days", Last7Days, NewDate(2025, 2, 10), "2025-02-04", "2025-02-10"},
		{"last 7 days across month", Last7Days, NewDate(2025, 3, 2), "2025-02-24", "2025-03-02"},
		{"unknown falls back", Period("quarter"), NewDate(2025, 2, 15), "2025-02-01", "2025-02-15"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ResolveDateRange(tc.period, tc.today)
			if got.From.String() != tc.from || got.To.String() != tc.to {
				t.Fatalf("expected %s..%s, got %s..%s", tc.from, tc.to, got.From, got.To)
			}
			if got.From.After(got.To.Time) {
				t.Fatalf("from after to: %s..%s", got.From, got.To)
			}
		})
	}
}

func TestResolveDateRangeLast7DaysIsSevenDays(t *testing.T) {
	got := ResolveDateRange(Last7Days, NewDate(2024, 1, 3))
	if n := len(got.Days()); n != 7 {
		t.Fatalf("expected 7 days, got %d", n)
	}
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]Period{
		"this_month":  ThisMonth,
		"last_month":  LastMonth,
		"last_7_days": Last7Days,
		"":            ThisMonth,
		"last_year":   ThisMonth,
	} {
		if got := ParsePeriod(in); got != want {
			t.Fatalf("%q expected %s, got %s", in, want, got)
		}
	}
}

func TestResolveDateRangeString(t *testing.T) {
	now := func() time.Time { return time.Date(2025, 2, 15, 23, 30, 0, 0, time.UTC) }

	got, err := ResolveDateRangeString("last_7_days", "", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.From.String() != "2025-02-09" || got.To.String() != "2025-02-15" {
		t.Fatalf("unexpected interval %s..%s", got.From, got.To)
	}

	got, err = ResolveDateRangeString("this_month", "2025-03-04", now)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.From.String() != "2025-03-01" || got.To.String() != "2025-03-04" {
		t.Fatalf("client date should win, got %s..%s", got.From, got.To)
	}

	if _, err := ResolveDateRangeString("this_month", "15.02.2025", now); err == nil {
		t.Fatalf("expected error for malformed date")
	}
}

func TestDateIntervalBounds(t *testing.T) {
	i := DateInterval{From: NewDate(2025, 2, 1), To: NewDate(2025, 2, 15)}
	if !i.Start().Equal(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected start %s", i.Start())
	}
	late := time.Date(2025, 2, 15, 23, 59, 59, 0, time.UTC)
	if i.End().Before(late) {
		t.Fatalf("end %s should include %s", i.End(), late)
	}
	if !i.End().Before(time.Date(2025, 2, 16, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("end %s should exclude the next day", i.End())
	}
	if n := len(i.Days()); n != 15 {
		t.Fatalf("expected 15 days, got %d", n)
	}
}
