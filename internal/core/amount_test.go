package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestExtractAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"кофе 30000", "30000", true},
		{"50 000", "50000", true},
		{"такси 50 000", "50000", true},
		{"1 000 000 квартира", "1000000", true},
		{"50 000,25 зарплата", "50000.25", true},
		{"50,000.25 salary", "50000.25", true},
		{"50,000", "50000", true},
		{"50.000", "50000", true},
		{"50.000,25", "50000.25", true},
		{"300", "300", true},
		{"300.5", "300.5", true},
		{"300,5", "300.5", true},
		{"300,55 обед", "300.55", true},
		{"50 000 аренда", "50000", true},
		{"кофе 50\u202f000", "50000", true},
		{"кофе 50\u2009000", "50000", true},
		{"1\u202f000\u202f000,5", "1000000.5", true},
		{"  12  ", "12", true},
		{"обед 150 и такси 200", "150", true},
		{"no numbers here", "", false},
		{"", "", false},
		{"0", "", false},
		{"просто текст", "", false},
	}
	for _, tc := range cases {
		got, ok := ExtractAmount(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q expected ok=%v, got %v (value %s)", tc.in, tc.ok, ok, got)
		}
		if tc.ok && !got.Equal(decimal.RequireFromString(tc.out)) {
			t.Fatalf("%q expected %s, got %s", tc.in, tc.out, got)
		}
	}
}

func TestExtractAmountGroupedBeatsPlain(t *testing.T) {
	got, ok := ExtractAmount("ужин 50 000")
	if !ok || got.String() != "50000" {
		t.Fatalf("expected 50000, got %s (ok=%v)", got, ok)
	}
}

func TestExtractAmountZeroFallsThrough(t *testing.T) {
	// "0 000" is a zero space-grouped match, the plain pattern then finds "0"
	// as well, so nothing positive is left.
	if v, ok := ExtractAmount("0 000"); ok {
		t.Fatalf("expected no amount, got %s", v)
	}
	// zero comma-grouped falls through to the plain pattern, whose first match is "0,00"
	if v, ok := ExtractAmount("0,000"); ok {
		t.Fatalf("expected no amount, got %s", v)
	}
	// the space-grouped zero is skipped and the dot-grouped value is used
	got, ok := ExtractAmount("0 000 и 5.000")
	if !ok || got.String() != "5000" {
		t.Fatalf("expected 5000, got %s (ok=%v)", got, ok)
	}
}
