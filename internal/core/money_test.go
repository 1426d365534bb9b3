package core

import (
	"errors"
	"testing"
)

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in    string
		cents int64
		ok    bool
	}{
		{"3.99", 399, true},
		{"3,99", 399, true},
		{"0", 0, true},
		{"0.00", 0, true},
		{"12", 1200, true},
		{".50", 50, true},
		{"3.994", 399, true}, // rounds down
		{"3.995", 400, true}, // rounds up
		{" 4.49 ", 449, true},
		{"", 0, false},
		{"-0.01", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		m, err := ParsePrice(tc.in)
		if tc.ok {
			if err != nil {
				t.Fatalf("ParsePrice(%q): unexpected error %v", tc.in, err)
			}
			if m.Cents != tc.cents {
				t.Fatalf("ParsePrice(%q) = %d, want %d", tc.in, m.Cents, tc.cents)
			}
			continue
		}
		if err == nil {
			t.Fatalf("ParsePrice(%q): expected error", tc.in)
		}
	}
}

func TestParsePriceNegativeSentinel(t *testing.T) {
	if _, err := ParsePrice("-1"); !errors.Is(err, ErrNegativePrice) {
		t.Fatalf("expected ErrNegativePrice, got %v", err)
	}
	if _, err := ParsePrice("x"); !errors.Is(err, ErrInvalidPrice) {
		t.Fatalf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestMoneyString(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{399, "3.99"},
		{0, "0.00"},
		{100, "1.00"},
		{5, "0.05"},
		{-1234, "-12.34"},
	}
	for _, tc := range cases {
		if got := (Money{Cents: tc.cents}).String(); got != tc.want {
			t.Fatalf("Money(%d).String() = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

func TestMoneyDecimal(t *testing.T) {
	d := Money{Cents: 424}.Decimal()
	if d.String() != "4.24" {
		t.Fatalf("got %s", d)
	}
}
