package core

import "testing"

func cents(vals ...int64) []Money {
	out := make([]Money, len(vals))
	for i, v := range vals {
		out[i] = Money{Cents: v}
	}
	return out
}

func TestQuantile(t *testing.T) {
	prices := cents(100, 200, 300, 400)

	cases := []struct {
		q    float64
		want string
	}{
		{0, "1"},
		{0.25, "1.75"},
		{0.5, "2.5"},
		{0.75, "3.25"},
		{1, "4"},
	}
	for _, tc := range cases {
		if got := Quantile(prices, tc.q); got.String() != tc.want {
			t.Fatalf("Quantile(%.2f) = %s, want %s", tc.q, got, tc.want)
		}
	}
}

func TestQuantileEdgeCases(t *testing.T) {
	if !Quantile(nil, 0.5).IsZero() {
		t.Fatalf("empty input should yield zero")
	}
	if got := Quantile(cents(399), 0.5); got.String() != "3.99" {
		t.Fatalf("single element median = %s", got)
	}
	if got := Quantile(cents(100, 300), 0.5); got.String() != "2" {
		t.Fatalf("two element median = %s", got)
	}
}
