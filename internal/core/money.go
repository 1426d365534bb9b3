// Package core provides the purchase domain model shared by the storage
// accessor and the tracker facade.
//
// This file contains price parsing and formatting. Prices are held as cents
// to keep arithmetic exact; decimal values only appear in derived aggregates.
package core

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// ParsePrice converts a decimal price string to cents with half-up rounding
// on the third decimal place.
//
// It accepts both dot (3.99) and comma (3,99) decimal separators. Zero is a
// valid price (free items, coupons); negative values are rejected.
//
// Examples:
//
//	ParsePrice("3.99")  -> 399, nil
//	ParsePrice("3,99")  -> 399, nil
//	ParsePrice("3.994") -> 399, nil (rounds down)
//	ParsePrice("3.995") -> 400, nil (rounds up)
func ParsePrice(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, fmt.Errorf("empty price: %w", ErrInvalidPrice)
	}
	// Normalize decimal comma to dot
	s = strings.ReplaceAll(s, ",", ".")
	if strings.HasPrefix(s, "-") {
		return Money{}, fmt.Errorf("price %q: %w", s, ErrNegativePrice)
	}
	s = strings.TrimPrefix(s, "+")
	parts := strings.Split(s, ".")
	if len(parts) > 2 {
		return Money{}, fmt.Errorf("malformed price %q: %w", s, ErrInvalidPrice)
	}
	intPart := parts[0]
	fracPart := ""
	if len(parts) == 2 {
		fracPart = parts[1]
	}
	if intPart == "" {
		intPart = "0"
	}
	for _, r := range intPart + fracPart {
		if !unicode.IsDigit(r) {
			return Money{}, fmt.Errorf("malformed price %q: %w", s, ErrInvalidPrice)
		}
	}
	iv, err := strconv.ParseInt(intPart, 10, 64)
	if err != nil {
		return Money{}, fmt.Errorf("malformed price %q: %w", s, ErrInvalidPrice)
	}
	// Prevent overflow when multiplying by 100
	const maxSafeInt64 = (1<<63 - 1) / 100
	if iv > maxSafeInt64 {
		return Money{}, fmt.Errorf("price %q out of range: %w", s, ErrInvalidPrice)
	}
	// Take the first two fractional digits, half-up rounding on the third
	var fracCents int64
	if len(fracPart) > 0 {
		fracCents = int64(fracPart[0]-'0') * 10
		if len(fracPart) > 1 {
			fracCents += int64(fracPart[1] - '0')
			if len(fracPart) > 2 && fracPart[2] >= '5' {
				fracCents++
			}
		}
	}
	return Money{Cents: iv*100 + fracCents}, nil
}

// Decimal returns the amount as an exact decimal in currency units.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats the amount in currency units, e.g. "3.99".
func (m Money) String() string {
	neg := m.Cents < 0
	c := m.Cents
	if neg {
		c = -c
	}
	s := strconv.FormatInt(c/100, 10) + "." + fmt.Sprintf("%02d", c%100)
	if neg {
		return "-" + s
	}
	return s
}
