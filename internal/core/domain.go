package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical string representation of purchase dates.
const DateFormat = "2006-01-02"

type (
	// Date is a calendar date with day granularity, normalized to midnight UTC.
	Date struct {
		time.Time
	}

	// DateRange is an inclusive [From, To] date interval. A zero From or To
	// leaves that side of the interval open.
	DateRange struct {
		From Date
		To   Date
	}

	// Money is an exact amount in cents.
	Money struct {
		Cents int64
	}

	// PurchaseRecord is one logged grocery buy. Records are append-only:
	// once inserted they are never mutated, only removed by ID.
	PurchaseRecord struct {
		ID       int64
		ItemName string
		Price    Money
		Quantity decimal.Decimal
		Unit     string
		Store    string
		Date     Date
	}
)

// UnknownStore is the sentinel bucket for purchases recorded without a store,
// so grouping by store never produces an undefined group.
const UnknownStore = "unknown"

var (
	ErrEmptyItemName   = errors.New("empty item name")
	ErrNegativePrice   = errors.New("negative price")
	ErrInvalidPrice    = errors.New("invalid price")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidDate     = errors.New("invalid date")
	ErrInvalidRange    = errors.New("date range start is after end")
)

// NewDate creates a Date from year, month, day.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date.
func Today() Date {
	now := time.Now()
	return NewDate(now.Year(), int(now.Month()), now.Day())
}

// ParseDate parses an ISO date string (2006-01-02).
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, ErrInvalidDate)
	}
	return Date{Time: t}, nil
}

// String formats the date in its canonical form.
func (d Date) String() string {
	return d.Format(DateFormat)
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// Validate checks that the range is well formed. Open sides are allowed.
func (r DateRange) Validate() error {
	if r.From.IsZero() || r.To.IsZero() {
		return nil
	}
	if r.From.After(r.To.Time) {
		return fmt.Errorf("range %s..%s: %w", r.From, r.To, ErrInvalidRange)
	}
	return nil
}

// IsZero reports whether both sides of the range are open.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Contains reports whether the date falls inside the range, boundaries included.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From.Time) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To.Time) {
		return false
	}
	return true
}

func (m Money) Validate() error {
	if m.Cents < 0 {
		return ErrNegativePrice
	}
	return nil
}

// Validate checks the record invariants. A record that fails validation must
// never reach storage.
func (p PurchaseRecord) Validate() error {
	if strings.TrimSpace(p.ItemName) == "" {
		return ErrEmptyItemName
	}
	if err := p.Price.Validate(); err != nil {
		return fmt.Errorf("price %s: %w", p.Price, err)
	}
	if !p.Quantity.IsPositive() {
		return fmt.Errorf("quantity %s: %w", p.Quantity, ErrInvalidQuantity)
	}
	if err := p.Date.Validate(); err != nil {
		return err
	}
	return nil
}
