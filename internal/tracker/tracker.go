// Package tracker is the domain facade over the storage accessor. It is the
// only surface application code calls: it applies defaults, validates input
// before anything reaches storage, and returns plain core types.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"grocery/internal/core"
	"grocery/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	// ErrItemNotFound reports a trend or comparison request for an item that
	// was never recorded. An item with records outside the requested range is
	// not an error; it yields an empty result.
	ErrItemNotFound = errors.New("item never recorded")

	// ErrPurchaseNotFound reports a delete for an id with no row.
	ErrPurchaseNotFound = errors.New("purchase not found")
)

type Tracker struct {
	repo *storage.SQLiteRepository
}

func New(repo *storage.SQLiteRepository) *Tracker {
	return &Tracker{repo: repo}
}

func (t *Tracker) Close() error {
	if t.repo != nil {
		return t.repo.Close()
	}
	return nil
}

// AddItemParams carries the caller-supplied fields of a new purchase.
// A zero-valued Quantity, Date, or empty Store means the field was omitted:
// quantity defaults to 1, date to today, store to the "unknown" bucket.
// A zero-valued Quantity is indistinguishable from omitted here, so callers
// taking an explicit quantity from user input must reject non-positive
// values before building the params.
type AddItemParams struct {
	ItemName string
	Price    core.Money
	Quantity decimal.Decimal
	Unit     string
	Store    string
	Date     core.Date
}

// AddItem validates and appends one purchase record, returning the assigned id.
func (t *Tracker) AddItem(ctx context.Context, params AddItemParams) (int64, error) {
	rec := core.PurchaseRecord{
		ItemName: params.ItemName,
		Price:    params.Price,
		Quantity: params.Quantity,
		Unit:     params.Unit,
		Store:    params.Store,
		Date:     params.Date,
	}
	if rec.Quantity.IsZero() {
		rec.Quantity = decimal.NewFromInt(1)
	}
	if rec.Store == "" {
		rec.Store = core.UnknownStore
	}
	if rec.Date.IsZero() {
		rec.Date = core.Today()
	}

	if err := rec.Validate(); err != nil {
		return 0, fmt.Errorf("add %q: %w", params.ItemName, err)
	}

	id, err := t.repo.InsertPurchase(ctx, rec)
	if err != nil {
		return 0, fmt.Errorf("add %q: %w", params.ItemName, err)
	}
	return id, nil
}

// SummaryQuery selects the grouping dimension and filters for PriceSummary.
// An empty GroupBy defaults to grouping by item.
type SummaryQuery struct {
	GroupBy  core.GroupBy
	ItemName string
	Store    string
	Range    core.DateRange
}

// PriceSummary returns per-group price aggregates, ranked by mean price
// ascending with the group key breaking ties.
func (t *Tracker) PriceSummary(ctx context.Context, q SummaryQuery) ([]core.PriceSummary, error) {
	groupBy := q.GroupBy
	if groupBy == "" {
		groupBy = core.GroupByItem
	}
	rows, err := t.repo.QueryAggregate(ctx, groupBy, storage.Filter{
		ItemName: q.ItemName,
		Store:    q.Store,
		Range:    q.Range,
	})
	if err != nil {
		return nil, fmt.Errorf("price summary: %w", err)
	}
	return rows, nil
}

// PriceTrend returns the chronological price history of one item.
// An item that was never recorded fails with ErrItemNotFound; an item whose
// records all fall outside the range yields a series with no points.
func (t *Tracker) PriceTrend(ctx context.Context, itemName string, dr core.DateRange) (core.TrendSeries, error) {
	if err := t.requireItem(ctx, itemName); err != nil {
		return core.TrendSeries{}, err
	}
	points, err := t.repo.QuerySeries(ctx, itemName, dr)
	if err != nil {
		return core.TrendSeries{}, fmt.Errorf("price trend for %q: %w", itemName, err)
	}
	return core.TrendSeries{ItemName: itemName, Points: points}, nil
}

// CompareStores ranks the stores that sold one item by ascending mean price,
// ties broken by store name.
func (t *Tracker) CompareStores(ctx context.Context, itemName string) ([]core.StoreComparison, error) {
	if err := t.requireItem(ctx, itemName); err != nil {
		return nil, err
	}
	rows, err := t.repo.QueryAggregate(ctx, core.GroupByStore, storage.Filter{ItemName: itemName})
	if err != nil {
		return nil, fmt.Errorf("compare stores for %q: %w", itemName, err)
	}
	out := make([]core.StoreComparison, len(rows))
	for i, r := range rows {
		out[i] = core.StoreComparison{
			Store: r.Key,
			Count: r.Count,
			Mean:  r.Mean,
			Min:   r.Min,
			Max:   r.Max,
		}
	}
	return out, nil
}

// PriceDistribution returns order statistics over one item's recorded prices.
func (t *Tracker) PriceDistribution(ctx context.Context, itemName string, dr core.DateRange) (core.Distribution, error) {
	if err := t.requireItem(ctx, itemName); err != nil {
		return core.Distribution{}, err
	}
	prices, err := t.repo.QueryPrices(ctx, itemName, dr)
	if err != nil {
		return core.Distribution{}, fmt.Errorf("price distribution for %q: %w", itemName, err)
	}
	dist := core.Distribution{ItemName: itemName, Count: int64(len(prices))}
	if len(prices) == 0 {
		return dist, nil
	}
	dist.Min = prices[0]
	dist.Max = prices[len(prices)-1]
	dist.P25 = core.Quantile(prices, 0.25)
	dist.Median = core.Quantile(prices, 0.5)
	dist.P75 = core.Quantile(prices, 0.75)
	return dist, nil
}

// ListQuery filters purchase listings.
type ListQuery struct {
	ItemName string
	Store    string
	Range    core.DateRange
}

// ListPurchases returns matching purchase records, newest first.
func (t *Tracker) ListPurchases(ctx context.Context, q ListQuery) ([]core.PurchaseRecord, error) {
	rows, err := t.repo.ListPurchases(ctx, storage.Filter{
		ItemName: q.ItemName,
		Store:    q.Store,
		Range:    q.Range,
	})
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	return rows, nil
}

// Overview returns the headline totals, optionally restricted to a range.
func (t *Tracker) Overview(ctx context.Context, dr core.DateRange) (core.Overview, error) {
	ov, err := t.repo.QueryOverview(ctx, storage.Filter{Range: dr})
	if err != nil {
		return core.Overview{}, fmt.Errorf("overview: %w", err)
	}
	return ov, nil
}

// DeleteItem removes one purchase by id.
func (t *Tracker) DeleteItem(ctx context.Context, id int64) error {
	deleted, err := t.repo.DeletePurchase(ctx, id)
	if err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	if !deleted {
		return fmt.Errorf("purchase %d: %w", id, ErrPurchaseNotFound)
	}
	return nil
}

func (t *Tracker) requireItem(ctx context.Context, itemName string) error {
	exists, err := t.repo.ItemExists(ctx, itemName)
	if err != nil {
		return fmt.Errorf("check item %q: %w", itemName, err)
	}
	if !exists {
		slog.DebugContext(ctx, "Item lookup miss", "item", itemName)
		return fmt.Errorf("item %q: %w", itemName, ErrItemNotFound)
	}
	return nil
}
