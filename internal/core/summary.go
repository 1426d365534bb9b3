package core

import "github.com/shopspring/decimal"

// GroupBy selects the dimension aggregates are grouped on.
type GroupBy string

const (
	GroupByItem  GroupBy = "item"
	GroupByStore GroupBy = "store"
	GroupByMonth GroupBy = "month" // YYYY-MM buckets
)

// Valid reports whether g names a known grouping dimension.
func (g GroupBy) Valid() bool {
	switch g {
	case GroupByItem, GroupByStore, GroupByMonth:
		return true
	}
	return false
}

// PriceSummary is one aggregate row: price statistics for a single group
// (an item, a store, or a month).
type PriceSummary struct {
	Key          string // group value: item name, store, or YYYY-MM
	Count        int64
	Mean         decimal.Decimal
	Min          Money
	Max          Money
	Total        Money
	MeanPerUnit  decimal.Decimal // mean of price/quantity; zero when no quantities recorded
	LastPurchase Date
}

// TrendPoint is one observation in a price history.
type TrendPoint struct {
	Date  Date
	Price Money
	Store string
}

// TrendSeries is the chronological price history of a single item.
type TrendSeries struct {
	ItemName string
	Points   []TrendPoint
}

// StoreComparison is the per-store aggregate price of one item. Slices of
// these are ranked ascending by mean price, ties broken by store name.
type StoreComparison struct {
	Store string
	Count int64
	Mean  decimal.Decimal
	Min   Money
	Max   Money
}

// Distribution holds order statistics over the recorded prices of one item.
type Distribution struct {
	ItemName string
	Count    int64
	Min      Money
	P25      decimal.Decimal
	Median   decimal.Decimal
	P75      decimal.Decimal
	Max      Money
}

// Overview is the headline figures across all recorded purchases.
type Overview struct {
	Purchases   int64
	UniqueItems int64
	TotalSpent  Money
	MeanPrice   decimal.Decimal
}
