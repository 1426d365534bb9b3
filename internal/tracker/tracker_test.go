package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"grocery/internal/core"
	"grocery/internal/storage"

	"github.com/shopspring/decimal"
)

func newTestTracker(t *testing.T) *Tracker {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "grocery.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	tr := New(repo)
	t.Cleanup(func() { tr.Close() })
	return tr
}

func addMilk(t *testing.T, tr *Tracker, cents int64, store string, date core.Date) int64 {
	t.Helper()
	id, err := tr.AddItem(context.Background(), AddItemParams{
		ItemName: "Milk",
		Price:    core.Money{Cents: cents},
		Quantity: decimal.NewFromInt(1),
		Unit:     "gallon",
		Store:    store,
		Date:     date,
	})
	if err != nil {
		t.Fatalf("add milk: %v", err)
	}
	return id
}

func TestAddItemDefaults(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	id, err := tr.AddItem(ctx, AddItemParams{ItemName: "Bananas", Price: core.Money{Cents: 59}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if id <= 0 {
		t.Fatalf("expected positive id, got %d", id)
	}

	rows, err := tr.ListPurchases(ctx, ListQuery{ItemName: "Bananas"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.Store != core.UnknownStore {
		t.Fatalf("store = %q, want %q", got.Store, core.UnknownStore)
	}
	if !got.Quantity.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("quantity = %s, want 1", got.Quantity)
	}
	if got.Date != core.Today() {
		t.Fatalf("date = %s, want today", got.Date)
	}
}

func TestAddItemRejectsInvalidInput(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		params AddItemParams
		want   error
	}{
		{"negative price", AddItemParams{ItemName: "Milk", Price: core.Money{Cents: -1}}, core.ErrNegativePrice},
		{"negative quantity", AddItemParams{ItemName: "Milk", Price: core.Money{Cents: 399}, Quantity: decimal.NewFromInt(-1)}, core.ErrInvalidQuantity},
		{"empty name", AddItemParams{ItemName: "  ", Price: core.Money{Cents: 399}}, core.ErrEmptyItemName},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := tr.AddItem(ctx, tc.params); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	// Rejected input must leave the record count unchanged.
	ov, err := tr.Overview(ctx, core.DateRange{})
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if ov.Purchases != 0 {
		t.Fatalf("expected empty store after rejected inserts, got %d rows", ov.Purchases)
	}
}

func TestAddThenTrendRoundTrip(t *testing.T) {
	tr := newTestTracker(t)
	addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))

	series, err := tr.PriceTrend(context.Background(), "Milk", core.DateRange{})
	if err != nil {
		t.Fatalf("trend: %v", err)
	}
	if len(series.Points) != 1 {
		t.Fatalf("expected exactly 1 point, got %d", len(series.Points))
	}
	p := series.Points[0]
	if p.Price.Cents != 399 || p.Date != core.NewDate(2024, 1, 1) || p.Store != "Walmart" {
		t.Fatalf("point not preserved: %+v", p)
	}
}

func TestPriceSummaryWorkedExample(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))
	addMilk(t, tr, 449, "Target", core.NewDate(2024, 1, 15))

	rows, err := tr.PriceSummary(ctx, SummaryQuery{ItemName: "Milk"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 group, got %d", len(rows))
	}
	milk := rows[0]
	if milk.Key != "Milk" || milk.Count != 2 {
		t.Fatalf("unexpected group: %+v", milk)
	}
	if milk.Mean.String() != "4.24" {
		t.Fatalf("mean = %s, want 4.24", milk.Mean)
	}
	if milk.Min.Cents != 399 || milk.Max.Cents != 449 {
		t.Fatalf("min/max = %s/%s", milk.Min, milk.Max)
	}

	stores, err := tr.CompareStores(ctx, "Milk")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(stores) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(stores))
	}
	if stores[0].Store != "Walmart" || stores[0].Mean.String() != "3.99" {
		t.Fatalf("cheapest = %+v", stores[0])
	}
	if stores[1].Store != "Target" || stores[1].Mean.String() != "4.49" {
		t.Fatalf("second = %+v", stores[1])
	}
}

func TestCompareStoresReRanksOnCheaperInsert(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))
	addMilk(t, tr, 449, "Target", core.NewDate(2024, 1, 15))

	// A cheap purchase at Target drags its mean below Walmart's.
	addMilk(t, tr, 199, "Target", core.NewDate(2024, 2, 1))

	stores, err := tr.CompareStores(ctx, "Milk")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if stores[0].Store != "Target" {
		t.Fatalf("expected Target first after cheap insert, got %q", stores[0].Store)
	}
	if stores[0].Mean.String() != "3.24" {
		t.Fatalf("target mean = %s, want 3.24", stores[0].Mean)
	}
}

func TestPriceTrendNotFoundVsEmptyRange(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))

	if _, err := tr.PriceTrend(ctx, "Nonexistent Item", core.DateRange{}); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}

	series, err := tr.PriceTrend(ctx, "Milk", core.DateRange{
		From: core.NewDate(2025, 1, 1),
		To:   core.NewDate(2025, 12, 31),
	})
	if err != nil {
		t.Fatalf("known item with empty range must not fail: %v", err)
	}
	if len(series.Points) != 0 {
		t.Fatalf("expected empty series, got %d points", len(series.Points))
	}
}

func TestCompareStoresUnknownItem(t *testing.T) {
	tr := newTestTracker(t)
	if _, err := tr.CompareStores(context.Background(), "Caviar"); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got %v", err)
	}
}

func TestSummaryCountsMatchInserts(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))
	addMilk(t, tr, 449, "Target", core.NewDate(2024, 1, 15))
	addMilk(t, tr, 389, "Walmart", core.NewDate(2024, 2, 1))

	rows, err := tr.PriceSummary(ctx, SummaryQuery{GroupBy: core.GroupByStore, ItemName: "Milk"})
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	counts := map[string]int64{}
	for _, r := range rows {
		counts[r.Key] = r.Count
	}
	if counts["Walmart"] != 2 || counts["Target"] != 1 {
		t.Fatalf("unexpected counts: %v", counts)
	}

	january := core.DateRange{From: core.NewDate(2024, 1, 1), To: core.NewDate(2024, 1, 31)}
	rows, err = tr.PriceSummary(ctx, SummaryQuery{Range: january})
	if err != nil {
		t.Fatalf("ranged summary: %v", err)
	}
	if len(rows) != 1 || rows[0].Count != 2 {
		t.Fatalf("expected 2 January purchases, got %+v", rows)
	}
}

func TestPriceSummaryRejectsBadGroupBy(t *testing.T) {
	tr := newTestTracker(t)
	if _, err := tr.PriceSummary(context.Background(), SummaryQuery{GroupBy: core.GroupBy("aisle")}); !errors.Is(err, storage.ErrInvalidGroupBy) {
		t.Fatalf("expected ErrInvalidGroupBy, got %v", err)
	}
}

func TestPriceDistribution(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	addMilk(t, tr, 100, "Walmart", core.NewDate(2024, 1, 1))
	addMilk(t, tr, 200, "Walmart", core.NewDate(2024, 1, 8))
	addMilk(t, tr, 300, "Walmart", core.NewDate(2024, 1, 15))
	addMilk(t, tr, 400, "Walmart", core.NewDate(2024, 1, 22))

	dist, err := tr.PriceDistribution(ctx, "Milk", core.DateRange{})
	if err != nil {
		t.Fatalf("distribution: %v", err)
	}
	if dist.Count != 4 {
		t.Fatalf("count = %d", dist.Count)
	}
	if dist.Min.Cents != 100 || dist.Max.Cents != 400 {
		t.Fatalf("min/max = %s/%s", dist.Min, dist.Max)
	}
	if dist.Median.String() != "2.5" {
		t.Fatalf("median = %s", dist.Median)
	}
	if dist.P25.String() != "1.75" || dist.P75.String() != "3.25" {
		t.Fatalf("quartiles = %s/%s", dist.P25, dist.P75)
	}
}

func TestDeleteItem(t *testing.T) {
	tr := newTestTracker(t)
	ctx := context.Background()
	id := addMilk(t, tr, 399, "Walmart", core.NewDate(2024, 1, 1))

	if err := tr.DeleteItem(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tr.DeleteItem(ctx, id); !errors.Is(err, ErrPurchaseNotFound) {
		t.Fatalf("expected ErrPurchaseNotFound, got %v", err)
	}
}
