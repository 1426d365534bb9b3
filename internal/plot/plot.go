// Package plot renders tracker query results as self-contained HTML charts.
// Like report, it is a pure presentation adapter over query results.
package plot

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"grocery/internal/core"
)

// Trend renders a price-over-time line chart for one item.
func Trend(w io.Writer, series core.TrendSeries) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Price Trend: %s", series.ItemName),
			Subtitle: "price per purchase over time",
		}),
	)

	dates := make([]string, len(series.Points))
	values := make([]opts.LineData, len(series.Points))
	for i, p := range series.Points {
		dates[i] = p.Date.String()
		values[i] = opts.LineData{Value: p.Price.Decimal().InexactFloat64(), Name: p.Store}
	}

	line.SetXAxis(dates).AddSeries("price", values)
	if err := line.Render(w); err != nil {
		return fmt.Errorf("render trend chart for %q: %w", series.ItemName, err)
	}
	return nil
}

// StoreComparison renders a mean-price-per-store bar chart for one item.
func StoreComparison(w io.Writer, itemName string, stores []core.StoreComparison) error {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Store Comparison: %s", itemName),
			Subtitle: "mean price per store, cheapest first",
		}),
	)

	names := make([]string, len(stores))
	values := make([]opts.BarData, len(stores))
	for i, s := range stores {
		names[i] = s.Store
		values[i] = opts.BarData{Value: s.Mean.InexactFloat64()}
	}

	bar.SetXAxis(names).AddSeries("mean price", values)
	if err := bar.Render(w); err != nil {
		return fmt.Errorf("render store chart for %q: %w", itemName, err)
	}
	return nil
}

// Distribution renders a box plot of price order statistics per item.
func Distribution(w io.Writer, dists []core.Distribution) error {
	box := charts.NewBoxPlot()
	box.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Price Distribution",
			Subtitle: "min, quartiles, and max per item",
		}),
	)

	names := make([]string, len(dists))
	values := make([]opts.BoxPlotData, len(dists))
	for i, d := range dists {
		names[i] = d.ItemName
		values[i] = opts.BoxPlotData{Value: []interface{}{
			d.Min.Decimal().InexactFloat64(),
			d.P25.InexactFloat64(),
			d.Median.InexactFloat64(),
			d.P75.InexactFloat64(),
			d.Max.Decimal().InexactFloat64(),
		}}
	}

	box.SetXAxis(names).AddSeries("price", values)
	if err := box.Render(w); err != nil {
		return fmt.Errorf("render distribution chart: %w", err)
	}
	return nil
}
