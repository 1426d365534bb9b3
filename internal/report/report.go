// Package report turns tracker query results into a markdown document.
// It is a pure presentation adapter: data in, rendered text out, no database
// access of its own.
package report

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"grocery/internal/core"
	"grocery/internal/tracker"

	"github.com/shopspring/decimal"
)

//go:embed templates/*.md
var templates embed.FS

// changeThreshold is the minimum absolute price change, in percent, worth
// calling out as an insight.
var changeThreshold = decimal.NewFromInt(5)

// Item is the per-item section of a report.
type Item struct {
	Name    string
	Summary core.PriceSummary
	Trend   core.TrendSeries
	Stores  []core.StoreComparison
}

// Data is everything a rendered report contains.
type Data struct {
	Period    core.DateRange
	Generated time.Time
	Overview  core.Overview
	Items     []Item
	Insights  []string
}

// Source is the tracker surface a report is built from.
type Source interface {
	Overview(ctx context.Context, dr core.DateRange) (core.Overview, error)
	PriceSummary(ctx context.Context, q tracker.SummaryQuery) ([]core.PriceSummary, error)
	PriceTrend(ctx context.Context, itemName string, dr core.DateRange) (core.TrendSeries, error)
	CompareStores(ctx context.Context, itemName string) ([]core.StoreComparison, error)
}

// Build assembles report data from the tracker for the given items. An empty
// items slice means every recorded item. Insights (price drift over the
// period, cheapest store per item) are computed here so the template stays a
// plain layout.
func Build(ctx context.Context, t Source, items []string, period core.DateRange) (Data, error) {
	data := Data{
		Period:    period,
		Generated: time.Now(),
	}

	ov, err := t.Overview(ctx, period)
	if err != nil {
		return Data{}, fmt.Errorf("build report: %w", err)
	}
	data.Overview = ov

	summaries, err := t.PriceSummary(ctx, tracker.SummaryQuery{GroupBy: core.GroupByItem, Range: period})
	if err != nil {
		return Data{}, fmt.Errorf("build report: %w", err)
	}

	wanted := map[string]bool{}
	for _, name := range items {
		wanted[strings.ToLower(name)] = true
	}

	for _, s := range summaries {
		if len(wanted) > 0 && !wanted[strings.ToLower(s.Key)] {
			continue
		}
		item := Item{Name: s.Key, Summary: s}

		if item.Trend, err = t.PriceTrend(ctx, s.Key, period); err != nil {
			return Data{}, fmt.Errorf("build report for %q: %w", s.Key, err)
		}
		if item.Stores, err = t.CompareStores(ctx, s.Key); err != nil {
			return Data{}, fmt.Errorf("build report for %q: %w", s.Key, err)
		}

		data.Items = append(data.Items, item)
		data.Insights = append(data.Insights, insights(item)...)
	}

	return data, nil
}

// insights derives the callouts for one item: price drift across the period
// when it exceeds the threshold, and the cheapest store when more than one
// store sold the item.
func insights(item Item) []string {
	var out []string

	if pts := item.Trend.Points; len(pts) > 1 {
		first := pts[0].Price.Decimal()
		last := pts[len(pts)-1].Price.Decimal()
		if first.IsPositive() {
			change := last.Sub(first).Div(first).Mul(decimal.NewFromInt(100)).Round(1)
			if change.Abs().GreaterThan(changeThreshold) {
				direction := "increased"
				if change.IsNegative() {
					direction = "decreased"
				}
				out = append(out, fmt.Sprintf("%s: price has %s by %s%% over the period", item.Name, direction, change.Abs()))
			}
		}
	}

	if len(item.Stores) > 1 {
		best := item.Stores[0]
		out = append(out, fmt.Sprintf("%s: best average price at %s ($%s)", item.Name, best.Store, money(best.Mean)))
	}

	return out
}

// money formats an aggregate decimal the way prices are shown, with two
// decimal places.
func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

var funcs = template.FuncMap{
	"money": money,
}

// Render produces the markdown document for the report data.
func Render(data Data) (string, error) {
	raw, err := templates.ReadFile("templates/report.md")
	if err != nil {
		return "", fmt.Errorf("read report template: %w", err)
	}
	tmpl, err := template.New("report").Funcs(funcs).Parse(string(raw))
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}

	// The template prints the period; make the open-ended cases readable.
	view := struct {
		Period    string
		Generated string
		Overview  core.Overview
		Items     []Item
		Insights  []string
	}{
		Period:    formatPeriod(data.Period),
		Generated: data.Generated.Format("2006-01-02 15:04:05"),
		Overview:  data.Overview,
		Items:     data.Items,
		Insights:  data.Insights,
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, view); err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return b.String(), nil
}

func formatPeriod(r core.DateRange) string {
	switch {
	case r.IsZero():
		return "all recorded purchases"
	case r.From.IsZero():
		return "through " + r.To.String()
	case r.To.IsZero():
		return "from " + r.From.String()
	default:
		return r.From.String() + " to " + r.To.String()
	}
}

// ErrNoData reports a report request over a period with no matching purchases.
var ErrNoData = errors.New("no purchases in the report period")

// Generate builds and renders in one step.
func Generate(ctx context.Context, t Source, items []string, period core.DateRange) (string, error) {
	data, err := Build(ctx, t, items, period)
	if err != nil {
		return "", err
	}
	if len(data.Items) == 0 {
		return "", ErrNoData
	}
	return Render(data)
}
