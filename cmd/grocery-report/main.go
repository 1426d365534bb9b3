// Command grocery-report renders a markdown price report, optionally with
// chart files, from a grocery database.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"grocery/internal/config"
	"grocery/internal/core"
	applog "grocery/internal/log"
	"grocery/internal/plot"
	"grocery/internal/report"
	"grocery/internal/storage"
	"grocery/internal/tracker"

	"github.com/charmbracelet/glamour"
	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

func main() {
	_ = godotenv.Load()

	logger := applog.New("grocery-report", applog.LevelFromEnv())
	applog.SetDefault(logger)

	var (
		dbPath    = flag.String("db", "", "database path (default taken from GROCERY_DB_PATH)")
		items     = flag.String("items", "", "comma-separated item names; empty means all")
		from      = flag.String("from", "", "start date, inclusive (YYYY-MM-DD)")
		to        = flag.String("to", "", "end date, inclusive (YYYY-MM-DD)")
		out       = flag.String("o", "", "write markdown to this file instead of stdout")
		chartsDir = flag.String("charts", "", "also write per-item trend charts into this directory")
		pretty    = flag.Bool("pretty", false, "render markdown for the terminal")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *dbPath, *items, *from, *to, *out, *chartsDir, *pretty); err != nil {
		fmt.Fprintln(os.Stderr, "grocery-report:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, dbPath, items, from, to, out, chartsDir string, pretty bool) error {
	if dbPath == "" {
		dbPath = config.Load().DBPath
	}

	period, err := parsePeriod(from, to)
	if err != nil {
		return err
	}

	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	tr := tracker.New(repo)
	defer tr.Close()

	wanted := splitItems(items)

	md, err := report.Generate(ctx, tr, wanted, period)
	if err != nil {
		return err
	}

	if chartsDir != "" {
		if err := writeCharts(ctx, tr, wanted, period, chartsDir); err != nil {
			return err
		}
	}

	if out != "" {
		if err := os.WriteFile(out, []byte(md), 0644); err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		return nil
	}

	if pretty {
		rendered, err := glamour.Render(md, "auto")
		if err != nil {
			return fmt.Errorf("rendering markdown: %w", err)
		}
		fmt.Print(rendered)
		return nil
	}

	fmt.Print(md)
	return nil
}

func parsePeriod(from, to string) (core.DateRange, error) {
	var period core.DateRange
	if from != "" {
		d, err := core.ParseDate(from)
		if err != nil {
			return core.DateRange{}, err
		}
		period.From = d
	}
	if to != "" {
		d, err := core.ParseDate(to)
		if err != nil {
			return core.DateRange{}, err
		}
		period.To = d
	}
	if err := period.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return period, nil
}

func splitItems(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// writeCharts renders one trend chart per item into dir, in parallel.
func writeCharts(ctx context.Context, tr *tracker.Tracker, items []string, period core.DateRange, dir string) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating charts directory: %w", err)
	}

	if len(items) == 0 {
		summaries, err := tr.PriceSummary(ctx, tracker.SummaryQuery{GroupBy: core.GroupByItem, Range: period})
		if err != nil {
			return err
		}
		for _, s := range summaries {
			items = append(items, s.Key)
		}
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for _, item := range items {
		g.Go(func() error {
			series, err := tr.PriceTrend(ctx, item, period)
			if err != nil {
				return fmt.Errorf("trend for %s: %w", item, err)
			}

			f, err := os.Create(filepath.Join(dir, chartFilename(item)))
			if err != nil {
				return err
			}
			defer f.Close()

			return plot.Trend(f, series)
		})
	}
	return g.Wait()
}

// chartFilename lowercases the item name and replaces anything that is not
// alphanumeric so the name is safe on any filesystem.
func chartFilename(item string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, item)
	return safe + "_trend.html"
}
