// Package storage is the storage accessor: it owns the SQLite database file,
// creates the schema, and exposes the insert and aggregate query primitives
// the tracker is built on. Callers receive plain core types, never engine rows.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"grocery/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// ErrInvalidGroupBy reports an unknown aggregate grouping dimension. The
// query is rejected before reaching the database.
var ErrInvalidGroupBy = errors.New("invalid group by dimension")

// Filter narrows queries to an item, a store, or a date range. Name matches
// are case-insensitive; zero fields are ignored.
type Filter struct {
	ItemName string
	Store    string
	Range    core.DateRange
}

func (f Filter) where() (string, []any, error) {
	if err := f.Range.Validate(); err != nil {
		return "", nil, err
	}
	var conds []string
	var args []any
	if f.ItemName != "" {
		conds = append(conds, "LOWER(item_name) = LOWER(?)")
		args = append(args, f.ItemName)
	}
	if f.Store != "" {
		conds = append(conds, "LOWER(store) = LOWER(?)")
		args = append(args, f.Store)
	}
	if !f.Range.From.IsZero() {
		conds = append(conds, "purchase_date >= ?")
		args = append(args, f.Range.From.String())
	}
	if !f.Range.To.IsZero() {
		conds = append(conds, "purchase_date <= ?")
		args = append(args, f.Range.To.String())
	}
	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// InsertPurchase appends one record and returns the assigned id. The record
// must already be validated; storage only enforces the schema CHECKs.
func (r *SQLiteRepository) InsertPurchase(ctx context.Context, p core.PurchaseRecord) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO purchases (item_name, price_cents, quantity, unit, store, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ItemName, p.Price.Cents, p.Quantity.InexactFloat64(), p.Unit, p.Store, p.Date.String())
	if err != nil {
		return 0, fmt.Errorf("insert purchase: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("purchase id: %w", err)
	}

	slog.InfoContext(ctx, "Purchase saved",
		"id", id,
		"item", p.ItemName,
		"price_cents", p.Price.Cents,
		"store", p.Store,
		"date", p.Date.String())

	return id, nil
}

// QueryAggregate returns per-group price statistics over the filtered rows,
// ordered by mean price ascending with the group key breaking ties.
func (r *SQLiteRepository) QueryAggregate(ctx context.Context, groupBy core.GroupBy, f Filter) ([]core.PriceSummary, error) {
	var groupExpr string
	switch groupBy {
	case core.GroupByItem:
		groupExpr = "item_name"
	case core.GroupByStore:
		groupExpr = "store"
	case core.GroupByMonth:
		groupExpr = "substr(purchase_date, 1, 7)"
	default:
		return nil, fmt.Errorf("group by %q: %w", groupBy, ErrInvalidGroupBy)
	}

	where, args, err := f.where()
	if err != nil {
		return nil, err
	}

	query := `
		SELECT ` + groupExpr + ` AS grp,
		       COUNT(*),
		       MIN(price_cents),
		       MAX(price_cents),
		       SUM(price_cents),
		       AVG(CAST(price_cents AS REAL) / 100.0 / NULLIF(quantity, 0)),
		       MAX(purchase_date)
		FROM purchases` + where + `
		GROUP BY grp
		ORDER BY AVG(price_cents) ASC, grp ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query aggregate by %s: %w", groupBy, err)
	}
	defer rows.Close()

	var out []core.PriceSummary
	for rows.Next() {
		var (
			s       core.PriceSummary
			perUnit sql.NullFloat64
			last    string
		)
		if err := rows.Scan(&s.Key, &s.Count, &s.Min.Cents, &s.Max.Cents, &s.Total.Cents, &perUnit, &last); err != nil {
			return nil, fmt.Errorf("scan aggregate row: %w", err)
		}
		// Mean from exact sum and count rather than SQL AVG floats.
		s.Mean = s.Total.Decimal().DivRound(decimal.NewFromInt(s.Count), 4)
		if perUnit.Valid {
			s.MeanPerUnit = decimal.NewFromFloat(perUnit.Float64).Round(4)
		}
		if s.LastPurchase, err = core.ParseDate(last); err != nil {
			return nil, fmt.Errorf("aggregate row for %q: %w", s.Key, err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate aggregate rows: %w", err)
	}
	return out, nil
}

// QuerySeries returns the chronological (date, price, store) history of one
// item. An empty slice is not an error.
func (r *SQLiteRepository) QuerySeries(ctx context.Context, itemName string, dr core.DateRange) ([]core.TrendPoint, error) {
	where, args, err := Filter{ItemName: itemName, Range: dr}.where()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT purchase_date, price_cents, store
		FROM purchases`+where+`
		ORDER BY purchase_date ASC, id ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query series for %q: %w", itemName, err)
	}
	defer rows.Close()

	var points []core.TrendPoint
	for rows.Next() {
		var (
			p    core.TrendPoint
			date string
		)
		if err := rows.Scan(&date, &p.Price.Cents, &p.Store); err != nil {
			return nil, fmt.Errorf("scan series row: %w", err)
		}
		if p.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("series row for %q: %w", itemName, err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate series rows: %w", err)
	}
	return points, nil
}

// QueryPrices returns the filtered prices of one item sorted ascending,
// for order statistics.
func (r *SQLiteRepository) QueryPrices(ctx context.Context, itemName string, dr core.DateRange) ([]core.Money, error) {
	where, args, err := Filter{ItemName: itemName, Range: dr}.where()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT price_cents FROM purchases`+where+`
		ORDER BY price_cents ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("query prices for %q: %w", itemName, err)
	}
	defer rows.Close()

	var prices []core.Money
	for rows.Next() {
		var m core.Money
		if err := rows.Scan(&m.Cents); err != nil {
			return nil, fmt.Errorf("scan price row: %w", err)
		}
		prices = append(prices, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price rows: %w", err)
	}
	return prices, nil
}

// ItemExists reports whether the item has ever been recorded, ignoring case.
func (r *SQLiteRepository) ItemExists(ctx context.Context, itemName string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM purchases WHERE LOWER(item_name) = LOWER(?))`,
		itemName).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check item %q: %w", itemName, err)
	}
	return exists, nil
}

// ListPurchases returns full rows matching the filter, newest first.
func (r *SQLiteRepository) ListPurchases(ctx context.Context, f Filter) ([]core.PurchaseRecord, error) {
	where, args, err := f.where()
	if err != nil {
		return nil, err
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, item_name, price_cents, quantity, unit, store, purchase_date
		FROM purchases`+where+`
		ORDER BY purchase_date DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	defer rows.Close()

	var out []core.PurchaseRecord
	for rows.Next() {
		var (
			p        core.PurchaseRecord
			quantity float64
			date     string
		)
		if err := rows.Scan(&p.ID, &p.ItemName, &p.Price.Cents, &quantity, &p.Unit, &p.Store, &date); err != nil {
			return nil, fmt.Errorf("scan purchase row: %w", err)
		}
		p.Quantity = decimal.NewFromFloat(quantity)
		if p.Date, err = core.ParseDate(date); err != nil {
			return nil, fmt.Errorf("purchase row %d: %w", p.ID, err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate purchase rows: %w", err)
	}
	return out, nil
}

// CountPurchases returns the number of rows matching the filter.
func (r *SQLiteRepository) CountPurchases(ctx context.Context, f Filter) (int64, error) {
	where, args, err := f.where()
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM purchases`+where, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count purchases: %w", err)
	}
	return n, nil
}

// QueryOverview returns the headline totals over the filtered rows.
func (r *SQLiteRepository) QueryOverview(ctx context.Context, f Filter) (core.Overview, error) {
	where, args, err := f.where()
	if err != nil {
		return core.Overview{}, err
	}

	var ov core.Overview
	err = r.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(DISTINCT LOWER(item_name)), COALESCE(SUM(price_cents), 0)
		FROM purchases`+where, args...).
		Scan(&ov.Purchases, &ov.UniqueItems, &ov.TotalSpent.Cents)
	if err != nil {
		return core.Overview{}, fmt.Errorf("query overview: %w", err)
	}
	if ov.Purchases > 0 {
		ov.MeanPrice = ov.TotalSpent.Decimal().DivRound(decimal.NewFromInt(ov.Purchases), 4)
	}
	return ov, nil
}

// DeletePurchase removes one row by id, reporting whether a row was deleted.
func (r *SQLiteRepository) DeletePurchase(ctx context.Context, id int64) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM purchases WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete purchase %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete purchase %d: %w", id, err)
	}
	if n > 0 {
		slog.InfoContext(ctx, "Purchase deleted", "id", id)
	}
	return n > 0, nil
}
