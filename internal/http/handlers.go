package http

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"grocery/internal/core"
	"grocery/internal/plot"
	"grocery/internal/report"
	"grocery/internal/storage"
	"grocery/internal/tracker"

	"github.com/shopspring/decimal"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "url", r.URL.Path)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}

	ov, err := s.cachedOverview(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	recent, err := s.tracker.ListPurchases(r.Context(), tracker.ListQuery{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if len(recent) > 50 {
		recent = recent[:50]
	}

	data := struct {
		Overview core.Overview
		Recent   []core.PurchaseRecord
	}{Overview: ov, Recent: recent}

	if err := s.templates.ExecuteTemplate(w, "index.html", data); err != nil {
		slog.ErrorContext(r.Context(), "Index template execution failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) handleCreatePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}

	price, err := core.ParsePrice(r.Form.Get("price"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	params := tracker.AddItemParams{
		ItemName: strings.TrimSpace(r.Form.Get("item")),
		Price:    price,
		Unit:     strings.TrimSpace(r.Form.Get("unit")),
		Store:    strings.TrimSpace(r.Form.Get("store")),
	}
	if v := strings.TrimSpace(r.Form.Get("quantity")); v != "" {
		// An explicit quantity must be positive; only an absent field gets
		// the default of 1.
		q, err := decimal.NewFromString(v)
		if err != nil || !q.IsPositive() {
			s.writeError(w, r, fmt.Errorf("quantity %q: %w", v, core.ErrInvalidQuantity))
			return
		}
		params.Quantity = q
	}
	if v := strings.TrimSpace(r.Form.Get("date")); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		params.Date = d
	}

	id, err := s.tracker.AddItem(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateReads()
	slog.InfoContext(r.Context(), "Purchase created via dashboard", "id", id, "item", params.ItemName)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleDeletePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form", http.StatusBadRequest)
		return
	}
	id, err := strconv.ParseInt(r.Form.Get("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid purchase id", http.StatusBadRequest)
		return
	}

	if err := s.tracker.DeleteItem(r.Context(), id); err != nil {
		s.writeError(w, r, err)
		return
	}

	s.invalidateReads()
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleCSV(w http.ResponseWriter, r *http.Request) {
	q, err := listQuery(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rows, err := s.tracker.ListPurchases(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="grocery_purchases_%s.csv"`, time.Now().Format("20060102")))

	// Headers are already sent, so a mid-stream failure can only be logged;
	// the client sees a truncated file.
	if err := writeCSV(w, rows); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed", "error", err, "rows", len(rows))
	}
}

func writeCSV(w io.Writer, rows []core.PurchaseRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "item_name", "price", "quantity", "unit", "store", "purchase_date"}); err != nil {
		return err
	}
	for _, p := range rows {
		err := cw.Write([]string{
			strconv.FormatInt(p.ID, 10),
			p.ItemName,
			p.Price.String(),
			p.Quantity.String(),
			p.Unit,
			p.Store,
			p.Date.String(),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (s *Server) handleOverviewJSON(w http.ResponseWriter, r *http.Request) {
	ov, err := s.cachedOverview(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, overviewView{
		Purchases:   ov.Purchases,
		UniqueItems: ov.UniqueItems,
		TotalSpent:  ov.TotalSpent.String(),
		MeanPrice:   ov.MeanPrice.StringFixed(2),
	})
}

func (s *Server) handleSummaryJSON(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := tracker.SummaryQuery{
		GroupBy:  core.GroupBy(r.URL.Query().Get("group_by")),
		ItemName: r.URL.Query().Get("item"),
		Store:    r.URL.Query().Get("store"),
		Range:    dr,
	}

	key := "summary|" + r.URL.RawQuery
	rows, ok := s.summaryCache.Get(key)
	if !ok {
		rows, err = s.tracker.PriceSummary(r.Context(), q)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.summaryCache.Set(key, rows)
	}

	out := make([]summaryView, len(rows))
	for i, row := range rows {
		out[i] = summaryView{
			Key:          row.Key,
			Count:        row.Count,
			Mean:         row.Mean.StringFixed(2),
			Min:          row.Min.String(),
			Max:          row.Max.String(),
			Total:        row.Total.String(),
			LastPurchase: row.LastPurchase.String(),
		}
		if !row.MeanPerUnit.IsZero() {
			out[i].MeanPerUnit = row.MeanPerUnit.String()
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrendJSON(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "missing item parameter", http.StatusBadRequest)
		return
	}
	dr, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	series, err := s.tracker.PriceTrend(r.Context(), item, dr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := trendView{Item: series.ItemName, Points: make([]trendPointView, len(series.Points))}
	for i, p := range series.Points {
		out.Points[i] = trendPointView{Date: p.Date.String(), Price: p.Price.String(), Store: p.Store}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStoresJSON(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "missing item parameter", http.StatusBadRequest)
		return
	}
	stores, err := s.tracker.CompareStores(r.Context(), item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]storeView, len(stores))
	for i, st := range stores {
		out[i] = storeView{
			Store: st.Store,
			Count: st.Count,
			Mean:  st.Mean.StringFixed(2),
			Min:   st.Min.String(),
			Max:   st.Max.String(),
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleTrendChart(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "missing item parameter", http.StatusBadRequest)
		return
	}
	dr, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	series, err := s.tracker.PriceTrend(r.Context(), item, dr)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.Trend(w, series); err != nil {
		slog.ErrorContext(r.Context(), "Trend chart render failed", "error", err, "item", item)
	}
}

func (s *Server) handleStoresChart(w http.ResponseWriter, r *http.Request) {
	item := r.URL.Query().Get("item")
	if item == "" {
		http.Error(w, "missing item parameter", http.StatusBadRequest)
		return
	}
	stores, err := s.tracker.CompareStores(r.Context(), item)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.StoreComparison(w, item, stores); err != nil {
		slog.ErrorContext(r.Context(), "Store chart render failed", "error", err, "item", item)
	}
}

func (s *Server) handleDistributionChart(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	// One box per item; an explicit ?item= narrows to a single box.
	var items []string
	if item := r.URL.Query().Get("item"); item != "" {
		items = []string{item}
	} else {
		summaries, err := s.tracker.PriceSummary(r.Context(), tracker.SummaryQuery{Range: dr})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		for _, row := range summaries {
			items = append(items, row.Key)
		}
	}

	dists := make([]core.Distribution, 0, len(items))
	for _, item := range items {
		d, err := s.tracker.PriceDistribution(r.Context(), item, dr)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if d.Count > 0 {
			dists = append(dists, d)
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := plot.Distribution(w, dists); err != nil {
		slog.ErrorContext(r.Context(), "Distribution chart render failed", "error", err)
	}
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	dr, err := parseRange(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var items []string
	if v := r.URL.Query().Get("items"); v != "" {
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
	}

	md, err := report.Generate(r.Context(), s.tracker, items, dr)
	if err != nil {
		if errors.Is(err, report.ErrNoData) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(md))
}

func (s *Server) cachedOverview(r *http.Request) (core.Overview, error) {
	dr, err := parseRange(r)
	if err != nil {
		return core.Overview{}, err
	}
	key := "overview|" + dr.From.String() + "|" + dr.To.String()
	if ov, ok := s.overviewCache.Get(key); ok {
		return ov, nil
	}
	ov, err := s.tracker.Overview(r.Context(), dr)
	if err != nil {
		return core.Overview{}, err
	}
	s.overviewCache.Set(key, ov)
	return ov, nil
}

// writeError maps domain errors onto HTTP statuses: invalid input is the
// caller's fault, unknown items are 404, everything else is a 500.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, tracker.ErrItemNotFound), errors.Is(err, tracker.ErrPurchaseNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, core.ErrEmptyItemName),
		errors.Is(err, core.ErrNegativePrice),
		errors.Is(err, core.ErrInvalidPrice),
		errors.Is(err, core.ErrInvalidQuantity),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, storage.ErrInvalidGroupBy):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		slog.ErrorContext(r.Context(), "Request failed", "error", err, "url", r.URL.Path)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func parseRange(r *http.Request) (core.DateRange, error) {
	var dr core.DateRange
	if v := r.URL.Query().Get("from"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.DateRange{}, err
		}
		dr.From = d
	}
	if v := r.URL.Query().Get("to"); v != "" {
		d, err := core.ParseDate(v)
		if err != nil {
			return core.DateRange{}, err
		}
		dr.To = d
	}
	if err := dr.Validate(); err != nil {
		return core.DateRange{}, err
	}
	return dr, nil
}

func listQuery(r *http.Request) (tracker.ListQuery, error) {
	dr, err := parseRange(r)
	if err != nil {
		return tracker.ListQuery{}, err
	}
	return tracker.ListQuery{
		ItemName: r.URL.Query().Get("item"),
		Store:    r.URL.Query().Get("store"),
		Range:    dr,
	}, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("JSON encode failed", "error", err)
	}
}

type overviewView struct {
	Purchases   int64  `json:"purchases"`
	UniqueItems int64  `json:"unique_items"`
	TotalSpent  string `json:"total_spent"`
	MeanPrice   string `json:"mean_price"`
}

type summaryView struct {
	Key          string `json:"key"`
	Count        int64  `json:"count"`
	Mean         string `json:"mean"`
	Min          string `json:"min"`
	Max          string `json:"max"`
	Total        string `json:"total"`
	MeanPerUnit  string `json:"mean_per_unit,omitempty"`
	LastPurchase string `json:"last_purchase"`
}

type trendView struct {
	Item   string           `json:"item"`
	Points []trendPointView `json:"points"`
}

type trendPointView struct {
	Date  string `json:"date"`
	Price string `json:"price"`
	Store string `json:"store"`
}

type storeView struct {
	Store string `json:"store"`
	Count int64  `json:"count"`
	Mean  string `json:"mean"`
	Min   string `json:"min"`
	Max   string `json:"max"`
}
