// Package http serves the tracker dashboard: an HTML front page, JSON
// endpoints for the aggregates, chart pages, CSV export, and report download.
// It only talks to the tracker facade, never to the database directly.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"grocery/internal/cache"
	"grocery/internal/core"
	"grocery/internal/tracker"
	"grocery/web"

	"github.com/shopspring/decimal"
)

// Tracker is the domain facade surface the dashboard consumes.
type Tracker interface {
	AddItem(ctx context.Context, params tracker.AddItemParams) (int64, error)
	DeleteItem(ctx context.Context, id int64) error
	PriceSummary(ctx context.Context, q tracker.SummaryQuery) ([]core.PriceSummary, error)
	PriceTrend(ctx context.Context, itemName string, dr core.DateRange) (core.TrendSeries, error)
	CompareStores(ctx context.Context, itemName string) ([]core.StoreComparison, error)
	PriceDistribution(ctx context.Context, itemName string, dr core.DateRange) (core.Distribution, error)
	Overview(ctx context.Context, dr core.DateRange) (core.Overview, error)
	ListPurchases(ctx context.Context, q tracker.ListQuery) ([]core.PurchaseRecord, error)
}

// Options tunes caching and rate limiting. Zero values pick defaults.
type Options struct {
	CacheSize int
	CacheTTL  time.Duration
	RateLimit int // write requests per minute per client
}

type Server struct {
	http.Server
	templates *template.Template
	tracker   Tracker

	rateLimiter   *rateLimiter
	summaryCache  *cache.Cache[[]core.PriceSummary]
	overviewCache *cache.Cache[core.Overview]

	stopPurge    chan struct{}
	shutdownOnce sync.Once
}

var templateFuncs = template.FuncMap{
	"money": func(d decimal.Decimal) string { return d.StringFixed(2) },
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, t Tracker, opts Options) *Server {
	if opts.CacheSize <= 0 {
		opts.CacheSize = 100
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = 5 * time.Minute
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 60
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		tracker:       t,
		rateLimiter:   newRateLimiter(opts.RateLimit),
		summaryCache:  cache.New[[]core.PriceSummary](opts.CacheSize, opts.CacheTTL),
		overviewCache: cache.New[core.Overview](opts.CacheSize, opts.CacheTTL),
		stopPurge:     make(chan struct{}),
	}

	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(web.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = tmpl

	mux.HandleFunc("/", s.withMiddleware(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)
	mux.HandleFunc("/purchases", s.withMiddleware(s.handleCreatePurchase))
	mux.HandleFunc("/purchases/delete", s.withMiddleware(s.handleDeletePurchase))
	mux.HandleFunc("/purchases.csv", s.withMiddleware(s.handleCSV))
	mux.HandleFunc("/api/overview", s.withMiddleware(s.handleOverviewJSON))
	mux.HandleFunc("/api/summary", s.withMiddleware(s.handleSummaryJSON))
	mux.HandleFunc("/api/trend", s.withMiddleware(s.handleTrendJSON))
	mux.HandleFunc("/api/stores", s.withMiddleware(s.handleStoresJSON))
	mux.HandleFunc("/charts/trend", s.withMiddleware(s.handleTrendChart))
	mux.HandleFunc("/charts/stores", s.withMiddleware(s.handleStoresChart))
	mux.HandleFunc("/charts/distribution", s.withMiddleware(s.handleDistributionChart))
	mux.HandleFunc("/report", s.withMiddleware(s.handleReport))

	go s.purgeCaches()

	return s
}

// purgeCaches periodically evicts expired cache entries.
func (s *Server) purgeCaches() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			dropped := s.summaryCache.Purge() + s.overviewCache.Purge()
			if dropped > 0 {
				slog.Debug("Cache purge completed", "entries_removed", dropped)
			}
		case <-s.stopPurge:
			return
		}
	}
}

// invalidateReads drops cached aggregates after any write.
func (s *Server) invalidateReads() {
	s.summaryCache.Clear()
	s.overviewCache.Clear()
}

// Shutdown stops the cache purge and the rate limiter cleanup alongside the
// HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		close(s.stopPurge)
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withMiddleware adds security headers, rate limiting on writes, and request
// logging.
func (s *Server) withMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := r.Context()

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if r.Method == http.MethodPost && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// rateLimiter is a simple per-client sliding window limiter.
type rateLimiter struct {
	mu           sync.Mutex
	perMinute    int
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter(perMinute int) *rateLimiter {
	rl := &rateLimiter{
		perMinute:   perMinute,
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists || now.Sub(client.lastRequest) > time.Minute {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= rl.perMinute
}

func (rl *rateLimiter) cleanupLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			cutoff := time.Now().Add(-10 * time.Minute)
			for ip, client := range rl.clients {
				if client.lastRequest.Before(cutoff) {
					delete(rl.clients, ip)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() { close(rl.stopCleanup) })
}
