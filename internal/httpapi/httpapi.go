package httpapi

import (
	"net/http"
	"net/netip"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"storepos/backend/internal/logger"
	"storepos/backend/internal/metrics"
	"storepos/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigins         []string
	LoginAttemptsPerMinute int
	// Location interprets date-only query parameters.
	Location    *time.Location
	Logger      *logger.Logger
	HTTPMetrics *metrics.HTTPMetrics
	// Gatherer backs /metrics. Nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
}

type API struct {
	service        *service.Service
	auth           *AuthManager
	log            *logger.Logger
	httpMetrics    *metrics.HTTPMetrics
	gatherer       prometheus.Gatherer
	allowedOrigins []string
	loc            *time.Location
	loginLimiter   *attemptLimiter
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.LoginAttemptsPerMinute <= 0 {
		opts.LoginAttemptsPerMinute = 5
	}
	return &API{
		service:        svc,
		auth:           auth,
		log:            opts.Logger,
		httpMetrics:    opts.HTTPMetrics,
		gatherer:       opts.Gatherer,
		allowedOrigins: opts.AllowedOrigins,
		loc:            opts.Location,
		loginLimiter:   newAttemptLimiter(opts.LoginAttemptsPerMinute, time.Minute),
	}
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		a.recoverer,
		a.requestID,
		a.logging,
		securityHeaders,
		a.cors(),
		limitBody,
	)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, notFoundRoute())
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, methodNotAllowed())
	})

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/managers/signup", a.handleManagerSignup)
			r.Post("/cashiers/signup", a.handleCashierSignup)
			r.Post("/login", a.handleLogin)
			r.Post("/lookup-manager", a.handleLookupManager)
			r.With(a.requireAuth).Get("/session", a.handleSession)
		})

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/products", a.handleListProducts)
			r.Get("/products/next-sku", a.handleNextSKU)
			r.Get("/products/categories", a.handleCategories)
			r.Get("/products/{productID}", a.handleGetProduct)
			r.Get("/products/{productID}/restock-history", a.handleRestockHistory)

			r.Post("/sales", a.handleCreateSale)
			r.Get("/sales", a.handleListSales)
			r.Get("/sales/{saleID}", a.handleGetSale)
			r.Get("/partial-payment-customers", a.handlePartialCustomers)

			r.Get("/expenses", a.handleListExpenses)
			r.Post("/expenses", a.handleCreateExpense)

			r.Group(func(r chi.Router) {
				r.Use(requireManager)

				r.Post("/products", a.handleCreateProduct)
				r.Put("/products/{productID}", a.handleUpdateProduct)
				r.Delete("/products/{productID}", a.handleDeleteProduct)
				r.Post("/products/{productID}/restock", a.handleRestock)

				r.Get("/dashboard/stats", a.handleDashboardStats)
				r.Get("/join-requests", a.handleListJoinRequests)
				r.Patch("/join-requests/{requestID}", a.handleReviewJoinRequest)
				r.Get("/users", a.handleListUsers)
				r.Get("/audit-logs", a.handleAuditLogs)
			})
		})
	})

	return r
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	at := time.Now().UTC().Format(time.RFC3339)
	if err := a.service.Ping(r.Context()); err != nil {
		a.log.Error(r.Context(), "health.ping_failed", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ok":    false,
			"at":    at,
			"error": "database unavailable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": at,
	})
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}
