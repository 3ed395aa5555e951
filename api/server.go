/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:     Unique ID per request for tracing
  2. RequestLogger: Structured zap access log
  3. Recoverer:     Panic recovery (500 instead of crash)
  4. CORS:          Cross-origin requests from the POS frontend

ROUTE GROUPS:
  /api/customers/*   Customer directory and rewards
  /api/orders/*      Order ledger
  /api/reports/*     Sales reports
  /api/menu/*        Menu items and categories
  /api/purchases/*   Purchase log and spend reports
  /api/inventory/*   Product unit counts
  /api/scenarios/*   Demo data (dev only)
  /metrics           Prometheus scrape endpoint
  /healthz           Liveness, pings the database

SEE ALSO:
  - handlers.go: Customer handlers
  - orders.go: Order and report handlers
  - menu.go, purchases.go: Menu, purchase and inventory handlers
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultAllowedOrigins are the dev frontend origins.
var DefaultAllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterOptions configures NewRouter.
type RouterOptions struct {
	AllowedOrigins []string
	// Gatherer backs /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   *zap.Logger
	// Database is pinged by /healthz. Nil skips the check.
	Database Pinger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = DefaultAllowedOrigins
	}
	gatherer := opts.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Get("/insights", h.CustomerInsights)
			r.Post("/sync", h.SyncCustomers)
			r.Get("/{phone}", h.GetCustomer)
			r.Put("/{phone}", h.UpdateCustomer)
			r.Delete("/{phone}", h.DeleteCustomer)
			r.Post("/{phone}/redeem", h.RedeemReward)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.ListOrders)
			r.Post("/", h.CreateOrder)
			r.Get("/sold", h.SoldItems)
			r.Get("/{id}", h.GetOrder)
			r.Put("/{id}", h.UpdateOrder)
			r.Delete("/{id}", h.DeleteOrder)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Get("/summary", h.SalesSummary)
			r.Get("/items", h.ItemSales)
			r.Get("/trend", h.SalesTrend)
		})

		r.Route("/menu", func(r chi.Router) {
			r.Get("/", h.ListMenu)
			r.Post("/", h.CreateMenuItem)
			r.Delete("/", h.ClearMenu)
			r.Get("/categories", h.MenuCategories)
			r.Get("/{id}", h.GetMenuItem)
			r.Put("/{id}", h.UpdateMenuItem)
			r.Delete("/{id}", h.DeleteMenuItem)
		})

		r.Route("/purchases", func(r chi.Router) {
			r.Get("/", h.ListPurchases)
			r.Post("/", h.CreatePurchase)
			r.Get("/summary", h.PurchaseSummary)
			r.Get("/products", h.PurchaseProducts)
			r.Put("/{id}", h.UpdatePurchase)
			r.Delete("/{id}", h.DeletePurchase)
		})

		r.Route("/inventory", func(r chi.Router) {
			r.Get("/", h.ListInventory)
			r.Post("/", h.CreateProduct)
			r.Post("/reset", h.ResetInventory)
			r.Put("/{name}", h.RenameProduct)
		})

		// Demo data (dev only)
		r.Route("/scenarios", func(r chi.Router) {
			r.Get("/", h.ListScenarios)
			r.Get("/current", h.GetCurrentScenario)
			r.Post("/load", h.LoadScenario)
			r.Post("/reset", h.ResetData)
		})
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", healthz(opts.Database))

	return r
}

func healthz(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
