package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-pos/meridian-pos/internal/auth"
	"github.com/meridian-pos/meridian-pos/internal/expenses"
	"github.com/meridian-pos/meridian-pos/internal/invoicing"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/categories"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/products"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/suppliers"
	"github.com/meridian-pos/meridian-pos/internal/purchasing"
	"github.com/meridian-pos/meridian-pos/internal/reports"
	"github.com/meridian-pos/meridian-pos/internal/sales"
	"github.com/meridian-pos/meridian-pos/internal/sales/customers"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthMiddleware auth.Middleware

	AuthHandler       *auth.Handler
	CategoriesHandler *categories.Handler
	SuppliersHandler  *suppliers.Handler
	ProductsHandler   *products.Handler
	CustomersHandler  *customers.Handler
	SalesHandler      *sales.Handler
	InvoicesHandler   *invoicing.Handler
	PurchasesHandler  *purchasing.Handler
	ExpensesHandler   *expenses.Handler
	ReportsHandler    *reports.Handler
}

// NewRouter constructs the chi.Router with Meridian defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger: params.Logger,
		Config: params.Config,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(params.AuthMiddleware.Authenticate)

		params.AuthHandler.MountRoutes(api)
		params.CategoriesHandler.MountRoutes(api)
		params.SuppliersHandler.MountRoutes(api)
		params.ProductsHandler.MountRoutes(api)
		params.CustomersHandler.MountRoutes(api)
		params.SalesHandler.MountRoutes(api)
		params.InvoicesHandler.MountRoutes(api)
		params.PurchasesHandler.MountRoutes(api)
		params.ExpensesHandler.MountRoutes(api)
		params.ReportsHandler.MountRoutes(api)
	})

	return r
}
