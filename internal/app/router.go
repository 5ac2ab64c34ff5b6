package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ledgerhouse/ledgerhouse/internal/auth"
	"github.com/ledgerhouse/ledgerhouse/internal/cashbook"
	"github.com/ledgerhouse/ledgerhouse/internal/finance"
	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
	"github.com/ledgerhouse/ledgerhouse/internal/invoices"
	"github.com/ledgerhouse/ledgerhouse/internal/payroll"
	"github.com/ledgerhouse/ledgerhouse/internal/purchases"
	"github.com/ledgerhouse/ledgerhouse/internal/quotes"
	"github.com/ledgerhouse/ledgerhouse/internal/sales"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
	"github.com/ledgerhouse/ledgerhouse/internal/suppliers"
	"github.com/ledgerhouse/ledgerhouse/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler      *auth.Handler
	InventoryHandler *inventory.Handler
	QuotesHandler    *quotes.Handler
	InvoicesHandler  *invoices.Handler
	SalesHandler     *sales.Handler
	PurchasesHandler *purchases.Handler
	CashbookHandler  *cashbook.Handler
	SuppliersHandler *suppliers.Handler
	PayrollHandler   *payroll.Handler
	FinanceHandler   *finance.Handler
	JobHandler       *jobs.Handler
}

// NewRouter constructs the chi.Router with Ledgerhouse defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", params.AuthHandler.MountRoutes)
	r.Route("/inventory", params.InventoryHandler.MountRoutes)
	r.Route("/quotes", params.QuotesHandler.MountRoutes)
	r.Route("/invoices", params.InvoicesHandler.MountRoutes)
	r.Route("/sales", params.SalesHandler.MountRoutes)
	r.Route("/purchases", params.PurchasesHandler.MountRoutes)
	r.Route("/expenses", params.CashbookHandler.MountExpenseRoutes)
	r.Route("/incomes", params.CashbookHandler.MountIncomeRoutes)
	r.Route("/suppliers", params.SuppliersHandler.MountRoutes)
	r.Route("/payroll", params.PayrollHandler.MountRoutes)
	r.Route("/finance", params.FinanceHandler.MountRoutes)
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
