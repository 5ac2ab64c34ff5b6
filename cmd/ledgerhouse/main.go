package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/ledgerhouse/ledgerhouse/internal/app"
	"github.com/ledgerhouse/ledgerhouse/internal/auth"
	"github.com/ledgerhouse/ledgerhouse/internal/cashbook"
	"github.com/ledgerhouse/ledgerhouse/internal/finance"
	"github.com/ledgerhouse/ledgerhouse/internal/inventory"
	"github.com/ledgerhouse/ledgerhouse/internal/invoices"
	"github.com/ledgerhouse/ledgerhouse/internal/payroll"
	"github.com/ledgerhouse/ledgerhouse/internal/platform/cache"
	"github.com/ledgerhouse/ledgerhouse/internal/platform/db"
	"github.com/ledgerhouse/ledgerhouse/internal/purchases"
	"github.com/ledgerhouse/ledgerhouse/internal/quotes"
	"github.com/ledgerhouse/ledgerhouse/internal/rbac"
	"github.com/ledgerhouse/ledgerhouse/internal/sales"
	"github.com/ledgerhouse/ledgerhouse/internal/shared"
	"github.com/ledgerhouse/ledgerhouse/internal/suppliers"
	"github.com/ledgerhouse/ledgerhouse/jobs"
	"github.com/ledgerhouse/ledgerhouse/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	// Sessions live in Redis, so a broken cache is fatal here.
	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "ledgerhouse_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	auditLogger := shared.NewAuditLogger(dbpool)
	idempotencyStore := shared.NewIdempotencyStore(dbpool)

	rbacService := rbac.NewService(dbpool)
	rbacMiddleware := rbac.Middleware{Service: rbacService, Logger: logger}

	financeCache := finance.NewCache(redisClient, cfg.FinanceCacheTTL)

	authRepo := auth.NewRepository(dbpool)
	authService := auth.NewService(authRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	inventoryRepo := inventory.NewRepository(dbpool)
	inventoryService := inventory.NewService(inventoryRepo, auditLogger, financeCache, logger)
	inventoryHandler := inventory.NewHandler(logger, inventoryService, rbacMiddleware, idempotencyStore)

	invoiceRepo := invoices.NewRepository(dbpool)
	invoiceService := invoices.NewService(invoiceRepo, auditLogger, financeCache, logger, time.Now)

	quoteRepo := quotes.NewRepository(dbpool)
	quoteService := quotes.NewService(quoteRepo, invoiceService, auditLogger, financeCache, logger, time.Now)

	reportClient := report.NewClient(cfg.GotenbergURL)
	renderer := report.NewRenderer(reportClient, cfg.CompanyName)

	quotesHandler := quotes.NewHandler(logger, quoteService, rbacMiddleware, renderer)
	invoicesHandler := invoices.NewHandler(logger, invoiceService, rbacMiddleware, renderer, idempotencyStore)

	salesRepo := sales.NewRepository(dbpool)
	salesService := sales.NewService(salesRepo, inventoryService, auditLogger, financeCache, logger, time.Now)
	salesHandler := sales.NewHandler(logger, salesService, rbacMiddleware)

	purchaseRepo := purchases.NewRepository(dbpool)
	purchaseService := purchases.NewService(purchaseRepo, inventoryService, auditLogger, financeCache, logger, time.Now)
	purchasesHandler := purchases.NewHandler(logger, purchaseService, rbacMiddleware)

	cashbookRepo := cashbook.NewRepository(dbpool)
	cashbookService := cashbook.NewService(cashbookRepo, auditLogger, financeCache, logger, time.Now)
	cashbookHandler := cashbook.NewHandler(logger, cashbookService, rbacMiddleware)

	supplierRepo := suppliers.NewRepository(dbpool)
	supplierService := suppliers.NewService(supplierRepo)
	suppliersHandler := suppliers.NewHandler(logger, supplierService, rbacMiddleware)

	payrollRepo := payroll.NewRepository(dbpool)
	payrollService := payroll.NewService(payrollRepo, auditLogger, logger)
	payrollHandler := payroll.NewHandler(logger, payrollService, rbacMiddleware)

	financeRepo := finance.NewRepository(dbpool)
	financeService := finance.NewService(logger, financeRepo, invoiceRepo, financeCache)
	financeHandler := finance.NewHandler(logger, financeService, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		AuthHandler:      authHandler,
		InventoryHandler: inventoryHandler,
		QuotesHandler:    quotesHandler,
		InvoicesHandler:  invoicesHandler,
		SalesHandler:     salesHandler,
		PurchasesHandler: purchasesHandler,
		CashbookHandler:  cashbookHandler,
		SuppliersHandler: suppliersHandler,
		PayrollHandler:   payrollHandler,
		FinanceHandler:   financeHandler,
		JobHandler:       jobHandler,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
