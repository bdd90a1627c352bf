package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/meridian-pos/meridian-pos/internal/app"
	"github.com/meridian-pos/meridian-pos/internal/auth"
	"github.com/meridian-pos/meridian-pos/internal/expenses"
	"github.com/meridian-pos/meridian-pos/internal/invoicing"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/categories"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/products"
	"github.com/meridian-pos/meridian-pos/internal/masterdata/suppliers"
	"github.com/meridian-pos/meridian-pos/internal/platform/cache"
	"github.com/meridian-pos/meridian-pos/internal/platform/db"
	"github.com/meridian-pos/meridian-pos/internal/purchasing"
	"github.com/meridian-pos/meridian-pos/internal/reports"
	"github.com/meridian-pos/meridian-pos/internal/sales"
	"github.com/meridian-pos/meridian-pos/internal/sales/customers"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	// A failed ping is not fatal: the process serves and requests fail
	// until the database comes back.
	if err := db.Ping(ctx, pool); err != nil {
		logger.Warn("postgres ping", slog.Any("error", err))
	}

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn("redis ping", slog.Any("error", err))
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	reportCache := cache.New(redisClient, cfg.CacheTTL)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL, cfg.RefreshTTL)
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokens)
	guard := auth.Middleware{Service: authService, Logger: logger}
	authHandler := auth.NewHandler(logger, authService, guard)

	categoriesRepo := categories.NewRepository(pool)
	categoriesService := categories.NewService(categoriesRepo)
	categoriesHandler := categories.NewHandler(logger, categoriesService, guard)

	suppliersRepo := suppliers.NewRepository(pool)
	suppliersService := suppliers.NewService(suppliersRepo)
	suppliersHandler := suppliers.NewHandler(logger, suppliersService, guard)

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, categoriesService, suppliersService)
	productsHandler := products.NewHandler(logger, productsService, guard)

	customersRepo := customers.NewRepository(pool)
	customersService := customers.NewService(customersRepo)
	customersHandler := customers.NewHandler(logger, customersService, guard)

	salesRepo := sales.NewRepository(pool)
	salesService := sales.NewService(salesRepo, customersService, reportCache, logger)
	salesHandler := sales.NewHandler(logger, salesService, guard)

	invoicesRepo := invoicing.NewRepository(pool)
	invoicesService := invoicing.NewService(invoicesRepo, customersService, logger)
	invoicesHandler := invoicing.NewHandler(logger, invoicesService, guard)

	purchasesRepo := purchasing.NewRepository(pool)
	purchasesService := purchasing.NewService(purchasesRepo, suppliersService, reportCache, logger)
	purchasesHandler := purchasing.NewHandler(logger, purchasesService, guard)

	expensesRepo := expenses.NewRepository(pool)
	expensesService := expenses.NewService(expensesRepo, reportCache, logger)
	expensesHandler := expenses.NewHandler(logger, expensesService, guard)

	reportsRepo := reports.NewRepository(pool)
	reportsService := reports.NewService(reportsRepo, expensesService, reportCache, logger)
	reportsHandler := reports.NewHandler(logger, reportsService, guard)

	router := app.NewRouter(app.RouterParams{
		Logger:            logger,
		Config:            cfg,
		AuthMiddleware:    guard,
		AuthHandler:       authHandler,
		CategoriesHandler: categoriesHandler,
		SuppliersHandler:  suppliersHandler,
		ProductsHandler:   productsHandler,
		CustomersHandler:  customersHandler,
		SalesHandler:      salesHandler,
		InvoicesHandler:   invoicesHandler,
		PurchasesHandler:  purchasesHandler,
		ExpensesHandler:   expensesHandler,
		ReportsHandler:    reportsHandler,
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
