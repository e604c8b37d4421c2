package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/storefront/internal"
	"github.com/DukeRupert/storefront/internal/auth"
	"github.com/DukeRupert/storefront/internal/billing"
	"github.com/DukeRupert/storefront/internal/contentapi"
	"github.com/DukeRupert/storefront/internal/flight"
	"github.com/DukeRupert/storefront/internal/handler"
	"github.com/DukeRupert/storefront/internal/metrics"
	"github.com/DukeRupert/storefront/internal/middleware"
	"github.com/DukeRupert/storefront/internal/service"
	"github.com/DukeRupert/storefront/internal/store"
	"github.com/DukeRupert/storefront/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Attempt log (optional)
	var (
		recorder service.AttemptRecorder
		pinger   handler.Pinger
	)
	if cfg.DatabaseUrl != "" {
		db, err := sql.Open("pgx", cfg.DatabaseUrl)
		if err != nil {
			return fmt.Errorf("database connection failed: %w", err)
		}
		defer db.Close()

		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("database ping failed: %w", err)
		}
		if err := internal.RunMigrations(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		writer, err := worker.New(store.NewAttemptLog(db), worker.DefaultConfig(), logger)
		if err != nil {
			return fmt.Errorf("attempt writer initialization failed: %w", err)
		}
		writer.Start(ctx)
		defer writer.Stop()

		recorder = writer
		pinger = db
		logger.Info("Attempt log enabled")
	} else {
		logger.Info("DATABASE_URL not set, attempt log disabled")
	}

	// Content API
	api, err := contentapi.New(contentapi.Config{
		BaseURL:           cfg.ContentAPIURL,
		Timeout:           cfg.ContentAPITimeout,
		RequestsPerSecond: cfg.ContentAPIRPS,
		Burst:             cfg.ContentAPIBurst,
	}, logger)
	if err != nil {
		return fmt.Errorf("content api client initialization failed: %w", err)
	}

	// Single-flight guards
	trialGuard, checkoutGuard, err := newGuards(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("guard initialization failed: %w", err)
	}

	// Payment gateway
	gateway, err := newGateway(cfg, api)
	if err != nil {
		return fmt.Errorf("gateway initialization failed: %w", err)
	}
	logger.Info("Payment gateway configured", "provider", cfg.GatewayProvider)

	// Initialize services
	classifier := service.NewAudienceClassifier()
	eligibility := service.NewEligibilityValidator(classifier)
	filter := service.NewCatalogFilter(classifier, logger)
	trials := service.NewFreeTrialService(api, trialGuard, recorder, logger)
	checkout := service.NewCheckoutService(api, eligibility, gateway, checkoutGuard, recorder, logger)
	customPackages := service.NewCustomPackageService(api, checkout, service.CustomPackageServiceConfig{
		DefaultCurrency: cfg.DefaultCurrency,
	}, logger)
	storefront := service.NewStorefrontService(api, classifier, filter, eligibility, trials, customPackages, logger)

	// Initialize middleware
	isSecure := cfg.Env != "development"
	authMw := middleware.NewAuthMiddleware(auth.NewJWTOracle(cfg.AuthJWTSecret), logger)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	if !metricsAuth.Enabled() {
		logger.Warn("METRICS_USERNAME and METRICS_PASSWORD not set, /metrics is unprotected")
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, 10*time.Minute, logger)
	stopLimiter := make(chan struct{})
	defer close(stopLimiter)
	go limiter.Run(stopLimiter)

	routes := handler.RouteMiddleware{
		RequireUser: authMw.RequireUser,
		Limit:       limiter.Limit,
	}

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))
	handler.NewHealthHandler(pinger, logger).RegisterRoutes(mux)
	handler.NewCatalogHandler(storefront, trials, logger).RegisterRoutes(mux)
	handler.NewTrialHandler(storefront, trials, logger).RegisterRoutes(mux, routes)
	handler.NewCustomPackageHandler(customPackages, logger).RegisterRoutes(mux, routes)
	handler.NewCheckoutHandler(checkout, logger).RegisterRoutes(mux, routes)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.NotFoundResponse(w, r, logger)
	})

	// WithUser is outermost so the mux sets r.Pattern on the request the
	// logging and metrics middleware see.
	root := middleware.Stack(
		authMw.WithUser,
		securityMw.Handler,
		metrics.Middleware,
		loggingMw.Handler,
	)(mux)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		// Checkout waits on the content API and the gateway
		WriteTimeout: cfg.ContentAPITimeout*2 + 10*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newGuards builds the free trial and checkout guards. Only the checkout
// guard holds a successful result.
func newGuards(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (flight.Guard, flight.Guard, error) {
	trialCfg := flight.Config{InFlightTTL: cfg.GuardInFlightTTL}
	checkoutCfg := flight.Config{HoldTTL: cfg.CheckoutHoldTTL, InFlightTTL: cfg.GuardInFlightTTL}

	if cfg.GuardBackend == "redis" {
		client, err := flight.NewRedisClient(cfg.RedisURL, 5*time.Second)
		if err != nil {
			return nil, nil, err
		}
		trialGuard, err := flight.NewRedisGuard(ctx, client, trialCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		checkoutGuard, err := flight.NewRedisGuard(ctx, client, checkoutCfg, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Guards backed by redis")
		return trialGuard, checkoutGuard, nil
	}

	trialGuard, err := flight.NewMemoryGuard(trialCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	checkoutGuard, err := flight.NewMemoryGuard(checkoutCfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return trialGuard, checkoutGuard, nil
}

func newGateway(cfg *internal.Config, api *contentapi.Client) (billing.Gateway, error) {
	if cfg.GatewayProvider == "stripe" {
		return billing.NewStripeGateway(billing.StripeConfig{
			SecretKey:       cfg.StripeSecretKey,
			SuccessURL:      cfg.StripeSuccessURL,
			CancelURL:       cfg.StripeCancelURL,
			DefaultCurrency: cfg.DefaultCurrency,
		})
	}
	return billing.NewAPIGateway(api), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
