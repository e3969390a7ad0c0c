package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	appbilling "github.com/bizshop/storefront/internal/application/billing"
	apporder "github.com/bizshop/storefront/internal/application/order"
	"github.com/bizshop/storefront/internal/auth"
	"github.com/bizshop/storefront/internal/config"
	domaccount "github.com/bizshop/storefront/internal/domain/account"
	domcatalog "github.com/bizshop/storefront/internal/domain/catalog"
	domorder "github.com/bizshop/storefront/internal/domain/order"
	dompayment "github.com/bizshop/storefront/internal/domain/payment"
	dompromotion "github.com/bizshop/storefront/internal/domain/promotion"
	auditworker "github.com/bizshop/storefront/internal/infrastructure/audit/worker"
	"github.com/bizshop/storefront/internal/infrastructure/gateway"
	"github.com/bizshop/storefront/internal/infrastructure/id"
	"github.com/bizshop/storefront/internal/infrastructure/memory"
	"github.com/bizshop/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/bizshop/storefront/internal/infrastructure/observability/prometrics"
	"github.com/bizshop/storefront/internal/infrastructure/observability/telemetry"
	"github.com/bizshop/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/bizshop/storefront/internal/infrastructure/outbox"
	"github.com/bizshop/storefront/internal/infrastructure/postgres"
	"github.com/bizshop/storefront/internal/observability"
	httppresentation "github.com/bizshop/storefront/internal/presentation/http"
)

func main() {
	cfg := config.EnvDefaults()

	baseLogger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	defer func() {
		if s, ok := baseLogger.(interface{ Sync() error }); ok {
			_ = s.Sync()
		}
	}()

	tel := telemetry.New(
		oteltrace.New(cfg.ServiceName),
		baseLogger,
		buildCounters(cfg.ServiceName),
		buildHistograms(cfg.ServiceName),
	)

	var (
		productRepo domcatalog.Repository
		orderRepo   domorder.Repository
		accountRepo domaccount.Repository
		promoRepo   dompromotion.Repository
		eventStore  dompayment.ProcessedEventStore
	)
	if cfg.UsePostgres() {
		db, err := postgres.Open(cfg.Postgres)
		if err != nil {
			baseLogger.Error("db_open_failed", observability.F("error", err.Error()))
			os.Exit(1)
		}
		defer db.Close()
		productRepo = postgres.NewProductRepository(db)
		orderRepo = postgres.NewOrderRepository(db)
		accountRepo = postgres.NewAccountRepository(db)
		promoRepo = postgres.NewPromotionRepository(db)
		eventStore = postgres.NewProcessedEventStore(db)
		baseLogger.Info("storage_postgres", observability.F("host", cfg.Postgres.Host))
	} else {
		productRepo = memory.NewProductRepository()
		orderRepo = memory.NewOrderRepository()
		accountRepo = memory.NewAccountRepository()
		promoRepo = memory.NewPromotionRepository()
		eventStore = memory.NewProcessedEventStore()
		baseLogger.Info("storage_memory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bus := outbox.NewBus(baseLogger, tel)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	audit := auditworker.New(bus, baseLogger)
	audit.Start()

	ledger := apporder.NewLedger(productRepo, tel)
	orderService := apporder.NewService(orderRepo, productRepo, ledger, id.NewUUIDGenerator(), bus, tel)

	var gw dompayment.Gateway = gateway.Disabled{}
	if cfg.GatewayBaseURL != "" && cfg.GatewayKeyID != "" && cfg.GatewayKeySecret != "" {
		gw = gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayKeyID, cfg.GatewayKeySecret, cfg.GatewayTimeout, tel)
	} else {
		baseLogger.Warn("gateway_disabled_missing_credentials")
	}

	updater := appbilling.NewSubscriptionUpdater(accountRepo, promoRepo, eventStore, bus, tel)
	billingService := appbilling.NewService(accountRepo, promoRepo, gw, updater, cfg.Currency, cfg.DefaultPaidAmount, tel)
	webhookProcessor := appbilling.NewWebhookProcessor(cfg.WebhookSecret, updater, tel)

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)

	handler := httppresentation.NewHandler(
		orderService, billingService, webhookProcessor, tokens, promhttp.Handler(), tel,
	)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler.Router(),
	}

	go func() {
		baseLogger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Error("http_server_error", observability.F("error", err.Error()))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		baseLogger.Info("http_server_stopped")
	}
}

func buildCounters(namespace string) map[observability.MetricKey]observability.Counter {
	reg := prometrics.New(namespace, "")
	return map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: reg.Counter(
			string(observability.MUsecaseRequests), "Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: reg.Counter(
			string(observability.MHTTPRequests), "Total number of HTTP requests.",
			"method", "route", "status",
		),
		observability.MExternalRequests: reg.Counter(
			string(observability.MExternalRequests), "Total number of outbound gateway requests.",
			"target", "outcome",
		),
		observability.MWebhookEvents: reg.Counter(
			string(observability.MWebhookEvents), "Total number of verified webhook events.",
			"event",
		),
		observability.MWebhookProcessFailures: reg.Counter(
			string(observability.MWebhookProcessFailures), "Count of webhook processing failures.",
			"reason",
		),
		observability.MStockConflicts: reg.Counter(
			string(observability.MStockConflicts), "Count of order lines rejected for insufficient stock.",
			"product_id",
		),
		observability.MPromotionClaims: reg.Counter(
			string(observability.MPromotionClaims), "Count of promotional slots claimed.",
			"reward",
		),
	}
}

func buildHistograms(namespace string) map[observability.MetricKey]observability.Histogram {
	reg := prometrics.New(namespace, "")
	return map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: reg.Histogram(
			string(observability.MUsecaseDuration), "Duration of use case execution in seconds.", nil,
			"use_case",
		),
		observability.MHTTPRequestDuration: reg.Histogram(
			string(observability.MHTTPRequestDuration), "Duration of HTTP requests in seconds.", nil,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: reg.Histogram(
			string(observability.MExternalRequestDuration), "Duration of outbound gateway requests in seconds.", nil,
			"target",
		),
	}
}
