// Package app assembles the reconciliation engine from configuration.
package app

import (
	"context"
	"net/http"

	"github.com/coinpay/backend/internal/chain"
	"github.com/coinpay/backend/internal/config"
	"github.com/coinpay/backend/internal/events"
	"github.com/coinpay/backend/internal/notify"
	"github.com/coinpay/backend/internal/reconciler"
	"github.com/coinpay/backend/internal/repositories"
	"github.com/coinpay/backend/internal/services"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// Engine holds the wired orchestrator plus the pieces the API reuses.
type Engine struct {
	Orchestrator *reconciler.Orchestrator
	Escrows      *repositories.EscrowRepo
}

// NewEngine wires repositories, chain providers, the webhook dispatcher and
// the platform client into an orchestrator. A TON lite server that cannot be
// reached leaves TON unsupported instead of failing startup.
func NewEngine(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, publisher events.Publisher, log *zap.Logger) *Engine {
	httpClient := &http.Client{Timeout: cfg.CallTimeout}

	var tonAPI chain.TONAccountAPI
	if cfg.TONEnabled {
		api, err := chain.ConnectTON(ctx, cfg.TONNetwork, cfg.LiteServerHost, cfg.LiteServerPort, cfg.LiteServerKey, log.Named("ton"))
		if err != nil {
			log.Error("ton lite server unavailable, TON balances disabled", zap.Error(err))
		} else {
			tonAPI = api
		}
	}

	registry := chain.NewRegistryFromConfig(cfg, httpClient, tonAPI, log)
	oracle := chain.NewOracle(registry, cfg.CallTimeout, log.Named("oracle"))

	paymentRepo := repositories.NewPaymentRepo(pool)
	escrowRepo := repositories.NewEscrowRepo(pool)
	seriesRepo := repositories.NewSeriesRepo(pool)
	webhookRepo := repositories.NewWebhookRepo(pool)

	dispatcher := notify.NewDispatcher(webhookRepo, httpClient, log.Named("webhook"))
	platform := services.NewPlatformClient(cfg.AppURL, cfg.InternalAPIKey, cfg.CallTimeout, log.Named("platform"))

	payments := reconciler.NewPaymentReconciler(paymentRepo, oracle, dispatcher, platform, publisher, cfg, log.Named("payments"))
	escrows := reconciler.NewEscrowMachine(escrowRepo, oracle, dispatcher, publisher, cfg, log.Named("escrows"))
	settler := reconciler.NewSettler(escrowRepo, platform, publisher, cfg, log.Named("settlement"))
	series := reconciler.NewSeriesScheduler(seriesRepo, platform, publisher, cfg, log.Named("series"))
	monitor := reconciler.NewRefundMonitor(escrowRepo, publisher, cfg, log.Named("refund_monitor"))

	log.Info("engine ready",
		zap.Strings("chains", registry.Chains()),
		zap.Strings("settlement_chains", cfg.SettlementChains),
	)

	return &Engine{
		Orchestrator: reconciler.NewOrchestrator(pool, payments, escrows, settler, series, monitor, publisher, log),
		Escrows:      escrowRepo,
	}
}
