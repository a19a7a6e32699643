package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"saturn/config"
	pgStorage "saturn/internal/adapter/storage/postgres"
	"saturn/internal/lightning"
	"saturn/internal/service"
	"saturn/pkg/logger"
)

// cmd/invoicewatcher runs the Lightning settlement subscription as its own
// process, separate from the API server, so a restart of one never drops
// the other's connection (spec §4.10).
func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().Msg("Starting Saturn invoice watcher")

	ctx := context.Background()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	lnClient, err := lightning.NewClient(cfg.LightningConfigView())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Lightning node")
	}
	defer lnClient.Close()

	invoiceRepo := pgStorage.NewInvoiceRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	accountRepo := pgStorage.NewAccountRepo(pool)
	agentRepo := pgStorage.NewAgentRepo(pool)
	policyRepo := pgStorage.NewPolicyRepo(pool)
	txnRepo := pgStorage.NewTransactionRepo(pool)
	ledgerSvc := service.NewLedgerService(walletRepo, txnRepo, agentRepo, policyRepo, pgStorage.NewTransactor(pool), log)

	watcher := service.NewInvoiceWatcher(lnClient, invoiceRepo, walletRepo, accountRepo, ledgerSvc, log)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- watcher.Run(runCtx)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		log.Info().Msg("Shutting down invoice watcher...")
		cancel()
		<-done
	case err := <-done:
		if err != nil && err != context.Canceled {
			log.Error().Err(err).Msg("Invoice watcher stopped unexpectedly")
		}
	}

	log.Info().Msg("Invoice watcher exited")
}
