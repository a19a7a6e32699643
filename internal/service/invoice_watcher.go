package service

import (
	"context"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/internal/lightning"

	"github.com/rs/zerolog"
)

const (
	invoiceWatcherMinBackoff = time.Second
	invoiceWatcherMaxBackoff = 60 * time.Second
)

// lightningSubscriber is the seam invoice_watcher_test.go fakes; the real
// implementation is internal/lightning.Client.
type lightningSubscriber interface {
	SubscribeInvoices(ctx context.Context) (<-chan lightning.SettledInvoice, <-chan error)
}

// InvoiceWatcherImpl implements ports.InvoiceWatcher: it holds the LND
// invoice subscription and credits wallets on settlement, per spec §4.10.
type InvoiceWatcherImpl struct {
	client      lightningSubscriber
	invoiceRepo ports.InvoiceRepository
	walletRepo  ports.WalletRepository
	accountRepo ports.AccountRepository
	ledger      ports.LedgerService
	log         zerolog.Logger
}

func NewInvoiceWatcher(
	client lightningSubscriber,
	invoiceRepo ports.InvoiceRepository,
	walletRepo ports.WalletRepository,
	accountRepo ports.AccountRepository,
	ledger ports.LedgerService,
	log zerolog.Logger,
) *InvoiceWatcherImpl {
	return &InvoiceWatcherImpl{
		client:      client,
		invoiceRepo: invoiceRepo,
		walletRepo:  walletRepo,
		accountRepo: accountRepo,
		ledger:      ledger,
		log:         log,
	}
}

// Run subscribes to the invoice stream and reconnects with exponential
// backoff (1s doubled per failure, capped at 60s, reset once a subscription
// delivers a settled invoice) until ctx is cancelled.
func (w *InvoiceWatcherImpl) Run(ctx context.Context) error {
	backoff := invoiceWatcherMinBackoff

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		settled, errs := w.client.SubscribeInvoices(ctx)
		connected := true

		for connected {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case inv, ok := <-settled:
				if !ok {
					connected = false
					break
				}
				backoff = invoiceWatcherMinBackoff
				if err := w.handleSettled(ctx, inv); err != nil {
					w.log.Error().Err(err).Str("r_hash", inv.RHash).Msg("failed to process settled invoice")
				}
			case err := <-errs:
				w.log.Warn().Err(err).Msg("invoice subscription dropped, reconnecting")
				connected = false
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > invoiceWatcherMaxBackoff {
			backoff = invoiceWatcherMaxBackoff
		}
	}
}

func (w *InvoiceWatcherImpl) handleSettled(ctx context.Context, settled lightning.SettledInvoice) error {
	inv, claimed, err := w.invoiceRepo.ClaimSettled(ctx, settled.RHash, time.Now())
	if err != nil {
		return fmt.Errorf("claim settled invoice: %w", err)
	}
	if !claimed {
		return nil
	}

	if _, err := w.ledger.Credit(ctx, inv.WalletID, domain.CurrencySats, inv.AmountSats, "invoice", inv.ID, "lightning invoice settled"); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	wallet, err := w.walletRepo.GetByID(ctx, inv.WalletID)
	if err != nil || wallet == nil {
		return fmt.Errorf("load wallet for promotion check: %w", err)
	}
	account, err := w.accountRepo.GetByID(ctx, wallet.AccountID)
	if err != nil || account == nil {
		return fmt.Errorf("load account for promotion check: %w", err)
	}
	if account.DefaultCurrency != domain.CurrencySats {
		if err := w.accountRepo.PromoteToSats(ctx, account.ID); err != nil {
			return fmt.Errorf("promote account to sats: %w", err)
		}
	}

	return nil
}
