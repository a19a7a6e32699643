package service

import (
	"context"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
)

// CheckoutServiceImpl implements ports.CheckoutService: the business
// logic behind the two inbound webhook endpoints (spec §4.11). Signature
// verification happens in the HTTP handler, over the raw body, before
// either method here is called.
type CheckoutServiceImpl struct {
	invoiceRepo  ports.InvoiceRepository
	checkoutRepo ports.CheckoutRepository
	walletRepo   ports.WalletRepository
	accountRepo  ports.AccountRepository
	ledger       ports.LedgerService
	log          zerolog.Logger
}

func NewCheckoutService(
	invoiceRepo ports.InvoiceRepository,
	checkoutRepo ports.CheckoutRepository,
	walletRepo ports.WalletRepository,
	accountRepo ports.AccountRepository,
	ledger ports.LedgerService,
	log zerolog.Logger,
) *CheckoutServiceImpl {
	return &CheckoutServiceImpl{
		invoiceRepo:  invoiceRepo,
		checkoutRepo: checkoutRepo,
		walletRepo:   walletRepo,
		accountRepo:  accountRepo,
		ledger:       ledger,
		log:          log,
	}
}

// HandleLightningWebhook is the webhook-delivered counterpart of the
// invoice watcher's gRPC stream path: same conditional claim, same
// idempotent credit, same one-shot currency promotion.
func (s *CheckoutServiceImpl) HandleLightningWebhook(ctx context.Context, rHash string, amountSats int64) error {
	inv, claimed, err := s.invoiceRepo.ClaimSettled(ctx, rHash, time.Now())
	if err != nil {
		return fmt.Errorf("claim settled invoice: %w", err)
	}
	if !claimed {
		return nil
	}

	if _, err := s.ledger.Credit(ctx, inv.WalletID, domain.CurrencySats, inv.AmountSats, "invoice", inv.ID, "lightning invoice settled"); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	return s.promoteIfNeeded(ctx, inv.WalletID)
}

// HandleStripeWebhook processes a card payment completion event: claims
// the checkout session exactly once, then credits the wallet in USD
// cents. Refund events are not routed here, and the webhook handler has no
// refund handling; nothing is ever auto-reversed.
func (s *CheckoutServiceImpl) HandleStripeWebhook(ctx context.Context, sessionID string, amountUSDCents int64) error {
	cs, claimed, err := s.checkoutRepo.ClaimCompleted(ctx, sessionID, time.Now())
	if err != nil {
		return fmt.Errorf("claim completed checkout session: %w", err)
	}
	if !claimed {
		return nil
	}

	if _, err := s.ledger.Credit(ctx, cs.WalletID, domain.CurrencyUSDCents, cs.AmountUSDCents, "checkout_session", cs.ID, "card payment completed"); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}

	return nil
}

func (s *CheckoutServiceImpl) promoteIfNeeded(ctx context.Context, walletID string) error {
	wallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil || wallet == nil {
		return fmt.Errorf("load wallet for promotion check: %w", err)
	}
	account, err := s.accountRepo.GetByID(ctx, wallet.AccountID)
	if err != nil || account == nil {
		return fmt.Errorf("load account for promotion check: %w", err)
	}
	if account.DefaultCurrency == domain.CurrencySats {
		return nil
	}
	if err := s.accountRepo.PromoteToSats(ctx, account.ID); err != nil {
		return fmt.Errorf("promote account to sats: %w", err)
	}
	return nil
}
