package service

import (
	"context"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

// LedgerServiceImpl implements ports.LedgerService. Unlike the pessimistic
// SELECT ... FOR UPDATE pattern, every mutation is a single conditional
// UPDATE guarded by WHERE balance >= n; zero rows affected is read as
// business failure (insufficient funds) rather than a locking error.
type LedgerServiceImpl struct {
	walletRepo ports.WalletRepository
	txRepo     ports.TransactionRepository
	agentRepo  ports.AgentRepository
	policyRepo ports.PolicyRepository
	transactor ports.DBTransactor
	log        zerolog.Logger
}

func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	agentRepo ports.AgentRepository,
	policyRepo ports.PolicyRepository,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo: walletRepo,
		txRepo:     txRepo,
		agentRepo:  agentRepo,
		policyRepo: policyRepo,
		transactor: transactor,
		log:        log,
	}
}

// maxBalanceCap resolves the account's balance cap from its primary agent's
// policy. max_balance_sats is declared per-agent (spec §3), but wallets are
// credited at the account level (invoice settlement, card checkout); the
// primary agent is the one agent per account that represents it, so its
// policy is the cap a whole-account credit is measured against. A missing
// primary agent or policy means no cap.
func (s *LedgerServiceImpl) maxBalanceCap(ctx context.Context, accountID string) (*int64, error) {
	agents, err := s.agentRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list agents for cap lookup: %w", err)
	}
	for _, a := range agents {
		if a.Role != domain.AgentRolePrimary {
			continue
		}
		policy, err := s.policyRepo.GetByAgentID(ctx, a.ID)
		if err != nil {
			return nil, fmt.Errorf("get primary agent policy for cap lookup: %w", err)
		}
		if policy == nil {
			return nil, nil
		}
		return policy.MaxBalanceSats, nil
	}
	return nil, nil
}

// Credit increments the balance (and, for sats, lifetime_in) and inserts a
// credit Transaction: credit_lightning for sats, credit_card for USD cents.
// Idempotent by (referenceType, referenceID): a duplicate call returns the
// original Transaction untouched.
func (s *LedgerServiceImpl) Credit(ctx context.Context, walletID string, currency domain.Currency, amount int64, referenceType, referenceID, description string) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, apperror.ErrValidation("credit amount must be positive")
	}

	if existing, err := s.txRepo.GetByReference(ctx, referenceType, referenceID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing credit: %w", err))
	} else if existing != nil {
		return existing, nil
	}

	existingWallet, err := s.walletRepo.GetByID(ctx, walletID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("look up wallet for credit: %w", err))
	}
	if existingWallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}

	var balanceCap *int64
	if currency == domain.CurrencySats {
		balanceCap, err = s.maxBalanceCap(ctx, existingWallet.AccountID)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.Credit(ctx, dbTx, walletID, currency, amount, balanceCap)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}
	if wallet == nil {
		if balanceCap != nil {
			return nil, apperror.ErrValidation(fmt.Sprintf("credit of %d would exceed wallet's max_balance_sats cap of %d", amount, *balanceCap))
		}
		return nil, apperror.ErrNotFound("wallet")
	}

	txn := &domain.Transaction{
		ID:          domain.NewID("txn"),
		WalletID:    walletID,
		Type:        domain.TransactionTypeCreditLightning,
		Currency:    currency,
		ReferenceType: referenceType,
		ReferenceID:   referenceID,
		Description:   description,
	}
	if currency == domain.CurrencySats {
		txn.AmountSats = amount
		txn.BalanceAfterSats = wallet.BalanceSats
	} else {
		txn.Type = domain.TransactionTypeCreditCard
		txn.AmountUSDCents = amount
		txn.BalanceAfterUSDCents = wallet.BalanceUSDCents
	}

	created, err := s.txRepo.Create(ctx, dbTx, txn)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create credit transaction: %w", err))
	}
	if !created {
		// Raced with a concurrent identical credit; the unique constraint
		// on (reference_type, reference_id) caught it at insert time.
		if err := dbTx.Rollback(ctx); err != nil {
			s.log.Warn().Err(err).Msg("rollback after idempotent race")
		}
		existing, err := s.txRepo.GetByReference(ctx, referenceType, referenceID)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("fetch raced credit: %w", err))
		}
		return existing, nil
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit credit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_id", walletID).
		Int64("amount", amount).
		Str("reference_id", referenceID).
		Msg("wallet credited")

	return txn, nil
}

// Hold attempts to reserve funds in defaultCurrency first; on failure,
// tries the other currency; on both failures returns {Success: false}.
// No Transaction row is written for a hold.
func (s *LedgerServiceImpl) Hold(ctx context.Context, walletID string, defaultCurrency domain.Currency, usdCents, sats int64) (*ports.HoldResult, error) {
	first, firstAmount := defaultCurrency, usdCents
	second, secondAmount := otherCurrency(defaultCurrency), sats
	if defaultCurrency == domain.CurrencySats {
		first, firstAmount = domain.CurrencySats, sats
		second, secondAmount = domain.CurrencyUSDCents, usdCents
	}

	ok, err := s.walletRepo.Hold(ctx, walletID, first, firstAmount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hold %s: %w", first, err))
	}
	if ok {
		return &ports.HoldResult{Success: true, CurrencyHeld: first, AmountHeld: firstAmount}, nil
	}

	ok, err = s.walletRepo.Hold(ctx, walletID, second, secondAmount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hold %s: %w", second, err))
	}
	if ok {
		return &ports.HoldResult{Success: true, CurrencyHeld: second, AmountHeld: secondAmount}, nil
	}

	result := &ports.HoldResult{Success: false}
	if wallet, err := s.walletRepo.GetByID(ctx, walletID); err == nil && wallet != nil {
		result.AvailableSats = wallet.Available(domain.CurrencySats)
		result.AvailableUSD = wallet.Available(domain.CurrencyUSDCents)
	}
	return result, nil
}

func otherCurrency(c domain.Currency) domain.Currency {
	if c == domain.CurrencySats {
		return domain.CurrencyUSDCents
	}
	return domain.CurrencySats
}

// Settle requires final <= held. held -= held; balance += (held - final);
// lifetime_out += final. Inserts a debit_proxy_call Transaction.
func (s *LedgerServiceImpl) Settle(ctx context.Context, walletID string, currency domain.Currency, held, final int64, agentID *string) (*domain.Wallet, error) {
	if final > held {
		return nil, apperror.InternalError(fmt.Errorf("settle: final %d exceeds held %d", final, held))
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.Settle(ctx, dbTx, walletID, currency, held, final)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settle wallet: %w", err))
	}
	if wallet == nil {
		// Zero rows affected on settle is a fatal accounting error, not a
		// business failure: the hold was already taken, it must exist.
		return nil, apperror.InternalError(fmt.Errorf("settle: no row matched wallet %s", walletID))
	}

	txn := &domain.Transaction{
		ID:            domain.NewID("txn"),
		WalletID:      walletID,
		AgentID:       agentID,
		Type:          domain.TransactionTypeDebitProxyCall,
		Currency:      currency,
		ReferenceType: "ledger_settle",
		ReferenceID:   domain.NewID("settle"),
	}
	if currency == domain.CurrencySats {
		txn.AmountSats = final
		txn.BalanceAfterSats = wallet.BalanceSats
	} else {
		txn.AmountUSDCents = final
		txn.BalanceAfterUSDCents = wallet.BalanceUSDCents
	}

	if _, err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create settle transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit settle tx: %w", err))
	}

	return wallet, nil
}

// Release reverses a hold in full: held -= held; balance += held. Inserts
// a refund Transaction.
func (s *LedgerServiceImpl) Release(ctx context.Context, walletID string, currency domain.Currency, held int64, agentID *string) (*domain.Wallet, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	wallet, err := s.walletRepo.Release(ctx, dbTx, walletID, currency, held)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("release wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.InternalError(fmt.Errorf("release: no row matched wallet %s", walletID))
	}

	txn := &domain.Transaction{
		ID:            domain.NewID("txn"),
		WalletID:      walletID,
		AgentID:       agentID,
		Type:          domain.TransactionTypeRefund,
		Currency:      currency,
		ReferenceType: "ledger_release",
		ReferenceID:   domain.NewID("release"),
	}
	if currency == domain.CurrencySats {
		txn.AmountSats = held
		txn.BalanceAfterSats = wallet.BalanceSats
	} else {
		txn.AmountUSDCents = held
		txn.BalanceAfterUSDCents = wallet.BalanceUSDCents
	}

	if _, err := s.txRepo.Create(ctx, dbTx, txn); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create release transaction: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit release tx: %w", err))
	}

	return wallet, nil
}
