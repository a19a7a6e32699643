package postgres

import (
	"context"
	"errors"
	"fmt"

	"saturn/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository. Hold/Settle/Release are
// each a single conditional UPDATE rather than SELECT ... FOR UPDATE — see
// internal/service/ledger_service.go for why.
type WalletRepo struct {
	pool Pool
}

func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, account_id, balance_sats, held_sats, balance_usd_cents, held_usd_cents, lifetime_in_sats, lifetime_out_sats, created_at, updated_at)
		VALUES ($1, $2, 0, 0, 0, 0, 0, 0, NOW(), NOW())`
	if _, err := r.pool.Exec(ctx, query, w.ID, w.AccountID); err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.AccountID, &w.BalanceSats, &w.HeldSats, &w.BalanceUSDCents, &w.HeldUSDCents,
		&w.LifetimeInSats, &w.LifetimeOutSats, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}

const walletColumns = `id, account_id, balance_sats, held_sats, balance_usd_cents, held_usd_cents, lifetime_in_sats, lifetime_out_sats, created_at, updated_at`

func (r *WalletRepo) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

func (r *WalletRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE account_id = $1`, accountID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by account id: %w", err)
	}
	return w, nil
}

// Credit applies an increment to balance + lifetime_in. When maxBalanceSats
// is non-nil and the currency is sats, the entire credit is rejected (zero
// rows affected, not partially applied) if it would push balance_sats above
// the cap.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, amount int64, maxBalanceSats *int64) (*domain.Wallet, error) {
	var query string
	args := []any{amount, walletID}

	if currency == domain.CurrencySats {
		query = `UPDATE wallets SET
			balance_sats = balance_sats + $1,
			lifetime_in_sats = lifetime_in_sats + $1,
			updated_at = NOW()
			WHERE id = $2 AND ($3::BIGINT IS NULL OR balance_sats + $1 <= $3)
			RETURNING ` + walletColumns
		args = append(args, maxBalanceSats)
	} else {
		query = `UPDATE wallets SET
			balance_usd_cents = balance_usd_cents + $1,
			updated_at = NOW()
			WHERE id = $2
			RETURNING ` + walletColumns
	}

	w, err := scanWallet(tx.QueryRow(ctx, query, args...))
	if err != nil {
		return nil, fmt.Errorf("credit wallet: %w", err)
	}
	return w, nil
}

// Hold attempts `balance -= n, held += n WHERE balance >= n` as a single
// statement; a zero-row result means insufficient funds, returned as
// ok=false rather than an error.
func (r *WalletRepo) Hold(ctx context.Context, walletID string, currency domain.Currency, amount int64) (bool, error) {
	var query string
	if currency == domain.CurrencySats {
		query = `UPDATE wallets SET
			balance_sats = balance_sats - $1,
			held_sats = held_sats + $1,
			updated_at = NOW()
			WHERE id = $2 AND balance_sats >= $1`
	} else {
		query = `UPDATE wallets SET
			balance_usd_cents = balance_usd_cents - $1,
			held_usd_cents = held_usd_cents + $1,
			updated_at = NOW()
			WHERE id = $2 AND balance_usd_cents >= $1`
	}

	tag, err := r.pool.Exec(ctx, query, amount, walletID)
	if err != nil {
		return false, fmt.Errorf("hold funds: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Settle applies `held -= held, balance += held-final, lifetime_out += final`.
func (r *WalletRepo) Settle(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held, final int64) (*domain.Wallet, error) {
	var query string
	if currency == domain.CurrencySats {
		query = `UPDATE wallets SET
			held_sats = held_sats - $1,
			balance_sats = balance_sats + ($1 - $2),
			lifetime_out_sats = lifetime_out_sats + $2,
			updated_at = NOW()
			WHERE id = $3 AND held_sats >= $1
			RETURNING ` + walletColumns
	} else {
		query = `UPDATE wallets SET
			held_usd_cents = held_usd_cents - $1,
			balance_usd_cents = balance_usd_cents + ($1 - $2),
			updated_at = NOW()
			WHERE id = $3 AND held_usd_cents >= $1
			RETURNING ` + walletColumns
	}

	w, err := scanWallet(tx.QueryRow(ctx, query, held, final, walletID))
	if err != nil {
		return nil, fmt.Errorf("settle wallet: %w", err)
	}
	return w, nil
}

// Release applies `held -= held, balance += held`.
func (r *WalletRepo) Release(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held int64) (*domain.Wallet, error) {
	var query string
	if currency == domain.CurrencySats {
		query = `UPDATE wallets SET
			held_sats = held_sats - $1,
			balance_sats = balance_sats + $1,
			updated_at = NOW()
			WHERE id = $2 AND held_sats >= $1
			RETURNING ` + walletColumns
	} else {
		query = `UPDATE wallets SET
			held_usd_cents = held_usd_cents - $1,
			balance_usd_cents = balance_usd_cents + $1,
			updated_at = NOW()
			WHERE id = $2 AND held_usd_cents >= $1
			RETURNING ` + walletColumns
	}

	w, err := scanWallet(tx.QueryRow(ctx, query, held, walletID))
	if err != nil {
		return nil, fmt.Errorf("release wallet: %w", err)
	}
	return w, nil
}
