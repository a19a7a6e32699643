package postgres

import (
	"context"
	"errors"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// AccountRepo implements ports.AccountRepository.
type AccountRepo struct {
	pool Pool
}

func NewAccountRepo(pool Pool) ports.AccountRepository {
	return &AccountRepo{pool: pool}
}

const accountColumns = `id, email, password_hash, default_currency, created_at, updated_at`

func (r *AccountRepo) Create(ctx context.Context, a *domain.Account) error {
	query := `INSERT INTO accounts (` + accountColumns + `) VALUES ($1, $2, $3, $4, NOW(), NOW())`
	_, err := r.pool.Exec(ctx, query, a.ID, a.Email, a.PasswordHash, a.DefaultCurrency)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

func (r *AccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, id))
}

func (r *AccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE email = $1`
	return scanAccount(r.pool.QueryRow(ctx, query, email))
}

// PromoteToSats is the one-shot default-currency flip triggered on an
// account's first Lightning credit (spec §4.10).
func (r *AccountRepo) PromoteToSats(ctx context.Context, id string) error {
	query := `UPDATE accounts SET default_currency = $1, updated_at = NOW() WHERE id = $2 AND default_currency = $3`
	_, err := r.pool.Exec(ctx, query, domain.CurrencySats, id, domain.CurrencyUSDCents)
	if err != nil {
		return fmt.Errorf("promote account to sats: %w", err)
	}
	return nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	a := &domain.Account{}
	err := row.Scan(&a.ID, &a.Email, &a.PasswordHash, &a.DefaultCurrency, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return a, nil
}
