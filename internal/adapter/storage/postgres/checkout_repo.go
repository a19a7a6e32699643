package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// CheckoutRepo implements ports.CheckoutRepository.
type CheckoutRepo struct {
	pool Pool
}

func NewCheckoutRepo(pool Pool) ports.CheckoutRepository {
	return &CheckoutRepo{pool: pool}
}

const checkoutColumns = `id, wallet_id, amount_usd_cents, btc_usd_rate, amount_sats, status, provider_ref, completed_at, created_at`

func (r *CheckoutRepo) Create(ctx context.Context, cs *domain.CheckoutSession) error {
	query := `INSERT INTO checkout_sessions (` + checkoutColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`
	_, err := r.pool.Exec(ctx, query, cs.ID, cs.WalletID, cs.AmountUSDCents, cs.BTCUSDRate, cs.AmountSats, cs.Status, cs.ProviderRef, cs.CompletedAt)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (r *CheckoutRepo) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	query := `SELECT ` + checkoutColumns + ` FROM checkout_sessions WHERE id = $1`
	return scanCheckout(r.pool.QueryRow(ctx, query, id))
}

// ClaimCompleted performs the conditional transition that makes the Stripe
// webhook idempotent: a replayed delivery matches zero rows and returns
// claimed=false rather than crediting the wallet twice (spec §4.11).
func (r *CheckoutRepo) ClaimCompleted(ctx context.Context, id string, completedAt time.Time) (*domain.CheckoutSession, bool, error) {
	query := `UPDATE checkout_sessions SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
		RETURNING ` + checkoutColumns

	cs, err := scanCheckout(r.pool.QueryRow(ctx, query, domain.CheckoutStatusCompleted, completedAt, id, domain.CheckoutStatusPending))
	if err != nil {
		return nil, false, fmt.Errorf("claim completed checkout session: %w", err)
	}
	if cs == nil {
		existing, err := r.GetByID(ctx, id)
		if err != nil {
			return nil, false, fmt.Errorf("lookup unclaimed checkout session: %w", err)
		}
		return existing, false, nil
	}
	return cs, true, nil
}

func scanCheckout(row pgx.Row) (*domain.CheckoutSession, error) {
	cs := &domain.CheckoutSession{}
	err := row.Scan(&cs.ID, &cs.WalletID, &cs.AmountUSDCents, &cs.BTCUSDRate, &cs.AmountSats, &cs.Status, &cs.ProviderRef, &cs.CompletedAt, &cs.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan checkout session: %w", err)
	}
	return cs, nil
}
