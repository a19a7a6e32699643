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

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

func NewInvoiceRepo(pool Pool) ports.InvoiceRepository {
	return &InvoiceRepo{pool: pool}
}

const invoiceColumns = `id, wallet_id, amount_sats, payment_request, r_hash, status, expires_at, settled_at, created_at`

func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	query := `INSERT INTO invoices (` + invoiceColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())`
	_, err := r.pool.Exec(ctx, query, inv.ID, inv.WalletID, inv.AmountSats, inv.PaymentRequest, inv.RHash, inv.Status, inv.ExpiresAt, inv.SettledAt)
	if err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByRHash(ctx context.Context, rHash string) (*domain.Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE r_hash = $1`
	return scanInvoice(r.pool.QueryRow(ctx, query, rHash))
}

// ClaimSettled performs the conditional transition that makes settlement
// idempotent: a duplicate delivery of the same event matches zero rows and
// returns claimed=false rather than crediting twice (spec §4.10).
func (r *InvoiceRepo) ClaimSettled(ctx context.Context, rHash string, settledAt time.Time) (*domain.Invoice, bool, error) {
	query := `UPDATE invoices SET status = $1, settled_at = $2
		WHERE r_hash = $3 AND status = $4
		RETURNING ` + invoiceColumns

	inv, err := scanInvoice(r.pool.QueryRow(ctx, query, domain.InvoiceStatusSettled, settledAt, rHash, domain.InvoiceStatusPending))
	if err != nil {
		return nil, false, fmt.Errorf("claim settled invoice: %w", err)
	}
	if inv == nil {
		existing, err := r.GetByRHash(ctx, rHash)
		if err != nil {
			return nil, false, fmt.Errorf("lookup unclaimed invoice: %w", err)
		}
		return existing, false, nil
	}
	return inv, true, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	inv := &domain.Invoice{}
	err := row.Scan(&inv.ID, &inv.WalletID, &inv.AmountSats, &inv.PaymentRequest, &inv.RHash, &inv.Status, &inv.ExpiresAt, &inv.SettledAt, &inv.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan invoice: %w", err)
	}
	return inv, nil
}
