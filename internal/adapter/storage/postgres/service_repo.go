package postgres

import (
	"context"
	"errors"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// ServiceRepo implements ports.ServiceRepository: the registry of upstream
// providers and their per-operation pricing.
type ServiceRepo struct {
	pool Pool
}

func NewServiceRepo(pool Pool) ports.ServiceRepository {
	return &ServiceRepo{pool: pool}
}

const serviceColumns = `id, slug, name, tier, status, base_url, auth_type, auth_credential_env, created_at, updated_at`

func (r *ServiceRepo) GetBySlug(ctx context.Context, slug string) (*domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE slug = $1`
	return scanService(r.pool.QueryRow(ctx, query, slug))
}

func (r *ServiceRepo) ListActive(ctx context.Context) ([]domain.Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services WHERE status = $1 ORDER BY slug ASC`
	rows, err := r.pool.Query(ctx, query, domain.ServiceStatusActive)
	if err != nil {
		return nil, fmt.Errorf("list active services: %w", err)
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		s := domain.Service{}
		if err := rows.Scan(&s.ID, &s.Slug, &s.Name, &s.Tier, &s.Status, &s.BaseURL, &s.AuthType, &s.AuthCredentialEnv, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan service row: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service rows: %w", err)
	}
	return services, nil
}

const pricingColumns = `service_id, operation, cost_usd_micros, price_usd_micros, price_sats, unit, updated_at`

func (r *ServiceRepo) GetPricing(ctx context.Context, serviceID, operation string) (*domain.ServicePricing, error) {
	query := `SELECT ` + pricingColumns + ` FROM service_pricing WHERE service_id = $1 AND operation = $2`
	return scanPricing(r.pool.QueryRow(ctx, query, serviceID, operation))
}

// ListAllPricing returns every row, for the full recompute the pricing
// oracle runs whenever the BTC/USD rate advances.
func (r *ServiceRepo) ListAllPricing(ctx context.Context) ([]domain.ServicePricing, error) {
	query := `SELECT ` + pricingColumns + ` FROM service_pricing`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list all pricing: %w", err)
	}
	defer rows.Close()

	var pricing []domain.ServicePricing
	for rows.Next() {
		p := domain.ServicePricing{}
		if err := rows.Scan(&p.ServiceID, &p.Operation, &p.CostUSDMicros, &p.PriceUSDMicros, &p.PriceSats, &p.Unit, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan pricing row: %w", err)
		}
		pricing = append(pricing, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pricing rows: %w", err)
	}
	return pricing, nil
}

func (r *ServiceRepo) UpdatePriceSats(ctx context.Context, serviceID, operation string, priceSats int64) error {
	query := `UPDATE service_pricing SET price_sats = $1, updated_at = NOW() WHERE service_id = $2 AND operation = $3`
	tag, err := r.pool.Exec(ctx, query, priceSats, serviceID, operation)
	if err != nil {
		return fmt.Errorf("update price sats: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pricing row not found: %s/%s", serviceID, operation)
	}
	return nil
}

func scanService(row pgx.Row) (*domain.Service, error) {
	s := &domain.Service{}
	err := row.Scan(&s.ID, &s.Slug, &s.Name, &s.Tier, &s.Status, &s.BaseURL, &s.AuthType, &s.AuthCredentialEnv, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan service: %w", err)
	}
	return s, nil
}

func scanPricing(row pgx.Row) (*domain.ServicePricing, error) {
	p := &domain.ServicePricing{}
	err := row.Scan(&p.ServiceID, &p.Operation, &p.CostUSDMicros, &p.PriceUSDMicros, &p.PriceSats, &p.Unit, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan pricing: %w", err)
	}
	return p, nil
}
