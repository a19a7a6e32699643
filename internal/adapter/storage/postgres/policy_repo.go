package postgres

import (
	"context"
	"errors"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// PolicyRepo implements ports.PolicyRepository.
type PolicyRepo struct {
	pool Pool
}

func NewPolicyRepo(pool Pool) ports.PolicyRepository {
	return &PolicyRepo{pool: pool}
}

const policyColumns = `agent_id, max_per_call_sats, max_per_day_sats, max_balance_sats,
	allowed_services, denied_services, allowed_capabilities, denied_capabilities, kill_switch, updated_at`

func (r *PolicyRepo) GetByAgentID(ctx context.Context, agentID string) (*domain.Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM policies WHERE agent_id = $1`
	p := &domain.Policy{}
	err := r.pool.QueryRow(ctx, query, agentID).Scan(
		&p.AgentID, &p.MaxPerCallSats, &p.MaxPerDaySats, &p.MaxBalanceSats,
		&p.AllowedServices, &p.DeniedServices, &p.AllowedCapabilities, &p.DeniedCapabilities,
		&p.KillSwitch, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get policy by agent id: %w", err)
	}
	return p, nil
}

// Upsert replaces the entire policy row; there is at most one per agent.
func (r *PolicyRepo) Upsert(ctx context.Context, p *domain.Policy) error {
	query := `INSERT INTO policies (` + policyColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (agent_id) DO UPDATE SET
			max_per_call_sats = EXCLUDED.max_per_call_sats,
			max_per_day_sats = EXCLUDED.max_per_day_sats,
			max_balance_sats = EXCLUDED.max_balance_sats,
			allowed_services = EXCLUDED.allowed_services,
			denied_services = EXCLUDED.denied_services,
			allowed_capabilities = EXCLUDED.allowed_capabilities,
			denied_capabilities = EXCLUDED.denied_capabilities,
			kill_switch = EXCLUDED.kill_switch,
			updated_at = NOW()`

	_, err := r.pool.Exec(ctx, query,
		p.AgentID, p.MaxPerCallSats, p.MaxPerDaySats, p.MaxBalanceSats,
		p.AllowedServices, p.DeniedServices, p.AllowedCapabilities, p.DeniedCapabilities, p.KillSwitch,
	)
	if err != nil {
		return fmt.Errorf("upsert policy: %w", err)
	}
	return nil
}
