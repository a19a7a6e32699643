package postgres

import (
	"context"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

func NewAuditRepository(pool Pool) ports.AuditRepository {
	return &AuditRepo{pool: pool}
}

func (r *AuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, agent_id, service_slug, capability, operation, request_body,
		policy_result, policy_reason, quoted_sats, charged_sats, quoted_usd_cents, charged_usd_cents,
		upstream_status, upstream_latency_ms, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, NOW())`

	_, err := r.pool.Exec(ctx, query,
		a.ID, a.AgentID, a.ServiceSlug, a.Capability, a.Operation, a.RequestBody,
		a.PolicyResult, a.PolicyReason, a.QuotedSats, a.ChargedSats, a.QuotedUSDCents, a.ChargedUSDCents,
		a.UpstreamStatus, a.UpstreamLatencyMs, a.Error,
	)
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}

// DailySpend sums charged_sats across an agent's audit log since the given
// time, backing the policy engine's per-day spend check (spec §4.4/§4.8).
func (r *AuditRepo) DailySpend(ctx context.Context, agentID string, since time.Time) (int64, error) {
	query := `SELECT COALESCE(SUM(charged_sats), 0) FROM audit_logs WHERE agent_id = $1 AND created_at >= $2`

	var total int64
	if err := r.pool.QueryRow(ctx, query, agentID, since).Scan(&total); err != nil {
		return 0, fmt.Errorf("sum daily spend: %w", err)
	}
	return total, nil
}
