package service

import (
	"context"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
)

// dailySpendInvalidator is the narrow slice of ports.PolicyService the
// Audit Log needs: it invalidates the daily-spend cache for an agent the
// moment an allowed call is logged (spec §4.2/§4.4).
type dailySpendInvalidator interface {
	InvalidateDailySpend(agentID string)
}

// AuditServiceImpl implements ports.AuditService. Writes one row per Log
// call; the DB write happens on a background goroutine so a
// slow audit insert never adds latency to the proxy call it's recording,
// mirroring the teacher's fire-and-forget audit_service.go.
type AuditServiceImpl struct {
	repo   ports.AuditRepository
	policy dailySpendInvalidator
	log    zerolog.Logger
}

func NewAuditService(repo ports.AuditRepository, policy dailySpendInvalidator, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, policy: policy, log: log}
}

// Log redacts the request body, builds the AuditLog row, invalidates the
// daily-spend cache on an allowed entry, and persists asynchronously.
func (s *AuditServiceImpl) Log(ctx context.Context, entry ports.AuditEntry) (*domain.AuditLog, error) {
	row := &domain.AuditLog{
		ID:                domain.NewID("aud"),
		AgentID:           entry.AgentID,
		ServiceSlug:       entry.ServiceSlug,
		Capability:        entry.Capability,
		Operation:         entry.Operation,
		RequestBody:       redactJSON(entry.RequestBody),
		PolicyResult:      entry.PolicyResult,
		PolicyReason:      entry.PolicyReason,
		QuotedSats:        entry.QuotedSats,
		ChargedSats:       entry.ChargedSats,
		QuotedUSDCents:    entry.QuotedUSDCents,
		ChargedUSDCents:   entry.ChargedUSDCents,
		UpstreamStatus:    entry.UpstreamStatus,
		UpstreamLatencyMs: entry.UpstreamLatencyMs,
		Error:             entry.Error,
		CreatedAt:         time.Now().UTC(),
	}

	if row.PolicyResult == domain.PolicyResultAllowed && s.policy != nil {
		s.policy.InvalidateDailySpend(row.AgentID)
	}

	s.log.Info().
		Str("audit_id", row.ID).
		Str("agent_id", row.AgentID).
		Str("service_slug", row.ServiceSlug).
		Str("policy_result", string(row.PolicyResult)).
		Int64("charged_sats", row.ChargedSats).
		Msg("proxy call audited")

	go func() {
		if err := s.repo.Create(context.Background(), row); err != nil {
			s.log.Warn().Err(err).Str("audit_id", row.ID).Msg("failed to persist audit log")
		}
	}()

	return row, nil
}
