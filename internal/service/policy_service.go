package service

import (
	"context"
	"time"

	"saturn/internal/cache"
	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

const (
	dailySpendCacheTTL     = 60 * time.Second
	dailySpendCacheMaxSize = 100_000
)

// PolicyServiceImpl implements ports.PolicyService: the eight-rule ordered
// evaluator of spec §4.4 plus the daily-spend cache it depends on. The
// evaluation itself is a sequential guard-clause chain in the style of the
// teacher's payment_service.go validation chain, generalized from a single
// insufficient-funds check to eight ordered rules.
type PolicyServiceImpl struct {
	auditRepo   ports.AuditRepository
	dailySpend  *cache.Bounded[string, int64]
	log         zerolog.Logger
}

func NewPolicyService(auditRepo ports.AuditRepository, log zerolog.Logger) *PolicyServiceImpl {
	return &PolicyServiceImpl{
		auditRepo:  auditRepo,
		dailySpend: cache.NewBounded[string, int64](dailySpendCacheTTL, dailySpendCacheMaxSize),
		log:        log,
	}
}

// Evaluate runs the eight rules in strict order; the first failure
// short-circuits with its machine-readable reason.
func (s *PolicyServiceImpl) Evaluate(ctx context.Context, agent *domain.Agent, policy *domain.Policy, serviceSlug, capability string, quotedSats int64) (*ports.PolicyDecision, error) {
	if !agent.Active() {
		return deny(domain.ReasonAgentNotActive), nil
	}
	if policy.KillSwitch {
		return deny(domain.ReasonKillSwitchActive), nil
	}
	if allowed, reason := policy.ServiceAllowed(serviceSlug); !allowed {
		return deny(reason), nil
	}
	if allowed, reason := policy.CapabilityAllowed(capability); !allowed {
		return deny(reason), nil
	}
	if policy.MaxPerCallSats != nil && quotedSats > *policy.MaxPerCallSats {
		return deny(domain.ReasonPerCallLimit), nil
	}
	if policy.MaxPerDaySats != nil {
		spent, err := s.dailySpendFor(ctx, agent.ID)
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		if spent+quotedSats > *policy.MaxPerDaySats {
			return deny(domain.ReasonDailyLimit), nil
		}
	}

	return &ports.PolicyDecision{Allowed: true}, nil
}

func deny(reason string) *ports.PolicyDecision {
	return &ports.PolicyDecision{Allowed: false, Reason: reason}
}

// dailySpendFor returns today's (UTC) sum of charged_sats from allowed
// calls, serving from the 60s cache when possible.
func (s *PolicyServiceImpl) dailySpendFor(ctx context.Context, agentID string) (int64, error) {
	if cached, ok := s.dailySpend.Get(agentID); ok {
		return cached, nil
	}

	since := time.Now().UTC().Truncate(24 * time.Hour)
	spent, err := s.auditRepo.DailySpend(ctx, agentID, since)
	if err != nil {
		return 0, err
	}

	s.dailySpend.Set(agentID, spent)
	return spent, nil
}

// InvalidateDailySpend is called by the Audit Log (§4.2) whenever a new
// allowed call is logged for agentID.
func (s *PolicyServiceImpl) InvalidateDailySpend(agentID string) {
	s.dailySpend.Invalidate(agentID)
}

// RecordPolicyMutation is called whenever an agent's policy is replaced;
// it is a separate invalidation trigger from InvalidateDailySpend (a
// policy edit doesn't change today's spend, but a stale cache entry from
// before the edit could otherwise outlive the mutation it should reflect
// on the next evaluate).
func (s *PolicyServiceImpl) RecordPolicyMutation(agentID string) {
	s.dailySpend.Invalidate(agentID)
}
