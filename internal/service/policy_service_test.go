package service

import (
	"context"
	"testing"
	"time"

	"saturn/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuditRepoForPolicy struct {
	spend map[string]int64
}

func (r *fakeAuditRepoForPolicy) Create(ctx context.Context, entry *domain.AuditLog) error { return nil }
func (r *fakeAuditRepoForPolicy) DailySpend(ctx context.Context, agentID string, since time.Time) (int64, error) {
	return r.spend[agentID], nil
}

func activeAgent() *domain.Agent {
	return &domain.Agent{ID: "agt1", Status: domain.AgentStatusActive}
}

func TestPolicyService_Evaluate_AgentNotActive(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())
	agent := &domain.Agent{ID: "agt1", Status: domain.AgentStatusSuspended}

	d, err := svc.Evaluate(context.Background(), agent, &domain.Policy{}, "openai", "reason", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonAgentNotActive, d.Reason)
}

func TestPolicyService_Evaluate_KillSwitch(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), activeAgent(), &domain.Policy{KillSwitch: true}, "openai", "reason", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonKillSwitchActive, d.Reason)
}

func TestPolicyService_Evaluate_ServiceDenied(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())
	policy := &domain.Policy{DeniedServices: []string{"openai"}}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonServiceDenied, d.Reason)
}

func TestPolicyService_Evaluate_ServiceNotAllowed(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())
	policy := &domain.Policy{AllowedServices: []string{"anthropic"}}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonServiceNotAllowed, d.Reason)
}

func TestPolicyService_Evaluate_CapabilitySkippedWhenEmpty(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())
	policy := &domain.Policy{AllowedCapabilities: []string{"search"}}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 100)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestPolicyService_Evaluate_PerCallLimit(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())
	limit := int64(50)
	policy := &domain.Policy{MaxPerCallSats: &limit}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 100)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonPerCallLimit, d.Reason)
}

func TestPolicyService_Evaluate_DailyLimit(t *testing.T) {
	repo := &fakeAuditRepoForPolicy{spend: map[string]int64{"agt1": 900}}
	svc := NewPolicyService(repo, zerolog.Nop())
	limit := int64(1000)
	policy := &domain.Policy{MaxPerDaySats: &limit}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 200)
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, domain.ReasonDailyLimit, d.Reason)
}

func TestPolicyService_Evaluate_Allowed(t *testing.T) {
	svc := NewPolicyService(&fakeAuditRepoForPolicy{}, zerolog.Nop())

	d, err := svc.Evaluate(context.Background(), activeAgent(), &domain.Policy{}, "openai", "search", 100)
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestPolicyService_DailySpend_CachedBetweenCalls(t *testing.T) {
	repo := &fakeAuditRepoForPolicy{spend: map[string]int64{"agt1": 100}}
	svc := NewPolicyService(repo, zerolog.Nop())
	limit := int64(150)
	policy := &domain.Policy{MaxPerDaySats: &limit}

	d, err := svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 40)
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	// Change the underlying spend; cache should still return the stale
	// value until invalidated.
	repo.spend["agt1"] = 149
	d, err = svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 40)
	require.NoError(t, err)
	assert.True(t, d.Allowed, "cached daily spend should not reflect the live update yet")

	svc.InvalidateDailySpend("agt1")
	d, err = svc.Evaluate(context.Background(), activeAgent(), policy, "openai", "", 40)
	require.NoError(t, err)
	assert.False(t, d.Allowed, "after invalidation the fresh spend should be read")
}
