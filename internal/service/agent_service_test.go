package service

import (
	"context"
	"testing"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAgentPolicyService struct {
	mutated []string
}

func (p *fakeAgentPolicyService) Evaluate(ctx context.Context, agent *domain.Agent, policy *domain.Policy, serviceSlug, capability string, quotedSats int64) (*ports.PolicyDecision, error) {
	return &ports.PolicyDecision{Allowed: true}, nil
}
func (p *fakeAgentPolicyService) InvalidateDailySpend(agentID string) {}
func (p *fakeAgentPolicyService) RecordPolicyMutation(agentID string) {
	p.mutated = append(p.mutated, agentID)
}

func newAgentServiceHarness() (*AgentServiceImpl, *fakeAuthAgentRepo, *fakeAuthCache, *fakeAgentPolicyService) {
	agentRepo := &fakeAuthAgentRepo{agents: make(map[string]*domain.Agent)}
	policyRepo := &fakeAuthPolicyRepo{byAgent: make(map[string]*domain.Policy)}
	policySvc := &fakeAgentPolicyService{}
	authCache := newFakeAuthCache()
	hashSvc := NewArgon2HashService()
	svc := NewAgentService(agentRepo, policyRepo, policySvc, authCache, hashSvc, zerolog.Nop())
	return svc, agentRepo, authCache, policySvc
}

func TestAgentService_CreateWorker(t *testing.T) {
	svc, agentRepo, _, _ := newAgentServiceHarness()

	agent, plainKey, err := svc.CreateWorker(context.Background(), "acc_1", "scraper")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentRoleWorker, agent.Role)
	assert.Contains(t, plainKey, agentAPIKeyPrefix)
	assert.Equal(t, agent, agentRepo.agents[agent.ID])
}

func TestAgentService_Kill_InvalidatesAuthCache(t *testing.T) {
	svc, agentRepo, authCache, _ := newAgentServiceHarness()
	agent := &domain.Agent{ID: "agt_1", AccountID: "acc_1", Status: domain.AgentStatusActive}
	agentRepo.agents["agt_1"] = agent
	authCache.Set("tok1", &ports.AuthContext{Agent: agent})

	err := svc.Kill(context.Background(), "acc_1", "agt_1")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusKilled, agentRepo.agents["agt_1"].Status)

	_, ok := authCache.Get("tok1")
	assert.False(t, ok)
}

func TestAgentService_Kill_RejectsOtherAccountsAgent(t *testing.T) {
	svc, agentRepo, _, _ := newAgentServiceHarness()
	agentRepo.agents["agt_1"] = &domain.Agent{ID: "agt_1", AccountID: "acc_1", Status: domain.AgentStatusActive}

	err := svc.Kill(context.Background(), "acc_2", "agt_1")
	assert.Error(t, err, "an agent belonging to a different account must not be killable")
	assert.Equal(t, domain.AgentStatusActive, agentRepo.agents["agt_1"].Status)
}

func TestAgentService_Unkill(t *testing.T) {
	svc, agentRepo, _, _ := newAgentServiceHarness()
	agentRepo.agents["agt_2"] = &domain.Agent{ID: "agt_2", AccountID: "acc_1", Status: domain.AgentStatusKilled}

	err := svc.Unkill(context.Background(), "acc_1", "agt_2")
	require.NoError(t, err)
	assert.Equal(t, domain.AgentStatusActive, agentRepo.agents["agt_2"].Status)
}

func TestAgentService_ReplacePolicy_RecordsMutationAndInvalidatesCache(t *testing.T) {
	svc, agentRepo, authCache, policySvc := newAgentServiceHarness()
	agent := &domain.Agent{ID: "agt_3", AccountID: "acc_1"}
	agentRepo.agents["agt_3"] = agent
	authCache.Set("tok3", &ports.AuthContext{Agent: agent})

	err := svc.ReplacePolicy(context.Background(), "acc_1", &domain.Policy{AgentID: "agt_3"})
	require.NoError(t, err)

	assert.Contains(t, policySvc.mutated, "agt_3")
	_, ok := authCache.Get("tok3")
	assert.False(t, ok)
}

func TestAgentService_GetPolicy_NotFound(t *testing.T) {
	svc, _, _, _ := newAgentServiceHarness()
	_, err := svc.GetPolicy(context.Background(), "acc_1", "missing")
	assert.Error(t, err)
}
