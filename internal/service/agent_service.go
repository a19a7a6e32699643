package service

import (
	"context"
	"fmt"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

// AgentServiceImpl implements ports.AgentService: worker agent lifecycle
// and policy management. Every mutation that changes what Authenticate
// would return for a cached token invalidates the auth cache for that
// agent, per spec §4.7.
type AgentServiceImpl struct {
	agentRepo  ports.AgentRepository
	policyRepo ports.PolicyRepository
	policySvc  ports.PolicyService
	authCache  ports.AuthCache
	hashSvc    ports.HashService
	log        zerolog.Logger
}

func NewAgentService(
	agentRepo ports.AgentRepository,
	policyRepo ports.PolicyRepository,
	policySvc ports.PolicyService,
	authCache ports.AuthCache,
	hashSvc ports.HashService,
	log zerolog.Logger,
) *AgentServiceImpl {
	return &AgentServiceImpl{
		agentRepo:  agentRepo,
		policyRepo: policyRepo,
		policySvc:  policySvc,
		authCache:  authCache,
		hashSvc:    hashSvc,
		log:        log,
	}
}

// CreateWorker provisions a non-primary agent under an account with its
// own API key and a zero-limit default policy. The plaintext key is
// returned exactly once.
func (s *AgentServiceImpl) CreateWorker(ctx context.Context, accountID, name string) (*domain.Agent, string, error) {
	plainKey, err := generateAgentAPIKey()
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	keyHash, err := s.hashSvc.Hash(plainKey)
	if err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("hash api key: %w", err))
	}

	agent := &domain.Agent{
		ID:           domain.NewID("agt"),
		AccountID:    accountID,
		Name:         name,
		Role:         domain.AgentRoleWorker,
		Status:       domain.AgentStatusActive,
		APIKeyHash:   keyHash,
		APIKeyPrefix: sha256Hex(plainKey)[:16],
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("create worker agent: %w", err))
	}

	if err := s.policyRepo.Upsert(ctx, &domain.Policy{AgentID: agent.ID}); err != nil {
		return nil, "", apperror.InternalError(fmt.Errorf("create default policy: %w", err))
	}

	return agent, plainKey, nil
}

func (s *AgentServiceImpl) List(ctx context.Context, accountID string) ([]domain.Agent, error) {
	agents, err := s.agentRepo.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list agents: %w", err))
	}
	return agents, nil
}

// requireOwnedAgent loads agentID and verifies it belongs to accountID,
// guarding every per-agent mutation against acting on another account's
// agent (IDOR). A mismatch is reported as ErrNotFound rather than
// ErrUnauthorized so a caller cannot probe which agent ids exist.
func (s *AgentServiceImpl) requireOwnedAgent(ctx context.Context, accountID, agentID string) (*domain.Agent, error) {
	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load agent: %w", err))
	}
	if agent == nil || agent.AccountID != accountID {
		return nil, apperror.ErrNotFound("agent")
	}
	return agent, nil
}

func (s *AgentServiceImpl) Kill(ctx context.Context, accountID, agentID string) error {
	if _, err := s.requireOwnedAgent(ctx, accountID, agentID); err != nil {
		return err
	}
	if err := s.agentRepo.UpdateStatus(ctx, agentID, domain.AgentStatusKilled); err != nil {
		return apperror.InternalError(fmt.Errorf("kill agent: %w", err))
	}
	s.authCache.InvalidateAgent(agentID)
	return nil
}

func (s *AgentServiceImpl) Unkill(ctx context.Context, accountID, agentID string) error {
	if _, err := s.requireOwnedAgent(ctx, accountID, agentID); err != nil {
		return err
	}
	if err := s.agentRepo.UpdateStatus(ctx, agentID, domain.AgentStatusActive); err != nil {
		return apperror.InternalError(fmt.Errorf("unkill agent: %w", err))
	}
	s.authCache.InvalidateAgent(agentID)
	return nil
}

func (s *AgentServiceImpl) GetPolicy(ctx context.Context, accountID, agentID string) (*domain.Policy, error) {
	if _, err := s.requireOwnedAgent(ctx, accountID, agentID); err != nil {
		return nil, err
	}
	policy, err := s.policyRepo.GetByAgentID(ctx, agentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load policy: %w", err))
	}
	if policy == nil {
		return nil, apperror.ErrNotFound("policy")
	}
	return policy, nil
}

func (s *AgentServiceImpl) ReplacePolicy(ctx context.Context, accountID string, policy *domain.Policy) error {
	if _, err := s.requireOwnedAgent(ctx, accountID, policy.AgentID); err != nil {
		return err
	}
	if err := s.policyRepo.Upsert(ctx, policy); err != nil {
		return apperror.InternalError(fmt.Errorf("replace policy: %w", err))
	}
	s.policySvc.RecordPolicyMutation(policy.AgentID)
	s.authCache.InvalidateAgent(policy.AgentID)
	return nil
}
