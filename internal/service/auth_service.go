package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

const agentAPIKeyPrefix = "sk_agt_"

// AuthServiceImpl implements ports.AuthService: the bearer-token lookup of
// spec §4.7. It is the request-time front door every proxy call and
// authenticated dashboard call passes through before anything else runs.
type AuthServiceImpl struct {
	cache       ports.AuthCache
	accountRepo ports.AccountRepository
	agentRepo   ports.AgentRepository
	walletRepo  ports.WalletRepository
	policyRepo  ports.PolicyRepository
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	log         zerolog.Logger
}

func NewAuthService(
	cache ports.AuthCache,
	accountRepo ports.AccountRepository,
	agentRepo ports.AgentRepository,
	walletRepo ports.WalletRepository,
	policyRepo ports.PolicyRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		cache:       cache,
		accountRepo: accountRepo,
		agentRepo:   agentRepo,
		walletRepo:  walletRepo,
		policyRepo:  policyRepo,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		log:         log,
	}
}

// Authenticate resolves a bearer token to an AuthContext, following the
// cache-then-bucket-then-compare algorithm of spec §4.7.
func (s *AuthServiceImpl) Authenticate(ctx context.Context, bearerToken string) (*ports.AuthContext, error) {
	if bearerToken == "" {
		return nil, apperror.ErrUnauthorized("")
	}

	tokenHash := sha256Hex(bearerToken)

	if cached, ok := s.cache.Get(tokenHash); ok {
		if cached.Agent != nil && !cached.Agent.Active() {
			s.cache.InvalidateAgent(cached.Agent.ID)
			return nil, apperror.ErrUnauthorized("agent is suspended or killed")
		}
		return cached, nil
	}

	var authCtx *ports.AuthContext
	var err error
	if strings.HasPrefix(bearerToken, agentAPIKeyPrefix) {
		authCtx, err = s.authenticateAgentKey(ctx, bearerToken)
	} else {
		authCtx, err = s.authenticateSessionToken(ctx, bearerToken)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(tokenHash, authCtx)
	return authCtx, nil
}

func (s *AuthServiceImpl) authenticateAgentKey(ctx context.Context, token string) (*ports.AuthContext, error) {
	fullHash := sha256.Sum256([]byte(token))
	prefix := hex.EncodeToString(fullHash[:])[:16]

	candidates, err := s.agentRepo.ListByPrefix(ctx, prefix)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("list agent bucket: %w", err))
	}

	var agent *domain.Agent
	for i := range candidates {
		ok, err := s.hashSvc.Verify(token, candidates[i].APIKeyHash)
		if err != nil {
			continue
		}
		if ok {
			agent = &candidates[i]
			break
		}
	}
	if agent == nil {
		return nil, apperror.ErrUnauthorized("invalid api key")
	}
	if !agent.Active() {
		return nil, apperror.ErrUnauthorized("agent is suspended or killed")
	}

	account, wallet, policy, err := s.loadAccountContext(ctx, agent.AccountID, agent.ID)
	if err != nil {
		return nil, err
	}

	return &ports.AuthContext{Agent: agent, Account: account, Wallet: wallet, Policy: policy}, nil
}

func (s *AuthServiceImpl) authenticateSessionToken(ctx context.Context, token string) (*ports.AuthContext, error) {
	claims, err := s.tokenSvc.Validate(token)
	if err != nil {
		return nil, apperror.ErrUnauthorized("invalid or expired session token")
	}

	account, err := s.accountRepo.GetByID(ctx, claims.AccountID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, apperror.ErrUnauthorized("account not found")
	}

	wallet, err := s.walletRepo.GetByAccountID(ctx, account.ID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}

	return &ports.AuthContext{Account: account, Wallet: wallet}, nil
}

func (s *AuthServiceImpl) loadAccountContext(ctx context.Context, accountID, agentID string) (*domain.Account, *domain.Wallet, *domain.Policy, error) {
	account, err := s.accountRepo.GetByID(ctx, accountID)
	if err != nil {
		return nil, nil, nil, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return nil, nil, nil, apperror.ErrUnauthorized("account not found")
	}

	wallet, err := s.walletRepo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, nil, nil, apperror.InternalError(fmt.Errorf("load wallet: %w", err))
	}

	policy, err := s.policyRepo.GetByAgentID(ctx, agentID)
	if err != nil {
		return nil, nil, nil, apperror.InternalError(fmt.Errorf("load policy: %w", err))
	}

	return account, wallet, policy, nil
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
