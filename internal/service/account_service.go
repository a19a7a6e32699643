package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

// AccountServiceImpl implements ports.AccountService: dashboard signup and
// login. It is the only place a raw agent API key is ever generated or
// seen in plaintext.
type AccountServiceImpl struct {
	accountRepo ports.AccountRepository
	agentRepo   ports.AgentRepository
	walletRepo  ports.WalletRepository
	policyRepo  ports.PolicyRepository
	hashSvc     ports.HashService
	tokenSvc    ports.TokenService
	log         zerolog.Logger
}

func NewAccountService(
	accountRepo ports.AccountRepository,
	agentRepo ports.AgentRepository,
	walletRepo ports.WalletRepository,
	policyRepo ports.PolicyRepository,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	log zerolog.Logger,
) *AccountServiceImpl {
	return &AccountServiceImpl{
		accountRepo: accountRepo,
		agentRepo:   agentRepo,
		walletRepo:  walletRepo,
		policyRepo:  policyRepo,
		hashSvc:     hashSvc,
		tokenSvc:    tokenSvc,
		log:         log,
	}
}

// Signup creates an account, its default wallet, and a primary agent with
// a freshly minted API key. The key is returned exactly once.
func (s *AccountServiceImpl) Signup(ctx context.Context, req ports.SignupRequest) (*ports.SignupResult, error) {
	existing, err := s.accountRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check existing account: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrValidation("an account with this email already exists")
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	account := &domain.Account{
		ID:              domain.NewID("acc"),
		Email:           req.Email,
		PasswordHash:    passwordHash,
		DefaultCurrency: domain.CurrencyUSDCents,
	}
	if err := s.accountRepo.Create(ctx, account); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create account: %w", err))
	}

	wallet := &domain.Wallet{
		ID:        domain.NewID("wal"),
		AccountID: account.ID,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create wallet: %w", err))
	}

	plainKey, err := generateAgentAPIKey()
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate api key: %w", err))
	}
	keyHash, err := s.hashSvc.Hash(plainKey)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash api key: %w", err))
	}

	agent := &domain.Agent{
		ID:           domain.NewID("agt"),
		AccountID:    account.ID,
		Name:         "primary",
		Role:         domain.AgentRolePrimary,
		Status:       domain.AgentStatusActive,
		APIKeyHash:   keyHash,
		APIKeyPrefix: sha256Hex(plainKey)[:16],
	}
	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create primary agent: %w", err))
	}

	policy := &domain.Policy{AgentID: agent.ID}
	if err := s.policyRepo.Upsert(ctx, policy); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("create default policy: %w", err))
	}

	return &ports.SignupResult{
		Account:     account,
		Agent:       agent,
		Wallet:      wallet,
		PlainAPIKey: plainKey,
	}, nil
}

func (s *AccountServiceImpl) Login(ctx context.Context, email, password string) (string, time.Time, error) {
	account, err := s.accountRepo.GetByEmail(ctx, email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("load account: %w", err))
	}
	if account == nil {
		return "", time.Time{}, apperror.ErrUnauthorized("invalid email or password")
	}

	ok, err := s.hashSvc.Verify(password, account.PasswordHash)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("verify password: %w", err))
	}
	if !ok {
		return "", time.Time{}, apperror.ErrUnauthorized("invalid email or password")
	}

	token, expiresAt, err := s.tokenSvc.Generate(account.ID)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate session token: %w", err))
	}
	return token, expiresAt, nil
}

func generateAgentAPIKey() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return agentAPIKeyPrefix + hex.EncodeToString(raw), nil
}
