package service

import (
	"context"
	"testing"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAccountHarness() *AccountServiceImpl {
	accountRepo := &fakeAuthAccountRepo{accounts: make(map[string]*domain.Account)}
	agentRepo := &fakeAuthAgentRepo{agents: make(map[string]*domain.Agent)}
	walletRepo := &fakeAuthWalletRepo{byAccount: make(map[string]*domain.Wallet)}
	policyRepo := &fakeAuthPolicyRepo{byAgent: make(map[string]*domain.Policy)}
	hashSvc := NewArgon2HashService()
	tokenSvc := NewJWTTokenService("account-test-secret", time.Hour, "saturn-test")
	return NewAccountService(accountRepo, agentRepo, walletRepo, policyRepo, hashSvc, tokenSvc, zerolog.Nop())
}

func TestAccountService_Signup_CreatesAccountAgentWalletPolicy(t *testing.T) {
	svc := newAccountHarness()

	result, err := svc.Signup(context.Background(), ports.SignupRequest{Email: "dev@saturn.test", Password: "correcthorsebatterystaple"})
	require.NoError(t, err)

	assert.Equal(t, "dev@saturn.test", result.Account.Email)
	assert.Equal(t, domain.AgentRolePrimary, result.Agent.Role)
	assert.Equal(t, domain.AgentStatusActive, result.Agent.Status)
	assert.Equal(t, result.Account.ID, result.Wallet.AccountID)
	assert.Contains(t, result.PlainAPIKey, agentAPIKeyPrefix)
	assert.NotEqual(t, result.PlainAPIKey, result.Agent.APIKeyHash)
}

func TestAccountService_Signup_RejectsDuplicateEmail(t *testing.T) {
	svc := newAccountHarness()
	ctx := context.Background()

	_, err := svc.Signup(ctx, ports.SignupRequest{Email: "dup@saturn.test", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, ports.SignupRequest{Email: "dup@saturn.test", Password: "password2"})
	assert.Error(t, err)
}

func TestAccountService_Login_Success(t *testing.T) {
	svc := newAccountHarness()
	ctx := context.Background()

	_, err := svc.Signup(ctx, ports.SignupRequest{Email: "login@saturn.test", Password: "hunter22222"})
	require.NoError(t, err)

	token, expiresAt, err := svc.Login(ctx, "login@saturn.test", "hunter22222")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))
}

func TestAccountService_Login_WrongPassword(t *testing.T) {
	svc := newAccountHarness()
	ctx := context.Background()

	_, err := svc.Signup(ctx, ports.SignupRequest{Email: "wrong@saturn.test", Password: "rightpassword"})
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "wrong@saturn.test", "wrongpassword")
	assert.Error(t, err)
}

func TestAccountService_Login_UnknownEmail(t *testing.T) {
	svc := newAccountHarness()
	_, _, err := svc.Login(context.Background(), "nobody@saturn.test", "whatever")
	assert.Error(t, err)
}
