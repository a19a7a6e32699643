package ports

import (
	"context"
	"net/http"
	"time"

	"saturn/internal/core/domain"
)

// --- Ambient crypto services (reused from the teacher unchanged) ---

// HashService performs adaptive password/API-key hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService issues and validates signed session tokens.
type TokenService interface {
	Generate(accountID string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

type TokenClaims struct {
	AccountID string
}

// SignatureService verifies HMAC-SHA256 signatures over raw request bodies,
// used by the checkout webhook handler.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// --- C1 Ledger ---

type HoldResult struct {
	Success       bool
	CurrencyHeld  domain.Currency
	AmountHeld    int64
	AvailableSats int64
	AvailableUSD  int64
}

// LedgerService is the single authoritative source of truth for wallet
// balances. See internal/service/ledger_service.go.
type LedgerService interface {
	Credit(ctx context.Context, walletID string, currency domain.Currency, amount int64, referenceType, referenceID, description string) (*domain.Transaction, error)
	Hold(ctx context.Context, walletID string, defaultCurrency domain.Currency, usdCents, sats int64) (*HoldResult, error)
	Settle(ctx context.Context, walletID string, currency domain.Currency, held, final int64, agentID *string) (*domain.Wallet, error)
	Release(ctx context.Context, walletID string, currency domain.Currency, held int64, agentID *string) (*domain.Wallet, error)
}

// --- C2 Audit Log ---

type AuditEntry struct {
	AgentID           string
	ServiceSlug       string
	Capability        string
	Operation         string
	RequestBody       []byte
	PolicyResult      domain.PolicyResult
	PolicyReason      string
	QuotedSats        int64
	ChargedSats       int64
	QuotedUSDCents    int64
	ChargedUSDCents   int64
	UpstreamStatus    int
	UpstreamLatencyMs int64
	Error             string
}

// AuditService appends exactly one AuditLog row per call attempt and
// invalidates the daily-spend cache on an allowed entry.
type AuditService interface {
	Log(ctx context.Context, entry AuditEntry) (*domain.AuditLog, error)
}

// --- C3 Pricing Oracle ---

// RateSource is the read side of the oracle's cached BTC/USD rate; the
// poller that drives it (service.RatePoller) writes through PricingService.SetRate.
type RateSource interface {
	CurrentRate() (btcUSD int64, fetchedAt time.Time)
}

type PricingService interface {
	RateSource
	SetRate(ctx context.Context, btcUSD int64) error
	USDMicrosToSats(microsUSD int64) int64
	USDCentsToSats(cents int64) int64
	SatsToUSDCents(sats int64) int64
	GetPrice(ctx context.Context, serviceSlug, operation string) (*domain.ServicePricing, error)
}

// --- C4 Policy Engine ---

type PolicyDecision struct {
	Allowed bool
	Reason  string
}

type PolicyService interface {
	Evaluate(ctx context.Context, agent *domain.Agent, policy *domain.Policy, serviceSlug, capability string, quotedSats int64) (*PolicyDecision, error)
	InvalidateDailySpend(agentID string)
	RecordPolicyMutation(agentID string)
}

// --- C5 Adapter Registry ---

type AdapterQuote struct {
	Operation  string
	QuotedSats int64
}

type AdapterResponse struct {
	Status  int
	Data    []byte
	Headers http.Header
}

// Adapter is the three-method contract every service integration satisfies.
type Adapter interface {
	Quote(ctx context.Context, body []byte) (*AdapterQuote, error)
	Execute(ctx context.Context, body []byte) (*AdapterResponse, error)
	Finalize(ctx context.Context, resp *AdapterResponse, quotedSats int64) (finalSats int64, err error)
}

type AdapterRegistry interface {
	Resolve(slug string) (Adapter, bool)
	Register(slug string, a Adapter)
}

// --- C6 Capability Registry ---

type CapabilityRegistry interface {
	Resolve(capability string) (serviceSlug string, ok bool)
	Register(capability, serviceSlug string, priority int)
	List() map[string][]string
}

// --- C7 Auth Cache ---

type AuthContext struct {
	Agent   *domain.Agent
	Account *domain.Account
	Wallet  *domain.Wallet
	Policy  *domain.Policy
}

type AuthCache interface {
	Get(token string) (*AuthContext, bool)
	Set(token string, ctx *AuthContext)
	InvalidateAgent(agentID string)
}

type AuthService interface {
	Authenticate(ctx context.Context, bearerToken string) (*AuthContext, error)
}

// --- C8 Proxy Executor ---

type ProxyCallInput struct {
	Account     *domain.Account
	Agent       *domain.Agent
	Wallet      *domain.Wallet
	Policy      *domain.Policy
	ServiceSlug string
	Capability  string
	RequestBody []byte
}

type ProxyCallMetadata struct {
	AuditID         string
	QuotedSats      int64
	ChargedSats     int64
	QuotedUSDCents  int64
	ChargedUSDCents int64
	BalanceAfter    int64
	Capability      string
	Provider        string
}

type ProxyCallResult struct {
	Status   int
	Data     []byte
	Headers  http.Header
	Metadata ProxyCallMetadata
}

type ProxyExecutor interface {
	Call(ctx context.Context, in ProxyCallInput) (*ProxyCallResult, error)
}

// --- C9 Response Normalizer ---

type Normalizer interface {
	Normalize(capability, providerSlug string, raw []byte) ([]byte, error)
}

// --- C10 Invoice Watcher ---

type InvoiceWatcher interface {
	Run(ctx context.Context) error
}

// LightningClient is the subset of internal/lightning.Client the wallet
// funding endpoint needs: issuing a new invoice. Narrowed to an interface
// so handler tests can fake it without a live LND node.
type LightningClient interface {
	AddInvoice(ctx context.Context, amountSats int64, memo string) (paymentRequest, rHash string, err error)
}

// --- C11 Checkout Webhook Handler ---

type CheckoutService interface {
	HandleLightningWebhook(ctx context.Context, rHash string, amountSats int64) error
	HandleStripeWebhook(ctx context.Context, sessionID string, amountUSDCents int64) error
}

// --- Account/Agent management ---

type SignupRequest struct {
	Email    string
	Password string
}

type SignupResult struct {
	Account    *domain.Account
	Agent      *domain.Agent
	Wallet     *domain.Wallet
	PlainAPIKey string
}

type AccountService interface {
	Signup(ctx context.Context, req SignupRequest) (*SignupResult, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error)
}

// AgentService manages worker agent lifecycle and policy. Every method
// that acts on a specific agent id is scoped to the caller's accountID and
// must reject (ErrNotFound, not leaking existence across accounts) an
// agent id that belongs to a different account.
type AgentService interface {
	CreateWorker(ctx context.Context, accountID, name string) (*domain.Agent, string, error)
	List(ctx context.Context, accountID string) ([]domain.Agent, error)
	Kill(ctx context.Context, accountID, agentID string) error
	Unkill(ctx context.Context, accountID, agentID string) error
	GetPolicy(ctx context.Context, accountID, agentID string) (*domain.Policy, error)
	ReplacePolicy(ctx context.Context, accountID string, policy *domain.Policy) error
}
