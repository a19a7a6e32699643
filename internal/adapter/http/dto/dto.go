package dto

// SignupRequest is the request body for account creation.
type SignupRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

// SignupResponse is the response body for a successful signup. It carries
// the agent's plaintext API key exactly once — it is never retrievable again.
type SignupResponse struct {
	AccountID string `json:"account_id"`
	AgentID   string `json:"agent_id"`
	WalletID  string `json:"wallet_id"`
	APIKey    string `json:"api_key"`
}

// LoginRequest is the request body for account login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"` // Unix timestamp
}

// CreateAgentRequest is the request body for provisioning a worker agent.
type CreateAgentRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// CreateAgentResponse carries the new agent's plaintext API key once.
type CreateAgentResponse struct {
	Agent  AgentResponse `json:"agent"`
	APIKey string        `json:"api_key"`
}

// AgentResponse is the public view of an agent.
type AgentResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
}

// PolicyRequest is the request body for replacing an agent's spend policy.
type PolicyRequest struct {
	MaxPerCallSats      *int64   `json:"max_per_call_sats,omitempty"`
	MaxPerDaySats       *int64   `json:"max_per_day_sats,omitempty"`
	MaxBalanceSats      *int64   `json:"max_balance_sats,omitempty"`
	AllowedServices     []string `json:"allowed_services,omitempty"`
	DeniedServices      []string `json:"denied_services,omitempty"`
	AllowedCapabilities []string `json:"allowed_capabilities,omitempty"`
	DeniedCapabilities  []string `json:"denied_capabilities,omitempty"`
}

// PolicyResponse is the response body for an agent's current policy.
type PolicyResponse struct {
	AgentID             string   `json:"agent_id"`
	MaxPerCallSats      *int64   `json:"max_per_call_sats,omitempty"`
	MaxPerDaySats       *int64   `json:"max_per_day_sats,omitempty"`
	MaxBalanceSats      *int64   `json:"max_balance_sats,omitempty"`
	AllowedServices     []string `json:"allowed_services,omitempty"`
	DeniedServices      []string `json:"denied_services,omitempty"`
	AllowedCapabilities []string `json:"allowed_capabilities,omitempty"`
	DeniedCapabilities  []string `json:"denied_capabilities,omitempty"`
	KillSwitch          bool     `json:"kill_switch"`
	UpdatedAt           string   `json:"updated_at"`
}

// WalletResponse is the response body for a wallet balance query.
type WalletResponse struct {
	ID              string `json:"id"`
	BalanceSats     int64  `json:"balance_sats"`
	HeldSats        int64  `json:"held_sats"`
	BalanceUSDCents int64  `json:"balance_usd_cents"`
	HeldUSDCents    int64  `json:"held_usd_cents"`
}

// FundInvoiceRequest is the request body for requesting a Lightning
// funding invoice.
type FundInvoiceRequest struct {
	AmountSats int64 `json:"amount_sats" binding:"required,gt=0"`
}

// FundInvoiceResponse is the response body carrying the BOLT11 invoice the
// agent's operator pays to fund the wallet.
type FundInvoiceResponse struct {
	PaymentRequest string `json:"payment_request"`
	RHash          string `json:"r_hash"`
	AmountSats     int64  `json:"amount_sats"`
	ExpiresAt      string `json:"expires_at"`
}

// FundCardRequest is the request body for starting a card-funded checkout.
type FundCardRequest struct {
	AmountUSDCents int64 `json:"amount_usd_cents" binding:"required,gt=0"`
}

// FundCardResponse is the response body carrying the hosted checkout URL.
type FundCardResponse struct {
	CheckoutSessionID string `json:"checkout_session_id"`
	CheckoutURL        string `json:"checkout_url"`
}

// TransactionResponse is the response body for a single ledger entry.
type TransactionResponse struct {
	ID                   string `json:"id"`
	AgentID              *string `json:"agent_id,omitempty"`
	Type                 string `json:"type"`
	Currency             string `json:"currency"`
	AmountSats           int64  `json:"amount_sats"`
	AmountUSDCents       int64  `json:"amount_usd_cents"`
	BalanceAfterSats     int64  `json:"balance_after_sats"`
	BalanceAfterUSDCents int64  `json:"balance_after_usd_cents"`
	ReferenceType        string `json:"reference_type"`
	ReferenceID          string `json:"reference_id"`
	Description          string `json:"description,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// TransactionListResponse wraps a paginated transaction list.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	Total      int64                 `json:"total"`
	Page       int                   `json:"page"`
	PageSize   int                   `json:"page_size"`
	TotalPages int                   `json:"total_pages"`
}

// ServiceResponse is the public view of a registered upstream provider.
type ServiceResponse struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
	Tier string `json:"tier"`
}

// CapabilityListResponse maps each known capability to its resolvable
// service slugs, in priority order.
type CapabilityListResponse struct {
	Capabilities map[string][]string `json:"capabilities"`
}
