package ports

import (
	"context"
	"time"

	"saturn/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// AccountRepository defines persistence operations for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account *domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	PromoteToSats(ctx context.Context, id string) error
}

// AgentRepository defines persistence operations for agents.
type AgentRepository interface {
	Create(ctx context.Context, agent *domain.Agent) error
	GetByID(ctx context.Context, id string) (*domain.Agent, error)
	ListByPrefix(ctx context.Context, apiKeyPrefix string) ([]domain.Agent, error)
	ListByAccount(ctx context.Context, accountID string) ([]domain.Agent, error)
	UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error
	Delete(ctx context.Context, id string) error
}

// PolicyRepository defines persistence operations for policies.
type PolicyRepository interface {
	GetByAgentID(ctx context.Context, agentID string) (*domain.Policy, error)
	Upsert(ctx context.Context, policy *domain.Policy) error
}

// WalletRepository defines persistence operations for wallets.
// Hold/Settle/Release use a single conditional UPDATE rather than
// SELECT ... FOR UPDATE — see internal/service/ledger_service.go.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id string) (*domain.Wallet, error)
	GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error)

	// Credit increments the balance in currency (and lifetime_in for sats).
	// A sats credit that would push the balance above a non-nil
	// maxBalanceSats changes nothing and returns a nil wallet.
	Credit(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, amount int64, maxBalanceSats *int64) (*domain.Wallet, error)
	// Hold attempts `balance -= n, held += n WHERE balance >= n`. ok=false
	// on zero rows affected (insufficient funds), not an error.
	Hold(ctx context.Context, walletID string, currency domain.Currency, amount int64) (ok bool, err error)
	// Settle applies `held -= held, balance += held-final, lifetime_out += final`.
	Settle(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held, final int64) (*domain.Wallet, error)
	// Release applies `held -= held, balance += held`.
	Release(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held int64) (*domain.Wallet, error)
}

// TransactionRepository defines persistence operations for ledger entries.
type TransactionRepository interface {
	// Create is idempotent by (reference_type, reference_id): if a row
	// already exists it is left unchanged and created=false; callers fetch
	// it with GetByReference.
	Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) (created bool, err error)
	GetByReference(ctx context.Context, referenceType, referenceID string) (*domain.Transaction, error)
	List(ctx context.Context, params TransactionListParams) ([]domain.Transaction, int64, error)
}

type TransactionListParams struct {
	WalletID string
	Type     *domain.TransactionType
	From     *int64
	To       *int64
	Page     int
	PageSize int
}

// ServiceRepository defines persistence for registered upstream providers.
type ServiceRepository interface {
	GetBySlug(ctx context.Context, slug string) (*domain.Service, error)
	ListActive(ctx context.Context) ([]domain.Service, error)
	GetPricing(ctx context.Context, serviceID, operation string) (*domain.ServicePricing, error)
	// ListAllPricing returns every ServicePricing row, for the full
	// recompute the Pricing Oracle runs on each rate advance.
	ListAllPricing(ctx context.Context) ([]domain.ServicePricing, error)
	UpdatePriceSats(ctx context.Context, serviceID, operation string, priceSats int64) error
}

// InvoiceRepository defines persistence for Lightning invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) error
	GetByRHash(ctx context.Context, rHash string) (*domain.Invoice, error)
	// ClaimSettled performs `UPDATE ... WHERE r_hash=? AND status='pending'`
	// and returns claimed=false if no row matched (duplicate event).
	ClaimSettled(ctx context.Context, rHash string, settledAt time.Time) (inv *domain.Invoice, claimed bool, err error)
}

// CheckoutRepository defines persistence for card checkout sessions.
type CheckoutRepository interface {
	Create(ctx context.Context, cs *domain.CheckoutSession) error
	GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error)
	ClaimCompleted(ctx context.Context, id string, completedAt time.Time) (cs *domain.CheckoutSession, claimed bool, err error)
}

// AuditRepository defines persistence for the append-only audit log.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
	DailySpend(ctx context.Context, agentID string, since time.Time) (int64, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
