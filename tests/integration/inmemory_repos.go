package integration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// --- In-Memory Account Repo ---

type inMemoryAccountRepo struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

func newInMemoryAccountRepo() *inMemoryAccountRepo {
	return &inMemoryAccountRepo{accounts: make(map[string]*domain.Account)}
}

func (r *inMemoryAccountRepo) Create(ctx context.Context, a *domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.accounts[a.ID] = &cp
	return nil
}

func (r *inMemoryAccountRepo) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAccountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, a := range r.accounts {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryAccountRepo) PromoteToSats(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return fmt.Errorf("account not found")
	}
	a.DefaultCurrency = domain.CurrencySats
	return nil
}

// --- In-Memory Agent Repo ---

type inMemoryAgentRepo struct {
	mu     sync.RWMutex
	agents map[string]*domain.Agent
}

func newInMemoryAgentRepo() *inMemoryAgentRepo {
	return &inMemoryAgentRepo{agents: make(map[string]*domain.Agent)}
}

func (r *inMemoryAgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.agents[a.ID] = &cp
	return nil
}

func (r *inMemoryAgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.agents[id]
	if !ok {
		return nil, nil
	}
	cp := *a
	return &cp, nil
}

func (r *inMemoryAgentRepo) ListByPrefix(ctx context.Context, apiKeyPrefix string) ([]domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Agent
	for _, a := range r.agents {
		if a.APIKeyPrefix == apiKeyPrefix {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *inMemoryAgentRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Agent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Agent
	for _, a := range r.agents {
		if a.AccountID == accountID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (r *inMemoryAgentRepo) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.agents[id]
	if !ok {
		return fmt.Errorf("agent not found")
	}
	a.Status = status
	return nil
}

func (r *inMemoryAgentRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, id)
	return nil
}

// --- In-Memory Policy Repo ---

type inMemoryPolicyRepo struct {
	mu       sync.RWMutex
	policies map[string]*domain.Policy
}

func newInMemoryPolicyRepo() *inMemoryPolicyRepo {
	return &inMemoryPolicyRepo{policies: make(map[string]*domain.Policy)}
}

func (r *inMemoryPolicyRepo) GetByAgentID(ctx context.Context, agentID string) (*domain.Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.policies[agentID]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryPolicyRepo) Upsert(ctx context.Context, p *domain.Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.policies[p.AgentID] = &cp
	return nil
}

// --- In-Memory Wallet Repo ---

type inMemoryWalletRepo struct {
	mu      sync.RWMutex
	wallets map[string]*domain.Wallet
}

func newInMemoryWalletRepo() *inMemoryWalletRepo {
	return &inMemoryWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *inMemoryWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *w
	r.wallets[w.ID] = &cp
	return nil
}

func (r *inMemoryWalletRepo) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, w := range r.wallets {
		if w.AccountID == accountID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryWalletRepo) Credit(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, amount int64, maxBalanceSats *int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, nil
	}
	if currency == domain.CurrencySats {
		if maxBalanceSats != nil && w.BalanceSats+amount > *maxBalanceSats {
			return nil, nil
		}
		w.BalanceSats += amount
		w.LifetimeInSats += amount
	} else {
		w.BalanceUSDCents += amount
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) Hold(ctx context.Context, walletID string, currency domain.Currency, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return false, fmt.Errorf("wallet not found")
	}
	if currency == domain.CurrencySats {
		if w.BalanceSats < amount {
			return false, nil
		}
		w.BalanceSats -= amount
		w.HeldSats += amount
	} else {
		if w.BalanceUSDCents < amount {
			return false, nil
		}
		w.BalanceUSDCents -= amount
		w.HeldUSDCents += amount
	}
	return true, nil
}

func (r *inMemoryWalletRepo) Settle(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held, final int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet not found")
	}
	if currency == domain.CurrencySats {
		w.HeldSats -= held
		w.BalanceSats += held - final
		w.LifetimeOutSats += final
	} else {
		w.HeldUSDCents -= held
		w.BalanceUSDCents += held - final
	}
	cp := *w
	return &cp, nil
}

func (r *inMemoryWalletRepo) Release(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, fmt.Errorf("wallet not found")
	}
	if currency == domain.CurrencySats {
		w.HeldSats -= held
		w.BalanceSats += held
	} else {
		w.HeldUSDCents -= held
		w.BalanceUSDCents += held
	}
	cp := *w
	return &cp, nil
}

// --- In-Memory Transaction Repo ---

type inMemoryTransactionRepo struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction
}

func newInMemoryTransactionRepo() *inMemoryTransactionRepo {
	return &inMemoryTransactionRepo{transactions: make(map[string]*domain.Transaction)}
}

func (r *inMemoryTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.transactions {
		if existing.ReferenceType == t.ReferenceType && existing.ReferenceID == t.ReferenceID {
			return false, nil
		}
	}
	cp := *t
	cp.CreatedAt = time.Now()
	r.transactions[t.ID] = &cp
	return true, nil
}

func (r *inMemoryTransactionRepo) GetByReference(ctx context.Context, referenceType, referenceID string) (*domain.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range r.transactions {
		if t.ReferenceType == referenceType && t.ReferenceID == referenceID {
			cp := *t
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []domain.Transaction
	for _, t := range r.transactions {
		if t.WalletID != params.WalletID {
			continue
		}
		if params.Type != nil && t.Type != *params.Type {
			continue
		}
		result = append(result, *t)
	}
	total := int64(len(result))

	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.Transaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu   sync.RWMutex
	logs []*domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	cp.CreatedAt = time.Now()
	r.logs = append(r.logs, &cp)
	return nil
}

func (r *inMemoryAuditRepo) DailySpend(ctx context.Context, agentID string, since time.Time) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var total int64
	for _, l := range r.logs {
		if l.AgentID == agentID && !l.CreatedAt.Before(since) {
			total += l.ChargedSats
		}
	}
	return total, nil
}

// --- In-Memory Service Repo ---

type inMemoryServiceRepo struct {
	mu       sync.RWMutex
	services map[string]*domain.Service
	pricing  map[string]*domain.ServicePricing
}

func newInMemoryServiceRepo() *inMemoryServiceRepo {
	return &inMemoryServiceRepo{
		services: make(map[string]*domain.Service),
		pricing:  make(map[string]*domain.ServicePricing),
	}
}

func (r *inMemoryServiceRepo) GetBySlug(ctx context.Context, slug string) (*domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.services {
		if s.Slug == slug {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryServiceRepo) ListActive(ctx context.Context) ([]domain.Service, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Service
	for _, s := range r.services {
		if s.Status == domain.ServiceStatusActive {
			out = append(out, *s)
		}
	}
	return out, nil
}

func pricingKey(serviceID, operation string) string { return serviceID + "|" + operation }

func (r *inMemoryServiceRepo) GetPricing(ctx context.Context, serviceID, operation string) (*domain.ServicePricing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pricing[pricingKey(serviceID, operation)]
	if !ok {
		return nil, nil
	}
	cp := *p
	return &cp, nil
}

func (r *inMemoryServiceRepo) ListAllPricing(ctx context.Context) ([]domain.ServicePricing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.ServicePricing
	for _, p := range r.pricing {
		out = append(out, *p)
	}
	return out, nil
}

func (r *inMemoryServiceRepo) UpdatePriceSats(ctx context.Context, serviceID, operation string, priceSats int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pricing[pricingKey(serviceID, operation)]
	if !ok {
		return fmt.Errorf("pricing not found")
	}
	p.PriceSats = priceSats
	return nil
}

// --- In-Memory Invoice Repo ---

type inMemoryInvoiceRepo struct {
	mu       sync.RWMutex
	invoices map[string]*domain.Invoice
}

func newInMemoryInvoiceRepo() *inMemoryInvoiceRepo {
	return &inMemoryInvoiceRepo{invoices: make(map[string]*domain.Invoice)}
}

func (r *inMemoryInvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *inv
	r.invoices[inv.ID] = &cp
	return nil
}

func (r *inMemoryInvoiceRepo) GetByRHash(ctx context.Context, rHash string) (*domain.Invoice, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, inv := range r.invoices {
		if inv.RHash == rHash {
			cp := *inv
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *inMemoryInvoiceRepo) ClaimSettled(ctx context.Context, rHash string, settledAt time.Time) (*domain.Invoice, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, inv := range r.invoices {
		if inv.RHash == rHash {
			if inv.Status != domain.InvoiceStatusPending {
				cp := *inv
				return &cp, false, nil
			}
			inv.Status = domain.InvoiceStatusSettled
			inv.SettledAt = &settledAt
			cp := *inv
			return &cp, true, nil
		}
	}
	return nil, false, nil
}

// --- In-Memory Checkout Repo ---

type inMemoryCheckoutRepo struct {
	mu       sync.RWMutex
	sessions map[string]*domain.CheckoutSession
}

func newInMemoryCheckoutRepo() *inMemoryCheckoutRepo {
	return &inMemoryCheckoutRepo{sessions: make(map[string]*domain.CheckoutSession)}
}

func (r *inMemoryCheckoutRepo) Create(ctx context.Context, cs *domain.CheckoutSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *cs
	r.sessions[cs.ID] = &cp
	return nil
}

func (r *inMemoryCheckoutRepo) GetByID(ctx context.Context, id string) (*domain.CheckoutSession, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cs, ok := r.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *cs
	return &cp, nil
}

func (r *inMemoryCheckoutRepo) ClaimCompleted(ctx context.Context, id string, completedAt time.Time) (*domain.CheckoutSession, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cs, ok := r.sessions[id]
	if !ok {
		return nil, false, nil
	}
	if cs.Status != domain.CheckoutStatusPending {
		cp := *cs
		return &cp, false, nil
	}
	cs.Status = domain.CheckoutStatusCompleted
	cs.CompletedAt = &completedAt
	cp := *cs
	return &cp, true, nil
}

// --- In-Memory Transactor (no-op tx) ---

type inMemoryTransactor struct{}

func newInMemoryTransactor() *inMemoryTransactor {
	return &inMemoryTransactor{}
}

func (t *inMemoryTransactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &noopTx{}, nil
}

// noopTx is a no-op pgx.Tx implementation: the in-memory repos above apply
// mutations directly under their own mutex rather than through the tx, so
// Commit/Rollback have nothing to do.
type noopTx struct{}

func (t *noopTx) Begin(ctx context.Context) (pgx.Tx, error) { return t, nil }
func (t *noopTx) Commit(ctx context.Context) error          { return nil }
func (t *noopTx) Rollback(ctx context.Context) error        { return nil }
func (t *noopTx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *noopTx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return nil }
func (t *noopTx) LargeObjects() pgx.LargeObjects                              { return pgx.LargeObjects{} }
func (t *noopTx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *noopTx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}
func (t *noopTx) Conn() *pgx.Conn { return nil }
