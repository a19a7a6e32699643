package service

import (
	"context"
	"sync"
	"testing"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- in-memory fakes, mirroring the teacher's tests/integration fakes ---

type fakeWalletRepo struct {
	mu      sync.Mutex
	wallets map[string]*domain.Wallet
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{wallets: make(map[string]*domain.Wallet)}
}

func (r *fakeWalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wallets[w.ID] = w
	return nil
}

func (r *fakeWalletRepo) GetByID(ctx context.Context, id string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[id]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

func (r *fakeWalletRepo) GetByAccountID(ctx context.Context, accountID string) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.AccountID == accountID {
			cp := *w
			return &cp, nil
		}
	}
	return nil, nil
}

func (r *fakeWalletRepo) Credit(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, amount int64, maxBalanceSats *int64) (*domain.Wallet, error) {
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

func (r *fakeWalletRepo) Hold(ctx context.Context, walletID string, currency domain.Currency, amount int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return false, nil
	}
	if currency == domain.CurrencySats {
		if w.BalanceSats < amount {
			return false, nil
		}
		w.BalanceSats -= amount
		w.HeldSats += amount
		return true, nil
	}
	if w.BalanceUSDCents < amount {
		return false, nil
	}
	w.BalanceUSDCents -= amount
	w.HeldUSDCents += amount
	return true, nil
}

func (r *fakeWalletRepo) Settle(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held, final int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, nil
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

func (r *fakeWalletRepo) Release(ctx context.Context, tx pgx.Tx, walletID string, currency domain.Currency, held int64) (*domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, nil
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

// fakeAgentRepo and fakePolicyRepo back LedgerServiceImpl's max_balance_sats
// cap lookup (resolved from the account's primary agent's policy); empty by
// default so existing tests see no cap.
type fakeAgentRepo struct {
	agents map[string]*domain.Agent
}

func newFakeAgentRepo() *fakeAgentRepo { return &fakeAgentRepo{agents: make(map[string]*domain.Agent)} }

func (r *fakeAgentRepo) Create(ctx context.Context, a *domain.Agent) error {
	r.agents[a.ID] = a
	return nil
}
func (r *fakeAgentRepo) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return r.agents[id], nil
}
func (r *fakeAgentRepo) ListByPrefix(ctx context.Context, prefix string) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range r.agents {
		if a.APIKeyPrefix == prefix {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (r *fakeAgentRepo) ListByAccount(ctx context.Context, accountID string) ([]domain.Agent, error) {
	var out []domain.Agent
	for _, a := range r.agents {
		if a.AccountID == accountID {
			out = append(out, *a)
		}
	}
	return out, nil
}
func (r *fakeAgentRepo) UpdateStatus(ctx context.Context, id string, status domain.AgentStatus) error {
	if a, ok := r.agents[id]; ok {
		a.Status = status
	}
	return nil
}
func (r *fakeAgentRepo) Delete(ctx context.Context, id string) error {
	delete(r.agents, id)
	return nil
}

type fakePolicyRepo struct {
	byAgent map[string]*domain.Policy
}

func newFakePolicyRepo() *fakePolicyRepo { return &fakePolicyRepo{byAgent: make(map[string]*domain.Policy)} }

func (r *fakePolicyRepo) GetByAgentID(ctx context.Context, agentID string) (*domain.Policy, error) {
	return r.byAgent[agentID], nil
}
func (r *fakePolicyRepo) Upsert(ctx context.Context, p *domain.Policy) error {
	r.byAgent[p.AgentID] = p
	return nil
}

type fakeTransactionRepo struct {
	mu   sync.Mutex
	txns map[string]*domain.Transaction
	byRef map[string]*domain.Transaction
}

func newFakeTransactionRepo() *fakeTransactionRepo {
	return &fakeTransactionRepo{
		txns:  make(map[string]*domain.Transaction),
		byRef: make(map[string]*domain.Transaction),
	}
}

func refKey(refType, refID string) string { return refType + "|" + refID }

func (r *fakeTransactionRepo) Create(ctx context.Context, tx pgx.Tx, txn *domain.Transaction) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if txn.ReferenceType != "" {
		key := refKey(txn.ReferenceType, txn.ReferenceID)
		if existing, ok := r.byRef[key]; ok {
			_ = existing
			return false, nil
		}
		r.byRef[key] = txn
	}
	r.txns[txn.ID] = txn
	return true, nil
}

func (r *fakeTransactionRepo) GetByReference(ctx context.Context, referenceType, referenceID string) (*domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.byRef[refKey(referenceType, referenceID)]
	if !ok {
		return nil, nil
	}
	return t, nil
}

func (r *fakeTransactionRepo) List(ctx context.Context, params ports.TransactionListParams) ([]domain.Transaction, int64, error) {
	return nil, 0, nil
}

type fakeTransactor struct{}

func (t *fakeTransactor) Begin(ctx context.Context) (pgx.Tx, error) { return &noopTx{}, nil }

// noopTx is a no-op pgx.Tx implementation for in-memory testing, mirroring
// the teacher's tests/integration/inmemory_repos.go.
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
	return pgconn.CommandTag{}, nil
}
func (t *noopTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, nil
}
func (t *noopTx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return nil }
func (t *noopTx) Conn() *pgx.Conn                                              { return nil }

func newTestLedger() (*LedgerServiceImpl, *fakeWalletRepo, *fakeTransactionRepo) {
	wr := newFakeWalletRepo()
	tr := newFakeTransactionRepo()
	ledger := NewLedgerService(wr, tr, newFakeAgentRepo(), newFakePolicyRepo(), &fakeTransactor{}, zerolog.Nop())
	return ledger, wr, tr
}

func TestLedgerService_Credit(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1"}
	require.NoError(t, wr.Create(context.Background(), wallet))

	txn, err := ledger.Credit(context.Background(), wallet.ID, domain.CurrencySats, 1000, "invoice", "inv1", "lightning top-up")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), txn.AmountSats)

	got, _ := wr.GetByID(context.Background(), wallet.ID)
	assert.Equal(t, int64(1000), got.BalanceSats)
	assert.Equal(t, int64(1000), got.LifetimeInSats)
}

func TestLedgerService_Credit_Idempotent(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1"}
	require.NoError(t, wr.Create(context.Background(), wallet))

	first, err := ledger.Credit(context.Background(), wallet.ID, domain.CurrencySats, 500, "invoice", "inv1", "")
	require.NoError(t, err)

	second, err := ledger.Credit(context.Background(), wallet.ID, domain.CurrencySats, 500, "invoice", "inv1", "")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)

	got, _ := wr.GetByID(context.Background(), wallet.ID)
	assert.Equal(t, int64(500), got.BalanceSats, "second credit with the same reference must not double-apply")
}

func TestLedgerService_Credit_RejectsOverCap(t *testing.T) {
	wr := newFakeWalletRepo()
	tr := newFakeTransactionRepo()
	ar := newFakeAgentRepo()
	pr := newFakePolicyRepo()
	ledger := NewLedgerService(wr, tr, ar, pr, &fakeTransactor{}, zerolog.Nop())

	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", BalanceSats: 900}
	require.NoError(t, wr.Create(context.Background(), wallet))

	primary := &domain.Agent{ID: domain.NewID("agt"), AccountID: "acc1", Role: domain.AgentRolePrimary}
	require.NoError(t, ar.Create(context.Background(), primary))
	cap := int64(1000)
	require.NoError(t, pr.Upsert(context.Background(), &domain.Policy{AgentID: primary.ID, MaxBalanceSats: &cap}))

	_, err := ledger.Credit(context.Background(), wallet.ID, domain.CurrencySats, 200, "invoice", "inv1", "")
	require.Error(t, err, "900 + 200 exceeds the account's 1000 sat cap")

	got, _ := wr.GetByID(context.Background(), wallet.ID)
	assert.Equal(t, int64(900), got.BalanceSats, "a rejected credit must not partially apply")
}

func TestLedgerService_Hold_PrefersDefaultCurrency(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", BalanceSats: 5000, BalanceUSDCents: 0}
	require.NoError(t, wr.Create(context.Background(), wallet))

	result, err := ledger.Hold(context.Background(), wallet.ID, domain.CurrencySats, 200, 1000)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.CurrencySats, result.CurrencyHeld)
	assert.Equal(t, int64(1000), result.AmountHeld)

	got, _ := wr.GetByID(context.Background(), wallet.ID)
	assert.Equal(t, int64(4000), got.BalanceSats)
	assert.Equal(t, int64(1000), got.HeldSats)
}

func TestLedgerService_Hold_FallsBackToOtherCurrency(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", BalanceSats: 0, BalanceUSDCents: 500}
	require.NoError(t, wr.Create(context.Background(), wallet))

	result, err := ledger.Hold(context.Background(), wallet.ID, domain.CurrencySats, 200, 1000)
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, domain.CurrencyUSDCents, result.CurrencyHeld)
	assert.Equal(t, int64(200), result.AmountHeld)
}

func TestLedgerService_Hold_BothInsufficient(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1"}
	require.NoError(t, wr.Create(context.Background(), wallet))

	result, err := ledger.Hold(context.Background(), wallet.ID, domain.CurrencySats, 200, 1000)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int64(0), result.AvailableSats)
	assert.Equal(t, int64(0), result.AvailableUSD)
}

func TestLedgerService_Hold_BothInsufficient_ReportsAvailableBalance(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", BalanceSats: 50, BalanceUSDCents: 30}
	require.NoError(t, wr.Create(context.Background(), wallet))

	result, err := ledger.Hold(context.Background(), wallet.ID, domain.CurrencySats, 200, 1000)
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, int64(50), result.AvailableSats)
	assert.Equal(t, int64(30), result.AvailableUSD)
}

func TestLedgerService_Settle_PartialRefundsDifference(t *testing.T) {
	ledger, wr, tr := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", HeldSats: 1000}
	require.NoError(t, wr.Create(context.Background(), wallet))

	agentID := domain.NewID("agt")
	got, err := ledger.Settle(context.Background(), wallet.ID, domain.CurrencySats, 1000, 700, &agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.HeldSats)
	assert.Equal(t, int64(300), got.BalanceSats, "the 300 sats unused by the hold return to balance")
	assert.Equal(t, int64(700), got.LifetimeOutSats)

	found := false
	for _, txn := range tr.txns {
		if txn.Type == domain.TransactionTypeDebitProxyCall && txn.AmountSats == 700 {
			found = true
		}
	}
	assert.True(t, found, "settle must record a debit_proxy_call transaction")
}

func TestLedgerService_Release_ReturnsFullHold(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", HeldSats: 500}
	require.NoError(t, wr.Create(context.Background(), wallet))

	agentID := domain.NewID("agt")
	got, err := ledger.Release(context.Background(), wallet.ID, domain.CurrencySats, 500, &agentID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), got.HeldSats)
	assert.Equal(t, int64(500), got.BalanceSats)
}

func TestLedgerService_Settle_RejectsFinalExceedingHeld(t *testing.T) {
	ledger, wr, _ := newTestLedger()
	wallet := &domain.Wallet{ID: domain.NewID("wal"), AccountID: "acc1", HeldSats: 100}
	require.NoError(t, wr.Create(context.Background(), wallet))

	_, err := ledger.Settle(context.Background(), wallet.ID, domain.CurrencySats, 100, 150, nil)
	assert.Error(t, err)
}
