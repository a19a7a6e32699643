package domain

import "time"

// TransactionType represents the kind of money movement recorded in the
// append-only ledger.
type TransactionType string

const (
	TransactionTypeCreditLightning TransactionType = "credit_lightning"
	TransactionTypeCreditCard      TransactionType = "credit_card"
	TransactionTypeDebitProxyCall  TransactionType = "debit_proxy_call"
	TransactionTypeRefund          TransactionType = "refund"
)

// Transaction is an immutable ledger entry. Idempotency for credits is
// enforced by the unique (ReferenceType, ReferenceID) pair.
type Transaction struct {
	ID                   string          `json:"id"`
	WalletID             string          `json:"wallet_id"`
	AgentID              *string         `json:"agent_id,omitempty"`
	Type                 TransactionType `json:"type"`
	Currency             Currency        `json:"currency"`
	AmountSats           int64           `json:"amount_sats"`
	AmountUSDCents       int64           `json:"amount_usd_cents"`
	BalanceAfterSats     int64           `json:"balance_after_sats"`
	BalanceAfterUSDCents int64           `json:"balance_after_usd_cents"`
	ReferenceType        string          `json:"reference_type"`
	ReferenceID          string          `json:"reference_id"`
	Description          string          `json:"description,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

func (t *Transaction) IsCredit() bool {
	return t.Type == TransactionTypeCreditLightning || t.Type == TransactionTypeCreditCard || t.Type == TransactionTypeRefund
}
