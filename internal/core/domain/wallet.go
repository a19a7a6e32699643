package domain

import "time"

// Wallet holds an Account's dual-currency balances. Exactly one per
// Account. All six counters are non-negative at rest; balance and held
// mutations only ever happen through Ledger.Credit/Hold/Settle/Release.
type Wallet struct {
	ID              string    `json:"id"`
	AccountID       string    `json:"account_id"`
	BalanceSats     int64     `json:"balance_sats"`
	HeldSats        int64     `json:"held_sats"`
	BalanceUSDCents int64     `json:"balance_usd_cents"`
	HeldUSDCents    int64     `json:"held_usd_cents"`
	LifetimeInSats  int64     `json:"lifetime_in_sats"`
	LifetimeOutSats int64     `json:"lifetime_out_sats"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Available returns the spendable (non-held) balance in the given currency.
func (w *Wallet) Available(c Currency) int64 {
	if c == CurrencySats {
		return w.BalanceSats
	}
	return w.BalanceUSDCents
}
