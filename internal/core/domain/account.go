package domain

import "time"

// Currency is one of the two units a Wallet and Transaction are denominated in.
type Currency string

const (
	CurrencySats     Currency = "sats"
	CurrencyUSDCents Currency = "usd_cents"
)

// Account is a billing boundary: it owns exactly one Wallet and any number
// of Agents.
type Account struct {
	ID              string    `json:"id"`
	Email           string    `json:"email"`
	PasswordHash    string    `json:"-"`
	DefaultCurrency Currency  `json:"default_currency"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// PromoteToSats is the one-shot default-currency promotion triggered by the
// invoice watcher on an account's first Lightning credit (spec §4.10). It
// is a no-op if the account already defaults to sats.
func (a *Account) PromoteToSats() bool {
	if a.DefaultCurrency == CurrencySats {
		return false
	}
	a.DefaultCurrency = CurrencySats
	return true
}
