package domain

import "time"

type CheckoutStatus string

const (
	CheckoutStatusPending   CheckoutStatus = "pending"
	CheckoutStatusCompleted CheckoutStatus = "completed"
	CheckoutStatusExpired   CheckoutStatus = "expired"
)

// CheckoutSession is a card-funding request against a payment provider
// (e.g. Stripe). Amount is quoted in USD cents and converted to sats at
// creation time using the oracle's current rate.
type CheckoutSession struct {
	ID             string         `json:"id"`
	WalletID       string         `json:"wallet_id"`
	AmountUSDCents int64          `json:"amount_usd_cents"`
	BTCUSDRate     int64          `json:"btc_usd_rate"`
	AmountSats     int64          `json:"amount_sats"`
	Status         CheckoutStatus `json:"status"`
	ProviderRef    string         `json:"provider_ref"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
}
