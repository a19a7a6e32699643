package domain

import "time"

type InvoiceStatus string

const (
	InvoiceStatusPending   InvoiceStatus = "pending"
	InvoiceStatusSettled   InvoiceStatus = "settled"
	InvoiceStatusExpired   InvoiceStatus = "expired"
	InvoiceStatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is a Lightning funding request. Terminal transitions are
// monotonic and one-shot, guarded at the repository layer by
// `WHERE status = 'pending'`.
type Invoice struct {
	ID             string        `json:"id"`
	WalletID       string        `json:"wallet_id"`
	AmountSats     int64         `json:"amount_sats"`
	PaymentRequest string        `json:"payment_request"`
	RHash          string        `json:"r_hash"`
	Status         InvoiceStatus `json:"status"`
	ExpiresAt      time.Time     `json:"expires_at"`
	SettledAt      *time.Time    `json:"settled_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
