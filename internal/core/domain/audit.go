package domain

import "time"

type PolicyResult string

const (
	PolicyResultAllowed PolicyResult = "allowed"
	PolicyResultDenied  PolicyResult = "denied"
)

// AuditLog is one row per attempted proxy call. Never mutated after insert.
type AuditLog struct {
	ID                 string       `json:"id"`
	AgentID            string       `json:"agent_id"`
	ServiceSlug        string       `json:"service_slug"`
	Capability         string       `json:"capability,omitempty"`
	Operation          string       `json:"operation,omitempty"`
	RequestBody        []byte       `json:"request_body,omitempty"` // redacted JSON
	PolicyResult       PolicyResult `json:"policy_result"`
	PolicyReason       string       `json:"policy_reason,omitempty"`
	QuotedSats         int64        `json:"quoted_sats"`
	ChargedSats        int64        `json:"charged_sats"`
	QuotedUSDCents     int64        `json:"quoted_usd_cents"`
	ChargedUSDCents    int64        `json:"charged_usd_cents"`
	UpstreamStatus     int          `json:"upstream_status,omitempty"`
	UpstreamLatencyMs  int64        `json:"upstream_latency_ms,omitempty"`
	Error              string       `json:"error,omitempty"`
	CreatedAt          time.Time    `json:"created_at"`
}
