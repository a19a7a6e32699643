package domain

import "time"

// Policy is the one spend/access control record an Agent is evaluated
// against on every proxy call. A nil pointer field means "no constraint"
// for that rule.
type Policy struct {
	AgentID              string    `json:"agent_id"`
	MaxPerCallSats       *int64    `json:"max_per_call_sats,omitempty"`
	MaxPerDaySats        *int64    `json:"max_per_day_sats,omitempty"`
	MaxBalanceSats       *int64    `json:"max_balance_sats,omitempty"`
	AllowedServices      []string  `json:"allowed_services,omitempty"`
	DeniedServices       []string  `json:"denied_services,omitempty"`
	AllowedCapabilities  []string  `json:"allowed_capabilities,omitempty"`
	DeniedCapabilities   []string  `json:"denied_capabilities,omitempty"`
	KillSwitch           bool      `json:"kill_switch"`
	UpdatedAt            time.Time `json:"updated_at"`
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Deny reasons, in the strict evaluation order of spec §4.4.
const (
	ReasonAgentNotActive      = "agent_not_active"
	ReasonKillSwitchActive    = "kill_switch_active"
	ReasonServiceDenied       = "service_denied"
	ReasonServiceNotAllowed   = "service_not_allowed"
	ReasonCapabilityDenied    = "capability_denied"
	ReasonCapabilityNotAllowed = "capability_not_allowed"
	ReasonPerCallLimit        = "per_call_limit_exceeded"
	ReasonDailyLimit          = "daily_limit_exceeded"
)

// ServiceAllowed evaluates rules 3-4 (deny first, then allow-list).
func (p *Policy) ServiceAllowed(slug string) (bool, string) {
	if contains(p.DeniedServices, slug) {
		return false, ReasonServiceDenied
	}
	if p.AllowedServices != nil && !contains(p.AllowedServices, slug) {
		return false, ReasonServiceNotAllowed
	}
	return true, ""
}

// CapabilityAllowed evaluates rules 5-6. Capability checks are skipped
// (always allowed) when capability is empty — the legacy provider-slug route.
func (p *Policy) CapabilityAllowed(capability string) (bool, string) {
	if capability == "" {
		return true, ""
	}
	if contains(p.DeniedCapabilities, capability) {
		return false, ReasonCapabilityDenied
	}
	if p.AllowedCapabilities != nil && !contains(p.AllowedCapabilities, capability) {
		return false, ReasonCapabilityNotAllowed
	}
	return true, ""
}
