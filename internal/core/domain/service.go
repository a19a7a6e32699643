package domain

import "time"

type ServiceTier string

const (
	ServiceTierCurated   ServiceTier = "curated"
	ServiceTierCommunity ServiceTier = "community"
)

type ServiceStatus string

const (
	ServiceStatusActive   ServiceStatus = "active"
	ServiceStatusDisabled ServiceStatus = "disabled"
)

type AuthType string

const (
	AuthTypeBearer        AuthType = "bearer"
	AuthTypeAPIKeyHeader   AuthType = "api_key_header"
	AuthTypeBasic          AuthType = "basic"
	AuthTypeQueryParam     AuthType = "query_param"
)

// Service is a registered upstream provider configuration.
type Service struct {
	ID                 string        `json:"id"`
	Slug               string        `json:"slug"`
	Name               string        `json:"name"`
	Tier               ServiceTier   `json:"tier"`
	Status             ServiceStatus `json:"status"`
	BaseURL            string        `json:"base_url"`
	AuthType           AuthType      `json:"auth_type"`
	AuthCredentialEnv  string        `json:"auth_credential_env"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

func (s *Service) Active() bool { return s.Status == ServiceStatusActive }

type PricingUnit string

const (
	PricingUnitPerRequest  PricingUnit = "per_request"
	PricingUnitPer1kTokens PricingUnit = "per_1k_tokens"
	PricingUnitPerMinute   PricingUnit = "per_minute"
)

// ServicePricing is the (service, operation) cost row. PriceSats is
// recomputed and persisted whenever the BTC/USD rate advances.
type ServicePricing struct {
	ServiceID      string      `json:"service_id"`
	Operation      string      `json:"operation"`
	CostUSDMicros  int64       `json:"cost_usd_micros"`
	PriceUSDMicros int64       `json:"price_usd_micros"`
	PriceSats      int64       `json:"price_sats"`
	Unit           PricingUnit `json:"unit"`
	UpdatedAt      time.Time   `json:"updated_at"`
}
