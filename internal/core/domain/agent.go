package domain

import "time"

type AgentRole string

const (
	AgentRolePrimary AgentRole = "primary"
	AgentRoleWorker  AgentRole = "worker"
)

type AgentStatus string

const (
	AgentStatusActive    AgentStatus = "active"
	AgentStatusSuspended AgentStatus = "suspended"
	AgentStatusKilled    AgentStatus = "killed"
)

// Agent is the identity a running program authenticates as. The primary
// agent of an account is created at signup, can manage worker agents, and
// can never be deleted.
type Agent struct {
	ID           string            `json:"id"`
	AccountID    string            `json:"account_id"`
	Name         string            `json:"name"`
	Role         AgentRole         `json:"role"`
	Status       AgentStatus       `json:"status"`
	APIKeyHash   string            `json:"-"` // argon2id, never exposed
	APIKeyPrefix string            `json:"-"` // sha256(key)[:16], bucket index only
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

func (a *Agent) Active() bool {
	return a.Status == AgentStatusActive
}
