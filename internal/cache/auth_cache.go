package cache

import (
	"time"

	"saturn/internal/core/ports"
)

const (
	authCacheTTL     = 10 * time.Second
	authCacheMaxSize = 1000
)

// AuthCache implements ports.AuthCache: a ~1000-entry, ~10s-TTL cache from
// sha256(token) hex to the resolved (agent, account, wallet, policy)
// bundle, per spec §4.7.
type AuthCache struct {
	bounded *Bounded[string, *ports.AuthContext]
}

func NewAuthCache() *AuthCache {
	return &AuthCache{bounded: NewBounded[string, *ports.AuthContext](authCacheTTL, authCacheMaxSize)}
}

func (c *AuthCache) Get(token string) (*ports.AuthContext, bool) {
	return c.bounded.Get(token)
}

func (c *AuthCache) Set(token string, ctx *ports.AuthContext) {
	c.bounded.Set(token, ctx)
}

// InvalidateAgent is a linear scan over the cache: acceptable at the
// bounded 1000-entry ceiling, and the only way to evict by agent id
// rather than by the cache's own key (the token hash).
func (c *AuthCache) InvalidateAgent(agentID string) {
	c.bounded.mu.Lock()
	defer c.bounded.mu.Unlock()
	for key, e := range c.bounded.items {
		if e.value.Agent != nil && e.value.Agent.ID == agentID {
			delete(c.bounded.items, key)
		}
	}
}

var _ ports.AuthCache = (*AuthCache)(nil)
