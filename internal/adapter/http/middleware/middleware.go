package middleware

import (
	"net/http"
	"strings"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Context keys set by BearerAuth for downstream handlers.
const (
	CtxAccount = "saturn_account"
	CtxAgent   = "saturn_agent"
	CtxWallet  = "saturn_wallet"
	CtxPolicy  = "saturn_policy"
)

// BearerAuth resolves every request's Authorization header through
// AuthService.Authenticate (C7, spec §4.7) and stores the resulting
// account/agent/wallet/policy bundle in the gin context.
func BearerAuth(authSvc ports.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")

		authCtx, err := authSvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(CtxAccount, authCtx.Account)
		if authCtx.Agent != nil {
			c.Set(CtxAgent, authCtx.Agent)
		}
		if authCtx.Wallet != nil {
			c.Set(CtxWallet, authCtx.Wallet)
		}
		if authCtx.Policy != nil {
			c.Set(CtxPolicy, authCtx.Policy)
		}
		c.Next()
	}
}

// RequireAgent aborts with 401 if the request was authenticated by session
// token rather than an agent API key — the proxy routes only ever run as
// an agent, never as a logged-in human.
func RequireAgent() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := c.Get(CtxAgent); !ok {
			response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePrimary aborts with 401 if the request is authenticated as a
// worker agent. An account's session token (no agent in context — the
// account's own login) and the primary agent's own key both pass; only a
// worker agent key is rejected. Guards /v1/agents[...], which spec §6
// scopes to "primary" auth.
func RequirePrimary() gin.HandlerFunc {
	return func(c *gin.Context) {
		v, ok := c.Get(CtxAgent)
		if !ok {
			c.Next()
			return
		}
		agent, ok := v.(*domain.Agent)
		if !ok || agent.Role != domain.AgentRolePrimary {
			response.Error(c, apperror.ErrUnauthorized("a primary agent or account session is required for this route"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequestLogger logs every HTTP request at a level derived from its status.
func RequestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		status := c.Writer.Status()

		event := log.Info()
		if status >= http.StatusInternalServerError {
			event = log.Error()
		} else if status >= http.StatusBadRequest {
			event = log.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", latency).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// Recovery converts a panic into a 500 instead of crashing the process.
func Recovery(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Str("path", c.Request.URL.Path).Msg("panic recovered")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
					"error": gin.H{"code": "INTERNAL_ERROR", "message": "internal server error"},
				})
			}
		}()
		c.Next()
	}
}
