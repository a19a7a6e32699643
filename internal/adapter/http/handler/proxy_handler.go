package handler

import (
	"errors"
	"io"

	"saturn/internal/adapter/http/dto"
	"saturn/internal/adapter/http/middleware"
	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
)

// ProxyHandler handles the metered call surface: capability routing,
// direct per-service calls, and the read-only catalog endpoints.
type ProxyHandler struct {
	executor     ports.ProxyExecutor
	capabilities ports.CapabilityRegistry
	services     ports.ServiceRepository
}

// NewProxyHandler creates a new ProxyHandler.
func NewProxyHandler(executor ports.ProxyExecutor, capabilities ports.CapabilityRegistry, services ports.ServiceRepository) *ProxyHandler {
	return &ProxyHandler{executor: executor, capabilities: capabilities, services: services}
}

func authContextFromGin(c *gin.Context) (*domain.Account, *domain.Agent, *domain.Wallet, *domain.Policy, bool) {
	accountV, ok := c.Get(middleware.CtxAccount)
	if !ok {
		return nil, nil, nil, nil, false
	}
	account, ok := accountV.(*domain.Account)
	if !ok {
		return nil, nil, nil, nil, false
	}

	agentV, _ := c.Get(middleware.CtxAgent)
	agent, _ := agentV.(*domain.Agent)

	walletV, _ := c.Get(middleware.CtxWallet)
	wallet, _ := walletV.(*domain.Wallet)

	policyV, _ := c.Get(middleware.CtxPolicy)
	policy, _ := policyV.(*domain.Policy)

	return account, agent, wallet, policy, true
}

func (h *ProxyHandler) call(c *gin.Context, serviceSlug, capability string) {
	account, agent, wallet, policy, ok := authContextFromGin(c)
	if !ok || agent == nil {
		response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.ErrValidation("unreadable request body"))
		return
	}

	result, err := h.executor.Call(c.Request.Context(), ports.ProxyCallInput{
		Account:     account,
		Agent:       agent,
		Wallet:      wallet,
		Policy:      policy,
		ServiceSlug: serviceSlug,
		Capability:  capability,
		RequestBody: body,
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) && appErr.ProxyMeta != nil {
			response.SetProxyHeaders(c, response.ProxyMetadata{
				AuditID:        appErr.ProxyMeta.AuditID,
				QuotedSats:     appErr.ProxyMeta.QuotedSats,
				QuotedUSDCents: appErr.ProxyMeta.QuotedUSDCents,
				Capability:     capability,
				Provider:       serviceSlug,
			})
		}
		response.Error(c, err)
		return
	}

	response.SetProxyHeaders(c, response.ProxyMetadata{
		AuditID:         result.Metadata.AuditID,
		QuotedSats:      result.Metadata.QuotedSats,
		ChargedSats:     result.Metadata.ChargedSats,
		QuotedUSDCents:  result.Metadata.QuotedUSDCents,
		ChargedUSDCents: result.Metadata.ChargedUSDCents,
		BalanceAfter:    result.Metadata.BalanceAfter,
		Capability:      result.Metadata.Capability,
		Provider:        result.Metadata.Provider,
	})
	c.Data(result.Status, "application/json", result.Data)
}

// CallByService handles POST /v1/proxy/:service_slug — a direct call
// against a named upstream provider.
func (h *ProxyHandler) CallByService(c *gin.Context) {
	h.call(c, c.Param("service_slug"), "")
}

// CallByCapability handles POST /v1/capabilities/:capability — routed
// through the capability registry (C6) to whichever service currently
// resolves that capability.
func (h *ProxyHandler) CallByCapability(c *gin.Context) {
	h.call(c, "", c.Param("capability"))
}

// ListCapabilities handles GET /v1/capabilities.
func (h *ProxyHandler) ListCapabilities(c *gin.Context) {
	response.OK(c, dto.CapabilityListResponse{Capabilities: h.capabilities.List()})
}

// ListServices handles GET /v1/services.
func (h *ProxyHandler) ListServices(c *gin.Context) {
	services, err := h.services.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.ServiceResponse, 0, len(services))
	for i := range services {
		items = append(items, dto.ServiceResponse{
			Slug: services[i].Slug,
			Name: services[i].Name,
			Tier: string(services[i].Tier),
		})
	}
	response.OK(c, items)
}
