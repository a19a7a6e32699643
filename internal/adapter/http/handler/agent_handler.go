package handler

import (
	"saturn/internal/adapter/http/dto"
	"saturn/internal/adapter/http/middleware"
	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
)

// AgentHandler handles worker agent provisioning and policy management.
type AgentHandler struct {
	agentSvc ports.AgentService
}

// NewAgentHandler creates a new AgentHandler.
func NewAgentHandler(agentSvc ports.AgentService) *AgentHandler {
	return &AgentHandler{agentSvc: agentSvc}
}

func accountIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(middleware.CtxAccount)
	if !ok {
		return "", false
	}
	account, ok := v.(*domain.Account)
	if !ok {
		return "", false
	}
	return account.ID, true
}

// Create handles POST /v1/agents: provisions a new worker agent under the
// authenticated account and returns its plaintext API key once.
func (h *AgentHandler) Create(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}

	var req dto.CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation(err.Error()))
		return
	}
	dto.SanitizeStruct(&req)

	agent, apiKey, err := h.agentSvc.CreateWorker(c.Request.Context(), accountID, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateAgentResponse{
		Agent:  toAgentResponse(agent),
		APIKey: apiKey,
	})
}

// List handles GET /v1/agents: every agent belonging to the authenticated account.
func (h *AgentHandler) List(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}

	agents, err := h.agentSvc.List(c.Request.Context(), accountID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.AgentResponse, 0, len(agents))
	for i := range agents {
		items = append(items, toAgentResponse(&agents[i]))
	}
	response.OK(c, items)
}

// Kill handles POST /v1/agents/:id/policy/kill: immediately denies every
// proxy call for the agent regardless of remaining balance or policy limits.
func (h *AgentHandler) Kill(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}
	if err := h.agentSvc.Kill(c.Request.Context(), accountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"killed": true})
}

// Unkill handles POST /v1/agents/:id/policy/unkill.
func (h *AgentHandler) Unkill(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}
	if err := h.agentSvc.Unkill(c.Request.Context(), accountID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"killed": false})
}

// GetPolicy handles GET /v1/agents/:id/policy.
func (h *AgentHandler) GetPolicy(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}
	policy, err := h.agentSvc.GetPolicy(c.Request.Context(), accountID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPolicyResponse(policy))
}

// ReplacePolicy handles PUT /v1/agents/:id/policy.
func (h *AgentHandler) ReplacePolicy(c *gin.Context) {
	accountID, ok := accountIDFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("account session required"))
		return
	}
	agentID := c.Param("id")

	var req dto.PolicyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation(err.Error()))
		return
	}

	existing, err := h.agentSvc.GetPolicy(c.Request.Context(), accountID, agentID)
	if err != nil {
		response.Error(c, err)
		return
	}

	policy := &domain.Policy{
		AgentID:             agentID,
		MaxPerCallSats:      req.MaxPerCallSats,
		MaxPerDaySats:       req.MaxPerDaySats,
		MaxBalanceSats:      req.MaxBalanceSats,
		AllowedServices:     req.AllowedServices,
		DeniedServices:      req.DeniedServices,
		AllowedCapabilities: req.AllowedCapabilities,
		DeniedCapabilities:  req.DeniedCapabilities,
		KillSwitch:          existing.KillSwitch,
	}

	if err := h.agentSvc.ReplacePolicy(c.Request.Context(), accountID, policy); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toPolicyResponse(policy))
}

func toAgentResponse(a *domain.Agent) dto.AgentResponse {
	return dto.AgentResponse{
		ID:        a.ID,
		Name:      a.Name,
		Role:      string(a.Role),
		Status:    string(a.Status),
		CreatedAt: a.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}

func toPolicyResponse(p *domain.Policy) dto.PolicyResponse {
	return dto.PolicyResponse{
		AgentID:             p.AgentID,
		MaxPerCallSats:      p.MaxPerCallSats,
		MaxPerDaySats:       p.MaxPerDaySats,
		MaxBalanceSats:      p.MaxBalanceSats,
		AllowedServices:     p.AllowedServices,
		DeniedServices:      p.DeniedServices,
		AllowedCapabilities: p.AllowedCapabilities,
		DeniedCapabilities:  p.DeniedCapabilities,
		KillSwitch:          p.KillSwitch,
		UpdatedAt:           p.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
