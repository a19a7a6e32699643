package service

import (
	"context"
	"fmt"
	"time"

	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"

	"github.com/rs/zerolog"
)

// ProxyExecutorImpl is the orchestrator at the center of the gateway: it
// sequences capability/service resolution, quoting, policy evaluation,
// the hold, the upstream call, and settlement or release. It writes one
// AuditLog row for a policy denial, an upstream error status, or a settled
// call, and for a transport error (plus a second row if the release after it
// fails). Resolution, quote and policy-evaluation failures, an insufficient
// balance, and internal release/finalize/settle errors write no row. See the
// state machine in spec §4.8.
type ProxyExecutorImpl struct {
	capabilities ports.CapabilityRegistry
	adapters     ports.AdapterRegistry
	pricing      ports.PricingService
	policy       ports.PolicyService
	ledger       ports.LedgerService
	audit        ports.AuditService
	normalizer   ports.Normalizer
	log          zerolog.Logger
}

func NewProxyExecutor(
	capabilities ports.CapabilityRegistry,
	adapters ports.AdapterRegistry,
	pricing ports.PricingService,
	policy ports.PolicyService,
	ledger ports.LedgerService,
	audit ports.AuditService,
	normalizer ports.Normalizer,
	log zerolog.Logger,
) *ProxyExecutorImpl {
	return &ProxyExecutorImpl{
		capabilities: capabilities,
		adapters:     adapters,
		pricing:      pricing,
		policy:       policy,
		ledger:       ledger,
		audit:        audit,
		normalizer:   normalizer,
		log:          log,
	}
}

func (e *ProxyExecutorImpl) Call(ctx context.Context, in ports.ProxyCallInput) (*ports.ProxyCallResult, error) {
	serviceSlug := in.ServiceSlug
	if serviceSlug == "" {
		slug, ok := e.capabilities.Resolve(in.Capability)
		if !ok {
			return nil, apperror.ErrNotFound("capability")
		}
		serviceSlug = slug
	}

	adapter, ok := e.adapters.Resolve(serviceSlug)
	if !ok {
		return nil, apperror.ErrNotFound("service")
	}

	quote, err := adapter.Quote(ctx, in.RequestBody)
	if err != nil {
		return nil, apperror.ErrUpstream(serviceSlug, err)
	}
	quotedUSDCents := e.pricing.SatsToUSDCents(quote.QuotedSats)

	decision, err := e.policy.Evaluate(ctx, in.Agent, in.Policy, serviceSlug, in.Capability, quote.QuotedSats)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("evaluate policy: %w", err))
	}
	if !decision.Allowed {
		auditLog, _ := e.audit.Log(ctx, ports.AuditEntry{
			AgentID:        in.Agent.ID,
			ServiceSlug:    serviceSlug,
			Capability:     in.Capability,
			Operation:      quote.Operation,
			RequestBody:    in.RequestBody,
			PolicyResult:   domain.PolicyResultDenied,
			PolicyReason:   decision.Reason,
			QuotedSats:     quote.QuotedSats,
			QuotedUSDCents: quotedUSDCents,
		})
		return nil, apperror.ErrPolicyDenied(decision.Reason).
			WithProxyMeta(apperror.ProxyMeta{AuditID: auditIDOf(auditLog), QuotedSats: quote.QuotedSats, QuotedUSDCents: quotedUSDCents})
	}

	hold, err := e.ledger.Hold(ctx, in.Wallet.ID, in.Account.DefaultCurrency, quotedUSDCents, quote.QuotedSats)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hold: %w", err))
	}
	if !hold.Success {
		required, available := quote.QuotedSats, hold.AvailableSats
		if in.Account.DefaultCurrency == domain.CurrencyUSDCents {
			required, available = quotedUSDCents, hold.AvailableUSD
		}
		return nil, apperror.ErrInsufficientBalance(string(in.Account.DefaultCurrency), required, available).
			WithProxyMeta(apperror.ProxyMeta{QuotedSats: quote.QuotedSats, QuotedUSDCents: quotedUSDCents})
	}

	agentID := in.Agent.ID
	start := time.Now()
	resp, execErr := adapter.Execute(ctx, in.RequestBody)
	latencyMs := time.Since(start).Milliseconds()

	if execErr != nil {
		if _, releaseErr := e.ledger.Release(ctx, in.Wallet.ID, hold.CurrencyHeld, hold.AmountHeld, &agentID); releaseErr != nil {
			e.audit.Log(ctx, ports.AuditEntry{
				AgentID:           agentID,
				ServiceSlug:       serviceSlug,
				Capability:        in.Capability,
				Operation:         quote.Operation,
				RequestBody:       in.RequestBody,
				PolicyResult:      domain.PolicyResultAllowed,
				QuotedSats:        quote.QuotedSats,
				QuotedUSDCents:    quotedUSDCents,
				UpstreamLatencyMs: latencyMs,
				Error:             fmt.Sprintf("Release failed: %s", releaseErr.Error()),
			})
		}
		auditLog, _ := e.audit.Log(ctx, ports.AuditEntry{
			AgentID:           agentID,
			ServiceSlug:       serviceSlug,
			Capability:        in.Capability,
			Operation:         quote.Operation,
			RequestBody:       in.RequestBody,
			PolicyResult:      domain.PolicyResultAllowed,
			QuotedSats:        quote.QuotedSats,
			QuotedUSDCents:    quotedUSDCents,
			UpstreamLatencyMs: latencyMs,
			Error:             execErr.Error(),
		})
		return nil, apperror.ErrUpstream(serviceSlug, execErr).
			WithProxyMeta(apperror.ProxyMeta{AuditID: auditIDOf(auditLog), QuotedSats: quote.QuotedSats, QuotedUSDCents: quotedUSDCents})
	}

	if resp.Status >= 400 {
		releasedWallet, releaseErr := e.ledger.Release(ctx, in.Wallet.ID, hold.CurrencyHeld, hold.AmountHeld, &agentID)
		if releaseErr != nil {
			return nil, apperror.InternalError(fmt.Errorf("release after upstream error: %w", releaseErr))
		}
		auditLog, _ := e.audit.Log(ctx, ports.AuditEntry{
			AgentID:           agentID,
			ServiceSlug:       serviceSlug,
			Capability:        in.Capability,
			Operation:         quote.Operation,
			RequestBody:       in.RequestBody,
			PolicyResult:      domain.PolicyResultAllowed,
			QuotedSats:        quote.QuotedSats,
			QuotedUSDCents:    quotedUSDCents,
			UpstreamStatus:    resp.Status,
			UpstreamLatencyMs: latencyMs,
			Error:             fmt.Sprintf("Upstream returned %d", resp.Status),
		})
		return &ports.ProxyCallResult{
			Status:  resp.Status,
			Data:    resp.Data,
			Headers: resp.Headers,
			Metadata: ports.ProxyCallMetadata{
				AuditID:        auditIDOf(auditLog),
				QuotedSats:     quote.QuotedSats,
				ChargedSats:    0,
				QuotedUSDCents: quotedUSDCents,
				BalanceAfter:   releasedWallet.Available(in.Account.DefaultCurrency),
				Capability:     in.Capability,
				Provider:       serviceSlug,
			},
		}, nil
	}

	finalSats, err := adapter.Finalize(ctx, resp, quote.QuotedSats)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("finalize: %w", err))
	}
	finalUSDCents := e.pricing.SatsToUSDCents(finalSats)

	var finalInHeldCurrency int64
	if hold.CurrencyHeld == domain.CurrencySats {
		finalInHeldCurrency = finalSats
	} else {
		finalInHeldCurrency = finalUSDCents
	}

	settledWallet, err := e.ledger.Settle(ctx, in.Wallet.ID, hold.CurrencyHeld, hold.AmountHeld, finalInHeldCurrency, &agentID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("settle: %w", err))
	}

	// Daily-spend invalidation happens once, in AuditService.Log below, on
	// the allowed entry it writes for this call.

	var chargedSats, chargedUSDCents int64
	if hold.CurrencyHeld == domain.CurrencySats {
		chargedSats = finalSats
		chargedUSDCents = finalUSDCents
	} else {
		chargedUSDCents = finalUSDCents
		chargedSats = finalSats
	}

	auditLog, err := e.audit.Log(ctx, ports.AuditEntry{
		AgentID:           agentID,
		ServiceSlug:       serviceSlug,
		Capability:        in.Capability,
		Operation:         quote.Operation,
		RequestBody:       in.RequestBody,
		PolicyResult:      domain.PolicyResultAllowed,
		QuotedSats:        quote.QuotedSats,
		ChargedSats:       chargedSats,
		QuotedUSDCents:    quotedUSDCents,
		ChargedUSDCents:   chargedUSDCents,
		UpstreamStatus:    resp.Status,
		UpstreamLatencyMs: latencyMs,
	})
	if err != nil {
		e.log.Error().Err(err).Msg("audit log write failed after successful settlement")
	}

	normalized, err := e.normalizer.Normalize(in.Capability, serviceSlug, resp.Data)
	if err != nil {
		e.log.Warn().Err(err).Str("capability", in.Capability).Str("service", serviceSlug).Msg("response normalization failed, returning raw upstream body")
		normalized = resp.Data
	}

	return &ports.ProxyCallResult{
		Status:  resp.Status,
		Data:    normalized,
		Headers: resp.Headers,
		Metadata: ports.ProxyCallMetadata{
			AuditID:         auditIDOf(auditLog),
			QuotedSats:      quote.QuotedSats,
			ChargedSats:     chargedSats,
			QuotedUSDCents:  quotedUSDCents,
			ChargedUSDCents: chargedUSDCents,
			BalanceAfter:    settledWallet.Available(in.Account.DefaultCurrency),
			Capability:      in.Capability,
			Provider:        serviceSlug,
		},
	}, nil
}

func auditIDOf(a *domain.AuditLog) string {
	if a == nil {
		return ""
	}
	return a.ID
}
