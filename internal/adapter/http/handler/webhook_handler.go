package handler

import (
	"encoding/json"
	"io"

	"saturn/internal/core/ports"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// headerSignature is the HMAC-SHA256 signature header both inbound webhook
// providers are configured to send, over the raw request body.
const headerSignature = "X-Signature"

type lightningWebhookPayload struct {
	RHash      string `json:"r_hash"`
	AmountSats int64  `json:"amount_sats"`
}

type stripeWebhookPayload struct {
	SessionID      string `json:"session_id"`
	AmountUSDCents int64  `json:"amount_usd_cents"`
}

// WebhookHandler verifies and processes the two inbound funding callbacks
// (C11): Lightning invoice settlement and Stripe checkout completion.
type WebhookHandler struct {
	checkoutSvc     ports.CheckoutService
	sigSvc          ports.SignatureService
	lightningSecret string
	stripeSecret    string
	log             zerolog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(checkoutSvc ports.CheckoutService, sigSvc ports.SignatureService, lightningSecret, stripeSecret string, log zerolog.Logger) *WebhookHandler {
	return &WebhookHandler{
		checkoutSvc:     checkoutSvc,
		sigSvc:          sigSvc,
		lightningSecret: lightningSecret,
		stripeSecret:    stripeSecret,
		log:             log,
	}
}

// Lightning handles POST /internal/webhooks/lightning. Always replies 200
// once the signature checks out, regardless of whether the underlying
// claim was a duplicate or processing failed (failures are logged) — the
// sender has no business retrying on our internal processing outcome.
func (h *WebhookHandler) Lightning(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.ErrValidation("unreadable request body"))
		return
	}

	if !h.sigSvc.Verify(h.lightningSecret, body, c.GetHeader(headerSignature)) {
		response.Error(c, apperror.ErrUnauthorized("invalid webhook signature"))
		return
	}

	var payload lightningWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, apperror.ErrValidation("malformed webhook payload"))
		return
	}

	if err := h.checkoutSvc.HandleLightningWebhook(c.Request.Context(), payload.RHash, payload.AmountSats); err != nil {
		h.log.Error().Err(err).Str("r_hash", payload.RHash).Msg("lightning webhook processing failed")
	}

	response.OK(c, gin.H{"received": true})
}

// Stripe handles POST /internal/webhooks/stripe. Like Lightning, it replies
// 200 once the signature checks out and only logs processing failures.
func (h *WebhookHandler) Stripe(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.Error(c, apperror.ErrValidation("unreadable request body"))
		return
	}

	if !h.sigSvc.Verify(h.stripeSecret, body, c.GetHeader(headerSignature)) {
		response.Error(c, apperror.ErrUnauthorized("invalid webhook signature"))
		return
	}

	var payload stripeWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.Error(c, apperror.ErrValidation("malformed webhook payload"))
		return
	}

	if err := h.checkoutSvc.HandleStripeWebhook(c.Request.Context(), payload.SessionID, payload.AmountUSDCents); err != nil {
		h.log.Error().Err(err).Str("session_id", payload.SessionID).Msg("stripe webhook processing failed")
	}

	response.OK(c, gin.H{"received": true})
}
