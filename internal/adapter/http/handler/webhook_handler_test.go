package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"saturn/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

type fakeCheckoutService struct {
	lightningErr  error
	stripeErr     error
	lastRHash     string
	lastSessionID string
}

func (f *fakeCheckoutService) HandleLightningWebhook(ctx context.Context, rHash string, amountSats int64) error {
	f.lastRHash = rHash
	return f.lightningErr
}

func (f *fakeCheckoutService) HandleStripeWebhook(ctx context.Context, sessionID string, amountUSDCents int64) error {
	f.lastSessionID = sessionID
	return f.stripeErr
}

type fakeSignatureService struct {
	valid bool
}

func (f *fakeSignatureService) Sign(secretKey string, payload string) string { return "" }
func (f *fakeSignatureService) Verify(secretKey string, payload []byte, signature string) bool {
	return f.valid
}

func TestWebhookLightning_Success(t *testing.T) {
	checkoutSvc := &fakeCheckoutService{}
	h := NewWebhookHandler(checkoutSvc, &fakeSignatureService{valid: true}, "ln-secret", "stripe-secret", zerolog.Nop())

	body, _ := json.Marshal(lightningWebhookPayload{RHash: "rhash1", AmountSats: 1000})
	req := httptest.NewRequest(http.MethodPost, "/internal/webhooks/lightning", bytes.NewReader(body))
	req.Header.Set(headerSignature, "whatever")
	c, w := setGinContext(req)

	h.Lightning(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "rhash1", checkoutSvc.lastRHash)
}

func TestWebhookLightning_InvalidSignature(t *testing.T) {
	h := NewWebhookHandler(&fakeCheckoutService{}, &fakeSignatureService{valid: false}, "ln-secret", "stripe-secret", zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/internal/webhooks/lightning", bytes.NewReader([]byte(`{}`)))
	req.Header.Set(headerSignature, "bad")
	c, w := setGinContext(req)

	h.Lightning(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWebhookStripe_Success(t *testing.T) {
	checkoutSvc := &fakeCheckoutService{}
	h := NewWebhookHandler(checkoutSvc, &fakeSignatureService{valid: true}, "ln-secret", "stripe-secret", zerolog.Nop())

	body, _ := json.Marshal(stripeWebhookPayload{SessionID: "cs_1", AmountUSDCents: 500})
	req := httptest.NewRequest(http.MethodPost, "/internal/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set(headerSignature, "whatever")
	c, w := setGinContext(req)

	h.Stripe(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "cs_1", checkoutSvc.lastSessionID)
}

func TestWebhookStripe_ProcessingError(t *testing.T) {
	checkoutSvc := &fakeCheckoutService{stripeErr: apperror.InternalError(nil)}
	h := NewWebhookHandler(checkoutSvc, &fakeSignatureService{valid: true}, "ln-secret", "stripe-secret", zerolog.Nop())

	body, _ := json.Marshal(stripeWebhookPayload{SessionID: "cs_2", AmountUSDCents: 500})
	req := httptest.NewRequest(http.MethodPost, "/internal/webhooks/stripe", bytes.NewReader(body))
	req.Header.Set(headerSignature, "whatever")
	c, w := setGinContext(req)

	h.Stripe(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func init() {
	gin.SetMode(gin.TestMode)
}
