package handler

import (
	"math"
	"strconv"
	"time"

	"saturn/internal/adapter/http/dto"
	"saturn/internal/adapter/http/middleware"
	"saturn/internal/core/domain"
	"saturn/internal/core/ports"
	"saturn/pkg/apperror"
	"saturn/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler handles wallet balance, funding, and transaction history.
type WalletHandler struct {
	walletRepo   ports.WalletRepository
	txnRepo      ports.TransactionRepository
	invoiceRepo  ports.InvoiceRepository
	checkoutRepo ports.CheckoutRepository
	lnClient     ports.LightningClient
	pricing      ports.PricingService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(
	walletRepo ports.WalletRepository,
	txnRepo ports.TransactionRepository,
	invoiceRepo ports.InvoiceRepository,
	checkoutRepo ports.CheckoutRepository,
	lnClient ports.LightningClient,
	pricing ports.PricingService,
) *WalletHandler {
	return &WalletHandler{
		walletRepo:   walletRepo,
		txnRepo:      txnRepo,
		invoiceRepo:  invoiceRepo,
		checkoutRepo: checkoutRepo,
		lnClient:     lnClient,
		pricing:      pricing,
	}
}

func walletFromContext(c *gin.Context) (*domain.Wallet, bool) {
	v, ok := c.Get(middleware.CtxWallet)
	if !ok {
		return nil, false
	}
	w, ok := v.(*domain.Wallet)
	return w, ok
}

// GetBalance handles GET /v1/wallet.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	wallet, ok := walletFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
		return
	}

	response.OK(c, dto.WalletResponse{
		ID:              wallet.ID,
		BalanceSats:     wallet.BalanceSats,
		HeldSats:        wallet.HeldSats,
		BalanceUSDCents: wallet.BalanceUSDCents,
		HeldUSDCents:    wallet.HeldUSDCents,
	})
}

// FundInvoice handles POST /v1/wallet/fund: issues a Lightning invoice the
// agent's operator pays out-of-band. Crediting happens asynchronously when
// the invoice watcher (C10) observes settlement.
func (h *WalletHandler) FundInvoice(c *gin.Context) {
	wallet, ok := walletFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
		return
	}

	var req dto.FundInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation(err.Error()))
		return
	}

	paymentRequest, rHash, err := h.lnClient.AddInvoice(c.Request.Context(), req.AmountSats, "saturn wallet funding")
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	expiresAt := time.Now().Add(1 * time.Hour)
	inv := &domain.Invoice{
		ID:             domain.NewID("inv"),
		WalletID:       wallet.ID,
		AmountSats:     req.AmountSats,
		PaymentRequest: paymentRequest,
		RHash:          rHash,
		Status:         domain.InvoiceStatusPending,
		ExpiresAt:      expiresAt,
	}
	if err := h.invoiceRepo.Create(c.Request.Context(), inv); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.Created(c, dto.FundInvoiceResponse{
		PaymentRequest: inv.PaymentRequest,
		RHash:          inv.RHash,
		AmountSats:     inv.AmountSats,
		ExpiresAt:      inv.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// FundCard handles POST /v1/wallet/fund-card: opens a card-funded checkout
// session quoted in USD cents at the oracle's current BTC/USD rate.
// Crediting happens asynchronously when the Stripe webhook (C11) reports
// completion.
func (h *WalletHandler) FundCard(c *gin.Context) {
	wallet, ok := walletFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
		return
	}

	var req dto.FundCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation(err.Error()))
		return
	}

	btcUSD, _ := h.pricing.CurrentRate()
	amountSats := h.pricing.USDCentsToSats(req.AmountUSDCents)

	cs := &domain.CheckoutSession{
		ID:             domain.NewID("cs"),
		WalletID:       wallet.ID,
		AmountUSDCents: req.AmountUSDCents,
		BTCUSDRate:     btcUSD,
		AmountSats:     amountSats,
		Status:         domain.CheckoutStatusPending,
		ProviderRef:    uuid.NewString(),
	}
	if err := h.checkoutRepo.Create(c.Request.Context(), cs); err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	response.Created(c, dto.FundCardResponse{
		CheckoutSessionID: cs.ID,
		CheckoutURL:       "https://checkout.stripe.com/pay/" + cs.ProviderRef,
	})
}

// ListTransactions handles GET /v1/wallet/transactions.
func (h *WalletHandler) ListTransactions(c *gin.Context) {
	wallet, ok := walletFromContext(c)
	if !ok {
		response.Error(c, apperror.ErrUnauthorized("an agent api key is required for this route"))
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	params := ports.TransactionListParams{
		WalletID: wallet.ID,
		Page:     page,
		PageSize: pageSize,
	}
	if t := c.Query("type"); t != "" {
		txType := domain.TransactionType(t)
		params.Type = &txType
	}
	if f := c.Query("from"); f != "" {
		if v, err := strconv.ParseInt(f, 10, 64); err == nil {
			params.From = &v
		}
	}
	if t := c.Query("to"); t != "" {
		if v, err := strconv.ParseInt(t, 10, 64); err == nil {
			params.To = &v
		}
	}

	txns, total, err := h.txnRepo.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, apperror.InternalError(err))
		return
	}

	items := make([]dto.TransactionResponse, 0, len(txns))
	for i := range txns {
		items = append(items, toTransactionResponse(&txns[i]))
	}

	totalPages := int(math.Ceil(float64(total) / float64(pageSize)))

	response.OK(c, dto.TransactionListResponse{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	})
}

func toTransactionResponse(t *domain.Transaction) dto.TransactionResponse {
	return dto.TransactionResponse{
		ID:                   t.ID,
		AgentID:              t.AgentID,
		Type:                 string(t.Type),
		Currency:             string(t.Currency),
		AmountSats:           t.AmountSats,
		AmountUSDCents:       t.AmountUSDCents,
		BalanceAfterSats:     t.BalanceAfterSats,
		BalanceAfterUSDCents: t.BalanceAfterUSDCents,
		ReferenceType:        t.ReferenceType,
		ReferenceID:          t.ReferenceID,
		Description:          t.Description,
		CreatedAt:            t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
}
