package response

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"saturn/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the standard success envelope for non-proxy endpoints
// (wallet, agents, signup, ...).
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorBody is the error shape of spec §6: {"error":{"code","message","details"}}.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Error sends the taxonomy error envelope. If err is an *apperror.AppError
// it is mapped directly; otherwise it is treated as INTERNAL_ERROR.
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorResponse{Error: ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		}})
		return
	}

	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: ErrorBody{
		Code:    "INTERNAL_ERROR",
		Message: "internal server error",
	}})
}

// ProxyMetadata is the set of X-Saturn-* headers spec §6 requires on every
// proxy response, success or failure.
type ProxyMetadata struct {
	AuditID         string
	QuotedSats      int64
	ChargedSats     int64
	QuotedUSDCents  int64
	ChargedUSDCents int64
	BalanceAfter    int64
	Capability      string
	Provider        string
}

// SetProxyHeaders writes the X-Saturn-* headers. Call before c.Data/c.JSON.
func SetProxyHeaders(c *gin.Context, m ProxyMetadata) {
	c.Header("X-Saturn-Audit-Id", m.AuditID)
	c.Header("X-Saturn-Quoted-Sats", strconv.FormatInt(m.QuotedSats, 10))
	c.Header("X-Saturn-Charged-Sats", strconv.FormatInt(m.ChargedSats, 10))
	c.Header("X-Saturn-Quoted-Usd-Cents", strconv.FormatInt(m.QuotedUSDCents, 10))
	c.Header("X-Saturn-Charged-Usd-Cents", strconv.FormatInt(m.ChargedUSDCents, 10))
	c.Header("X-Saturn-Balance-After", strconv.FormatInt(m.BalanceAfter, 10))
	if m.Capability != "" {
		c.Header("X-Saturn-Capability", m.Capability)
	}
	if m.Provider != "" {
		c.Header("X-Saturn-Provider", m.Provider)
	}
}

func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
