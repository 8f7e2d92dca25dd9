package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/coinflow/internal/coingate"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
	"github.com/smallbiznis/coinflow/pkg/db"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var checkoutErr *paymentdomain.CheckoutError
	if errors.As(err, &checkoutErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: checkoutErr.Error(),
		}
	}
	var gwErr *coingate.GatewayError
	if errors.As(err, &gwErr) {
		return http.StatusBadGateway, errorPayload{
			Type:    "gateway_error",
			Message: gwErr.Message,
		}
	}

	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, paymentdomain.ErrInvalidNotify):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, gatewayconfigdomain.ErrInvalidAuthToken),
		errors.Is(err, gatewayconfigdomain.ErrInvalidReceiveCurrency),
		errors.Is(err, gatewayconfigdomain.ErrInvalidTestMode),
		errors.Is(err, gatewayconfigdomain.ErrNotConfigured),
		errors.Is(err, paymentdomain.ErrInvalidReceiveCurrency),
		errors.Is(err, coingate.ErrInvalidEnvironment):
		return http.StatusBadRequest, errorPayload{
			Type:    "configuration_error",
			Message: err.Error(),
		}
	case errors.Is(err, paymentdomain.ErrPendingReconciliation):
		return http.StatusConflict, errorPayload{
			Type:    "pending_reconciliation",
			Message: "payment not reconciled yet, please wait or contact the merchant",
		}
	case errors.Is(err, paymentdomain.ErrInvalidPayment):
		return http.StatusUnprocessableEntity, errorPayload{
			Type:    "invalid_payment",
			Message: "payment invalid",
		}
	case errors.Is(err, orderdomain.ErrOrderNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case db.IsDuplicateKeyErr(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "resource already exists",
		}
	case errors.Is(err, coingate.ErrGatewayUnavailable),
		errors.Is(err, paymentdomain.ErrPaymentBusy):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable, retry later",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
