package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
)

type createCheckoutRequest struct {
	CancelURL string `json:"cancel_url"`
	ReturnURL string `json:"return_url"`
}

// CreateCheckout creates the hosted invoice for an order and returns the
// checkout URL the buyer should be redirected to.
func (s *Server) CreateCheckout(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("order_id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	var req createCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.checkoutSvc.CreateInvoice(c.Request.Context(), paymentdomain.CreateInvoiceRequest{
		OrderID:   orderID,
		CancelURL: req.CancelURL,
		ReturnURL: req.ReturnURL,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
