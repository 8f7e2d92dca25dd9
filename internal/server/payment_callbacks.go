package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	paymentdomain "github.com/smallbiznis/coinflow/internal/payment/domain"
)

// HandleReturn is the browser redirect after the buyer paid. It only checks
// that a notification already reconciled the payment; it never changes state.
func (s *Server) HandleReturn(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("order_id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.reconcileSvc.OnReturn(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// HandleCancel is the browser redirect after the buyer aborted checkout.
func (s *Server) HandleCancel(c *gin.Context) {
	orderID, err := snowflake.ParseString(strings.TrimSpace(c.Param("order_id")))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.reconcileSvc.OnCancel(c.Request.Context(), orderID); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "canceled"})
}

// HandleNotify is the server-to-server notification endpoint. The payload is
// form-encoded with the gateway invoice id and the local payment id.
func (s *Server) HandleNotify(c *gin.Context) {
	var req paymentdomain.NotifyRequest
	if err := c.ShouldBind(&req); err != nil {
		AbortWithError(c, paymentdomain.ErrInvalidNotify)
		return
	}

	if err := s.reconcileSvc.OnNotify(c.Request.Context(), req); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
