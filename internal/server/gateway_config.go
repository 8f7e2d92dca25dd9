package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gatewayconfigdomain "github.com/smallbiznis/coinflow/internal/gatewayconfig/domain"
)

func (s *Server) GetGatewayConfig(c *gin.Context) {
	summary, err := s.configSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// UpsertGatewayConfig saves the merchant settings. The service proves the
// auth token against the gateway before persisting, so a rejected token is
// reported here and nothing is stored.
func (s *Server) UpsertGatewayConfig(c *gin.Context) {
	var req gatewayconfigdomain.UpsertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	summary, err := s.configSvc.Upsert(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
