package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	orderdomain "github.com/smallbiznis/coinflow/internal/order/domain"
)

type createOrderRequest struct {
	Number      string          `json:"number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

func (s *Server) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" || req.TotalAmount.Sign() <= 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	now := time.Now().UTC()
	order := &orderdomain.Order{
		ID:          s.genID.Generate(),
		Number:      strings.TrimSpace(req.Number),
		TotalAmount: req.TotalAmount,
		Currency:    currency,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if order.Number == "" {
		order.Number = order.ID.String()
	}

	if err := s.orderRepo.Insert(c.Request.Context(), s.db, order); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, order)
}
