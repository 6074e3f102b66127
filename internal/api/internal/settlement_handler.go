package internalapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const maxSettlementBatch = 100

type SettlementHandler struct {
	settlementService *service.SettlementService
}

type settleRequest struct {
	Orders []model.PaidOrder `json:"orders" binding:"required"`
}

type issuedCardView struct {
	ID             string  `json:"id"`
	Code           string  `json:"code"`
	InitialBalance string  `json:"initial_balance"`
	RecipientEmail *string `json:"recipient_email,omitempty"`
}

type settlementResultView struct {
	OrderID        string           `json:"order_id"`
	IssuedCards    []issuedCardView `json:"issued_cards"`
	DeductionError string           `json:"deduction_error,omitempty"`
	IssueErrors    []string         `json:"issue_errors,omitempty"`
	Replayed       bool             `json:"replayed"`
}

func NewSettlementHandler(settlementService *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{settlementService: settlementService}
}

// RegisterSettlementInternalRoutes mounts the callback the payment processor
// hits after capture.
func RegisterSettlementInternalRoutes(router gin.IRoutes, settlementService *service.SettlementService, internalToken string) {
	if settlementService == nil {
		return
	}

	handler := NewSettlementHandler(settlementService)
	router.POST("/api/internal/payments/settle", middleware.InternalTokenAuth(internalToken), handler.Settle)
}

func (h *SettlementHandler) Settle(c *gin.Context) {
	var req settleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}
	if len(req.Orders) == 0 || len(req.Orders) > maxSettlementBatch {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "orders must contain between 1 and 100 entries")
		return
	}
	for _, order := range req.Orders {
		if order.ID == uuid.Nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "order id is required")
			return
		}
	}

	results, err := h.settlementService.Settle(c.Request.Context(), req.Orders)
	// A cancelled request still reports the orders settled before it stopped.
	if err != nil && len(results) == 0 {
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "internal error")
		return
	}

	views := make([]settlementResultView, 0, len(results))
	for _, result := range results {
		view := settlementResultView{
			OrderID:        result.OrderID.String(),
			IssuedCards:    make([]issuedCardView, 0, len(result.IssuedCards)),
			DeductionError: result.DeductionError,
			IssueErrors:    result.IssueErrors,
			Replayed:       result.Replayed,
		}
		for _, card := range result.IssuedCards {
			if card == nil {
				continue
			}
			view.IssuedCards = append(view.IssuedCards, issuedCardView{
				ID:             card.ID.String(),
				Code:           card.Code,
				InitialBalance: money.Format(card.InitialBalance),
				RecipientEmail: card.RecipientEmail,
			})
		}
		views = append(views, view)
	}

	response.Success(c, gin.H{
		"results":   views,
		"processed": len(views),
		"requested": len(req.Orders),
	})
}
