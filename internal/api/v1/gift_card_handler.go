package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

type GiftCardHandler struct {
	giftCardService *service.GiftCardService
}

type issueGiftCardRequest struct {
	InitialBalance    string  `json:"initial_balance" binding:"required"`
	PurchasedByUserID *string `json:"purchased_by_user_id"`
	OrderID           *string `json:"order_id"`
	RecipientEmail    *string `json:"recipient_email"`
}

type deductGiftCardRequest struct {
	Amount string `json:"amount" binding:"required"`
}

type setGiftCardBalanceRequest struct {
	Balance string `json:"balance" binding:"required"`
}

type giftCardView struct {
	ID                string  `json:"id"`
	Code              string  `json:"code"`
	InitialBalance    string  `json:"initial_balance"`
	Balance           string  `json:"balance"`
	Status            string  `json:"status"`
	PurchasedByUserID *string `json:"purchased_by_user_id,omitempty"`
	OrderID           *string `json:"order_id,omitempty"`
	RecipientEmail    *string `json:"recipient_email,omitempty"`
	CreatedAt         string  `json:"created_at"`
	UpdatedAt         string  `json:"updated_at"`
}

type giftCardTransactionView struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	Amount       string  `json:"amount"`
	BalanceAfter string  `json:"balance_after"`
	OrderID      *string `json:"order_id,omitempty"`
	ActorID      *string `json:"actor_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

func NewGiftCardHandler(giftCardService *service.GiftCardService) *GiftCardHandler {
	return &GiftCardHandler{giftCardService: giftCardService}
}

// RegisterGiftCardRoutes mounts the ledger endpoints. Balance lookups and
// deductions share the per-user limiter.
func RegisterGiftCardRoutes(
	group *gin.RouterGroup,
	auth gin.HandlerFunc,
	giftCardService *service.GiftCardService,
	limiter *middleware.KeyedLimiter,
) {
	if giftCardService == nil {
		return
	}

	handler := NewGiftCardHandler(giftCardService)
	cards := group.Group("/gift-cards")
	cards.Use(auth)

	manage := middleware.RequireCapability(model.CapManageGiftCards)
	cards.GET("/lookup/:code", middleware.RateLimit(limiter), handler.Lookup)

	cards.POST("", manage, handler.Issue)
	cards.GET("", manage, handler.List)
	cards.GET("/stats", manage, handler.Stats)
	cards.GET("/:id", manage, handler.Get)
	cards.GET("/:id/transactions", manage, handler.ListTransactions)
	cards.POST("/:id/deduct", manage, middleware.RateLimit(limiter), handler.Deduct)
	cards.POST("/:id/void", manage, handler.Void)
	cards.PUT("/:id/balance", manage, handler.SetBalance)
}

func (h *GiftCardHandler) Issue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req issueGiftCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}

	amount, err := parseAmount(req.InitialBalance)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid initial_balance")
		return
	}
	purchasedBy, err := parseUUIDPtr(req.PurchasedByUserID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid purchased_by_user_id")
		return
	}
	orderID, err := parseUUIDPtr(req.OrderID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid order_id")
		return
	}

	card, err := h.giftCardService.Issue(c.Request.Context(), service.IssueGiftCardInput{
		InitialBalance:    amount,
		PurchasedByUserID: purchasedBy,
		OrderID:           orderID,
		RecipientEmail:    req.RecipientEmail,
		ActorID:           &actor.UserID,
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	response.Success(c, newGiftCardView(card))
}

func (h *GiftCardHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)

	filter := service.GiftCardListFilter{}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.GiftCardStatus(strings.ToLower(raw))
		filter.Status = &status
	}
	purchasedBy, ok := optionalUUIDQuery(c, "purchased_by_user_id")
	if !ok {
		return
	}
	filter.PurchasedByUserID = purchasedBy
	orderID, ok := optionalUUIDQuery(c, "order_id")
	if !ok {
		return
	}
	filter.OrderID = orderID
	if keyword := strings.TrimSpace(c.Query("keyword")); keyword != "" {
		filter.Keyword = &keyword
	}

	items, total, err := h.giftCardService.List(c.Request.Context(), page, pageSize, filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	views := make([]giftCardView, 0, len(items))
	for _, card := range items {
		views = append(views, newGiftCardView(card))
	}
	response.Paginated(c, views, page, pageSize, total)
}

func (h *GiftCardHandler) Stats(c *gin.Context) {
	stats, err := h.giftCardService.Stats(c.Request.Context())
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"active_count":        stats.ActiveCount,
		"outstanding_balance": money.Format(stats.OutstandingBalance),
	})
}

func (h *GiftCardHandler) Get(c *gin.Context) {
	cardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	card, err := h.giftCardService.Get(c.Request.Context(), cardID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newGiftCardView(card))
}

// Lookup lets a customer check a code before checkout. Only the balance and
// status are disclosed.
func (h *GiftCardHandler) Lookup(c *gin.Context) {
	card, err := h.giftCardService.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"id":      card.ID.String(),
		"code":    card.Code,
		"balance": money.Format(card.Balance),
		"status":  string(card.Status),
	})
}

func (h *GiftCardHandler) ListTransactions(c *gin.Context) {
	cardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	items, err := h.giftCardService.ListTransactions(c.Request.Context(), cardID)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	views := make([]giftCardTransactionView, 0, len(items))
	for _, txn := range items {
		if txn == nil {
			continue
		}
		views = append(views, giftCardTransactionView{
			ID:           txn.ID.String(),
			Kind:         string(txn.Kind),
			Amount:       money.Format(txn.Amount),
			BalanceAfter: money.Format(txn.BalanceAfter),
			OrderID:      uuidStringPtr(txn.OrderID),
			ActorID:      uuidStringPtr(txn.ActorID),
			CreatedAt:    txn.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	response.Success(c, views)
}

func (h *GiftCardHandler) Deduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req deductGiftCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}
	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid amount")
		return
	}

	balance, err := h.giftCardService.DeductAs(c.Request.Context(), actor.UserID, cardID, amount)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, gin.H{
		"id":      cardID.String(),
		"balance": money.Format(balance),
	})
}

func (h *GiftCardHandler) Void(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	card, err := h.giftCardService.Void(c.Request.Context(), actor.UserID, cardID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newGiftCardView(card))
}

func (h *GiftCardHandler) SetBalance(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	cardID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req setGiftCardBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}
	value, err := parseAmount(req.Balance)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid balance")
		return
	}

	card, err := h.giftCardService.SetBalance(c.Request.Context(), actor.UserID, cardID, value)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newGiftCardView(card))
}

func newGiftCardView(card *model.GiftCard) giftCardView {
	return giftCardView{
		ID:                card.ID.String(),
		Code:              card.Code,
		InitialBalance:    money.Format(card.InitialBalance),
		Balance:           money.Format(card.Balance),
		Status:            string(card.Status),
		PurchasedByUserID: uuidStringPtr(card.PurchasedByUserID),
		OrderID:           uuidStringPtr(card.OrderID),
		RecipientEmail:    card.RecipientEmail,
		CreatedAt:         card.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:         card.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}
