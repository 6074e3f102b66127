package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/metrics"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

var giftCardProductPrefixes = []string{"gift-card", "giftcard"}

var giftCardCategories = map[string]struct{}{
	"gift card":  {},
	"gift cards": {},
	"gift_card":  {},
}

// SettlementService books the gift card side of orders whose payment has
// already been captured: it redeems the applied card and issues purchased cards.
type SettlementService struct {
	giftCards *GiftCardService
	eventBus  *event.Bus
	logger    *zap.Logger
}

func NewSettlementService(giftCards *GiftCardService, eventBus *event.Bus, logger *zap.Logger) *SettlementService {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SettlementService{
		giftCards: giftCards,
		eventBus:  eventBus,
		logger:    logger,
	}
}

// Settle processes every order in turn. A failed redemption is recorded on the
// order's result and never stops card issuance. Replaying an order returns the
// cards issued the first time and only issues what is still missing.
func (s *SettlementService) Settle(ctx context.Context, orders []model.PaidOrder) ([]model.SettlementResult, error) {
	if s.giftCards == nil {
		return nil, errors.New("gift card service is nil")
	}

	start := time.Now()
	defer func() {
		metrics.ObserveSettlementDuration(time.Since(start))
	}()

	results := make([]model.SettlementResult, 0, len(orders))
	for _, order := range orders {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.settleOrder(ctx, order))
	}
	return results, nil
}

func (s *SettlementService) settleOrder(ctx context.Context, order model.PaidOrder) model.SettlementResult {
	result := model.SettlementResult{
		OrderID:     order.ID,
		IssuedCards: make([]*model.GiftCard, 0),
	}
	logger := s.logger.With(zap.String("order_id", order.ID.String()))

	if order.ID == uuid.Nil {
		result.IssueErrors = append(result.IssueErrors, "order id is required")
		metrics.IncSettlementError("validate")
		return result
	}

	if applied := order.AppliedGiftCard; applied != nil && money.Round2(applied.AmountApplied).IsPositive() {
		balance, err := s.giftCards.DeductForOrder(ctx, applied.GiftCardID, applied.AmountApplied, order.ID)
		switch {
		case err == nil:
			logger.Info("applied gift card redeemed",
				zap.String("gift_card_id", applied.GiftCardID.String()),
				zap.String("balance", money.Format(balance)),
			)
		case errors.Is(err, ErrAlreadyApplied):
			logger.Info("applied gift card already redeemed for order",
				zap.String("gift_card_id", applied.GiftCardID.String()),
			)
		default:
			result.DeductionError = err.Error()
			metrics.IncSettlementError("deduct")
			logger.Warn("applied gift card redemption failed",
				zap.String("gift_card_id", applied.GiftCardID.String()),
				zap.Error(err),
			)
		}
	}

	planned := plannedGiftCardAmounts(order.Items, logger)
	if len(planned) == 0 {
		return result
	}

	for i, amount := range planned {
		card, issued, err := s.giftCards.IssueOnce(ctx, settlementIssueKey(order.ID, i), IssueGiftCardInput{
			InitialBalance:    amount,
			PurchasedByUserID: order.UserID,
			OrderID:           &result.OrderID,
		})
		if err != nil {
			result.IssueErrors = append(result.IssueErrors, err.Error())
			metrics.IncSettlementError("issue")
			logger.Error("issue purchased gift card failed",
				zap.Int("unit", i),
				zap.String("amount", money.Format(amount)),
				zap.Error(err),
			)
			continue
		}
		if !issued {
			result.Replayed = true
		}
		result.IssuedCards = append(result.IssuedCards, card)
	}

	s.eventBus.Publish(event.EventPaymentSettlementSettled, event.SettlementPayload{
		OrderID:     order.ID.String(),
		IssuedCodes: result.IssuedCodes(),
		Replayed:    result.Replayed,
	})
	return result
}

// settlementIssueKey names the n-th purchased card unit of an order.
func settlementIssueKey(orderID uuid.UUID, unit int) string {
	return orderID.String() + ":" + strconv.Itoa(unit)
}

// plannedGiftCardAmounts lists one face value per purchased card unit, in line order.
func plannedGiftCardAmounts(items []model.OrderLineItem, logger *zap.Logger) []decimal.Decimal {
	amounts := make([]decimal.Decimal, 0)
	for _, item := range items {
		if !IsGiftCardLine(item) {
			continue
		}
		if item.Quantity <= 0 {
			logger.Warn("gift card line without quantity skipped", zap.String("product_id", item.ProductID))
			continue
		}

		unit := money.SplitEvenly(item.LineTotal, item.Quantity)
		if !unit.IsPositive() {
			logger.Warn("gift card line without value skipped", zap.String("product_id", item.ProductID))
			continue
		}
		for i := 0; i < item.Quantity; i++ {
			amounts = append(amounts, unit)
		}
	}
	return amounts
}

func IsGiftCardLine(item model.OrderLineItem) bool {
	productID := strings.ToLower(strings.TrimSpace(item.ProductID))
	for _, prefix := range giftCardProductPrefixes {
		if strings.HasPrefix(productID, prefix) {
			return true
		}
	}
	if _, ok := giftCardCategories[strings.ToLower(strings.TrimSpace(item.Category))]; ok {
		return true
	}
	return strings.Contains(strings.ToLower(item.Name), "gift card")
}
