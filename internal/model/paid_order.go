package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaidOrder is the storefront order handed over once payment capture succeeded.
type PaidOrder struct {
	ID              uuid.UUID        `json:"id"`
	UserID          *uuid.UUID       `json:"user_id,omitempty"`
	AppliedGiftCard *AppliedGiftCard `json:"applied_gift_card,omitempty"`
	Items           []OrderLineItem  `json:"items"`
}

type AppliedGiftCard struct {
	GiftCardID    uuid.UUID       `json:"gift_card_id"`
	AmountApplied decimal.Decimal `json:"amount_applied"`
}

type OrderLineItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Category  string          `json:"category"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
}

type SettlementResult struct {
	OrderID        uuid.UUID   `json:"order_id"`
	IssuedCards    []*GiftCard `json:"issued_cards"`
	DeductionError string      `json:"deduction_error,omitempty"`
	IssueErrors    []string    `json:"issue_errors,omitempty"`
	Replayed       bool        `json:"replayed,omitempty"`
}

func (r SettlementResult) IssuedCodes() []string {
	codes := make([]string, 0, len(r.IssuedCards))
	for _, card := range r.IssuedCards {
		if card == nil {
			continue
		}
		codes = append(codes, card.Code)
	}
	return codes
}
