package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type GiftCardStatus string

const (
	GiftCardStatusActive GiftCardStatus = "active"
	GiftCardStatusUsed   GiftCardStatus = "used"
	GiftCardStatusVoid   GiftCardStatus = "void"
)

func (s GiftCardStatus) Valid() bool {
	switch s {
	case GiftCardStatusActive, GiftCardStatusUsed, GiftCardStatusVoid:
		return true
	default:
		return false
	}
}

type GiftCard struct {
	ID                uuid.UUID       `db:"id" json:"id"`
	Code              string          `db:"code" json:"code"`
	InitialBalance    decimal.Decimal `db:"initial_balance" json:"initial_balance"`
	Balance           decimal.Decimal `db:"balance" json:"balance"`
	Status            GiftCardStatus  `db:"status" json:"status"`
	PurchasedByUserID *uuid.UUID      `db:"purchased_by_user_id" json:"purchased_by_user_id,omitempty"`
	OrderID           *uuid.UUID      `db:"order_id" json:"order_id,omitempty"`
	RecipientEmail    *string         `db:"recipient_email" json:"recipient_email,omitempty"`
	IssueKey          *string         `db:"issue_key" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time       `db:"updated_at" json:"updated_at"`
}

func (g *GiftCard) Clone() *GiftCard {
	if g == nil {
		return nil
	}
	out := *g
	out.PurchasedByUserID = cloneUUIDPtr(g.PurchasedByUserID)
	out.OrderID = cloneUUIDPtr(g.OrderID)
	if g.RecipientEmail != nil {
		email := *g.RecipientEmail
		out.RecipientEmail = &email
	}
	if g.IssueKey != nil {
		key := *g.IssueKey
		out.IssueKey = &key
	}
	return &out
}

type GiftCardTransactionKind string

const (
	GiftCardTxnIssue  GiftCardTransactionKind = "issue"
	GiftCardTxnRedeem GiftCardTransactionKind = "redeem"
	GiftCardTxnAdjust GiftCardTransactionKind = "adjust"
	GiftCardTxnVoid   GiftCardTransactionKind = "void"
)

// GiftCardTransaction is an immutable ledger entry written alongside every
// balance or status change.
type GiftCardTransaction struct {
	ID           uuid.UUID               `db:"id" json:"id"`
	GiftCardID   uuid.UUID               `db:"gift_card_id" json:"gift_card_id"`
	Kind         GiftCardTransactionKind `db:"kind" json:"kind"`
	Amount       decimal.Decimal         `db:"amount" json:"amount"`
	BalanceAfter decimal.Decimal         `db:"balance_after" json:"balance_after"`
	OrderID      *uuid.UUID              `db:"order_id" json:"order_id,omitempty"`
	ActorID      *uuid.UUID              `db:"actor_id" json:"actor_id,omitempty"`
	CreatedAt    time.Time               `db:"created_at" json:"created_at"`
}

func cloneUUIDPtr(v *uuid.UUID) *uuid.UUID {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}
