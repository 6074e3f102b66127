package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate reports a unique constraint violation (gift card code,
	// order number, or a repeated redemption of one card for one order).
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict reports a failed conditional update.
	ErrConflict = errors.New("conditional update conflict")
)

type Pagination struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

type GiftCardListFilter struct {
	Status            *model.GiftCardStatus `json:"status,omitempty"`
	PurchasedByUserID *uuid.UUID            `json:"purchased_by_user_id,omitempty"`
	OrderID           *uuid.UUID            `json:"order_id,omitempty"`
	Keyword           *string               `json:"keyword,omitempty"`
	Pagination        Pagination            `json:"pagination"`
}

type NursingHomeOrderListFilter struct {
	FacilityID *uuid.UUID         `json:"facility_id,omitempty"`
	Status     *model.OrderStatus `json:"status,omitempty"`
	WeekStart  *time.Time         `json:"week_start,omitempty"`
	Pagination Pagination         `json:"pagination"`
}

type AuditListFilter struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType *string    `json:"resource_type,omitempty"`
	ResourceID   *string    `json:"resource_id,omitempty"`
	Pagination   Pagination `json:"pagination"`
}

type GiftCardStats struct {
	ActiveCount        int64           `json:"active_count"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
}

// GiftCardMutation inspects the locked card, edits it in place and returns the
// ledger entry to record with the change. Returning an error aborts the write.
type GiftCardMutation func(card *model.GiftCard) (*model.GiftCardTransaction, error)

type GiftCardRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.GiftCard, error)
	FindByCode(ctx context.Context, code string) (*model.GiftCard, error)
	FindByIssueKey(ctx context.Context, key string) (*model.GiftCard, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	// Create inserts the card and its issue entry; a taken code or issue key
	// yields ErrDuplicate.
	Create(ctx context.Context, card *model.GiftCard, txn *model.GiftCardTransaction) error
	// Mutate applies fn to the card while holding its row lock and persists
	// the card together with the returned entry atomically.
	Mutate(ctx context.Context, id uuid.UUID, fn GiftCardMutation) (*model.GiftCard, error)
	List(ctx context.Context, filter GiftCardListFilter) ([]*model.GiftCard, int64, error)
	ListTransactions(ctx context.Context, giftCardID uuid.UUID) ([]*model.GiftCardTransaction, error)
	Stats(ctx context.Context) (GiftCardStats, error)
}

type NursingHomeOrderRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.NursingHomeOrder, error)
	// Create inserts a new order; a taken order number yields ErrDuplicate.
	Create(ctx context.Context, order *model.NursingHomeOrder) error
	// Update persists the editable fields when the stored version still equals
	// order.Version, then bumps the version. A stale version yields ErrConflict.
	Update(ctx context.Context, order *model.NursingHomeOrder) error
	// Transition moves the order to `to` only if its current status is one of
	// `from`, returning the updated row. A status mismatch yields ErrConflict.
	Transition(ctx context.Context, id uuid.UUID, from []model.OrderStatus, to model.OrderStatus, at time.Time) (*model.NursingHomeOrder, error)
	List(ctx context.Context, filter NursingHomeOrderListFilter) ([]*model.NursingHomeOrder, int64, error)
	CountDraftsPastDeadline(ctx context.Context, now time.Time) (int64, error)
}

type AuditRepository interface {
	Create(ctx context.Context, log *model.AuditLog) error
	List(ctx context.Context, filter AuditListFilter) ([]*model.AuditLog, error)
}
