package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/metrics"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const (
	giftCardListDefaultSize = 20
	giftCardListMaxPageSize = 200

	// Attempts at inserting a freshly generated code before giving up on
	// the unique index.
	giftCardInsertAttempts = 3
)

type IssueGiftCardInput struct {
	InitialBalance    decimal.Decimal `json:"initial_balance"`
	PurchasedByUserID *uuid.UUID      `json:"purchased_by_user_id,omitempty"`
	OrderID           *uuid.UUID      `json:"order_id,omitempty"`
	RecipientEmail    *string         `json:"recipient_email,omitempty"`
	IssueKey          *string         `json:"-"`
	ActorID           *uuid.UUID      `json:"-"`
}

type GiftCardListFilter struct {
	Status            *model.GiftCardStatus
	PurchasedByUserID *uuid.UUID
	OrderID           *uuid.UUID
	Keyword           *string
}

type GiftCardService struct {
	repo         repository.GiftCardRepository
	auditRepo    repository.AuditRepository
	codes        *CodeGenerator
	codeAttempts int
	eventBus     *event.Bus
	logger       *zap.Logger
}

func NewGiftCardService(
	repo repository.GiftCardRepository,
	auditRepo repository.AuditRepository,
	codes *CodeGenerator,
	eventBus *event.Bus,
	logger *zap.Logger,
) *GiftCardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codes == nil {
		codes = NewCodeGenerator()
	}

	return &GiftCardService{
		repo:         repo,
		auditRepo:    auditRepo,
		codes:        codes,
		codeAttempts: DefaultCodeAttempts,
		eventBus:     eventBus,
		logger:       logger,
	}
}

// SetCodeAttempts overrides how many candidate codes Issue draws per insert.
func (s *GiftCardService) SetCodeAttempts(attempts int) {
	if attempts > 0 {
		s.codeAttempts = attempts
	}
}

func (s *GiftCardService) Issue(ctx context.Context, in IssueGiftCardInput) (*model.GiftCard, error) {
	in.IssueKey = nil
	card, _, err := s.issue(ctx, in)
	return card, err
}

// IssueOnce issues the card identified by issueKey at most once. When a card
// already carries the key it is returned unchanged with issued=false.
func (s *GiftCardService) IssueOnce(
	ctx context.Context,
	issueKey string,
	in IssueGiftCardInput,
) (card *model.GiftCard, issued bool, err error) {
	if s.repo == nil {
		return nil, false, errors.New("gift card repository is nil")
	}
	issueKey = strings.TrimSpace(issueKey)
	if issueKey == "" {
		return nil, false, validationErrorf("issue key is required")
	}

	existing, err := s.repo.FindByIssueKey(ctx, issueKey)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, err
	}

	in.IssueKey = &issueKey
	return s.issue(ctx, in)
}

func (s *GiftCardService) issue(ctx context.Context, in IssueGiftCardInput) (*model.GiftCard, bool, error) {
	if s.repo == nil {
		return nil, false, errors.New("gift card repository is nil")
	}

	amount := money.Round2(in.InitialBalance)
	if !amount.IsPositive() {
		return nil, false, validationErrorf("initial balance must be positive")
	}

	recipient, err := normalizeRecipientEmail(in.RecipientEmail)
	if err != nil {
		return nil, false, err
	}

	var card *model.GiftCard
	for attempt := 0; attempt < giftCardInsertAttempts; attempt++ {
		code, err := s.codes.EnsureUnique(ctx, s.repo.ExistsByCode, s.codeAttempts)
		if err != nil {
			return nil, false, err
		}

		now := time.Now().UTC()
		candidate := &model.GiftCard{
			ID:                uuid.New(),
			Code:              code,
			InitialBalance:    amount,
			Balance:           amount,
			Status:            model.GiftCardStatusActive,
			PurchasedByUserID: in.PurchasedByUserID,
			OrderID:           in.OrderID,
			RecipientEmail:    recipient,
			IssueKey:          in.IssueKey,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		entry := &model.GiftCardTransaction{
			Kind:         model.GiftCardTxnIssue,
			Amount:       amount,
			BalanceAfter: amount,
			OrderID:      in.OrderID,
			ActorID:      in.ActorID,
			CreatedAt:    now,
		}

		err = s.repo.Create(ctx, candidate, entry)
		if errors.Is(err, repository.ErrDuplicate) {
			if in.IssueKey != nil {
				existing, findErr := s.repo.FindByIssueKey(ctx, *in.IssueKey)
				if findErr == nil {
					return existing, false, nil
				}
				if !errors.Is(findErr, repository.ErrNotFound) {
					return nil, false, findErr
				}
			}
			s.logger.Debug("gift card code collided on insert, retrying", zap.Int("attempt", attempt+1))
			continue
		}
		if err != nil {
			return nil, false, err
		}
		card = candidate
		break
	}
	if card == nil {
		return nil, false, ErrCodeSpaceExhausted
	}

	metrics.ObserveGiftCardIssued(card.InitialBalance)
	writeAudit(ctx, s.auditRepo, s.logger, in.ActorID, "gift_card.issue", resourceGiftCard, card.ID, nil, map[string]interface{}{
		"code":            card.Code,
		"initial_balance": money.Format(card.InitialBalance),
		"order_id":        uuidString(card.OrderID),
	})

	payload := event.GiftCardIssuedPayload{
		GiftCardID:  card.ID.String(),
		Code:        card.Code,
		Amount:      money.Format(card.InitialBalance),
		OrderID:     uuidString(card.OrderID),
		PurchasedBy: uuidString(card.PurchasedByUserID),
		IssuedAt:    card.CreatedAt,
	}
	if card.RecipientEmail != nil {
		payload.RecipientEmail = *card.RecipientEmail
	}
	s.eventBus.Publish(event.EventGiftCardIssued, payload)

	s.logger.Info("gift card issued",
		zap.String("gift_card_id", card.ID.String()),
		zap.String("amount", money.Format(card.InitialBalance)),
	)
	return card, true, nil
}

// Deduct takes amount off the card balance and returns the new balance.
// A non-positive amount changes nothing and returns the current balance.
func (s *GiftCardService) Deduct(ctx context.Context, cardID uuid.UUID, amount decimal.Decimal) (decimal.Decimal, error) {
	card, err := s.deduct(ctx, cardID, amount, nil, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return card.Balance, nil
}

// DeductForOrder is Deduct for a settled order. The redemption is recorded
// against orderID once; a replay yields ErrAlreadyApplied.
func (s *GiftCardService) DeductForOrder(
	ctx context.Context,
	cardID uuid.UUID,
	amount decimal.Decimal,
	orderID uuid.UUID,
) (decimal.Decimal, error) {
	card, err := s.deduct(ctx, cardID, amount, &orderID, nil)
	if err != nil {
		return decimal.Zero, err
	}
	return card.Balance, nil
}

// DeductAs is Deduct with the acting user recorded on the ledger entry.
func (s *GiftCardService) DeductAs(
	ctx context.Context,
	actorID uuid.UUID,
	cardID uuid.UUID,
	amount decimal.Decimal,
) (decimal.Decimal, error) {
	card, err := s.deduct(ctx, cardID, amount, nil, uuidPtr(actorID))
	if err != nil {
		return decimal.Zero, err
	}
	return card.Balance, nil
}

func (s *GiftCardService) deduct(
	ctx context.Context,
	cardID uuid.UUID,
	amount decimal.Decimal,
	orderID *uuid.UUID,
	actorID *uuid.UUID,
) (*model.GiftCard, error) {
	if s.repo == nil {
		return nil, errors.New("gift card repository is nil")
	}

	amount = money.Round2(amount)
	if !amount.IsPositive() {
		card, err := s.Get(ctx, cardID)
		if err != nil {
			return nil, err
		}
		if card.Status != model.GiftCardStatusActive {
			metrics.IncGiftCardDeduction(deductionOutcome(ErrGiftCardNotActive))
			return nil, ErrGiftCardNotActive
		}
		metrics.IncGiftCardDeduction("noop")
		return card, nil
	}

	var previous decimal.Decimal
	card, err := s.repo.Mutate(ctx, cardID, func(card *model.GiftCard) (*model.GiftCardTransaction, error) {
		if card.Status != model.GiftCardStatusActive {
			return nil, ErrGiftCardNotActive
		}
		if amount.GreaterThan(card.Balance) {
			return nil, ErrInsufficientBalance
		}

		previous = card.Balance
		card.Balance = money.Round2(card.Balance.Sub(amount))
		if card.Balance.IsZero() {
			card.Status = model.GiftCardStatusUsed
		}
		return &model.GiftCardTransaction{
			Kind:         model.GiftCardTxnRedeem,
			Amount:       amount,
			BalanceAfter: card.Balance,
			OrderID:      orderID,
			ActorID:      actorID,
		}, nil
	})
	if err != nil {
		err = mapGiftCardError(err)
		metrics.IncGiftCardDeduction(deductionOutcome(err))
		return nil, err
	}

	metrics.IncGiftCardDeduction("success")
	writeAudit(ctx, s.auditRepo, s.logger, actorID, "gift_card.redeem", resourceGiftCard, card.ID,
		map[string]interface{}{"balance": money.Format(previous)},
		map[string]interface{}{
			"balance":  money.Format(card.Balance),
			"status":   string(card.Status),
			"amount":   money.Format(amount),
			"order_id": uuidString(orderID),
		},
	)
	s.eventBus.Publish(event.EventGiftCardRedeemed, event.GiftCardRedeemedPayload{
		GiftCardID: card.ID.String(),
		Amount:     money.Format(amount),
		Balance:    money.Format(card.Balance),
		OrderID:    uuidString(orderID),
	})
	return card, nil
}

// Void disables the card regardless of its current status. The balance is kept
// for the record but can no longer be redeemed.
func (s *GiftCardService) Void(ctx context.Context, actorID uuid.UUID, cardID uuid.UUID) (*model.GiftCard, error) {
	if s.repo == nil {
		return nil, errors.New("gift card repository is nil")
	}

	var previous model.GiftCardStatus
	card, err := s.repo.Mutate(ctx, cardID, func(card *model.GiftCard) (*model.GiftCardTransaction, error) {
		previous = card.Status
		if card.Status == model.GiftCardStatusVoid {
			return nil, nil
		}
		card.Status = model.GiftCardStatusVoid
		return &model.GiftCardTransaction{
			Kind:         model.GiftCardTxnVoid,
			Amount:       decimal.Zero,
			BalanceAfter: card.Balance,
			ActorID:      uuidPtr(actorID),
		}, nil
	})
	if err != nil {
		return nil, mapGiftCardError(err)
	}

	if previous != model.GiftCardStatusVoid {
		writeAudit(ctx, s.auditRepo, s.logger, uuidPtr(actorID), "gift_card.void", resourceGiftCard, card.ID,
			map[string]interface{}{"status": string(previous)},
			map[string]interface{}{"status": string(card.Status)},
		)
		s.logger.Info("gift card voided", zap.String("gift_card_id", card.ID.String()))
	}
	return card, nil
}

// SetBalance overwrites the balance. Status follows the balance unless the
// card is void: zero means used, anything above zero means active.
func (s *GiftCardService) SetBalance(
	ctx context.Context,
	actorID uuid.UUID,
	cardID uuid.UUID,
	value decimal.Decimal,
) (*model.GiftCard, error) {
	if s.repo == nil {
		return nil, errors.New("gift card repository is nil")
	}

	value = money.Round2(value)
	if value.IsNegative() {
		return nil, validationErrorf("balance must not be negative")
	}

	var (
		previousBalance decimal.Decimal
		previousStatus  model.GiftCardStatus
	)
	card, err := s.repo.Mutate(ctx, cardID, func(card *model.GiftCard) (*model.GiftCardTransaction, error) {
		if value.GreaterThan(card.InitialBalance) {
			return nil, validationErrorf("balance must not exceed initial balance %s", money.Format(card.InitialBalance))
		}

		previousBalance = card.Balance
		previousStatus = card.Status
		card.Balance = value
		if card.Status != model.GiftCardStatusVoid {
			if value.IsZero() {
				card.Status = model.GiftCardStatusUsed
			} else {
				card.Status = model.GiftCardStatusActive
			}
		}
		return &model.GiftCardTransaction{
			Kind:         model.GiftCardTxnAdjust,
			Amount:       value.Sub(previousBalance),
			BalanceAfter: value,
			ActorID:      uuidPtr(actorID),
		}, nil
	})
	if err != nil {
		return nil, mapGiftCardError(err)
	}

	writeAudit(ctx, s.auditRepo, s.logger, uuidPtr(actorID), "gift_card.set_balance", resourceGiftCard, card.ID,
		map[string]interface{}{"balance": money.Format(previousBalance), "status": string(previousStatus)},
		map[string]interface{}{"balance": money.Format(card.Balance), "status": string(card.Status)},
	)
	return card, nil
}

func (s *GiftCardService) Get(ctx context.Context, cardID uuid.UUID) (*model.GiftCard, error) {
	if s.repo == nil {
		return nil, errors.New("gift card repository is nil")
	}
	card, err := s.repo.FindByID(ctx, cardID)
	if err != nil {
		return nil, mapGiftCardError(err)
	}
	return card, nil
}

func (s *GiftCardService) GetByCode(ctx context.Context, code string) (*model.GiftCard, error) {
	if s.repo == nil {
		return nil, errors.New("gift card repository is nil")
	}

	normalized := strings.ToUpper(strings.TrimSpace(code))
	if normalized == "" {
		return nil, validationErrorf("code is required")
	}
	if !IsGiftCardCode(normalized) {
		return nil, ErrGiftCardNotFound
	}
	card, err := s.repo.FindByCode(ctx, normalized)
	if err != nil {
		return nil, mapGiftCardError(err)
	}
	return card, nil
}

func (s *GiftCardService) List(
	ctx context.Context,
	page, pageSize int,
	filter GiftCardListFilter,
) ([]*model.GiftCard, int64, error) {
	if s.repo == nil {
		return nil, 0, errors.New("gift card repository is nil")
	}

	if filter.Status != nil && !filter.Status.Valid() {
		return nil, 0, validationErrorf("unknown gift card status %q", *filter.Status)
	}
	page, pageSize = normalizePage(page, pageSize, giftCardListDefaultSize, giftCardListMaxPageSize)
	return s.repo.List(ctx, repository.GiftCardListFilter{
		Status:            filter.Status,
		PurchasedByUserID: filter.PurchasedByUserID,
		OrderID:           filter.OrderID,
		Keyword:           filter.Keyword,
		Pagination: repository.Pagination{
			Limit:  int32(pageSize),
			Offset: int32((page - 1) * pageSize),
		},
	})
}

func (s *GiftCardService) ListTransactions(ctx context.Context, cardID uuid.UUID) ([]*model.GiftCardTransaction, error) {
	if _, err := s.Get(ctx, cardID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, cardID)
}

func (s *GiftCardService) Stats(ctx context.Context) (repository.GiftCardStats, error) {
	if s.repo == nil {
		return repository.GiftCardStats{}, errors.New("gift card repository is nil")
	}
	return s.repo.Stats(ctx)
}

func mapGiftCardError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrGiftCardNotFound
	case errors.Is(err, repository.ErrDuplicate):
		return ErrAlreadyApplied
	default:
		return err
	}
}

func deductionOutcome(err error) string {
	switch {
	case errors.Is(err, ErrGiftCardNotFound):
		return "not_found"
	case errors.Is(err, ErrGiftCardNotActive):
		return "not_active"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrAlreadyApplied):
		return "already_applied"
	default:
		return "error"
	}
}

func normalizeRecipientEmail(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil, nil
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return nil, validationErrorf("invalid recipient email %q", trimmed)
	}
	return &trimmed, nil
}

func normalizePage(page, pageSize, defaultSize, maxSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultSize
	}
	if pageSize > maxSize {
		pageSize = maxSize
	}
	return page, pageSize
}
