package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/metrics"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const (
	orderListDefaultSize = 20
	orderListMaxPageSize = 100

	orderNumberInsertAttempts = 5
)

type CreateNursingHomeOrderInput struct {
	FacilityID      uuid.UUID             `json:"facility_id"`
	WeekStartDate   time.Time             `json:"week_start_date"`
	WeekEndDate     time.Time             `json:"week_end_date"`
	ResidentMeals   []model.ResidentMeals `json:"resident_meals"`
	DeliveryAddress string                `json:"delivery_address"`
	Notes           *string               `json:"notes,omitempty"`
}

// NursingHomeOrderPatch carries the editable fields; nil means unchanged.
// Version, when set, must match the stored version.
type NursingHomeOrderPatch struct {
	ResidentMeals   *[]model.ResidentMeals `json:"resident_meals,omitempty"`
	DeliveryAddress *string                `json:"delivery_address,omitempty"`
	Notes           *string                `json:"notes,omitempty"`
	Version         *int64                 `json:"version,omitempty"`
}

func (p NursingHomeOrderPatch) Empty() bool {
	return p.ResidentMeals == nil && p.DeliveryAddress == nil && p.Notes == nil
}

type NursingHomeOrderListFilter struct {
	FacilityID *uuid.UUID
	Status     *model.OrderStatus
	WeekStart  *time.Time
}

type NursingHomeOrderService struct {
	repo      repository.NursingHomeOrderRepository
	auditRepo repository.AuditRepository
	codes     *CodeGenerator
	eventBus  *event.Bus
	logger    *zap.Logger
	now       func() time.Time
	location  *time.Location
}

func NewNursingHomeOrderService(
	repo repository.NursingHomeOrderRepository,
	auditRepo repository.AuditRepository,
	codes *CodeGenerator,
	eventBus *event.Bus,
	logger *zap.Logger,
) *NursingHomeOrderService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if codes == nil {
		codes = NewCodeGenerator()
	}

	return &NursingHomeOrderService{
		repo:      repo,
		auditRepo: auditRepo,
		codes:     codes,
		eventBus:  eventBus,
		logger:    logger,
		now:       time.Now,
		location:  time.UTC,
	}
}

// SetClock replaces the time source used for deadline checks.
func (s *NursingHomeOrderService) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// SetLocation sets the business time zone. Week dates are calendar days in
// this zone and the weekly cutoff is noon local time.
func (s *NursingHomeOrderService) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func (s *NursingHomeOrderService) Location() *time.Location {
	return s.location
}

func (s *NursingHomeOrderService) Create(
	ctx context.Context,
	actor model.Actor,
	in CreateNursingHomeOrderInput,
) (*model.NursingHomeOrder, error) {
	if s.repo == nil {
		return nil, errors.New("nursing home order repository is nil")
	}

	if in.FacilityID == uuid.Nil {
		return nil, validationErrorf("facility is required")
	}
	if actor.UserID == uuid.Nil {
		return nil, ErrForbidden
	}
	if !actor.BelongsTo(in.FacilityID) && !actor.Has(model.CapPlatformOverride) {
		return nil, ErrForbidden
	}
	if in.WeekStartDate.IsZero() || in.WeekEndDate.IsZero() {
		return nil, validationErrorf("week start and end dates are required")
	}

	weekStart := s.businessDay(in.WeekStartDate)
	weekEnd := s.businessDay(in.WeekEndDate)
	if weekEnd.Before(weekStart) {
		return nil, validationErrorf("week end date must not be before week start date")
	}

	address := strings.TrimSpace(in.DeliveryAddress)
	if address == "" {
		return nil, validationErrorf("delivery address is required")
	}

	residents := model.CloneResidentMeals(in.ResidentMeals)
	if residents == nil {
		residents = []model.ResidentMeals{}
	}
	totals, err := CalculateOrderTotals(residents)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	order := &model.NursingHomeOrder{
		FacilityID:      in.FacilityID,
		CreatedByUserID: actor.UserID,
		WeekStartDate:   weekStart,
		WeekEndDate:     weekEnd,
		ResidentMeals:   residents,
		DeliveryAddress: address,
		Notes:           normalizeNotes(in.Notes),
		Status:          model.OrderStatusDraft,
		Deadline:        CalculateDeadline(weekStart),
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	order.ApplyTotals(totals)

	created := false
	for attempt := 0; attempt < orderNumberInsertAttempts; attempt++ {
		number, err := s.codes.OrderNumber(now)
		if err != nil {
			return nil, err
		}
		order.ID = uuid.New()
		order.OrderNumber = number

		err = s.repo.Create(ctx, order)
		if errors.Is(err, repository.ErrDuplicate) {
			continue
		}
		if err != nil {
			return nil, err
		}
		created = true
		break
	}
	if !created {
		return nil, ErrCodeSpaceExhausted
	}

	metrics.IncOrderTransition(string(model.OrderStatusDraft))
	writeAudit(ctx, s.auditRepo, s.logger, &actor.UserID, "nursing_home_order.create", resourceNursingHomeOrder, order.ID, nil, map[string]interface{}{
		"order_number": order.OrderNumber,
		"facility_id":  order.FacilityID.String(),
		"total":        money.Format(order.Total),
	})
	s.logger.Info("nursing home order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("facility_id", order.FacilityID.String()),
	)
	return order, nil
}

func (s *NursingHomeOrderService) Update(
	ctx context.Context,
	actor model.Actor,
	orderID uuid.UUID,
	patch NursingHomeOrderPatch,
) (*model.NursingHomeOrder, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, order) {
		return nil, ErrForbidden
	}

	if order.Status == model.OrderStatusCancelled {
		return nil, ErrOrderLocked
	}
	if s.now().After(order.Deadline) && !actor.Has(model.CapPlatformOverride) {
		return nil, ErrEditWindowClosed
	}
	if order.Status == model.OrderStatusSubmitted && !actor.HasFacilityOverride(order.FacilityID) {
		return nil, ErrOrderLocked
	}
	if patch.Version != nil && *patch.Version != order.Version {
		return nil, ErrOrderConflict
	}
	if patch.Empty() {
		return order, nil
	}

	before := map[string]interface{}{
		"total":   money.Format(order.Total),
		"version": order.Version,
	}

	if patch.ResidentMeals != nil {
		residents := model.CloneResidentMeals(*patch.ResidentMeals)
		if residents == nil {
			residents = []model.ResidentMeals{}
		}
		totals, err := CalculateOrderTotals(residents)
		if err != nil {
			return nil, err
		}
		order.ResidentMeals = residents
		order.ApplyTotals(totals)
	}
	if patch.DeliveryAddress != nil {
		address := strings.TrimSpace(*patch.DeliveryAddress)
		if address == "" {
			return nil, validationErrorf("delivery address is required")
		}
		order.DeliveryAddress = address
	}
	if patch.Notes != nil {
		order.Notes = normalizeNotes(patch.Notes)
	}

	if err := s.repo.Update(ctx, order); err != nil {
		return nil, mapOrderError(err)
	}

	writeAudit(ctx, s.auditRepo, s.logger, &actor.UserID, "nursing_home_order.update", resourceNursingHomeOrder, order.ID, before, map[string]interface{}{
		"total":   money.Format(order.Total),
		"version": order.Version,
	})
	return order, nil
}

func (s *NursingHomeOrderService) Submit(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.NursingHomeOrder, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canEdit(actor, order) {
		return nil, ErrForbidden
	}

	switch order.Status {
	case model.OrderStatusSubmitted:
		return nil, ErrAlreadySubmitted
	case model.OrderStatusCancelled:
		return nil, ErrOrderLocked
	}

	now := s.now()
	if now.After(order.Deadline) {
		return nil, ErrDeadlinePassed
	}

	submitted, err := s.repo.Transition(ctx, order.ID, []model.OrderStatus{model.OrderStatusDraft}, model.OrderStatusSubmitted, now.UTC())
	if errors.Is(err, repository.ErrConflict) {
		return nil, s.classifySubmitConflict(ctx, order.ID)
	}
	if err != nil {
		return nil, mapOrderError(err)
	}

	s.afterTransition(ctx, actor, submitted, model.OrderStatusDraft, "nursing_home_order.submit", event.EventNursingHomeOrderSubmit)
	return submitted, nil
}

// Cancel is a no-op for an order that is already cancelled.
func (s *NursingHomeOrderService) Cancel(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.NursingHomeOrder, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status == model.OrderStatusCancelled {
		if !canView(actor, order) {
			return nil, ErrForbidden
		}
		return order, nil
	}

	privileged := canCancelAny(actor, order)
	from := []model.OrderStatus{model.OrderStatusDraft, model.OrderStatusSubmitted}
	now := s.now()

	if !privileged {
		if order.CreatedByUserID != actor.UserID {
			return nil, ErrForbidden
		}
		if order.Status == model.OrderStatusSubmitted {
			return nil, ErrOrderLocked
		}
		if now.After(order.Deadline) {
			return nil, ErrEditWindowClosed
		}
		from = []model.OrderStatus{model.OrderStatusDraft}
	}

	cancelled, err := s.repo.Transition(ctx, order.ID, from, model.OrderStatusCancelled, now.UTC())
	if errors.Is(err, repository.ErrConflict) {
		current, findErr := s.find(ctx, order.ID)
		if findErr != nil {
			return nil, findErr
		}
		switch {
		case current.Status == model.OrderStatusCancelled:
			return current, nil
		case current.Status == model.OrderStatusSubmitted && !privileged:
			return nil, ErrOrderLocked
		default:
			return nil, ErrOrderConflict
		}
	}
	if err != nil {
		return nil, mapOrderError(err)
	}

	s.afterTransition(ctx, actor, cancelled, order.Status, "nursing_home_order.cancel", event.EventNursingHomeOrderCancel)
	return cancelled, nil
}

func (s *NursingHomeOrderService) Get(ctx context.Context, actor model.Actor, orderID uuid.UUID) (*model.NursingHomeOrder, error) {
	order, err := s.find(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !canView(actor, order) {
		return nil, ErrForbidden
	}
	return order, nil
}

// List is scoped to the actor's facility unless the actor holds the platform override.
func (s *NursingHomeOrderService) List(
	ctx context.Context,
	actor model.Actor,
	page, pageSize int,
	filter NursingHomeOrderListFilter,
) ([]*model.NursingHomeOrder, int64, error) {
	if s.repo == nil {
		return nil, 0, errors.New("nursing home order repository is nil")
	}

	facilityID := filter.FacilityID
	if !actor.Has(model.CapPlatformOverride) {
		if actor.FacilityID == nil {
			return nil, 0, ErrForbidden
		}
		if facilityID != nil && *facilityID != *actor.FacilityID {
			return nil, 0, ErrForbidden
		}
		scoped := *actor.FacilityID
		facilityID = &scoped
	}

	var weekStart *time.Time
	if filter.WeekStart != nil {
		day := s.businessDay(*filter.WeekStart)
		weekStart = &day
	}

	page, pageSize = normalizePage(page, pageSize, orderListDefaultSize, orderListMaxPageSize)
	return s.repo.List(ctx, repository.NursingHomeOrderListFilter{
		FacilityID: facilityID,
		Status:     filter.Status,
		WeekStart:  weekStart,
		Pagination: repository.Pagination{
			Limit:  int32(pageSize),
			Offset: int32((page - 1) * pageSize),
		},
	})
}

// CountOverdueDrafts reports drafts whose edit window has already closed.
func (s *NursingHomeOrderService) CountOverdueDrafts(ctx context.Context) (int64, error) {
	if s.repo == nil {
		return 0, errors.New("nursing home order repository is nil")
	}
	return s.repo.CountDraftsPastDeadline(ctx, s.now().UTC())
}

func (s *NursingHomeOrderService) find(ctx context.Context, orderID uuid.UUID) (*model.NursingHomeOrder, error) {
	if s.repo == nil {
		return nil, errors.New("nursing home order repository is nil")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, mapOrderError(err)
	}
	return order, nil
}

func (s *NursingHomeOrderService) classifySubmitConflict(ctx context.Context, orderID uuid.UUID) error {
	current, err := s.find(ctx, orderID)
	if err != nil {
		return err
	}
	switch current.Status {
	case model.OrderStatusSubmitted:
		return ErrAlreadySubmitted
	case model.OrderStatusCancelled:
		return ErrOrderLocked
	default:
		return ErrOrderConflict
	}
}

func (s *NursingHomeOrderService) afterTransition(
	ctx context.Context,
	actor model.Actor,
	order *model.NursingHomeOrder,
	from model.OrderStatus,
	action string,
	eventName string,
) {
	metrics.IncOrderTransition(string(order.Status))
	writeAudit(ctx, s.auditRepo, s.logger, &actor.UserID, action, resourceNursingHomeOrder, order.ID,
		map[string]interface{}{"status": string(from)},
		map[string]interface{}{"status": string(order.Status)},
	)
	s.eventBus.Publish(eventName, event.OrderTransitionPayload{
		OrderID:     order.ID.String(),
		OrderNumber: order.OrderNumber,
		FacilityID:  order.FacilityID.String(),
		ActorID:     actor.UserID.String(),
		Status:      string(order.Status),
		Timestamp:   order.UpdatedAt,
	})
	s.logger.Info("nursing home order transitioned",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(order.Status)),
		zap.String("actor_id", actor.UserID.String()),
	)
}

func canView(actor model.Actor, order *model.NursingHomeOrder) bool {
	return order.CreatedByUserID == actor.UserID ||
		actor.BelongsTo(order.FacilityID) ||
		actor.Has(model.CapPlatformOverride)
}

func canEdit(actor model.Actor, order *model.NursingHomeOrder) bool {
	return order.CreatedByUserID == actor.UserID || actor.HasFacilityOverride(order.FacilityID)
}

func canCancelAny(actor model.Actor, order *model.NursingHomeOrder) bool {
	if actor.Has(model.CapPlatformOverride) {
		return true
	}
	return actor.Has(model.CapCancelOrders) && actor.BelongsTo(order.FacilityID)
}

func mapOrderError(err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return ErrOrderNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrOrderConflict
	default:
		return err
	}
}

func normalizeNotes(raw *string) *string {
	if raw == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// businessDay keeps the calendar date of t and moves it to midnight in the
// business location.
func (s *NursingHomeOrderService) businessDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, s.location)
}
