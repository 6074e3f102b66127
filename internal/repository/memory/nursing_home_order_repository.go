package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

type orderRecord struct {
	ID          string
	OrderNumber string
	Order       *model.NursingHomeOrder
}

type nursingHomeOrderRepository struct {
	db *memdb.MemDB
}

var _ repository.NursingHomeOrderRepository = (*nursingHomeOrderRepository)(nil)

func newOrderRecord(order *model.NursingHomeOrder) *orderRecord {
	return &orderRecord{
		ID:          order.ID.String(),
		OrderNumber: order.OrderNumber,
		Order:       order.Clone(),
	}
}

func (r *nursingHomeOrderRepository) FindByID(_ context.Context, id uuid.UUID) (*model.NursingHomeOrder, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	return findOrder(txn, id)
}

func (r *nursingHomeOrderRepository) Create(_ context.Context, order *model.NursingHomeOrder) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	now := time.Now().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if order.Version == 0 {
		order.Version = 1
	}

	txn := r.db.Txn(true)
	defer txn.Abort()

	for index, value := range map[string]string{"id": order.ID.String(), "number": order.OrderNumber} {
		existing, err := txn.First(tableOrders, index, value)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicate
		}
	}

	if err := txn.Insert(tableOrders, newOrderRecord(order)); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *nursingHomeOrderRepository) Update(_ context.Context, order *model.NursingHomeOrder) error {
	txn := r.db.Txn(true)
	defer txn.Abort()

	current, err := findOrder(txn, order.ID)
	if err != nil {
		return err
	}
	if current.Version != order.Version {
		return ErrConflict
	}

	current.ResidentMeals = model.CloneResidentMeals(order.ResidentMeals)
	current.DeliveryAddress = order.DeliveryAddress
	current.Notes = nil
	if order.Notes != nil {
		notes := *order.Notes
		current.Notes = &notes
	}
	current.TotalMeals = order.TotalMeals
	current.Subtotal = order.Subtotal
	current.Tax = order.Tax
	current.Total = order.Total
	current.Version++
	current.UpdatedAt = time.Now().UTC()

	if err := txn.Insert(tableOrders, newOrderRecord(current)); err != nil {
		return err
	}
	txn.Commit()

	order.Version = current.Version
	order.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *nursingHomeOrderRepository) Transition(
	_ context.Context,
	id uuid.UUID,
	from []model.OrderStatus,
	to model.OrderStatus,
	at time.Time,
) (*model.NursingHomeOrder, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	order, err := findOrder(txn, id)
	if err != nil {
		return nil, err
	}
	allowed := false
	for _, status := range from {
		if order.Status == status {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, ErrConflict
	}

	order.Status = to
	switch to {
	case model.OrderStatusSubmitted:
		submittedAt := at
		order.SubmittedAt = &submittedAt
	case model.OrderStatusCancelled:
		cancelledAt := at
		order.CancelledAt = &cancelledAt
	}
	order.Version++
	order.UpdatedAt = at

	if err := txn.Insert(tableOrders, newOrderRecord(order)); err != nil {
		return nil, err
	}
	txn.Commit()
	return order, nil
}

func (r *nursingHomeOrderRepository) List(_ context.Context, filter repository.NursingHomeOrderListFilter) ([]*model.NursingHomeOrder, int64, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableOrders, "id")
	if err != nil {
		return nil, 0, err
	}

	matched := make([]*model.NursingHomeOrder, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		order := obj.(*orderRecord).Order
		if filter.FacilityID != nil && order.FacilityID != *filter.FacilityID {
			continue
		}
		if filter.Status != nil && order.Status != *filter.Status {
			continue
		}
		if filter.WeekStart != nil && !sameDay(order.WeekStartDate, *filter.WeekStart) {
			continue
		}
		matched = append(matched, order.Clone())
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].WeekStartDate.Equal(matched[j].WeekStartDate) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].WeekStartDate.After(matched[j].WeekStartDate)
	})
	return paginate(matched, filter.Pagination), int64(len(matched)), nil
}

func (r *nursingHomeOrderRepository) CountDraftsPastDeadline(_ context.Context, now time.Time) (int64, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableOrders, "id")
	if err != nil {
		return 0, err
	}
	var count int64
	for obj := it.Next(); obj != nil; obj = it.Next() {
		order := obj.(*orderRecord).Order
		if order.Status == model.OrderStatusDraft && now.After(order.Deadline) {
			count++
		}
	}
	return count, nil
}

func findOrder(txn *memdb.Txn, id uuid.UUID) (*model.NursingHomeOrder, error) {
	obj, err := txn.First(tableOrders, "id", id.String())
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	return obj.(*orderRecord).Order.Clone(), nil
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
