package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

type nursingHomeOrderRepository struct {
	pool *pgxpool.Pool
}

func NewNursingHomeOrderRepository(pool *pgxpool.Pool) repository.NursingHomeOrderRepository {
	return &nursingHomeOrderRepository{pool: pool}
}

var _ repository.NursingHomeOrderRepository = (*nursingHomeOrderRepository)(nil)

const nursingHomeOrderColumns = `
	id,
	facility_id,
	created_by_user_id,
	order_number,
	week_start_date,
	week_end_date,
	resident_meals,
	delivery_address,
	notes,
	status,
	total_meals,
	subtotal::text,
	tax::text,
	total::text,
	deadline,
	submitted_at,
	cancelled_at,
	version,
	created_at,
	updated_at
`

func (r *nursingHomeOrderRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.NursingHomeOrder, error) {
	query := `SELECT ` + nursingHomeOrderColumns + ` FROM nursing_home_orders WHERE id = $1`
	order, err := scanNursingHomeOrder(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *nursingHomeOrderRepository) Create(ctx context.Context, order *model.NursingHomeOrder) error {
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

	meals, err := json.Marshal(order.ResidentMeals)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO nursing_home_orders (
			id, facility_id, created_by_user_id, order_number,
			week_start_date, week_end_date, resident_meals,
			delivery_address, notes, status,
			total_meals, subtotal, tax, total,
			deadline, submitted_at, cancelled_at, version,
			created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17, $18,
			$19, $20
		)
	`

	_, err = r.pool.Exec(
		ctx,
		query,
		order.ID,
		order.FacilityID,
		order.CreatedByUserID,
		order.OrderNumber,
		order.WeekStartDate,
		order.WeekEndDate,
		meals,
		order.DeliveryAddress,
		order.Notes,
		string(order.Status),
		order.TotalMeals,
		numericParam(order.Subtotal),
		numericParam(order.Tax),
		numericParam(order.Total),
		order.Deadline,
		order.SubmittedAt,
		order.CancelledAt,
		order.Version,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (r *nursingHomeOrderRepository) Update(ctx context.Context, order *model.NursingHomeOrder) error {
	meals, err := json.Marshal(order.ResidentMeals)
	if err != nil {
		return err
	}

	updatedAt := time.Now().UTC()
	var version int64
	err = r.pool.QueryRow(
		ctx,
		`UPDATE nursing_home_orders
		    SET resident_meals = $3,
		        delivery_address = $4,
		        notes = $5,
		        total_meals = $6,
		        subtotal = $7,
		        tax = $8,
		        total = $9,
		        version = version + 1,
		        updated_at = $10
		  WHERE id = $1
		    AND version = $2
		  RETURNING version`,
		order.ID,
		order.Version,
		meals,
		order.DeliveryAddress,
		order.Notes,
		order.TotalMeals,
		numericParam(order.Subtotal),
		numericParam(order.Tax),
		numericParam(order.Total),
		updatedAt,
	).Scan(&version)
	if errors.Is(err, pgx.ErrNoRows) {
		return r.classifyMiss(ctx, order.ID)
	}
	if err != nil {
		return err
	}

	order.Version = version
	order.UpdatedAt = updatedAt
	return nil
}

func (r *nursingHomeOrderRepository) Transition(
	ctx context.Context,
	id uuid.UUID,
	from []model.OrderStatus,
	to model.OrderStatus,
	at time.Time,
) (*model.NursingHomeOrder, error) {
	allowed := make([]string, 0, len(from))
	for _, status := range from {
		allowed = append(allowed, string(status))
	}

	order, err := scanNursingHomeOrder(r.pool.QueryRow(
		ctx,
		`UPDATE nursing_home_orders
		    SET status = $2,
		        submitted_at = CASE WHEN $2 = 'submitted' THEN $3 ELSE submitted_at END,
		        cancelled_at = CASE WHEN $2 = 'cancelled' THEN $3 ELSE cancelled_at END,
		        version = version + 1,
		        updated_at = $3
		  WHERE id = $1
		    AND status = ANY($4)
		  RETURNING `+nursingHomeOrderColumns,
		id,
		string(to),
		at.UTC(),
		allowed,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.classifyMiss(ctx, id)
	}
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *nursingHomeOrderRepository) List(
	ctx context.Context,
	filter repository.NursingHomeOrderListFilter,
) ([]*model.NursingHomeOrder, int64, error) {
	limit, offset := normalizePagination(filter.Pagination)

	args := make([]any, 0, 6)
	conditions := make([]string, 0, 3)

	if filter.FacilityID != nil {
		args = append(args, *filter.FacilityID)
		conditions = append(conditions, fmt.Sprintf("facility_id = $%d", len(args)))
	}
	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.WeekStart != nil {
		args = append(args, *filter.WeekStart)
		conditions = append(conditions, fmt.Sprintf("week_start_date = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM nursing_home_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + nursingHomeOrderColumns + ` FROM nursing_home_orders` + where +
		fmt.Sprintf(" ORDER BY week_start_date DESC, created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*model.NursingHomeOrder, 0, limit)
	for rows.Next() {
		item, err := scanNursingHomeOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return items, total, nil
}

func (r *nursingHomeOrderRepository) CountDraftsPastDeadline(ctx context.Context, now time.Time) (int64, error) {
	var total int64
	err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*)
		   FROM nursing_home_orders
		  WHERE status = 'draft'
		    AND deadline < $1`,
		now.UTC(),
	).Scan(&total)
	return total, err
}

func (r *nursingHomeOrderRepository) classifyMiss(ctx context.Context, id uuid.UUID) error {
	var exists bool
	if err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM nursing_home_orders WHERE id = $1)`,
		id,
	).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return ErrNotFound
	}
	return ErrConflict
}

func scanNursingHomeOrder(src scanTarget) (*model.NursingHomeOrder, error) {
	order := &model.NursingHomeOrder{}
	var (
		mealsRaw    []byte
		status      string
		subtotalRaw string
		taxRaw      string
		totalRaw    string
	)

	err := src.Scan(
		&order.ID,
		&order.FacilityID,
		&order.CreatedByUserID,
		&order.OrderNumber,
		&order.WeekStartDate,
		&order.WeekEndDate,
		&mealsRaw,
		&order.DeliveryAddress,
		&order.Notes,
		&status,
		&order.TotalMeals,
		&subtotalRaw,
		&taxRaw,
		&totalRaw,
		&order.Deadline,
		&order.SubmittedAt,
		&order.CancelledAt,
		&order.Version,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(mealsRaw) > 0 {
		if err := json.Unmarshal(mealsRaw, &order.ResidentMeals); err != nil {
			return nil, err
		}
	}
	if order.Subtotal, err = parseNumeric(subtotalRaw); err != nil {
		return nil, err
	}
	if order.Tax, err = parseNumeric(taxRaw); err != nil {
		return nil, err
	}
	if order.Total, err = parseNumeric(totalRaw); err != nil {
		return nil, err
	}
	order.Status = model.OrderStatus(status)
	return order, nil
}
