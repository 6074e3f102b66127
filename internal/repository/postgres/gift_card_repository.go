package postgres

import (
	"context"
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

type giftCardRepository struct {
	pool *pgxpool.Pool
}

func NewGiftCardRepository(pool *pgxpool.Pool) repository.GiftCardRepository {
	return &giftCardRepository{pool: pool}
}

var _ repository.GiftCardRepository = (*giftCardRepository)(nil)

const giftCardColumns = `
	id,
	code,
	initial_balance::text,
	balance::text,
	status,
	purchased_by_user_id,
	order_id,
	recipient_email,
	issue_key,
	created_at,
	updated_at
`

const giftCardTransactionColumns = `
	id,
	gift_card_id,
	kind,
	amount::text,
	balance_after::text,
	order_id,
	actor_id,
	created_at
`

func (r *giftCardRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.GiftCard, error) {
	query := `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE id = $1`
	card, err := scanGiftCard(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (r *giftCardRepository) FindByCode(ctx context.Context, code string) (*model.GiftCard, error) {
	query := `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE code = $1`
	card, err := scanGiftCard(r.pool.QueryRow(ctx, query, code))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (r *giftCardRepository) FindByIssueKey(ctx context.Context, key string) (*model.GiftCard, error) {
	query := `SELECT ` + giftCardColumns + ` FROM gift_cards WHERE issue_key = $1`
	card, err := scanGiftCard(r.pool.QueryRow(ctx, query, key))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return card, nil
}

func (r *giftCardRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM gift_cards WHERE code = $1)`,
		code,
	).Scan(&exists)
	return exists, err
}

func (r *giftCardRepository) Create(ctx context.Context, card *model.GiftCard, txn *model.GiftCardTransaction) error {
	if card.ID == uuid.Nil {
		card.ID = uuid.New()
	}
	now := time.Now().UTC()
	if card.CreatedAt.IsZero() {
		card.CreatedAt = now
	}
	if card.UpdatedAt.IsZero() {
		card.UpdatedAt = card.CreatedAt
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := `
		INSERT INTO gift_cards (
			id, code, initial_balance, balance, status,
			purchased_by_user_id, order_id, recipient_email, issue_key,
			created_at, updated_at
		)
		VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11
		)
	`
	if _, err := tx.Exec(
		ctx,
		query,
		card.ID,
		card.Code,
		numericParam(card.InitialBalance),
		numericParam(card.Balance),
		string(card.Status),
		card.PurchasedByUserID,
		card.OrderID,
		card.RecipientEmail,
		card.IssueKey,
		card.CreatedAt,
		card.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}

	if txn != nil {
		txn.GiftCardID = card.ID
		if err := insertGiftCardTransaction(ctx, tx, txn); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

func (r *giftCardRepository) Mutate(ctx context.Context, id uuid.UUID, fn repository.GiftCardMutation) (*model.GiftCard, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	card, err := scanGiftCard(tx.QueryRow(
		ctx,
		`SELECT `+giftCardColumns+` FROM gift_cards WHERE id = $1 FOR UPDATE`,
		id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	txn, err := fn(card)
	if err != nil {
		return nil, err
	}

	card.UpdatedAt = time.Now().UTC()
	tag, err := tx.Exec(
		ctx,
		`UPDATE gift_cards
		    SET balance = $2,
		        status = $3,
		        recipient_email = $4,
		        updated_at = $5
		  WHERE id = $1`,
		card.ID,
		numericParam(card.Balance),
		string(card.Status),
		card.RecipientEmail,
		card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := ensureAffected(tag); err != nil {
		return nil, err
	}

	if txn != nil {
		txn.GiftCardID = card.ID
		if err := insertGiftCardTransaction(ctx, tx, txn); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return card, nil
}

func (r *giftCardRepository) List(ctx context.Context, filter repository.GiftCardListFilter) ([]*model.GiftCard, int64, error) {
	limit, offset := normalizePagination(filter.Pagination)

	args := make([]any, 0, 8)
	conditions := make([]string, 0, 4)

	if filter.Status != nil {
		args = append(args, string(*filter.Status))
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.PurchasedByUserID != nil {
		args = append(args, *filter.PurchasedByUserID)
		conditions = append(conditions, fmt.Sprintf("purchased_by_user_id = $%d", len(args)))
	}
	if filter.OrderID != nil {
		args = append(args, *filter.OrderID)
		conditions = append(conditions, fmt.Sprintf("order_id = $%d", len(args)))
	}
	if filter.Keyword != nil && strings.TrimSpace(*filter.Keyword) != "" {
		args = append(args, "%"+strings.TrimSpace(*filter.Keyword)+"%")
		conditions = append(conditions, fmt.Sprintf("(code ILIKE $%d OR recipient_email ILIKE $%d)", len(args), len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM gift_cards`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	args = append(args, limit, offset)
	query := `SELECT ` + giftCardColumns + ` FROM gift_cards` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	items := make([]*model.GiftCard, 0, limit)
	for rows.Next() {
		item, err := scanGiftCard(rows)
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

func (r *giftCardRepository) ListTransactions(ctx context.Context, giftCardID uuid.UUID) ([]*model.GiftCardTransaction, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT `+giftCardTransactionColumns+`
		   FROM gift_card_transactions
		  WHERE gift_card_id = $1
		  ORDER BY created_at ASC, id ASC`,
		giftCardID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*model.GiftCardTransaction, 0)
	for rows.Next() {
		item, err := scanGiftCardTransaction(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *giftCardRepository) Stats(ctx context.Context) (repository.GiftCardStats, error) {
	var (
		stats       repository.GiftCardStats
		outstanding string
	)
	if err := r.pool.QueryRow(
		ctx,
		`SELECT COUNT(*), COALESCE(SUM(balance), 0)::text
		   FROM gift_cards
		  WHERE status = 'active'`,
	).Scan(&stats.ActiveCount, &outstanding); err != nil {
		return repository.GiftCardStats{}, err
	}

	value, err := parseNumeric(outstanding)
	if err != nil {
		return repository.GiftCardStats{}, err
	}
	stats.OutstandingBalance = value
	return stats, nil
}

func insertGiftCardTransaction(ctx context.Context, q querier, txn *model.GiftCardTransaction) error {
	if txn.ID == uuid.Nil {
		txn.ID = uuid.New()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = time.Now().UTC()
	}

	_, err := q.Exec(
		ctx,
		`INSERT INTO gift_card_transactions (
			id, gift_card_id, kind, amount, balance_after,
			order_id, actor_id, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		txn.ID,
		txn.GiftCardID,
		string(txn.Kind),
		numericParam(txn.Amount),
		numericParam(txn.BalanceAfter),
		txn.OrderID,
		txn.ActorID,
		txn.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func scanGiftCard(src scanTarget) (*model.GiftCard, error) {
	card := &model.GiftCard{}
	var (
		initialRaw string
		balanceRaw string
		status     string
	)
	err := src.Scan(
		&card.ID,
		&card.Code,
		&initialRaw,
		&balanceRaw,
		&status,
		&card.PurchasedByUserID,
		&card.OrderID,
		&card.RecipientEmail,
		&card.IssueKey,
		&card.CreatedAt,
		&card.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if card.InitialBalance, err = parseNumeric(initialRaw); err != nil {
		return nil, err
	}
	if card.Balance, err = parseNumeric(balanceRaw); err != nil {
		return nil, err
	}
	card.Status = model.GiftCardStatus(status)
	return card, nil
}

func scanGiftCardTransaction(src scanTarget) (*model.GiftCardTransaction, error) {
	txn := &model.GiftCardTransaction{}
	var (
		kind       string
		amountRaw  string
		balanceRaw string
	)
	err := src.Scan(
		&txn.ID,
		&txn.GiftCardID,
		&kind,
		&amountRaw,
		&balanceRaw,
		&txn.OrderID,
		&txn.ActorID,
		&txn.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if txn.Amount, err = parseNumeric(amountRaw); err != nil {
		return nil, err
	}
	if txn.BalanceAfter, err = parseNumeric(balanceRaw); err != nil {
		return nil, err
	}
	txn.Kind = model.GiftCardTransactionKind(kind)
	return txn, nil
}
