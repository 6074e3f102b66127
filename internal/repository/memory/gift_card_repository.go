package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	memdb "github.com/hashicorp/go-memdb"
	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

type giftCardRecord struct {
	ID       string
	Code     string
	IssueKey string
	Card     *model.GiftCard
}

type giftCardTxnRecord struct {
	ID         string
	GiftCardID string
	RedeemKey  string
	Seq        int64
	Txn        *model.GiftCardTransaction
}

type giftCardRepository struct {
	db *memdb.MemDB
}

var _ repository.GiftCardRepository = (*giftCardRepository)(nil)

func newGiftCardRecord(card *model.GiftCard) *giftCardRecord {
	rec := &giftCardRecord{
		ID:   card.ID.String(),
		Code: card.Code,
		Card: card.Clone(),
	}
	if card.IssueKey != nil {
		rec.IssueKey = *card.IssueKey
	}
	return rec
}

func redeemKey(txn *model.GiftCardTransaction) string {
	if txn.Kind != model.GiftCardTxnRedeem || txn.OrderID == nil {
		return ""
	}
	return txn.GiftCardID.String() + ":" + txn.OrderID.String()
}

func (r *giftCardRepository) FindByID(_ context.Context, id uuid.UUID) (*model.GiftCard, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	return findGiftCard(txn, "id", id.String())
}

func (r *giftCardRepository) FindByCode(_ context.Context, code string) (*model.GiftCard, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()
	return findGiftCard(txn, "code", code)
}

func (r *giftCardRepository) FindByIssueKey(_ context.Context, key string) (*model.GiftCard, error) {
	if key == "" {
		return nil, ErrNotFound
	}
	txn := r.db.Txn(false)
	defer txn.Abort()
	return findGiftCard(txn, "issue", key)
}

func (r *giftCardRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	_, err := r.FindByCode(ctx, code)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *giftCardRepository) Create(_ context.Context, card *model.GiftCard, entry *model.GiftCardTransaction) error {
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

	txn := r.db.Txn(true)
	defer txn.Abort()

	existing, err := txn.First(tableGiftCards, "code", card.Code)
	if err != nil {
		return err
	}
	if existing != nil {
		return ErrDuplicate
	}
	if existing, err = txn.First(tableGiftCards, "id", card.ID.String()); err != nil {
		return err
	} else if existing != nil {
		return ErrDuplicate
	}
	if card.IssueKey != nil && *card.IssueKey != "" {
		if existing, err = txn.First(tableGiftCards, "issue", *card.IssueKey); err != nil {
			return err
		} else if existing != nil {
			return ErrDuplicate
		}
	}

	if err := txn.Insert(tableGiftCards, newGiftCardRecord(card)); err != nil {
		return err
	}
	if entry != nil {
		entry.GiftCardID = card.ID
		if err := insertGiftCardTxn(txn, entry); err != nil {
			return err
		}
	}

	txn.Commit()
	return nil
}

func (r *giftCardRepository) Mutate(_ context.Context, id uuid.UUID, fn repository.GiftCardMutation) (*model.GiftCard, error) {
	txn := r.db.Txn(true)
	defer txn.Abort()

	card, err := findGiftCard(txn, "id", id.String())
	if err != nil {
		return nil, err
	}

	entry, err := fn(card)
	if err != nil {
		return nil, err
	}

	card.UpdatedAt = time.Now().UTC()
	if err := txn.Insert(tableGiftCards, newGiftCardRecord(card)); err != nil {
		return nil, err
	}
	if entry != nil {
		entry.GiftCardID = card.ID
		if err := insertGiftCardTxn(txn, entry); err != nil {
			return nil, err
		}
	}

	txn.Commit()
	return card, nil
}

func (r *giftCardRepository) List(_ context.Context, filter repository.GiftCardListFilter) ([]*model.GiftCard, int64, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableGiftCards, "id")
	if err != nil {
		return nil, 0, err
	}

	keyword := ""
	if filter.Keyword != nil {
		keyword = strings.ToLower(strings.TrimSpace(*filter.Keyword))
	}

	matched := make([]*model.GiftCard, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		card := obj.(*giftCardRecord).Card
		if filter.Status != nil && card.Status != *filter.Status {
			continue
		}
		if filter.PurchasedByUserID != nil && (card.PurchasedByUserID == nil || *card.PurchasedByUserID != *filter.PurchasedByUserID) {
			continue
		}
		if filter.OrderID != nil && (card.OrderID == nil || *card.OrderID != *filter.OrderID) {
			continue
		}
		if keyword != "" && !matchesKeyword(card, keyword) {
			continue
		}
		matched = append(matched, card.Clone())
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	return paginate(matched, filter.Pagination), int64(len(matched)), nil
}

func (r *giftCardRepository) ListTransactions(_ context.Context, giftCardID uuid.UUID) ([]*model.GiftCardTransaction, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableGiftCardTxns, "card", giftCardID.String())
	if err != nil {
		return nil, err
	}
	records := make([]*giftCardTxnRecord, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		records = append(records, obj.(*giftCardTxnRecord))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	items := make([]*model.GiftCardTransaction, 0, len(records))
	for _, rec := range records {
		entry := *rec.Txn
		items = append(items, &entry)
	}
	return items, nil
}

func (r *giftCardRepository) Stats(_ context.Context) (repository.GiftCardStats, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableGiftCards, "id")
	if err != nil {
		return repository.GiftCardStats{}, err
	}
	stats := repository.GiftCardStats{OutstandingBalance: decimal.Zero}
	for obj := it.Next(); obj != nil; obj = it.Next() {
		card := obj.(*giftCardRecord).Card
		if card.Status != model.GiftCardStatusActive {
			continue
		}
		stats.ActiveCount++
		stats.OutstandingBalance = stats.OutstandingBalance.Add(card.Balance)
	}
	return stats, nil
}

func findGiftCard(txn *memdb.Txn, index, value string) (*model.GiftCard, error) {
	obj, err := txn.First(tableGiftCards, index, value)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNotFound
	}
	return obj.(*giftCardRecord).Card.Clone(), nil
}

func insertGiftCardTxn(txn *memdb.Txn, entry *model.GiftCardTransaction) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	key := redeemKey(entry)
	if key != "" {
		existing, err := txn.First(tableGiftCardTxns, "redeem", key)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrDuplicate
		}
	}

	stored := *entry
	return txn.Insert(tableGiftCardTxns, &giftCardTxnRecord{
		ID:         entry.ID.String(),
		GiftCardID: entry.GiftCardID.String(),
		RedeemKey:  key,
		Seq:        nextSeq(),
		Txn:        &stored,
	})
}

func matchesKeyword(card *model.GiftCard, keyword string) bool {
	if strings.Contains(strings.ToLower(card.Code), keyword) {
		return true
	}
	return card.RecipientEmail != nil && strings.Contains(strings.ToLower(*card.RecipientEmail), keyword)
}
