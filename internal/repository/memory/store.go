// Package memory implements the repository interfaces on top of go-memdb.
// It backs the `memory` database driver used by local runs and handler tests.
package memory

import (
	"fmt"
	"sync/atomic"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

var (
	ErrNotFound  = repository.ErrNotFound
	ErrDuplicate = repository.ErrDuplicate
	ErrConflict  = repository.ErrConflict
)

const (
	tableGiftCards    = "gift_cards"
	tableGiftCardTxns = "gift_card_transactions"
	tableOrders       = "nursing_home_orders"
	tableAuditLogs    = "audit_logs"
)

// Store owns one go-memdb database shared by all repositories it hands out.
// Write transactions in go-memdb are serialized, which gives every
// read-modify-write the same isolation a row lock gives in Postgres.
type Store struct {
	db *memdb.MemDB
}

func NewStore() (*Store, error) {
	db, err := memdb.NewMemDB(schema())
	if err != nil {
		return nil, fmt.Errorf("create memdb: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) GiftCards() repository.GiftCardRepository {
	return &giftCardRepository{db: s.db}
}

func (s *Store) NursingHomeOrders() repository.NursingHomeOrderRepository {
	return &nursingHomeOrderRepository{db: s.db}
}

func (s *Store) AuditLogs() repository.AuditRepository {
	return &auditRepository{db: s.db}
}

func schema() *memdb.DBSchema {
	return &memdb.DBSchema{
		Tables: map[string]*memdb.TableSchema{
			tableGiftCards: {
				Name: tableGiftCards,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"code": {
						Name:    "code",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "Code"},
					},
					"issue": {
						Name:         "issue",
						Unique:       true,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "IssueKey"},
					},
				},
			},
			tableGiftCardTxns: {
				Name: tableGiftCardTxns,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"card": {
						Name:    "card",
						Indexer: &memdb.StringFieldIndex{Field: "GiftCardID"},
					},
					"redeem": {
						Name:         "redeem",
						Unique:       true,
						AllowMissing: true,
						Indexer:      &memdb.StringFieldIndex{Field: "RedeemKey"},
					},
				},
			},
			tableOrders: {
				Name: tableOrders,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
					"number": {
						Name:    "number",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "OrderNumber"},
					},
				},
			},
			tableAuditLogs: {
				Name: tableAuditLogs,
				Indexes: map[string]*memdb.IndexSchema{
					"id": {
						Name:    "id",
						Unique:  true,
						Indexer: &memdb.StringFieldIndex{Field: "ID"},
					},
				},
			},
		},
	}
}

var seq atomic.Int64

func nextSeq() int64 {
	return seq.Add(1)
}

func paginate[T any](items []T, page repository.Pagination) []T {
	limit := int(page.Limit)
	offset := int(page.Offset)
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}
