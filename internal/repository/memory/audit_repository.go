package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	memdb "github.com/hashicorp/go-memdb"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

type auditRecord struct {
	ID  string
	Log *model.AuditLog
}

type auditRepository struct {
	db *memdb.MemDB
}

var _ repository.AuditRepository = (*auditRepository)(nil)

func (r *auditRepository) Create(_ context.Context, log *model.AuditLog) error {
	log.ID = nextSeq()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	stored := *log
	txn := r.db.Txn(true)
	defer txn.Abort()
	if err := txn.Insert(tableAuditLogs, &auditRecord{
		ID:  fmt.Sprintf("%020d", log.ID),
		Log: &stored,
	}); err != nil {
		return err
	}
	txn.Commit()
	return nil
}

func (r *auditRepository) List(_ context.Context, filter repository.AuditListFilter) ([]*model.AuditLog, error) {
	txn := r.db.Txn(false)
	defer txn.Abort()

	it, err := txn.Get(tableAuditLogs, "id")
	if err != nil {
		return nil, err
	}

	matched := make([]*model.AuditLog, 0)
	for obj := it.Next(); obj != nil; obj = it.Next() {
		log := obj.(*auditRecord).Log
		if filter.UserID != nil && (log.UserID == nil || *log.UserID != *filter.UserID) {
			continue
		}
		if filter.ResourceType != nil && (log.ResourceType == nil || *log.ResourceType != *filter.ResourceType) {
			continue
		}
		if filter.ResourceID != nil && (log.ResourceID == nil || *log.ResourceID != *filter.ResourceID) {
			continue
		}
		entry := *log
		matched = append(matched, &entry)
	}

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })
	return paginate(matched, filter.Pagination), nil
}
