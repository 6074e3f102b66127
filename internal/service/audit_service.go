package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

const (
	auditListDefaultSize = 20
	auditListMaxPageSize = 200
)

type AuditFilter struct {
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType *string    `json:"resource_type,omitempty"`
	ResourceID   *string    `json:"resource_id,omitempty"`
}

// AuditService exposes the audit trail written by the ledger and order services.
type AuditService struct {
	auditRepo repository.AuditRepository
}

func NewAuditService(auditRepo repository.AuditRepository) *AuditService {
	return &AuditService{auditRepo: auditRepo}
}

func (s *AuditService) List(ctx context.Context, filter AuditFilter, page, pageSize int) ([]*model.AuditLog, error) {
	if s.auditRepo == nil {
		return nil, errors.New("audit repository is nil")
	}

	resourceType := trimAuditStringPtr(filter.ResourceType)
	if resourceType != nil && *resourceType != resourceGiftCard && *resourceType != resourceNursingHomeOrder {
		return nil, validationErrorf("unknown resource type %q", *resourceType)
	}

	page, pageSize = normalizePage(page, pageSize, auditListDefaultSize, auditListMaxPageSize)
	return s.auditRepo.List(ctx, repository.AuditListFilter{
		UserID:       filter.UserID,
		ResourceType: resourceType,
		ResourceID:   trimAuditStringPtr(filter.ResourceID),
		Pagination: repository.Pagination{
			Limit:  int32(pageSize),
			Offset: int32((page - 1) * pageSize),
		},
	})
}

func trimAuditStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
