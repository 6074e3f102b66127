package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository"
)

const (
	resourceGiftCard         = "gift_card"
	resourceNursingHomeOrder = "nursing_home_order"
)

// writeAudit records a change after it was committed. Failures are logged only.
func writeAudit(
	ctx context.Context,
	repo repository.AuditRepository,
	logger *zap.Logger,
	actorID *uuid.UUID,
	action string,
	resourceType string,
	resourceID uuid.UUID,
	oldValue map[string]interface{},
	newValue map[string]interface{},
) {
	if repo == nil {
		return
	}

	id := resourceID.String()
	err := repo.Create(ctx, &model.AuditLog{
		UserID:       actorID,
		Action:       action,
		ResourceType: strPtr(resourceType),
		ResourceID:   &id,
		OldValue:     oldValue,
		NewValue:     newValue,
	})
	if err != nil && logger != nil {
		logger.Warn("write audit log failed",
			zap.String("action", action),
			zap.String("resource_id", id),
			zap.Error(err),
		)
	}
}

func strPtr(v string) *string {
	return &v
}

func uuidPtr(v uuid.UUID) *uuid.UUID {
	if v == uuid.Nil {
		return nil
	}
	return &v
}

func uuidString(v *uuid.UUID) string {
	if v == nil {
		return ""
	}
	return v.String()
}
