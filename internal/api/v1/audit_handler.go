package v1

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
)

type AuditHandler struct {
	auditService *service.AuditService
}

func NewAuditHandler(auditService *service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func RegisterAuditRoutes(group *gin.RouterGroup, auth gin.HandlerFunc, auditService *service.AuditService) {
	if auditService == nil {
		return
	}

	handler := NewAuditHandler(auditService)
	audit := group.Group("/audit")
	audit.Use(auth, middleware.RequireCapability(model.CapPlatformOverride))
	audit.GET("", handler.List)
}

func (h *AuditHandler) List(c *gin.Context) {
	page, pageSize := parsePage(c)

	filter := service.AuditFilter{}
	userID, ok := optionalUUIDQuery(c, "user_id")
	if !ok {
		return
	}
	filter.UserID = userID
	if raw := strings.TrimSpace(c.Query("resource_type")); raw != "" {
		filter.ResourceType = &raw
	}
	if raw := strings.TrimSpace(c.Query("resource_id")); raw != "" {
		filter.ResourceID = &raw
	}

	items, err := h.auditService.List(c.Request.Context(), filter, page, pageSize)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if items == nil {
		items = []*model.AuditLog{}
	}

	response.Success(c, gin.H{
		"items":     items,
		"page":      page,
		"page_size": pageSize,
	})
}
