package v1

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func parseIntOrDefault(raw string, def int) int {
	if strings.TrimSpace(raw) == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value <= 0 {
		return def
	}
	return value
}

func parsePage(c *gin.Context) (int, int) {
	page := parseIntOrDefault(c.Query("page"), 1)
	pageSize := parseIntOrDefault(c.Query("page_size"), defaultPageSize)
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func currentActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrUnauthorized, "unauthorized")
		return model.Actor{}, false
	}
	return actor, true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery returns nil for an empty value and false for a malformed one.
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid "+name)
		return nil, false
	}
	return &id, true
}

func parseUUIDPtr(raw *string) (*uuid.UUID, error) {
	if raw == nil || strings.TrimSpace(*raw) == "" {
		return nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(*raw))
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// Amounts travel as JSON strings ("12.50") to keep them exact.
func parseAmount(raw string) (decimal.Decimal, error) {
	return money.Parse(raw)
}

func handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrGiftCardNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrGiftCardNotFound, "gift card not found")
	case errors.Is(err, service.ErrGiftCardNotActive):
		response.Fail(c, http.StatusConflict, response.ErrGiftCardNotActive, "gift card is not active")
	case errors.Is(err, service.ErrInsufficientBalance):
		response.Fail(c, http.StatusConflict, response.ErrInsufficientBalance, "insufficient balance")
	case errors.Is(err, service.ErrAlreadyApplied):
		response.Fail(c, http.StatusConflict, response.ErrGiftCardApplied, "gift card already applied to order")
	case errors.Is(err, service.ErrCodeSpaceExhausted):
		response.Fail(c, http.StatusServiceUnavailable, response.ErrCodeSpaceExhausted, "could not allocate a unique code")
	case errors.Is(err, service.ErrOrderNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrOrderNotFound, "order not found")
	case errors.Is(err, service.ErrOrderLocked):
		response.Fail(c, http.StatusConflict, response.ErrOrderLocked, "order is locked")
	case errors.Is(err, service.ErrEditWindowClosed):
		response.Fail(c, http.StatusConflict, response.ErrEditWindowClosed, "edit window closed")
	case errors.Is(err, service.ErrDeadlinePassed):
		response.Fail(c, http.StatusConflict, response.ErrDeadlinePassed, "deadline passed")
	case errors.Is(err, service.ErrAlreadySubmitted):
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted, "order already submitted")
	case errors.Is(err, service.ErrOrderConflict):
		response.Fail(c, http.StatusConflict, response.ErrOrderConflict, "order was modified concurrently")
	case errors.Is(err, service.ErrValidationFailed):
		response.Fail(c, http.StatusUnprocessableEntity, response.ErrValidationFailed, err.Error())
	case errors.Is(err, service.ErrForbidden):
		response.Fail(c, http.StatusForbidden, response.ErrForbidden, "forbidden")
	default:
		_ = c.Error(err)
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal, "internal error")
	}
}

func uuidStringPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	value := id.String()
	return &value
}
