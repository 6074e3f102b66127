package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	inputsanitize "github.com/wglickman33/mykosherdelivery-sub000/internal/api/sanitize"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const weekDateLayout = "2006-01-02"

type NursingHomeHandler struct {
	orderService *service.NursingHomeOrderService
}

type createNursingHomeOrderRequest struct {
	FacilityID      *string               `json:"facility_id"`
	WeekStartDate   string                `json:"week_start_date" binding:"required"`
	WeekEndDate     string                `json:"week_end_date" binding:"required"`
	ResidentMeals   []model.ResidentMeals `json:"resident_meals"`
	DeliveryAddress string                `json:"delivery_address"`
	Notes           *string               `json:"notes"`
}

type updateNursingHomeOrderRequest struct {
	ResidentMeals   *[]model.ResidentMeals `json:"resident_meals"`
	DeliveryAddress *string                `json:"delivery_address"`
	Notes           *string                `json:"notes"`
	Version         *int64                 `json:"version"`
}

type calculateTotalsRequest struct {
	ResidentMeals []model.ResidentMeals `json:"resident_meals"`
}

type orderTotalsView struct {
	TotalMeals int    `json:"total_meals"`
	Subtotal   string `json:"subtotal"`
	Tax        string `json:"tax"`
	Total      string `json:"total"`
}

type nursingHomeOrderView struct {
	ID              string                `json:"id"`
	OrderNumber     string                `json:"order_number"`
	FacilityID      string                `json:"facility_id"`
	CreatedByUserID string                `json:"created_by_user_id"`
	WeekStartDate   string                `json:"week_start_date"`
	WeekEndDate     string                `json:"week_end_date"`
	ResidentMeals   []model.ResidentMeals `json:"resident_meals"`
	DeliveryAddress string                `json:"delivery_address"`
	Notes           *string               `json:"notes,omitempty"`
	Status          string                `json:"status"`
	Totals          orderTotalsView       `json:"totals"`
	Deadline        string                `json:"deadline"`
	SubmittedAt     *string               `json:"submitted_at,omitempty"`
	CancelledAt     *string               `json:"cancelled_at,omitempty"`
	Version         int64                 `json:"version"`
	CreatedAt       string                `json:"created_at"`
	UpdatedAt       string                `json:"updated_at"`
}

func NewNursingHomeHandler(orderService *service.NursingHomeOrderService) *NursingHomeHandler {
	return &NursingHomeHandler{orderService: orderService}
}

func RegisterNursingHomeRoutes(group *gin.RouterGroup, auth gin.HandlerFunc, orderService *service.NursingHomeOrderService) {
	if orderService == nil {
		return
	}

	handler := NewNursingHomeHandler(orderService)
	nursingHome := group.Group("/nursing-home")
	nursingHome.Use(auth)

	nursingHome.POST("/totals", handler.CalculateTotals)
	nursingHome.POST("/orders", handler.Create)
	nursingHome.GET("/orders", handler.List)
	nursingHome.GET("/orders/:id", handler.Get)
	nursingHome.PATCH("/orders/:id", handler.Update)
	nursingHome.POST("/orders/:id/submit", handler.Submit)
	nursingHome.POST("/orders/:id/cancel", handler.Cancel)
}

// CalculateTotals prices a draft without storing it.
func (h *NursingHomeHandler) CalculateTotals(c *gin.Context) {
	var req calculateTotalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}

	totals, err := service.CalculateOrderTotals(sanitizeResidentMeals(req.ResidentMeals))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newOrderTotalsView(totals))
}

func (h *NursingHomeHandler) Create(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req createNursingHomeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}

	facilityID, err := parseUUIDPtr(req.FacilityID)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid facility_id")
		return
	}
	if facilityID == nil {
		facilityID = actor.FacilityID
	}
	if facilityID == nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "facility_id is required")
		return
	}

	loc := h.orderService.Location()
	weekStart, err := time.ParseInLocation(weekDateLayout, strings.TrimSpace(req.WeekStartDate), loc)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid week_start_date")
		return
	}
	weekEnd, err := time.ParseInLocation(weekDateLayout, strings.TrimSpace(req.WeekEndDate), loc)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid week_end_date")
		return
	}

	order, err := h.orderService.Create(c.Request.Context(), actor, service.CreateNursingHomeOrderInput{
		FacilityID:      *facilityID,
		WeekStartDate:   weekStart,
		WeekEndDate:     weekEnd,
		ResidentMeals:   sanitizeResidentMeals(req.ResidentMeals),
		DeliveryAddress: inputsanitize.PlainText(req.DeliveryAddress),
		Notes:           inputsanitize.PlainTextPtr(req.Notes),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newNursingHomeOrderView(order))
}

func (h *NursingHomeHandler) List(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	page, pageSize := parsePage(c)

	filter := service.NursingHomeOrderListFilter{}
	facilityID, ok := optionalUUIDQuery(c, "facility_id")
	if !ok {
		return
	}
	filter.FacilityID = facilityID
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		status := model.OrderStatus(strings.ToLower(raw))
		switch status {
		case model.OrderStatusDraft, model.OrderStatusSubmitted, model.OrderStatusCancelled:
		default:
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid status")
			return
		}
		filter.Status = &status
	}
	if raw := strings.TrimSpace(c.Query("week_start")); raw != "" {
		weekStart, err := time.ParseInLocation(weekDateLayout, raw, h.orderService.Location())
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid week_start")
			return
		}
		filter.WeekStart = &weekStart
	}

	items, total, err := h.orderService.List(c.Request.Context(), actor, page, pageSize, filter)
	if err != nil {
		handleServiceError(c, err)
		return
	}

	views := make([]nursingHomeOrderView, 0, len(items))
	for _, order := range items {
		views = append(views, newNursingHomeOrderView(order))
	}
	response.Paginated(c, views, page, pageSize, total)
}

func (h *NursingHomeHandler) Get(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Get(c.Request.Context(), actor, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newNursingHomeOrderView(order))
}

func (h *NursingHomeHandler) Update(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req updateNursingHomeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidRequest, "invalid request")
		return
	}

	patch := service.NursingHomeOrderPatch{
		Notes:   inputsanitize.PlainTextPtr(req.Notes),
		Version: req.Version,
	}
	if req.ResidentMeals != nil {
		residents := sanitizeResidentMeals(*req.ResidentMeals)
		patch.ResidentMeals = &residents
	}
	if req.DeliveryAddress != nil {
		address := inputsanitize.PlainText(*req.DeliveryAddress)
		patch.DeliveryAddress = &address
	}

	order, err := h.orderService.Update(c.Request.Context(), actor, orderID, patch)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newNursingHomeOrderView(order))
}

func (h *NursingHomeHandler) Submit(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Submit(c.Request.Context(), actor, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newNursingHomeOrderView(order))
}

func (h *NursingHomeHandler) Cancel(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	order, err := h.orderService.Cancel(c.Request.Context(), actor, orderID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	response.Success(c, newNursingHomeOrderView(order))
}

func sanitizeResidentMeals(in []model.ResidentMeals) []model.ResidentMeals {
	if in == nil {
		return nil
	}
	out := model.CloneResidentMeals(in)
	for i := range out {
		out[i].ResidentName = inputsanitize.PlainText(out[i].ResidentName)
		out[i].RoomNumber = inputsanitize.PlainText(out[i].RoomNumber)
		for j := range out[i].Meals {
			for k := range out[i].Meals[j].Items {
				item := &out[i].Meals[j].Items[k]
				item.Name = inputsanitize.PlainText(item.Name)
				item.Notes = inputsanitize.PlainTextPtr(item.Notes)
			}
		}
	}
	return out
}

func newOrderTotalsView(totals model.OrderTotals) orderTotalsView {
	return orderTotalsView{
		TotalMeals: totals.TotalMeals,
		Subtotal:   money.Format(totals.Subtotal),
		Tax:        money.Format(totals.Tax),
		Total:      money.Format(totals.Total),
	}
}

func newNursingHomeOrderView(order *model.NursingHomeOrder) nursingHomeOrderView {
	view := nursingHomeOrderView{
		ID:              order.ID.String(),
		OrderNumber:     order.OrderNumber,
		FacilityID:      order.FacilityID.String(),
		CreatedByUserID: order.CreatedByUserID.String(),
		WeekStartDate:   order.WeekStartDate.Format(weekDateLayout),
		WeekEndDate:     order.WeekEndDate.Format(weekDateLayout),
		ResidentMeals:   order.ResidentMeals,
		DeliveryAddress: order.DeliveryAddress,
		Notes:           order.Notes,
		Status:          string(order.Status),
		Totals: newOrderTotalsView(model.OrderTotals{
			TotalMeals: order.TotalMeals,
			Subtotal:   order.Subtotal,
			Tax:        order.Tax,
			Total:      order.Total,
		}),
		Deadline:  order.Deadline.UTC().Format(time.RFC3339),
		Version:   order.Version,
		CreatedAt: order.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: order.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	if order.SubmittedAt != nil {
		at := order.SubmittedAt.UTC().Format(time.RFC3339Nano)
		view.SubmittedAt = &at
	}
	if order.CancelledAt != nil {
		at := order.CancelledAt.UTC().Format(time.RFC3339Nano)
		view.CancelledAt = &at
	}
	return view
}
