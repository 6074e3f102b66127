package v1

import (
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
)

func createTestOrder(t *testing.T, srv *testServer, token string) nursingHomeOrderView {
	t.Helper()

	resp := performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders", map[string]any{
		"week_start_date":  "2025-03-03",
		"week_end_date":    "2025-03-09",
		"resident_meals":   sampleResidentPayload(),
		"delivery_address": "12 Elm St",
		"notes":            "<b>Ring</b> twice",
	}, token)

	var order nursingHomeOrderView
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &order)
	return order
}

func TestCalculateTotalsEndpoint(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)

	resp := performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/totals", map[string]any{
		"resident_meals": sampleResidentPayload(),
	}, staff)

	var totals orderTotalsView
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &totals)
	if totals.TotalMeals != 2 || totals.Subtotal != "36.00" || totals.Tax != "3.20" || totals.Total != "39.20" {
		t.Fatalf("unexpected totals: %+v", totals)
	}

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/totals", map[string]any{
		"resident_meals": []map[string]any{{
			"resident_name": "Miriam Cohen",
			"meals": []map[string]any{
				{"day": "funday", "meal_type": "lunch", "items": []map[string]any{{"name": "Soup"}}},
			},
		}},
	}, staff)
	expectStatus(t, resp, http.StatusUnprocessableEntity, response.ErrValidationFailed)
}

func TestNursingHomeOrderLifecycle(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)

	order := createTestOrder(t, srv, staff)
	if order.Status != "draft" || order.Version != 1 {
		t.Fatalf("unexpected new order: %+v", order)
	}
	if order.Deadline != "2025-03-02T12:00:00Z" {
		t.Fatalf("unexpected deadline %s", order.Deadline)
	}
	if order.Totals.Total != "39.20" {
		t.Fatalf("unexpected total %s", order.Totals.Total)
	}
	if order.Notes == nil || *order.Notes != "Ring twice" {
		t.Fatalf("expected sanitized notes, got %v", order.Notes)
	}

	resp := performJSONRequest(t, srv.router, http.MethodPatch, "/api/v1/nursing-home/orders/"+order.ID, map[string]any{
		"delivery_address": "14 Elm St",
		"version":          1,
	}, staff)
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &order)
	if order.DeliveryAddress != "14 Elm St" || order.Version != 2 {
		t.Fatalf("unexpected updated order: %+v", order)
	}

	resp = performJSONRequest(t, srv.router, http.MethodPatch, "/api/v1/nursing-home/orders/"+order.ID, map[string]any{
		"notes":   "stale",
		"version": 1,
	}, staff)
	expectStatus(t, resp, http.StatusConflict, response.ErrOrderConflict)

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/submit", nil, staff)
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &order)
	if order.Status != "submitted" || order.SubmittedAt == nil {
		t.Fatalf("expected submitted order, got %+v", order)
	}

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/submit", nil, staff)
	expectStatus(t, resp, http.StatusConflict, response.ErrAlreadySubmitted)

	resp = performJSONRequest(t, srv.router, http.MethodPatch, "/api/v1/nursing-home/orders/"+order.ID, map[string]any{
		"notes": "too late",
	}, staff)
	expectStatus(t, resp, http.StatusConflict, response.ErrOrderLocked)

	facilityAdmin := srv.token(t, model.UserRoleFacilityAdmin, &srv.facilityID)
	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/cancel", nil, facilityAdmin)
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &order)
	if order.Status != "cancelled" {
		t.Fatalf("expected cancelled order, got %s", order.Status)
	}
}

func TestNursingHomeOrder_DeadlineEnforced(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)
	order := createTestOrder(t, srv, staff)

	srv.now = time.Date(2025, 3, 2, 12, 0, 1, 0, time.UTC)

	resp := performJSONRequest(t, srv.router, http.MethodPatch, "/api/v1/nursing-home/orders/"+order.ID, map[string]any{
		"notes": "late change",
	}, staff)
	expectStatus(t, resp, http.StatusConflict, response.ErrEditWindowClosed)

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/submit", nil, staff)
	expectStatus(t, resp, http.StatusConflict, response.ErrDeadlinePassed)

	admin := srv.token(t, model.UserRoleAdmin, nil)
	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/submit", nil, admin)
	expectStatus(t, resp, http.StatusConflict, response.ErrDeadlinePassed)

	resp = performJSONRequest(t, srv.router, http.MethodPatch, "/api/v1/nursing-home/orders/"+order.ID, map[string]any{
		"notes": "admin fix",
	}, admin)
	expectStatus(t, resp, http.StatusOK, response.CodeSuccess)
}

func TestNursingHomeOrder_WeekDatesUseBusinessLocation(t *testing.T) {
	srv := setupTestServer(t, nil)
	srv.orders.SetLocation(time.FixedZone("EST", -5*60*60))
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)

	order := createTestOrder(t, srv, staff)
	deadline, err := time.Parse(time.RFC3339, order.Deadline)
	if err != nil {
		t.Fatalf("parse deadline %q: %v", order.Deadline, err)
	}
	want := time.Date(2025, 3, 2, 17, 0, 0, 0, time.UTC)
	if !deadline.Equal(want) {
		t.Fatalf("expected deadline %s, got %s", want, deadline)
	}

	srv.now = time.Date(2025, 3, 2, 16, 59, 0, 0, time.UTC)
	resp := performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders/"+order.ID+"/submit", nil, staff)
	expectStatus(t, resp, http.StatusOK, response.CodeSuccess)

	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/nursing-home/orders?week_start=2025-03-03", nil, staff)
	var page []nursingHomeOrderView
	decodeData(t, expectStatus(t, resp, http.StatusOK, response.CodeSuccess), &page)
	if len(page) != 1 || page[0].ID != order.ID {
		t.Fatalf("expected the order in the week filter, got %+v", page)
	}
}

func TestNursingHomeOrder_FacilityIsolation(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)
	order := createTestOrder(t, srv, staff)

	otherFacility := uuid.New()
	outsider := srv.token(t, model.UserRoleFacilityAdmin, &otherFacility)

	resp := performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/nursing-home/orders/"+order.ID, nil, outsider)
	expectStatus(t, resp, http.StatusForbidden, response.ErrForbidden)

	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/nursing-home/orders?facility_id="+srv.facilityID.String(), nil, outsider)
	expectStatus(t, resp, http.StatusForbidden, response.ErrForbidden)

	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/nursing-home/orders", nil, outsider)
	listed := expectStatus(t, resp, http.StatusOK, response.CodeSuccess)
	if listed.Pagination == nil || listed.Pagination.Total != 0 {
		t.Fatalf("expected no orders for other facility, got %+v", listed.Pagination)
	}

	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/nursing-home/orders?status=draft", nil, staff)
	listed = expectStatus(t, resp, http.StatusOK, response.CodeSuccess)
	if listed.Pagination == nil || listed.Pagination.Total != 1 {
		t.Fatalf("expected one draft, got %+v", listed.Pagination)
	}

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders", map[string]any{
		"facility_id":      srv.facilityID.String(),
		"week_start_date":  "2025-03-03",
		"week_end_date":    "2025-03-09",
		"resident_meals":   sampleResidentPayload(),
		"delivery_address": "12 Elm St",
	}, outsider)
	expectStatus(t, resp, http.StatusForbidden, response.ErrForbidden)
}

func TestNursingHomeOrder_RejectsBadDates(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)

	resp := performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders", map[string]any{
		"week_start_date":  "03/03/2025",
		"week_end_date":    "2025-03-09",
		"delivery_address": "12 Elm St",
	}, staff)
	expectStatus(t, resp, http.StatusBadRequest, response.ErrInvalidRequest)

	resp = performJSONRequest(t, srv.router, http.MethodPost, "/api/v1/nursing-home/orders", map[string]any{
		"week_start_date":  "2025-03-09",
		"week_end_date":    "2025-03-03",
		"delivery_address": "12 Elm St",
	}, staff)
	expectStatus(t, resp, http.StatusUnprocessableEntity, response.ErrValidationFailed)
}

func TestAuditRoutes_AdminOnly(t *testing.T) {
	srv := setupTestServer(t, nil)
	staff := srv.token(t, model.UserRoleFacilityStaff, &srv.facilityID)
	createTestOrder(t, srv, staff)

	resp := performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/audit", nil, staff)
	expectStatus(t, resp, http.StatusForbidden, response.ErrForbidden)

	admin := srv.token(t, model.UserRoleAdmin, nil)
	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/audit?resource_type=nursing_home_order", nil, admin)
	listed := expectStatus(t, resp, http.StatusOK, response.CodeSuccess)

	var data struct {
		Items []model.AuditLog `json:"items"`
	}
	decodeData(t, listed, &data)
	if len(data.Items) != 1 || data.Items[0].Action != "nursing_home_order.create" {
		t.Fatalf("unexpected audit entries: %+v", data.Items)
	}

	resp = performJSONRequest(t, srv.router, http.MethodGet, "/api/v1/audit?resource_type=user", nil, admin)
	expectStatus(t, resp, http.StatusUnprocessableEntity, response.ErrValidationFailed)
}
