package internalapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/response"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository/memory"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
)

const testInternalToken = "settle-secret"

type settleAPIResponse struct {
	Code int `json:"code"`
	Data struct {
		Results   []settlementResultView `json:"results"`
		Processed int                    `json:"processed"`
	} `json:"data"`
}

func setupSettlementRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := memory.NewStore()
	if err != nil {
		t.Fatalf("create memory store: %v", err)
	}
	bus := event.NewBus(nil)
	giftCards := service.NewGiftCardService(store.GiftCards(), store.AuditLogs(), service.NewCodeGenerator(), bus, nil)

	router := gin.New()
	RegisterSettlementInternalRoutes(router, service.NewSettlementService(giftCards, bus, nil), testInternalToken)
	return router
}

func postSettle(t *testing.T, router http.Handler, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/internal/payments/settle", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Internal-Token", token)
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func paidOrderPayload(orderID uuid.UUID) map[string]any {
	return map[string]any{
		"orders": []map[string]any{{
			"id": orderID.String(),
			"items": []map[string]any{
				{"product_id": "gift-card-25", "name": "Gift Card", "quantity": 2, "line_total": "50.00"},
				{"product_id": "challah", "name": "Challah", "quantity": 1, "line_total": "8.50"},
			},
		}},
	}
}

func TestSettle_RequiresInternalToken(t *testing.T) {
	router := setupSettlementRouter(t)

	resp := postSettle(t, router, paidOrderPayload(uuid.New()), "")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}

	resp = postSettle(t, router, paidOrderPayload(uuid.New()), "wrong")
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected status 401, got %d", resp.Code)
	}
}

func TestSettle_IssuesPurchasedCardsOnce(t *testing.T) {
	router := setupSettlementRouter(t)
	orderID := uuid.New()

	resp := postSettle(t, router, paidOrderPayload(orderID), testInternalToken)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var first settleAPIResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if first.Code != response.CodeSuccess || len(first.Data.Results) != 1 {
		t.Fatalf("unexpected response: %+v", first)
	}
	result := first.Data.Results[0]
	if len(result.IssuedCards) != 2 || result.Replayed {
		t.Fatalf("expected two fresh cards, got %+v", result)
	}
	for _, card := range result.IssuedCards {
		if card.InitialBalance != "25.00" {
			t.Fatalf("expected 25.00 per card, got %s", card.InitialBalance)
		}
	}

	resp = postSettle(t, router, paidOrderPayload(orderID), testInternalToken)
	var replay settleAPIResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &replay); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	again := replay.Data.Results[0]
	if !again.Replayed || len(again.IssuedCards) != 2 {
		t.Fatalf("expected replay with the same two cards, got %+v", again)
	}
	codes := map[string]bool{}
	for _, card := range result.IssuedCards {
		codes[card.Code] = true
	}
	for _, card := range again.IssuedCards {
		if !codes[card.Code] {
			t.Fatalf("replay returned unexpected card %s", card.Code)
		}
	}
}

func TestSettle_RejectsEmptyBatch(t *testing.T) {
	router := setupSettlementRouter(t)

	resp := postSettle(t, router, map[string]any{"orders": []any{}}, testInternalToken)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
