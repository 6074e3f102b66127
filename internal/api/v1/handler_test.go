package v1

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/api/middleware"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository/memory"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	jwtutil "github.com/wglickman33/mykosherdelivery-sub000/pkg/jwt"
)

type apiResponse struct {
	Code       int             `json:"code"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
	Pagination *struct {
		Page     int   `json:"page"`
		PageSize int   `json:"page_size"`
		Total    int64 `json:"total"`
	} `json:"pagination"`
}

type testServer struct {
	router     *gin.Engine
	key        *rsa.PrivateKey
	giftCards  *service.GiftCardService
	orders     *service.NursingHomeOrderService
	now        time.Time
	facilityID uuid.UUID
}

func setupTestServer(t *testing.T, limiter *middleware.KeyedLimiter) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := memory.NewStore()
	if err != nil {
		t.Fatalf("create memory store: %v", err)
	}
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate rsa key: %v", err)
	}

	srv := &testServer{
		key:        key,
		now:        time.Date(2025, 2, 26, 9, 0, 0, 0, time.UTC),
		facilityID: uuid.New(),
	}

	bus := event.NewBus(nil)
	codes := service.NewCodeGenerator()
	srv.giftCards = service.NewGiftCardService(store.GiftCards(), store.AuditLogs(), codes, bus, nil)
	srv.orders = service.NewNursingHomeOrderService(store.NursingHomeOrders(), store.AuditLogs(), codes, bus, nil)
	srv.orders.SetClock(func() time.Time { return srv.now })

	if limiter == nil {
		limiter = middleware.NewKeyedLimiter(1000, 1000)
	}

	router := gin.New()
	group := router.Group("/api/v1")
	auth := middleware.JWTAuth(&key.PublicKey)
	RegisterGiftCardRoutes(group, auth, srv.giftCards, limiter)
	RegisterNursingHomeRoutes(group, auth, srv.orders)
	RegisterAuditRoutes(group, auth, service.NewAuditService(store.AuditLogs()))
	srv.router = router

	return srv
}

func (s *testServer) token(t *testing.T, role model.UserRole, facilityID *uuid.UUID) string {
	t.Helper()

	facility := ""
	if facilityID != nil {
		facility = facilityID.String()
	}
	token, err := jwtutil.GenerateAccessToken(jwtutil.NewClaims(uuid.NewString(), string(role), facility, time.Hour), s.key)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func performJSONRequest(
	t *testing.T,
	router http.Handler,
	method string,
	path string,
	payload map[string]any,
	token string,
) *httptest.ResponseRecorder {
	t.Helper()

	var bodyBytes []byte
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		bodyBytes = raw
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(bodyBytes))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeAPIResponse(t *testing.T, raw []byte) apiResponse {
	t.Helper()

	var resp apiResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return resp
}

func decodeData(t *testing.T, resp apiResponse, out any) {
	t.Helper()

	if err := json.Unmarshal(resp.Data, out); err != nil {
		t.Fatalf("decode response data: %v", err)
	}
}

func expectStatus(t *testing.T, resp *httptest.ResponseRecorder, status, appCode int) apiResponse {
	t.Helper()

	if resp.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, resp.Code, resp.Body.String())
	}
	decoded := decodeAPIResponse(t, resp.Body.Bytes())
	if decoded.Code != appCode {
		t.Fatalf("expected app code %d, got %d (%s)", appCode, decoded.Code, decoded.Message)
	}
	return decoded
}

func sampleResidentPayload() []map[string]any {
	return []map[string]any{{
		"resident_id":   "res-1",
		"resident_name": "Miriam Cohen",
		"room_number":   "204",
		"meals": []map[string]any{
			{"day": "monday", "meal_type": "breakfast", "items": []map[string]any{{"name": "Oatmeal"}}},
			{"day": "monday", "meal_type": "lunch", "items": []map[string]any{{"name": "Chicken soup", "quantity": 1}}},
		},
	}}
}
