package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/repository/memory"
)

type testServices struct {
	store      *memory.Store
	bus        *event.Bus
	giftCards  *GiftCardService
	orders     *NursingHomeOrderService
	settlement *SettlementService
	clock      *testClock
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	store, err := memory.NewStore()
	if err != nil {
		t.Fatalf("create memory store: %v", err)
	}

	bus := event.NewBus(nil)
	codes := NewCodeGenerator()
	clock := &testClock{now: time.Date(2025, 2, 26, 9, 0, 0, 0, time.UTC)}

	giftCards := NewGiftCardService(store.GiftCards(), store.AuditLogs(), codes, bus, nil)
	orders := NewNursingHomeOrderService(store.NursingHomeOrders(), store.AuditLogs(), codes, bus, nil)
	orders.SetClock(clock.Now)

	return &testServices{
		store:      store,
		bus:        bus,
		giftCards:  giftCards,
		orders:     orders,
		settlement: NewSettlementService(giftCards, bus, nil),
		clock:      clock,
	}
}

func dec(t *testing.T, raw string) decimal.Decimal {
	t.Helper()
	value, err := decimal.NewFromString(raw)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", raw, err)
	}
	return value
}

func assertAmount(t *testing.T, got decimal.Decimal, want string) {
	t.Helper()
	if got.StringFixed(2) != want {
		t.Fatalf("expected amount %s, got %s", want, got.StringFixed(2))
	}
}

func facilityActor(role model.UserRole, facilityID uuid.UUID) model.Actor {
	return model.NewActor(uuid.New(), role, &facilityID)
}

func sampleResidents() []model.ResidentMeals {
	return []model.ResidentMeals{{
		ResidentID:   "res-1",
		ResidentName: "Miriam Cohen",
		RoomNumber:   "204",
		Meals: []model.Meal{
			{Day: "monday", MealType: model.MealTypeBreakfast, Items: []model.MealItem{{Name: "Oatmeal"}}},
			{Day: "monday", MealType: model.MealTypeLunch, Items: []model.MealItem{{Name: "Chicken soup", Quantity: 1}}},
		},
	}}
}
