package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/model"
)

var featureErrors = map[string]error{
	"AlreadySubmitted":    ErrAlreadySubmitted,
	"DeadlinePassed":      ErrDeadlinePassed,
	"EditWindowClosed":    ErrEditWindowClosed,
	"OrderLocked":         ErrOrderLocked,
	"Forbidden":           ErrForbidden,
	"InsufficientBalance": ErrInsufficientBalance,
	"NotActive":           ErrGiftCardNotActive,
	"NotFound":            ErrGiftCardNotFound,
}

type featureContext struct {
	t        *testing.T
	svcs     *testServices
	facility uuid.UUID
	actors   map[string]model.Actor
	order    *model.NursingHomeOrder
	card     *model.GiftCard
	paid     *model.PaidOrder
	settled  []model.SettlementResult
	err      error
}

func (c *featureContext) reset() {
	c.svcs = newTestServices(c.t)
	c.facility = uuid.New()
	c.actors = map[string]model.Actor{
		"creator":        facilityActor(model.UserRoleFacilityStaff, c.facility),
		"colleague":      facilityActor(model.UserRoleFacilityStaff, c.facility),
		"facility admin": facilityActor(model.UserRoleFacilityAdmin, c.facility),
		"platform admin": model.NewActor(uuid.New(), model.UserRoleAdmin, nil),
	}
	c.order = nil
	c.card = nil
	c.paid = nil
	c.settled = nil
	c.err = nil
}

func (c *featureContext) theCurrentTimeIs(raw string) error {
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	c.svcs.clock.now = at
	return nil
}

func (c *featureContext) aDraftOrderForTheWeekStarting(raw string, breakfasts, lunches int) error {
	weekStart, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return err
	}

	meals := make([]model.Meal, 0, breakfasts+lunches)
	for i := 0; i < breakfasts; i++ {
		meals = append(meals, model.Meal{Day: "monday", MealType: model.MealTypeBreakfast, Items: []model.MealItem{{Name: "Eggs"}}})
	}
	for i := 0; i < lunches; i++ {
		meals = append(meals, model.Meal{Day: "monday", MealType: model.MealTypeLunch, Items: []model.MealItem{{Name: "Soup"}}})
	}

	c.order, err = c.svcs.orders.Create(context.Background(), c.actors["creator"], CreateNursingHomeOrderInput{
		FacilityID:      c.facility,
		WeekStartDate:   weekStart,
		WeekEndDate:     weekStart.AddDate(0, 0, 6),
		ResidentMeals:   []model.ResidentMeals{{ResidentID: "r1", ResidentName: "Ruth", RoomNumber: "12", Meals: meals}},
		DeliveryAddress: "1 Ocean Pkwy",
	})
	return err
}

func (c *featureContext) actor(name string) (model.Actor, error) {
	actor, ok := c.actors[name]
	if !ok {
		return model.Actor{}, fmt.Errorf("unknown actor %q", name)
	}
	return actor, nil
}

func (c *featureContext) actorActsOnOrder(name, action string) error {
	actor, err := c.actor(name)
	if err != nil {
		return err
	}

	var updated *model.NursingHomeOrder
	switch action {
	case "submits":
		updated, c.err = c.svcs.orders.Submit(context.Background(), actor, c.order.ID)
	case "cancels":
		updated, c.err = c.svcs.orders.Cancel(context.Background(), actor, c.order.ID)
	default:
		return fmt.Errorf("unknown action %q", action)
	}
	if c.err == nil {
		c.order = updated
	}
	return nil
}

func (c *featureContext) actorChangesDeliveryAddress(name, address string) error {
	actor, err := c.actor(name)
	if err != nil {
		return err
	}
	updated, err := c.svcs.orders.Update(context.Background(), actor, c.order.ID, NursingHomeOrderPatch{DeliveryAddress: &address})
	c.err = err
	if err == nil {
		c.order = updated
	}
	return nil
}

func (c *featureContext) theRequestSucceeds() error {
	if c.err != nil {
		return fmt.Errorf("expected success, got %w", c.err)
	}
	return nil
}

func (c *featureContext) theRequestFailsWith(kind string) error {
	want, ok := featureErrors[kind]
	if !ok {
		return fmt.Errorf("unknown error kind %q", kind)
	}
	if !errors.Is(c.err, want) {
		return fmt.Errorf("expected %v, got %v", want, c.err)
	}
	return nil
}

func (c *featureContext) theOrderStatusIs(status string) error {
	current, err := c.svcs.orders.Get(context.Background(), c.actors["platform admin"], c.order.ID)
	if err != nil {
		return err
	}
	if string(current.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, current.Status)
	}
	return nil
}

func (c *featureContext) theOrderTotalsAre(meals int, subtotal, tax, total string) error {
	if c.order.TotalMeals != meals {
		return fmt.Errorf("expected %d meals, got %d", meals, c.order.TotalMeals)
	}
	got := []string{c.order.Subtotal.StringFixed(2), c.order.Tax.StringFixed(2), c.order.Total.StringFixed(2)}
	want := []string{subtotal, tax, total}
	for i := range want {
		if got[i] != want[i] {
			return fmt.Errorf("expected totals %v, got %v", want, got)
		}
	}
	return nil
}

func (c *featureContext) theOrderDeadlineIs(raw string) error {
	want, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return err
	}
	if !c.order.Deadline.Equal(want) {
		return fmt.Errorf("expected deadline %s, got %s", want, c.order.Deadline)
	}
	return nil
}

func (c *featureContext) aGiftCardWorth(amount string) error {
	value, err := parseFeatureAmount(amount)
	if err != nil {
		return err
	}
	c.card, err = c.svcs.giftCards.Issue(context.Background(), IssueGiftCardInput{InitialBalance: value})
	return err
}

func (c *featureContext) iDeductFromTheGiftCard(amount string) error {
	value, err := parseFeatureAmount(amount)
	if err != nil {
		return err
	}
	_, c.err = c.svcs.giftCards.Deduct(context.Background(), c.card.ID, value)
	return nil
}

func (c *featureContext) theGiftCardBalanceIs(amount string) error {
	card, err := c.svcs.giftCards.Get(context.Background(), c.card.ID)
	if err != nil {
		return err
	}
	if card.Balance.StringFixed(2) != amount {
		return fmt.Errorf("expected balance %s, got %s", amount, card.Balance.StringFixed(2))
	}
	return nil
}

func (c *featureContext) theGiftCardStatusIs(status string) error {
	card, err := c.svcs.giftCards.Get(context.Background(), c.card.ID)
	if err != nil {
		return err
	}
	if string(card.Status) != status {
		return fmt.Errorf("expected status %s, got %s", status, card.Status)
	}
	return nil
}

func (c *featureContext) aPaidOrderBuyingGiftCards(quantity int, total string) error {
	value, err := parseFeatureAmount(total)
	if err != nil {
		return err
	}
	buyer := uuid.New()
	c.paid = &model.PaidOrder{
		ID:     uuid.New(),
		UserID: &buyer,
		Items: []model.OrderLineItem{{
			ProductID: "gift-card",
			Name:      "Gift Card",
			Quantity:  quantity,
			LineTotal: value,
		}},
	}
	return nil
}

func (c *featureContext) theOrderIsSettled() error {
	var err error
	c.settled, err = c.svcs.settlement.Settle(context.Background(), []model.PaidOrder{*c.paid})
	return err
}

func (c *featureContext) giftCardsWorthAreIssued(count int, amount string) error {
	if len(c.settled) != 1 {
		return fmt.Errorf("expected one settlement result, got %d", len(c.settled))
	}
	cards := c.settled[0].IssuedCards
	if len(cards) != count {
		return fmt.Errorf("expected %d cards, got %d", count, len(cards))
	}
	for _, card := range cards {
		if card.InitialBalance.StringFixed(2) != amount {
			return fmt.Errorf("expected card worth %s, got %s", amount, card.InitialBalance.StringFixed(2))
		}
	}
	return nil
}

func parseFeatureAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(raw)
}

func initializeScenario(t *testing.T) func(*godog.ScenarioContext) {
	return func(ctx *godog.ScenarioContext) {
		fc := &featureContext{t: t}

		ctx.Before(func(ctx context.Context, _ *godog.Scenario) (context.Context, error) {
			fc.reset()
			return ctx, nil
		})

		ctx.Step(`^the current time is "([^"]*)"$`, fc.theCurrentTimeIs)
		ctx.Step(`^the clock moves to "([^"]*)"$`, fc.theCurrentTimeIs)
		ctx.Step(`^a draft order for the week starting "([^"]*)" with (\d+) breakfasts? and (\d+) lunch(?:es)?$`, fc.aDraftOrderForTheWeekStarting)
		ctx.Step(`^the (creator|colleague|facility admin|platform admin) (submits|cancels) the order$`, fc.actorActsOnOrder)
		ctx.Step(`^the (creator|colleague|facility admin|platform admin) changes the delivery address to "([^"]*)"$`, fc.actorChangesDeliveryAddress)
		ctx.Step(`^the request succeeds$`, fc.theRequestSucceeds)
		ctx.Step(`^the request fails with "([^"]*)"$`, fc.theRequestFailsWith)
		ctx.Step(`^the order status is "([^"]*)"$`, fc.theOrderStatusIs)
		ctx.Step(`^the order totals are (\d+) meals?, subtotal "([^"]*)", tax "([^"]*)", total "([^"]*)"$`, fc.theOrderTotalsAre)
		ctx.Step(`^the order deadline is "([^"]*)"$`, fc.theOrderDeadlineIs)

		ctx.Step(`^a gift card worth "([^"]*)"$`, fc.aGiftCardWorth)
		ctx.Step(`^I deduct "([^"]*)" from the gift card$`, fc.iDeductFromTheGiftCard)
		ctx.Step(`^the gift card balance is "([^"]*)"$`, fc.theGiftCardBalanceIs)
		ctx.Step(`^the gift card status is "([^"]*)"$`, fc.theGiftCardStatusIs)
		ctx.Step(`^a paid order buying (\d+) gift cards for "([^"]*)"$`, fc.aPaidOrderBuyingGiftCards)
		ctx.Step(`^the order is settled$`, fc.theOrderIsSettled)
		ctx.Step(`^(\d+) gift cards worth "([^"]*)" are issued$`, fc.giftCardsWorthAreIssued)
	}
}

func TestFeatures(t *testing.T) {
	suite := godog.TestSuite{
		ScenarioInitializer: initializeScenario(t),
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../../features"},
			TestingT: t,
			Strict:   true,
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
