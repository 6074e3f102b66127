package event

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	EventGiftCardIssued           = "gift_card.issued"
	EventGiftCardRedeemed         = "gift_card.redeemed"
	EventNursingHomeOrderSubmit   = "nursing_home_order.submitted"
	EventNursingHomeOrderCancel   = "nursing_home_order.cancelled"
	EventPaymentSettlementSettled = "payment.settled"
)

type GiftCardIssuedPayload struct {
	GiftCardID     string    `json:"gift_card_id"`
	Code           string    `json:"code"`
	Amount         string    `json:"amount"`
	OrderID        string    `json:"order_id,omitempty"`
	PurchasedBy    string    `json:"purchased_by,omitempty"`
	RecipientEmail string    `json:"recipient_email,omitempty"`
	IssuedAt       time.Time `json:"issued_at"`
}

type GiftCardRedeemedPayload struct {
	GiftCardID string `json:"gift_card_id"`
	Amount     string `json:"amount"`
	Balance    string `json:"balance"`
	OrderID    string `json:"order_id,omitempty"`
}

type OrderTransitionPayload struct {
	OrderID     string    `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	FacilityID  string    `json:"facility_id"`
	ActorID     string    `json:"actor_id"`
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
}

type SettlementPayload struct {
	OrderID     string   `json:"order_id"`
	IssuedCodes []string `json:"issued_codes"`
	Replayed    bool     `json:"replayed"`
}

// Bus fans published payloads out to subscribers on their own goroutines.
type Bus struct {
	handlers sync.Map
	mu       sync.Mutex
	inflight sync.WaitGroup
	logger   *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

func (b *Bus) Subscribe(event string, handler func(payload any)) {
	if b == nil || handler == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	if eventName == "" {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	handlers := make([]func(payload any), 0, 1)
	if current, ok := b.handlers.Load(eventName); ok {
		if casted, valid := current.([]func(payload any)); valid {
			handlers = append(handlers, casted...)
		}
	}
	handlers = append(handlers, handler)
	b.handlers.Store(eventName, handlers)
}

func (b *Bus) Publish(event string, payload any) {
	if b == nil {
		return
	}

	eventName := strings.TrimSpace(event)
	current, ok := b.handlers.Load(eventName)
	if !ok {
		return
	}

	handlers, ok := current.([]func(payload any))
	if !ok {
		return
	}

	for _, handler := range handlers {
		if handler == nil {
			continue
		}
		b.inflight.Add(1)
		go b.dispatch(eventName, handler, payload)
	}
}

// Wait blocks until every handler started by Publish has returned.
func (b *Bus) Wait() {
	if b == nil {
		return
	}
	b.inflight.Wait()
}

func (b *Bus) dispatch(eventName string, handler func(payload any), payload any) {
	defer b.inflight.Done()
	defer func() {
		if recovered := recover(); recovered != nil {
			b.logger.Error("event handler panic recovered",
				zap.String("event", eventName),
				zap.Any("panic", recovered),
			)
		}
	}()
	handler(payload)
}
