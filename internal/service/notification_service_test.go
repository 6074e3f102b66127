package service

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
)

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []Notification
}

func (d *recordingDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, n)
	return nil
}

func (d *recordingDispatcher) snapshot() []Notification {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Notification(nil), d.sent...)
}

func TestNotificationService_RendersEveryTemplate(t *testing.T) {
	t.Parallel()

	svc := NewNotificationService(nil, nil)
	for name := range notificationTemplateFiles {
		body, err := svc.Render(name, map[string]string{
			"code":         "MKD-ABCDEFGH",
			"amount":       "25.00",
			"order_number": "NH-20250303-ABCDEF",
			"facility_id":  "f-1",
			"timestamp":    "2025-03-01T10:00:00Z",
			"order_id":     "o-1",
			"issued_codes": "MKD-ABCDEFGH",
		})
		if err != nil {
			t.Fatalf("Render(%s) returned error: %v", name, err)
		}
		if strings.TrimSpace(body) == "" {
			t.Fatalf("Render(%s) produced an empty body", name)
		}
	}

	if _, err := svc.Render("unknown", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestNotificationService_DispatchesIssuedCodes(t *testing.T) {
	t.Parallel()

	bus := event.NewBus(nil)
	dispatcher := &recordingDispatcher{}
	NewNotificationService(dispatcher, nil).Subscribe(bus)

	bus.Publish(event.EventGiftCardIssued, event.GiftCardIssuedPayload{
		Code:           "MKD-ABCDEFGH",
		Amount:         "25.00",
		RecipientEmail: "friend@example.com",
	})
	bus.Publish(event.EventGiftCardIssued, event.GiftCardIssuedPayload{Code: "MKD-NOBODY22", Amount: "5.00"})
	bus.Publish(event.EventNursingHomeOrderSubmit, event.OrderTransitionPayload{
		OrderNumber: "NH-20250303-ABCDEF",
		FacilityID:  "f-1",
		Timestamp:   time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
	})
	bus.Wait()

	sent := dispatcher.snapshot()
	if len(sent) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(sent))
	}

	var giftCard, submitted *Notification
	for i := range sent {
		switch sent[i].Template {
		case NotificationGiftCardIssued:
			giftCard = &sent[i]
		case NotificationOrderSubmitted:
			submitted = &sent[i]
		}
	}
	if giftCard == nil || giftCard.Recipient != "friend@example.com" || !strings.Contains(giftCard.Body, "MKD-ABCDEFGH") {
		t.Fatalf("unexpected gift card notification: %+v", giftCard)
	}
	if submitted == nil || submitted.Recipient != "facility:f-1" || !strings.Contains(submitted.Body, "NH-20250303-ABCDEF") {
		t.Fatalf("unexpected order notification: %+v", submitted)
	}
}
