package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"text/template"
	"time"

	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/event"
	tplfs "github.com/wglickman33/mykosherdelivery-sub000/templates"
)

type NotificationTemplate string

const (
	NotificationGiftCardIssued      NotificationTemplate = "gift_card_issued"
	NotificationOrderSubmitted      NotificationTemplate = "order_submitted"
	NotificationOrderCancelled      NotificationTemplate = "order_cancelled"
	NotificationSettlementCompleted NotificationTemplate = "settlement_completed"
)

var notificationTemplateFiles = map[NotificationTemplate]string{
	NotificationGiftCardIssued:      "notifications/gift_card_issued.tmpl",
	NotificationOrderSubmitted:      "notifications/order_submitted.tmpl",
	NotificationOrderCancelled:      "notifications/order_cancelled.tmpl",
	NotificationSettlementCompleted: "notifications/settlement_completed.tmpl",
}

// Notification is a rendered message ready for an external delivery channel.
type Notification struct {
	Template  NotificationTemplate
	Recipient string
	Body      string
}

// Dispatcher delivers rendered notifications. Delivery itself lives outside
// this service; the default dispatcher only logs the hand-off.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) error
}

type logDispatcher struct {
	logger *zap.Logger
}

func (d logDispatcher) Dispatch(_ context.Context, n Notification) error {
	d.logger.Info("notification handed off",
		zap.String("template", string(n.Template)),
		zap.String("recipient", n.Recipient),
		zap.Int("body_bytes", len(n.Body)),
	)
	return nil
}

type NotificationService struct {
	dispatcher Dispatcher
	logger     *zap.Logger
	timeout    time.Duration
	templateMu sync.RWMutex
	templates  map[NotificationTemplate]*template.Template
}

func NewNotificationService(dispatcher Dispatcher, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dispatcher == nil {
		dispatcher = logDispatcher{logger: logger}
	}

	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		timeout:    10 * time.Second,
		templates:  make(map[NotificationTemplate]*template.Template),
	}
}

// Subscribe wires the service to the events that produce customer or facility messages.
func (s *NotificationService) Subscribe(bus *event.Bus) {
	if bus == nil {
		return
	}

	bus.Subscribe(event.EventGiftCardIssued, func(payload any) {
		p, ok := payload.(event.GiftCardIssuedPayload)
		if !ok || (p.RecipientEmail == "" && p.PurchasedBy == "") {
			return
		}
		recipient := p.RecipientEmail
		if recipient == "" {
			recipient = "user:" + p.PurchasedBy
		}
		s.send(recipient, NotificationGiftCardIssued, map[string]string{
			"code":     p.Code,
			"amount":   p.Amount,
			"order_id": p.OrderID,
		})
	})

	orderHandler := func(name NotificationTemplate) func(payload any) {
		return func(payload any) {
			p, ok := payload.(event.OrderTransitionPayload)
			if !ok {
				return
			}
			s.send("facility:"+p.FacilityID, name, map[string]string{
				"order_number": p.OrderNumber,
				"facility_id":  p.FacilityID,
				"timestamp":    p.Timestamp.UTC().Format(time.RFC3339),
			})
		}
	}
	bus.Subscribe(event.EventNursingHomeOrderSubmit, orderHandler(NotificationOrderSubmitted))
	bus.Subscribe(event.EventNursingHomeOrderCancel, orderHandler(NotificationOrderCancelled))

	bus.Subscribe(event.EventPaymentSettlementSettled, func(payload any) {
		p, ok := payload.(event.SettlementPayload)
		if !ok || p.Replayed || len(p.IssuedCodes) == 0 {
			return
		}
		s.send("ops", NotificationSettlementCompleted, map[string]string{
			"order_id":     p.OrderID,
			"issued_codes": strings.Join(p.IssuedCodes, ", "),
		})
	})
}

func (s *NotificationService) Render(name NotificationTemplate, vars map[string]string) (string, error) {
	tpl, err := s.loadTemplate(name)
	if err != nil {
		return "", err
	}

	buf := bytes.NewBuffer(nil)
	if err := tpl.Execute(buf, cloneStringMap(vars)); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (s *NotificationService) send(recipient string, name NotificationTemplate, vars map[string]string) {
	body, err := s.Render(name, vars)
	if err != nil {
		s.logger.Error("render notification failed", zap.String("template", string(name)), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if err := s.dispatcher.Dispatch(ctx, Notification{
		Template:  name,
		Recipient: recipient,
		Body:      body,
	}); err != nil {
		s.logger.Warn("dispatch notification failed",
			zap.String("template", string(name)),
			zap.String("recipient", recipient),
			zap.Error(err),
		)
	}
}

func (s *NotificationService) loadTemplate(name NotificationTemplate) (*template.Template, error) {
	s.templateMu.RLock()
	if tpl, ok := s.templates[name]; ok {
		s.templateMu.RUnlock()
		return tpl, nil
	}
	s.templateMu.RUnlock()

	file, ok := notificationTemplateFiles[name]
	if !ok {
		return nil, fmt.Errorf("notification template not found: %s", name)
	}

	raw, err := tplfs.NotificationTemplateFS.ReadFile(file)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, errors.New("notification template is empty: " + file)
	}

	tpl, err := template.New(file).Option("missingkey=zero").Parse(string(raw))
	if err != nil {
		return nil, err
	}

	s.templateMu.Lock()
	s.templates[name] = tpl
	s.templateMu.Unlock()
	return tpl, nil
}

func cloneStringMap(in map[string]string) map[string]string {
	if len(in) == 0 {
		return make(map[string]string)
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
