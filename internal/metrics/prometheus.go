package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
)

var (
	GiftCardsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mkd_gift_cards_issued_total",
		Help: "Total gift cards issued",
	})

	GiftCardIssuedValue = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mkd_gift_card_issued_value_total",
		Help: "Total face value of issued gift cards",
	})

	GiftCardDeductions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkd_gift_card_deductions_total",
		Help: "Gift card deductions by outcome",
	}, []string{"outcome"})

	GiftCardOutstandingBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mkd_gift_card_outstanding_balance",
		Help: "Sum of balances across active gift cards",
	})

	GiftCardsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mkd_gift_cards_active",
		Help: "Current number of active gift cards",
	})

	OrderTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkd_nursing_home_order_transitions_total",
		Help: "Nursing home order transitions by target status",
	}, []string{"status"})

	OverdueDraftOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "mkd_nursing_home_overdue_drafts",
		Help: "Draft nursing home orders whose deadline has passed",
	})

	SettlementDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mkd_settlement_duration_seconds",
		Help:    "Time to settle one batch of paid orders",
		Buckets: prometheus.DefBuckets,
	})

	SettlementErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mkd_settlement_errors_total",
		Help: "Settlement step failures by step",
	}, []string{"step"})
)

func ObserveGiftCardIssued(amount decimal.Decimal) {
	GiftCardsIssued.Inc()
	if value := amount.InexactFloat64(); value > 0 {
		GiftCardIssuedValue.Add(value)
	}
}

func IncGiftCardDeduction(outcome string) {
	label := strings.TrimSpace(outcome)
	if label == "" {
		label = "unknown"
	}
	GiftCardDeductions.WithLabelValues(label).Inc()
}

func SetGiftCardLiability(active int64, outstanding decimal.Decimal) {
	if active < 0 {
		active = 0
	}
	GiftCardsActive.Set(float64(active))
	GiftCardOutstandingBalance.Set(outstanding.InexactFloat64())
}

func IncOrderTransition(status string) {
	label := strings.TrimSpace(status)
	if label == "" {
		label = "unknown"
	}
	OrderTransitions.WithLabelValues(label).Inc()
}

func SetOverdueDraftOrders(count int64) {
	if count < 0 {
		count = 0
	}
	OverdueDraftOrders.Set(float64(count))
}

func ObserveSettlementDuration(duration time.Duration) {
	SettlementDuration.Observe(duration.Seconds())
}

func IncSettlementError(step string) {
	label := strings.TrimSpace(step)
	if label == "" {
		label = "unknown"
	}
	SettlementErrors.WithLabelValues(label).Inc()
}
