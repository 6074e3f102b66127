package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/wglickman33/mykosherdelivery-sub000/internal/metrics"
	"github.com/wglickman33/mykosherdelivery-sub000/internal/service"
	"github.com/wglickman33/mykosherdelivery-sub000/pkg/money"
)

const jobTimeout = time.Minute

// LedgerJob refreshes the outstanding gift card liability gauges.
type LedgerJob struct {
	giftCardService *service.GiftCardService
	logger          *zap.Logger
}

func NewLedgerJob(giftCardService *service.GiftCardService, logger *zap.Logger) *LedgerJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &LedgerJob{
		giftCardService: giftCardService,
		logger:          logger,
	}
}

func (j *LedgerJob) RefreshLiability() {
	if j == nil || j.giftCardService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	stats, err := j.giftCardService.Stats(ctx)
	if err != nil {
		j.logger.Warn("gift card liability refresh failed", zap.Error(err))
		return
	}

	metrics.SetGiftCardLiability(stats.ActiveCount, stats.OutstandingBalance)
	j.logger.Debug("gift card liability refreshed",
		zap.Int64("active", stats.ActiveCount),
		zap.String("outstanding", money.Format(stats.OutstandingBalance)),
	)
}

type OrderJob struct {
	orderService *service.NursingHomeOrderService
	logger       *zap.Logger
}

func NewOrderJob(orderService *service.NursingHomeOrderService, logger *zap.Logger) *OrderJob {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &OrderJob{
		orderService: orderService,
		logger:       logger,
	}
}

// CountOverdueDrafts publishes how many drafts missed their deadline. Those
// orders stay drafts; nothing is cancelled automatically.
func (j *OrderJob) CountOverdueDrafts() {
	if j == nil || j.orderService == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	count, err := j.orderService.CountOverdueDrafts(ctx)
	if err != nil {
		j.logger.Warn("overdue draft count failed", zap.Error(err))
		return
	}

	metrics.SetOverdueDraftOrders(count)
	if count > 0 {
		j.logger.Info("draft orders past deadline", zap.Int64("count", count))
	}
}
