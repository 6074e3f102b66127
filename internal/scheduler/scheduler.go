package scheduler

import (
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	specLiabilityRefresh = "0 */5 * * * *"
	specOverdueDrafts    = "30 */5 * * * *"
)

type LedgerTask interface {
	RefreshLiability()
}

type OrderTask interface {
	CountOverdueDrafts()
}

type Deps struct {
	LedgerJob LedgerTask
	OrderJob  OrderTask
}

// NewScheduler registers reporting jobs only; none of them change ledger or order state.
func NewScheduler(deps Deps, logger *zap.Logger) *cron.Cron {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))

	if deps.LedgerJob != nil {
		addFunc(c, specLiabilityRefresh, "gift_card.refresh_liability", logger, deps.LedgerJob.RefreshLiability)
	}
	if deps.OrderJob != nil {
		addFunc(c, specOverdueDrafts, "nursing_home_order.count_overdue_drafts", logger, deps.OrderJob.CountOverdueDrafts)
	}

	return c
}

func addFunc(c *cron.Cron, spec string, name string, logger *zap.Logger, fn func()) {
	if c == nil || fn == nil {
		return
	}

	if _, err := c.AddFunc(spec, func() {
		defer recoverJobPanic(name, logger)
		start := time.Now()
		fn()
		logger.Debug("scheduler job finished", zap.String("job", name), zap.Duration("cost", time.Since(start)))
	}); err != nil {
		logger.Error("register scheduler job failed",
			zap.String("job", name),
			zap.String("spec", spec),
			zap.Error(err),
		)
	}
}

func recoverJobPanic(jobName string, logger *zap.Logger) {
	if logger == nil {
		return
	}

	if recovered := recover(); recovered != nil {
		logger.Error("scheduler job panic recovered",
			zap.String("job", jobName),
			zap.Any("panic", recovered),
		)
	}
}
