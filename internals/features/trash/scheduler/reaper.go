package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"campusmap_backend/internals/features/trash/service"
	"campusmap_backend/internals/logger"
)

// StartTrashReaper schedules permanent deletion of ledger entries older than
// retention. The returned cron must be stopped on shutdown.
func StartTrashReaper(svc *service.TrashService, schedule string, retention time.Duration) (*cron.Cron, error) {
	log := logger.App()

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	_, err := c.AddFunc(schedule, func() {
		if _, err := RunReaper(context.Background(), svc, retention); err != nil {
			log.WithError(err).Error("❌ [TRASH REAPER] run failed")
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	log.Infof("✅ [TRASH REAPER] scheduled %q, retention %s", schedule, retention)
	return c, nil
}

// RunReaper performs one reaper pass.
func RunReaper(ctx context.Context, svc *service.TrashService, retention time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-retention)
	n, err := svc.ReapOlderThan(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.App().Infof("🧹 [TRASH REAPER] %d entries older than %s removed", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
