package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	authRepo "campusmap_backend/internals/features/users/auth/repository"
	"campusmap_backend/internals/logger"
)

// StartBlacklistCleanup registers an hourly purge of expired blacklisted
// tokens on c.
func StartBlacklistCleanup(c *cron.Cron, db *gorm.DB) error {
	_, err := c.AddFunc("@hourly", func() {
		if _, err := CleanupBlacklist(context.Background(), db); err != nil {
			logger.App().WithError(err).Error("❌ [CLEANUP] token_blacklist")
		}
	})
	return err
}

func CleanupBlacklist(ctx context.Context, db *gorm.DB) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	n, err := authRepo.CleanupExpiredBlacklist(ctx, db, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.App().Infof("🧹 [CLEANUP] %d expired tokens removed", n)
	}
	return n, nil
}
