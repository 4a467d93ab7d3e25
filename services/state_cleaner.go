package services

import (
	"context"
	"time"

	"github.com/prepdash/prepdash/utils"
)

// expiredStatePurger is the slice of the store the cleaner needs.
type expiredStatePurger interface {
	PurgeExpiredStates(ctx context.Context) (int64, error)
}

// StartStateCleaner launches a background goroutine that periodically deletes
// expired OAuth state rows. It is best-effort and logs failures; it stops when
// ctx is cancelled.
func StartStateCleaner(ctx context.Context, store expiredStatePurger, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			purgeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := store.PurgeExpiredStates(purgeCtx)
			cancel()
			if err != nil {
				if utils.Sugar != nil {
					utils.Sugar.Warnf("state cleaner purge failed: %v", err)
				}
				continue
			}
			if n > 0 && utils.Sugar != nil {
				utils.Sugar.Infof("state cleaner removed %d expired rows", n)
			}
		}
	}()
}
