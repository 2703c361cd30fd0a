package main

import (
	"context"
	"time"

	"github.com/samber/lo"
)

// startRollover runs rollover at every midnight in the game location until
// ctx is cancelled.
func (app *App) startRollover(ctx context.Context) {
	go func() {
		for {
			now := app.now()
			wait := nextResetTime(now, app.Oracle.Location()).Sub(now)
			logInfo("Next daily rollover in %v", wait.Round(time.Second))

			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				logInfo("Rollover scheduler stopped")
				return
			case <-timer.C:
				app.rollover(ctx)
			}
		}
	}()
}

// rollover drops cached games from previous days and prunes old snapshots.
// It returns how many cached games and stored snapshots were removed.
func (app *App) rollover(ctx context.Context) (dropped, pruned int) {
	now := app.now()
	today := app.Oracle.DateKey(now)

	app.SessionMutex.Lock()
	stale := lo.Keys(lo.PickBy(app.GameSessions, func(_ string, g *GameState) bool {
		return g.Date != today
	}))
	for _, id := range stale {
		delete(app.GameSessions, id)
	}
	app.SessionMutex.Unlock()

	app.LimiterMutex.Lock()
	clear(app.LimiterMap)
	app.LimiterMutex.Unlock()

	if app.Store != nil {
		n, err := app.Store.Cleanup(ctx, app.Config.SnapshotRetention)
		if err != nil {
			logWarn("Snapshot cleanup failed: %v", err)
			app.Metrics.snapshotError("cleanup")
		}
		pruned = n
	}

	_, source := app.Oracle.Lookup(today)
	logInfo("Rolled over to %s (color from %s): dropped %d cached games, pruned %d snapshots",
		today, source, len(stale), pruned)
	return len(stale), pruned
}
