package cli

import (
	"context"
	"time"
)

const pingTimeout = 3 * time.Second

// StartOnlineStatusWatcher pings the server every interval and tracks the
// connectivity mode. When the server comes back while signed in, the
// collection is reloaded so that edits saved locally in the meantime are
// reconciled with the remote copy.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.checkOnline(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) checkOnline(ctx context.Context) {
	pctx, cancel := context.WithTimeout(ctx, pingTimeout)
	err := a.auth.Ping(pctx)
	cancel()

	if err != nil {
		a.setMode(ctx, ModeOffline)
		return
	}

	prev := a.Mode()
	if a.setMode(ctx, ModeOnline) && prev == ModeOffline && a.isLoggedIn() {
		a.runCommand(ctx, func(ctx context.Context) error {
			if _, err := a.entries.Load(ctx); err != nil {
				return err
			}
			a.println("Back online, collection synced.")
			return nil
		})
	}
}
