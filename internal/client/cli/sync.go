package cli

import "context"

// Sync triggers a sync pass immediately. A pass already in progress, or an
// offline signal, makes this a no-op.
func (a *App) Sync(ctx context.Context) error {
	if !a.offlineEnabled() {
		printlnFn("Offline support: disabled")
		return nil
	}

	if err := a.syncer.Sync(ctx); err != nil {
		a.log.Error(ctx, "sync failed", "error", err)
		printlnFn("Sync failed:", err.Error())
		return err
	}

	pending, err := a.store.PendingCount(ctx)
	if err != nil {
		return err
	}
	if pending == 0 {
		printlnFn("Queue drained")
	} else {
		printlnFn("Sync done, operations still pending:", pending)
	}
	return nil
}
