package cli

import (
	"context"
	"fmt"
)

// Status prints the connectivity mode and the queue depth.
func (a *App) Status(ctx context.Context) error {
	printlnFn("Mode:", string(a.mode()))

	if !a.offlineEnabled() {
		printlnFn("Offline support: disabled")
		return nil
	}

	pending, err := a.store.PendingCount(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to count pending operations", "error", err)
		return err
	}
	failed, err := a.store.FailedCount(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to count failed operations", "error", err)
		return err
	}

	printlnFn(fmt.Sprintf("Pending operations: %d", pending))
	printlnFn(fmt.Sprintf("Failed operations: %d", failed))
	if a.syncer.IsSyncing() {
		printlnFn("Sync pass in progress")
	}
	return nil
}

// Pending lists queued operations oldest first.
func (a *App) Pending(ctx context.Context) error {
	if !a.offlineEnabled() {
		printlnFn("Offline support: disabled")
		return nil
	}

	ops, err := a.store.ListPendingOperations(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to list pending operations", "error", err)
		return err
	}
	if len(ops) == 0 {
		printlnFn("No pending operations")
		return nil
	}
	for _, op := range ops {
		printlnFn(fmt.Sprintf("%s  %-6s %-13s %s %s (attempts: %d)",
			op.ID, op.Kind, op.EntityType, op.Method, op.Endpoint, op.Attempts))
	}
	return nil
}

// Failed lists terminally failed operations kept for manual intervention.
func (a *App) Failed(ctx context.Context) error {
	if !a.offlineEnabled() {
		printlnFn("Offline support: disabled")
		return nil
	}

	ops, err := a.store.ListFailedOperations(ctx)
	if err != nil {
		a.log.Error(ctx, "failed to list failed operations", "error", err)
		return err
	}
	if len(ops) == 0 {
		printlnFn("No failed operations")
		return nil
	}
	for _, op := range ops {
		printlnFn(fmt.Sprintf("%s  %-6s %s %s: %s",
			op.ID, op.Kind, op.Method, op.Endpoint, op.LastError))
	}
	return nil
}

// Retry requeues a failed operation with a fresh attempts budget.
func (a *App) Retry(ctx context.Context, id string) error {
	if !a.offlineEnabled() {
		printlnFn("Offline support: disabled")
		return nil
	}

	if err := a.syncer.RetryFailed(ctx, id); err != nil {
		a.log.Error(ctx, "retry failed", "id", id, "error", err)
		printlnFn("Retry failed:", err.Error())
		return err
	}
	printlnFn("Operation requeued:", id)
	return nil
}
