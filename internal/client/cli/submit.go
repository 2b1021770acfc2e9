package cli

import (
	"context"
	"errors"

	"github.com/obrasync/obrasync/internal/client/api"
	"github.com/obrasync/obrasync/internal/client/queue"
	"github.com/obrasync/obrasync/internal/client/watcher"
	"github.com/obrasync/obrasync/internal/common"
)

// submit sends a mutation directly when the last known signal is online, and
// falls back to the durable queue when the server is unreachable or the
// client is offline. Server-side rejections (4xx other than auth) are not
// queued: replaying them later would fail the same way.
func (a *App) submit(ctx context.Context, req queue.Request) error {
	if a.mode() == watcher.ModeOnline || !a.offlineEnabled() {
		_, err := a.client.Do(ctx, api.Request{
			Method:      req.Method,
			Endpoint:    req.Endpoint,
			Body:        req.Payload,
			ContentType: req.ContentType,
		})
		if err == nil {
			printlnFn("Submitted", req.Method, req.Endpoint)
			return nil
		}
		if !errors.Is(err, common.ErrUnavailable) {
			a.log.Error(ctx, "request rejected", "endpoint", req.Endpoint, "error", err)
			printlnFn("Request failed:", friendlyError(err))
			return err
		}
		a.log.Warn(ctx, "server unreachable, deferring", "endpoint", req.Endpoint)
	}

	if !a.offlineEnabled() {
		printlnFn("Server unreachable and offline support is disabled")
		return common.ErrUnavailable
	}

	op, err := a.queue.Enqueue(ctx, req)
	if err != nil {
		a.log.Error(ctx, "failed to queue operation", "error", err)
		printlnFn("Could not queue the operation:", err.Error())
		return err
	}

	printlnFn("Queued for sync:", op.ID)
	return nil
}
