package cli

import (
	"context"
	"time"

	"github.com/obrasync/obrasync/internal/client/api"
)

// fetchCacheTTL is how long a fetched resource stays readable offline.
const fetchCacheTTL = 15 * time.Minute

// Fetch reads a resource through the offline cache and prints the body.
// When the server is unreachable, the last cached copy is served instead.
func (a *App) Fetch(ctx context.Context, path string) error {
	if a.resources == nil {
		resp, err := a.client.Do(ctx, api.Request{Method: "GET", Endpoint: path})
		if err != nil {
			printlnFn("Fetch failed:", friendlyError(err))
			return err
		}
		printlnFn(string(resp.Body))
		return nil
	}

	body, stale, err := a.resources.Get(ctx, path, fetchCacheTTL)
	if err != nil {
		printlnFn("Fetch failed:", friendlyError(err))
		return err
	}
	if stale {
		printlnFn("(cached copy, server unreachable)")
	}
	printlnFn(string(body))
	return nil
}
