// Package services contains application services composing the store, the
// queue and the API client into the operations the CLI exposes.
package services

import (
	"context"
	"time"

	"github.com/obrasync/obrasync/internal/client/api"
	"github.com/obrasync/obrasync/internal/client/store"
	"github.com/obrasync/obrasync/internal/logging"
)

// ResourceService reads resources through the time-boxed cache: a successful
// fetch refreshes the cache entry, a failed fetch falls back to the last
// cached value so reads keep working offline.
type ResourceService struct {
	client api.Client
	store  *store.Store
	log    logging.Logger
}

// NewResourceService builds a read-through resource service.
func NewResourceService(client api.Client, s *store.Store, log logging.Logger) *ResourceService {
	return &ResourceService{client: client, store: s, log: log}
}

// Get fetches the endpoint and caches the body under the endpoint key with
// the given ttl (0 = no time expiry). On transport failure it serves the
// cached value when one is present; stale reports whether it did.
func (s *ResourceService) Get(ctx context.Context, endpoint string, ttl time.Duration) (body []byte, stale bool, err error) {
	resp, err := s.client.Do(ctx, api.Request{Method: "GET", Endpoint: endpoint})
	if err == nil {
		if cacheErr := s.store.PutCache(ctx, endpoint, resp.Body, ttl); cacheErr != nil {
			s.log.Warn(ctx, "failed to cache resource", "endpoint", endpoint, "error", cacheErr)
		}
		return resp.Body, false, nil
	}

	cached, cacheErr := s.store.GetCache(ctx, endpoint)
	if cacheErr != nil {
		s.log.Warn(ctx, "cache read failed", "endpoint", endpoint, "error", cacheErr)
	}
	if cached != nil {
		s.log.Info(ctx, "serving cached resource", "endpoint", endpoint)
		return cached, true, nil
	}

	return nil, false, err
}
