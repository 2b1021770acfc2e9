// Package syncer drains the pending-operation backlog against the remote
// API. One sync pass runs at a time process-wide; within a pass, operations
// are replayed in enqueue order, chunked with bounded parallelism inside
// each chunk. Failed replays stay pending until the attempts cap, then turn
// terminally failed and are excluded from future passes.
package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/obrasync/obrasync/internal/client/api"
	"github.com/obrasync/obrasync/internal/client/models"
	"github.com/obrasync/obrasync/internal/client/store"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// Config carries the tunables of a sync pass.
type Config struct {
	// ChunkSize bounds how many replays run concurrently. Default 3.
	ChunkSize int
	// MaxAttempts is the cap after which an operation turns terminally
	// failed. Default 3.
	MaxAttempts int
}

const (
	DefaultChunkSize   = 3
	DefaultMaxAttempts = 3
)

func (c Config) withDefaults() Config {
	if c.ChunkSize <= 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	return c
}

// Listener observes sync state changes: true when a pass begins, false when
// it ends. A short-circuited Sync call produces no notifications.
type Listener func(syncing bool)

// Syncer is the sync manager. Construct one per store; do not share a store
// between two syncers in the same process.
type Syncer struct {
	store  *store.Store
	client api.Client
	log    logging.Logger
	cfg    Config

	online  atomic.Bool
	syncing atomic.Bool

	lmu       sync.Mutex
	listeners []Listener
}

// New builds a syncer. The connectivity signal starts online; the watcher
// publishes the real signal once it has probed.
func New(s *store.Store, client api.Client, log logging.Logger, cfg Config) *Syncer {
	sy := &Syncer{store: s, client: client, log: log, cfg: cfg.withDefaults()}
	sy.online.Store(true)
	return sy
}

// SetOnline records the last known connectivity signal.
func (s *Syncer) SetOnline(online bool) {
	s.online.Store(online)
}

// Online returns the last known connectivity signal.
func (s *Syncer) Online() bool {
	return s.online.Load()
}

// IsSyncing reports whether a pass is currently running.
func (s *Syncer) IsSyncing() bool {
	return s.syncing.Load()
}

// Subscribe registers a listener for sync state changes.
func (s *Syncer) Subscribe(l Listener) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Syncer) notify(syncing bool) {
	s.lmu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.lmu.Unlock()

	for _, l := range listeners {
		l(syncing)
	}
}

// Sync runs one pass over the pending backlog. It short-circuits to nil,
// without notifications or network activity, when offline or when another
// pass is already running.
func (s *Syncer) Sync(ctx context.Context) error {
	if !s.online.Load() {
		return nil
	}
	if !s.syncing.CompareAndSwap(false, true) {
		return nil
	}

	s.notify(true)
	err := s.runPass(ctx)

	s.syncing.Store(false)
	s.notify(false)
	return err
}

func (s *Syncer) runPass(ctx context.Context) error {
	ops, err := s.store.ListPendingOperations(ctx)
	if err != nil {
		s.log.Error(ctx, "failed to list pending operations", "error", err)
		return err
	}

	for start := 0; start < len(ops); start += s.cfg.ChunkSize {
		end := min(start+s.cfg.ChunkSize, len(ops))

		var g errgroup.Group
		for _, op := range ops[start:end] {
			op := op
			g.Go(func() error {
				if err := s.replay(ctx, op); err != nil {
					s.settleFailure(ctx, op.ID, err)
				}
				return nil
			})
		}
		_ = g.Wait()
	}

	if swept, err := s.store.SweepExpiredCache(ctx); err != nil {
		s.log.Warn(ctx, "cache sweep failed", "error", err)
	} else if swept > 0 {
		s.log.Debug(ctx, "swept expired cache entries", "count", swept)
	}

	return nil
}

// replay reissues one operation against the API. On success the operation is
// removed (completion implies deletion) and, when the response carries a
// server-assigned identity, mirrored into the entities collection. On failure
// the error propagates to the chunk-level caller.
func (s *Syncer) replay(ctx context.Context, op *models.Operation) error {
	if err := s.store.SetOperationState(ctx, op.ID, models.StateInFlight); err != nil {
		if errors.Is(err, common.ErrNotFound) {
			// Raced with a concurrent deletion; nothing to replay.
			s.log.Warn(ctx, "operation vanished before replay", "id", op.ID)
			return nil
		}
		return err
	}

	resp, err := s.client.Do(ctx, api.Request{
		Method:         op.Method,
		Endpoint:       op.Endpoint,
		Body:           op.Payload,
		ContentType:    op.ContentType,
		IdempotencyKey: op.IdempotencyKey,
	})
	if err != nil {
		return err
	}

	s.mirror(ctx, op, resp.Body)

	if err := s.store.RemoveOperation(ctx, op.ID); err != nil {
		return err
	}

	s.log.Debug(ctx, "operation synced", "id", op.ID, "endpoint", op.Endpoint)
	return nil
}

// mirror stores the response as the last known server representation when it
// carries an id and the operation declared an entity type. Numbers are
// decoded as json.Number so a numeric id keeps its exact digits instead of
// going through float64.
func (s *Syncer) mirror(ctx context.Context, op *models.Operation, body []byte) {
	if op.EntityType == "" || len(body) == 0 {
		return
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload map[string]any
	if err := dec.Decode(&payload); err != nil {
		return
	}
	id, ok := payload["id"]
	if !ok || id == nil {
		return
	}

	entityID := fmt.Sprint(id)
	if err := s.store.PutEntity(ctx, op.EntityType, entityID, body); err != nil {
		s.log.Warn(ctx, "failed to mirror entity",
			"entityType", op.EntityType, "entityId", entityID, "error", err)
	}
}

// settleFailure records the cause and decides between another round
// (pending) and terminal failure once the attempts cap is reached.
func (s *Syncer) settleFailure(ctx context.Context, id string, cause error) {
	if err := s.store.RecordOperationError(ctx, id, cause.Error()); err != nil {
		s.log.Warn(ctx, "failed to record operation error", "id", id, "error", err)
	}

	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		s.log.Warn(ctx, "failed to load operation after replay failure", "id", id, "error", err)
		return
	}

	next := models.StatePending
	if op.Attempts >= s.cfg.MaxAttempts {
		next = models.StateFailed
	}

	if err := s.store.SetOperationState(ctx, id, next); err != nil {
		s.log.Warn(ctx, "failed to settle operation state", "id", id, "error", err)
		return
	}

	if next == models.StateFailed {
		s.log.Error(ctx, "operation failed terminally",
			"id", id, "attempts", op.Attempts, "error", cause)
	} else {
		s.log.Warn(ctx, "operation replay failed, will retry",
			"id", id, "attempts", op.Attempts, "error", cause)
	}
}

// RetryFailed moves a terminally failed operation back into the queue with a
// fresh attempts budget, for manual intervention.
func (s *Syncer) RetryFailed(ctx context.Context, id string) error {
	op, err := s.store.GetOperation(ctx, id)
	if err != nil {
		return err
	}
	if op.State != models.StateFailed {
		return fmt.Errorf("operation %s is %s, not failed", id, op.State)
	}
	return s.store.Operations.Requeue(ctx, id)
}
