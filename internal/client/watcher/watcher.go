// Package watcher decides when to sync. It probes the backend health
// endpoint on a fixed interval, publishes the connectivity signal, and
// converges every trigger (bootstrap grace, periodic tick, offline→online
// transition) onto the syncer's single Sync entry point, whose internal
// guard deduplicates overlapping triggers.
package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/obrasync/obrasync/internal/logging"
)

// Mode is the connectivity state shown to the user.
type Mode string

const (
	ModeOnline  Mode = "online"
	ModeOffline Mode = "offline"
	// ModeDisabled means the local store could not be opened; the app keeps
	// running without offline support.
	ModeDisabled Mode = "disabled"
)

// Pinger probes server liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// SyncTrigger is the slice of the sync manager the watcher drives.
type SyncTrigger interface {
	SetOnline(online bool)
	Sync(ctx context.Context) error
}

// Config carries the watcher tunables.
type Config struct {
	// Interval between connectivity probes. Default 30s.
	Interval time.Duration
	// BootstrapDelay lets the application settle before the first probe.
	// Default 2s.
	BootstrapDelay time.Duration
	// ProbeTimeout bounds a single liveness probe. Default 3s.
	ProbeTimeout time.Duration
}

const (
	DefaultInterval       = 30 * time.Second
	DefaultBootstrapDelay = 2 * time.Second
	DefaultProbeTimeout   = 3 * time.Second
)

func (c Config) withDefaults() Config {
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.BootstrapDelay < 0 {
		c.BootstrapDelay = DefaultBootstrapDelay
	}
	if c.ProbeTimeout <= 0 {
		c.ProbeTimeout = DefaultProbeTimeout
	}
	return c
}

// Watcher runs the probe loop.
type Watcher struct {
	pinger Pinger
	syncer SyncTrigger
	log    logging.Logger
	cfg    Config

	mu       sync.RWMutex
	mode     Mode
	onChange func(Mode)
}

// New builds a watcher. The mode starts offline until the first probe.
func New(pinger Pinger, syncer SyncTrigger, log logging.Logger, cfg Config) *Watcher {
	return &Watcher{pinger: pinger, syncer: syncer, log: log, cfg: cfg.withDefaults(), mode: ModeOffline}
}

// Mode returns the current connectivity mode.
func (w *Watcher) Mode() Mode {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.mode
}

// OnChange registers a callback invoked on mode transitions.
func (w *Watcher) OnChange(fn func(Mode)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onChange = fn
}

func (w *Watcher) setMode(ctx context.Context, mode Mode) {
	w.mu.Lock()
	changed := w.mode != mode
	w.mode = mode
	fn := w.onChange
	w.mu.Unlock()

	if changed {
		w.log.Info(ctx, "connectivity mode changed", "mode", mode)
		if fn != nil {
			fn(mode)
		}
	}
}

// Run blocks, probing on the configured interval until ctx is done. The
// first probe happens after the bootstrap grace delay.
func (w *Watcher) Run(ctx context.Context) {
	select {
	case <-time.After(w.cfg.BootstrapDelay):
	case <-ctx.Done():
		return
	}

	w.probeAndSync(ctx)

	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.probeAndSync(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// probeAndSync checks liveness, publishes the signal, and triggers a sync
// pass when online. The syncer's single-flight guard absorbs overlapping
// triggers.
func (w *Watcher) probeAndSync(ctx context.Context) {
	probeCtx, cancel := context.WithTimeout(ctx, w.cfg.ProbeTimeout)
	err := w.pinger.Ping(probeCtx)
	cancel()

	online := err == nil
	w.syncer.SetOnline(online)

	if !online {
		w.setMode(ctx, ModeOffline)
		return
	}

	w.setMode(ctx, ModeOnline)
	if err := w.syncer.Sync(ctx); err != nil {
		w.log.Warn(ctx, "sync pass finished with error", "error", err)
	}
}
