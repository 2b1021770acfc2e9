package cli

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"

	"github.com/obrasync/obrasync/internal/client/api"
	"github.com/obrasync/obrasync/internal/client/auth"
	"github.com/obrasync/obrasync/internal/client/config"
	"github.com/obrasync/obrasync/internal/client/queue"
	"github.com/obrasync/obrasync/internal/client/repositories/metadata"
	"github.com/obrasync/obrasync/internal/client/services"
	"github.com/obrasync/obrasync/internal/client/store"
	"github.com/obrasync/obrasync/internal/client/syncer"
	"github.com/obrasync/obrasync/internal/client/watcher"
	"github.com/obrasync/obrasync/internal/common"
	"github.com/obrasync/obrasync/internal/logging"
)

// App is the interactive client: one store, one queue, one syncer and one
// session per process, constructed here and injected everywhere else.
type App struct {
	config  *config.Config
	log     logging.Logger
	session *auth.Manager
	client  *api.RestClient

	// nil when the local store could not be opened (disabled mode).
	store     *store.Store
	queue     *queue.Queue
	syncer    *syncer.Syncer
	resources *services.ResourceService
	watch     *watcher.Watcher

	reader *bufio.Reader
	out    io.Writer
}

// NewApp wires the application. A store that cannot be opened is logged and
// tolerated: the app degrades to direct-only API access.
func NewApp(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	hc := &http.Client{Jar: jar, Timeout: cfg.RequestTimeout}

	st, err := store.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		if !errors.Is(err, common.ErrStoreUnavailable) {
			return nil, err
		}
		log.Error(ctx, "local store unavailable, offline support disabled",
			"path", cfg.DatabasePath, "error", err)
		st = nil
	}

	var meta metadata.Repository
	if st != nil {
		meta = st.Metadata
	}

	session := auth.NewManager(cfg.ServerEndpointURL, hc, meta, log)
	if err := session.LoadSession(ctx); err != nil {
		log.Warn(ctx, "failed to restore session", "error", err)
	}

	client, err := api.NewRestClient(cfg.ServerEndpointURL, hc, session, log)
	if err != nil {
		return nil, err
	}

	app := &App{
		config:  cfg,
		log:     log,
		session: session,
		client:  client,
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
	}

	if st != nil {
		app.store = st
		app.queue = queue.New(st, log)
		app.syncer = syncer.New(st, client, log, syncer.Config{
			ChunkSize:   cfg.SyncChunkSize,
			MaxAttempts: cfg.MaxSyncAttempts,
		})
		app.resources = services.NewResourceService(client, st, log)
		app.watch = watcher.New(client, app.syncer, log, watcher.Config{
			Interval:       cfg.OnlineCheckInterval,
			BootstrapDelay: cfg.BootstrapDelay,
			ProbeTimeout:   cfg.ProbeTimeout,
		})
	}

	return app, nil
}

// Run starts the background connectivity watcher and blocks in the REPL
// until the user exits.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.watch != nil {
		go a.watch.Run(ctx)
	}

	a.Root(ctx)

	if a.store != nil {
		_ = a.store.Close()
	}
}

func (a *App) offlineEnabled() bool {
	return a.store != nil
}

func (a *App) mode() watcher.Mode {
	if a.watch == nil {
		return watcher.ModeDisabled
	}
	return a.watch.Mode()
}

func (a *App) isLoggedIn() bool {
	return a.session.LoggedIn()
}
