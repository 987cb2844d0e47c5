package cli

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/growthvault/internal/client/cache"
	"github.com/dmitrijs2005/growthvault/internal/client/config"
	"github.com/dmitrijs2005/growthvault/internal/client/media"
	"github.com/dmitrijs2005/growthvault/internal/client/persistence"
	"github.com/dmitrijs2005/growthvault/internal/client/remote"
	"github.com/dmitrijs2005/growthvault/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/growthvault/internal/client/services"
	"github.com/dmitrijs2005/growthvault/internal/client/state"
	"github.com/dmitrijs2005/growthvault/internal/filex"
	"github.com/dmitrijs2005/growthvault/internal/logging"
)

const (
	databaseFile = "growthvault.db"
	localDir     = "local"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

// sizer reports how much space the local cache uses.
type sizer interface {
	SizeBytes(ctx context.Context) (int64, error)
}

type App struct {
	config  *config.Config
	auth    *services.AuthService
	entries *services.EntryService
	cache   sizer
	logger  logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// busy is set while a command runs so the state listener can tell
	// local edits from updates pushed by other devices.
	busy atomic.Bool

	mu   sync.Mutex
	mode Mode
	user string

	closers []func() error
}

// NewApp builds the client from cfg. A local database that cannot be
// opened is not fatal: the cache then runs on the file store alone.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	logger = logging.OrNop(logger)

	dataDir, err := filex.EnsureDir(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	a := &App{config: cfg, logger: logger.With("module", "cli"), reader: bufio.NewReader(os.Stdin), out: os.Stdout}

	small := cache.NewFileStore(filepath.Join(dataDir, localDir), cfg.LocalQuotaBytes)
	cacheOpts := []cache.Option{cache.WithLogger(logger)}

	var meta metadata.Repository
	db, err := cache.InitDatabase(ctx, filepath.Join(dataDir, databaseFile))
	if err != nil {
		logger.Warn(ctx, "local database unavailable, using file store only", "error", err)
	} else {
		a.closers = append(a.closers, db.Close)
		repo := metadata.NewSQLiteRepository(db)
		meta = repo
		cacheOpts = append(cacheOpts, cache.WithLarge(repo, 0))
	}
	store := cache.NewStore(small, cacheOpts...)

	rs, err := remote.NewGRPCStore(cfg.ServerEndpointAddr, remote.WithLogger(logger))
	if err != nil {
		a.Close()
		return nil, err
	}
	a.closers = append(a.closers, rs.Close)

	st := state.NewContainer(logger)
	orch := persistence.New(store, rs, st, persistence.WithLogger(logger))

	a.cache = store
	a.entries = services.NewEntryService(st, orch,
		services.WithEntryLogger(logger),
		services.WithImageOptions(media.OptionsFor(cfg.ConstrainedImages)),
	)
	a.auth = services.NewAuthService(orch, rs, meta, logger)
	a.watchState(st)
	return a, nil
}

// watchState prints a notice when the collection changes outside of a
// command, i.e. when another device's write was applied.
func (a *App) watchState(st *state.Container) {
	st.Subscribe(state.TopicAll, func(ctx context.Context, newState, oldState state.State, changed []state.Field) {
		if a.busy.Load() || !state.Touches(changed, state.TopicItems) && !state.Touches(changed, state.TopicTitles) {
			return
		}
		a.printf("\nCollection updated from another device (%d entries).\n", len(newState.Items))
	})
}

// Run loads the collection, starts the online watcher and blocks in the
// REPL until the user exits or ctx is done.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.println("Welcome to GrowthVault (type 'help' for commands)")
	a.runCommand(ctx, a.Load)

	if name, err := a.auth.LastUsername(ctx); err == nil && name != "" {
		a.printf("Last signed in as %s. Type 'login' to sign in again.\n", name)
	}

	go a.StartOnlineStatusWatcher(ctx, a.config.OnlineCheckInterval)

	runREPL(ctx, a, a.status, a.reader, a.out)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) setMode(ctx context.Context, mode Mode) (changed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.mode == mode {
		return false
	}
	a.mode = mode
	a.logger.Info(ctx, "connectivity changed", "mode", mode)
	return true
}

func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

func (a *App) setUser(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.user = name
}

func (a *App) isLoggedIn() bool {
	return a.auth.Identity() != nil
}

func (a *App) status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.user
	if a.mode != "" {
		if s != "" {
			s += " "
		}
		s += string(a.mode)
	}
	if s == "" {
		return ""
	}
	return "(" + s + ")"
}
