// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"github.com/starford/agevault/internal/api"
	"github.com/starford/agevault/internal/deps"
	"github.com/starford/agevault/internal/journal"
	"github.com/starford/agevault/internal/keystore"
	"github.com/starford/agevault/internal/mcpserver"
	"github.com/starford/agevault/internal/models"
	"github.com/starford/agevault/internal/pipelineservice"
	"github.com/starford/agevault/internal/scheduler"
	"github.com/starford/agevault/internal/sse"
	"github.com/starford/agevault/internal/storage"
	"github.com/starford/agevault/internal/transcoder"
	"github.com/starford/agevault/internal/watcher"
)

// LockFile is created in the root folder while a pipeline is sweeping.
const LockFile = ".agevault.lock"

// ErrAlreadyRunning is returned when another instance holds the lock.
var ErrAlreadyRunning = errors.New("another agevault instance is already running")

// pipeline holds the components shared by every command.
type pipeline struct {
	cfg     *Config
	logger  *slog.Logger
	layout  models.Layout
	store   storage.Provider
	keys    *keystore.Store
	journal *journal.DB
	lock    *flock.Flock
}

func (p *pipeline) close() {
	if p.journal != nil {
		if err := p.journal.Close(); err != nil {
			p.logger.Warn("journal: close failed", slog.String("error", err.Error()))
		}
	}
	if p.lock != nil {
		if err := p.lock.Unlock(); err != nil {
			p.logger.Warn("failed to release lock", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{logOutput: os.Stdout, version: "dev"}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

// newLogger builds the slog logger selected by the app config.
func newLogger(cfg ApplicationConfig, w io.Writer) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// commonDir returns the deepest directory containing every path.
func commonDir(paths ...string) string {
	if len(paths) == 0 {
		return ""
	}
	base := filepath.Clean(paths[0])
	for _, p := range paths[1:] {
		p = filepath.Clean(p)
		for base != filepath.Dir(base) {
			rel, err := filepath.Rel(base, p)
			if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
				break
			}
			base = filepath.Dir(base)
		}
	}
	return base
}

// openPipeline runs the startup sequence: create the folders, take the lock,
// check the tools, ensure the key file and open the journal. Folder creation
// and locking failures are fatal; a failed key generation is only logged.
func openPipeline(ctx context.Context, app *application, logger *slog.Logger) (*pipeline, error) {
	cfg := app.config
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}

	root := filepath.Dir(layout.Local)
	if abs, err := filepath.Abs(cfg.Folders.Root); err == nil {
		root = abs
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create root dir: %w", err)
	}

	store, err := storage.NewFS(commonDir(append(layout.Dirs(), filepath.Dir(layout.KeyFile), root)...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	for _, dir := range layout.Dirs() {
		if err := store.EnsureDir(dir); err != nil {
			return nil, fmt.Errorf("create folder: %w", err)
		}
	}

	p := &pipeline{cfg: cfg, logger: logger, layout: layout, store: store}

	fl := flock.New(filepath.Join(root, LockFile))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, ErrAlreadyRunning
	}
	p.lock = fl

	if app.transcoder == nil {
		for _, st := range deps.CheckBinaries(deps.AgeRequirements(cfg.Age.Binary, cfg.Age.KeygenBinary)) {
			if !st.Available {
				logger.Warn("dependency missing",
					slog.String("name", st.Name),
					slog.String("detail", st.Detail))
			}
		}
	}

	p.keys = keystore.New(layout.KeyFile,
		keystore.WithBinary(cfg.Age.KeygenBinary),
		keystore.WithLogger(logger))
	if err := p.keys.EnsureKey(ctx); err != nil {
		logger.Error("keystore: key generation failed", slog.String("error", err.Error()))
	}

	if cfg.Journal.Path != "" {
		db, err := journal.Open(cfg.Journal.Path)
		if err != nil {
			p.close()
			return nil, fmt.Errorf("init journal: %w", err)
		}
		p.journal = db
	}

	return p, nil
}

// newScheduler wires the transcoder, sweeper and observers.
func (p *pipeline) newScheduler(app *application, opts ...scheduler.Option) *scheduler.Scheduler {
	tc := app.transcoder
	if tc == nil {
		tc = transcoder.NewAgeCLI(p.store, p.keys, p.layout,
			transcoder.WithBinary(p.cfg.Age.Binary),
			transcoder.WithTimeout(p.cfg.Age.Timeout),
			transcoder.WithLogger(p.logger))
	}
	sweeper := watcher.NewSweeper(p.store, p.logger, watcher.WithSettle(p.cfg.Poll.Settle))

	if p.journal != nil {
		db := p.journal
		opts = append(opts, scheduler.WithObserver(scheduler.ObserverFunc(func(o models.Outcome) {
			if err := db.Record(o); err != nil {
				p.logger.Warn("journal: record failed", slog.String("error", err.Error()))
			}
		})))
	}
	opts = append([]scheduler.Option{scheduler.WithInterval(p.cfg.Poll.Interval)}, opts...)
	return scheduler.New(p.layout, sweeper, tc, p.logger, opts...)
}

func (p *pipeline) newService(opts ...pipelineservice.Option) *pipelineservice.Service {
	if p.journal != nil {
		opts = append(opts, pipelineservice.WithLedger(p.journal))
	}
	return pipelineservice.NewService(p.store, p.layout, p.keys, opts...)
}

// Run starts the pipeline daemon with the given options. It returns when ctx
// is cancelled or a shutdown signal arrives.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	logger := newLogger(cfg.App, app.logOutput)
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		slog.String("root", cfg.Folders.Root),
		slog.String("key", cfg.Key.Path),
		slog.Duration("interval", cfg.Poll.Interval),
		slog.Bool("http", cfg.App.HTTP.Enabled),
		slog.String("journal", cfg.Journal.Path),
		slog.String("log_level", cfg.App.LogLevel.String()))

	p, err := openPipeline(ctx, app, logger)
	if err != nil {
		return err
	}
	defer p.close()

	g, gCtx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gCtx)
	defer stop()

	var schedOpts []scheduler.Option
	if cfg.Poll.Notify {
		nudges, err := watcher.Notify(runCtx, []string{p.layout.Encrypt, p.layout.Decrypt}, logger)
		if err != nil {
			logger.Warn("watcher: notify unavailable, polling only", slog.String("error", err.Error()))
		} else {
			schedOpts = append(schedOpts, scheduler.WithNudges(nudges))
		}
	}

	var broker *sse.Broker
	if cfg.App.HTTP.Enabled {
		broker = sse.NewBroker(2 * time.Second)
		defer broker.Close()
		schedOpts = append(schedOpts, scheduler.WithObserver(broker))
	}

	sched := p.newScheduler(app, schedOpts...)

	g.Go(func() error {
		return sched.Run(runCtx)
	})

	var httpServer *http.Server
	if cfg.App.HTTP.Enabled {
		svc := p.newService(pipelineservice.WithStats(sched.Stats))
		httpServer = &http.Server{
			Addr:    cfg.App.HTTP.Address(),
			Handler: newHTTPHandler(svc, cfg.Auth, broker),
		}
		g.Go(func() error {
			logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server error: %w", err)
			}
			return nil
		})
	}

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}
		stop()

		if httpServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Pipeline stopped", slog.Uint64("ticks", sched.Stats().Ticks))
	return nil
}

// newHTTPHandler builds the chi router serving health checks and the status API.
func newHTTPHandler(svc *pipelineservice.Service, auth AuthConfig, broker *sse.Broker) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	var events http.Handler
	if broker != nil {
		events = broker
	}
	r.Mount("/api", api.NewRouter(svc, auth.AuthEnabled(), auth.Token, events))
	return r
}

// RunOnce performs the startup sequence and a single tick, then returns the
// outcomes of that tick.
func RunOnce(ctx context.Context, opts ...Option) ([]models.Outcome, error) {
	app, err := newApplication(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(app.config.App, app.logOutput)
	slog.SetDefault(logger)

	p, err := openPipeline(ctx, app, logger)
	if err != nil {
		return nil, err
	}
	defer p.close()

	tick := p.newScheduler(app).Tick(ctx)
	return tick.Outcomes, nil
}

// Keygen creates the configured key file if it is missing and returns its
// public key.
func Keygen(ctx context.Context, opts ...Option) (string, error) {
	app, err := newApplication(opts)
	if err != nil {
		return "", err
	}
	logger := newLogger(app.config.App, app.logOutput)
	layout, err := app.config.Layout()
	if err != nil {
		return "", err
	}
	keys := keystore.New(layout.KeyFile,
		keystore.WithBinary(app.config.Age.KeygenBinary),
		keystore.WithLogger(logger))
	if err := keys.EnsureKey(ctx); err != nil {
		return "", err
	}
	return keys.Recipient()
}

// ServeMCP serves the read-only pipeline tools on stdin/stdout. Logs go to
// stderr unless redirected.
func ServeMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(append([]Option{WithLogOutput(os.Stderr)}, opts...))
	if err != nil {
		return err
	}
	logger := newLogger(app.config.App, app.logOutput)
	slog.SetDefault(logger)

	p, err := openReadOnly(app, logger)
	if err != nil {
		return err
	}
	defer p.close()

	return mcpserver.New(p.newService(), app.version).ServeStdio()
}

// openReadOnly opens an existing pipeline without creating folders, keys or
// journals. Missing folders list as empty; a missing journal means no history.
func openReadOnly(app *application, logger *slog.Logger) (*pipeline, error) {
	cfg := app.config
	layout, err := cfg.Layout()
	if err != nil {
		return nil, err
	}
	root, err := filepath.Abs(cfg.Folders.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}

	store, err := storage.NewFS(commonDir(append(layout.Dirs(), filepath.Dir(layout.KeyFile), root)...))
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	p := &pipeline{
		cfg:    cfg,
		logger: logger,
		layout: layout,
		store:  store,
		keys:   keystore.New(layout.KeyFile, keystore.WithLogger(logger)),
	}

	if cfg.Journal.Path != "" {
		if _, err := os.Stat(cfg.Journal.Path); err == nil {
			db, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return nil, fmt.Errorf("init journal: %w", err)
			}
			p.journal = db
		} else {
			logger.Info("journal: not found, history disabled", slog.String("path", cfg.Journal.Path))
		}
	}
	return p, nil
}
