package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"nsresolve/internal/core/config"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/core/watcher"
	"nsresolve/internal/data/fsys"
	"nsresolve/internal/data/store"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/engine/index"
	"nsresolve/internal/engine/resolver"
	"nsresolve/internal/shared/util"
)

// Options overrides the collaborators App builds from its config.
type Options struct {
	FileSystem    ports.FileSystem
	Store         ports.BlobStore
	Picker        ports.Picker
	Prompter      ports.Prompter
	OnDiagnostics diagnostics.Publisher
}

// App wires the index, resolver, diagnostics and edit producers of one
// workspace together.
type App struct {
	Config      *config.Config
	Paths       config.ResolvedPaths
	Index       *index.Index
	Resolver    *resolver.Resolver
	Diagnostics *diagnostics.Engine
	Docs        *DocumentStore

	fs       ports.FileSystem
	store    ports.BlobStore
	picker   ports.Picker
	prompter ports.Prompter

	watchMu       sync.Mutex
	activeWatcher *watcher.Watcher
	closeOnce     sync.Once
}

func New(cfg *config.Config, paths config.ResolvedPaths, opts Options) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if len(paths.Roots) == 0 {
		paths.Roots = []string{paths.ProjectRoot}
	}

	fileSystem := opts.FileSystem
	if fileSystem == nil {
		fileSystem = fsys.New(fsys.Options{RespectGitignore: cfg.Workspace.RespectGitignore})
	}
	blobs := opts.Store
	if blobs == nil {
		var err error
		blobs, err = store.Open(cfg.Index.Driver, paths.IndexPath, store.SQLiteOptions{BusyTimeout: cfg.Index.BusyTimeout})
		if err != nil {
			return nil, fmt.Errorf("open index store: %w", err)
		}
	}

	idx := index.New(fileSystem, blobs, index.Options{
		Roots:           paths.Roots,
		Include:         cfg.Workspace.Include,
		Exclude:         cfg.Workspace.Exclude,
		BatchSize:       cfg.Index.BatchSize,
		StatBatchSize:   cfg.Index.StatBatchSize,
		PersistDebounce: cfg.Index.PersistDebounce,
		Limiter:         util.NewPerSecond(cfg.Index.MaxFilesPerSecond),
	})

	res := resolver.New(idx, fileSystem, resolver.Options{
		Roots:   paths.Roots,
		Exclude: cfg.Workspace.Exclude,
	})

	engine := diagnostics.NewEngine(idx, diagnostics.EngineOptions{
		Debounce:    cfg.Diagnostics.Debounce,
		NotImported: cfg.Diagnostics.NotImportedEnabled(),
		NotUsed:     cfg.Diagnostics.NotUsedEnabled(),
		IgnoreList:  cfg.Diagnostics.IgnoreList,
	}, opts.OnDiagnostics)

	return &App{
		Config:      cfg,
		Paths:       paths,
		Index:       idx,
		Resolver:    res,
		Diagnostics: engine,
		Docs:        NewDocumentStore(fileSystem),
		fs:          fileSystem,
		store:       blobs,
		picker:      opts.Picker,
		prompter:    opts.Prompter,
	}, nil
}

// Initialize loads or builds the namespace index.
func (a *App) Initialize(ctx context.Context) error {
	if err := a.Index.Initialize(ctx); err != nil {
		return fmt.Errorf("initialize index: %w", err)
	}
	st := a.Index.Status()
	slog.Info("index ready", "files", st.Files, "classes", st.Classes, "generation", st.Generation)
	return nil
}

// SetPicker replaces the picker used to settle ambiguous candidates.
func (a *App) SetPicker(p ports.Picker) { a.picker = p }

// SetPrompter replaces the prompter used to ask for aliases.
func (a *App) SetPrompter(p ports.Prompter) { a.prompter = p }

// Close stops the watcher and diagnostics, flushes the index and closes the
// store. It is safe to call more than once.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		if err := a.stopWatcher(); err != nil {
			errs = append(errs, fmt.Errorf("stop watcher: %w", err))
		}
		a.Diagnostics.Close()
		if err := a.Index.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close index: %w", err))
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	})
	return errors.Join(errs...)
}
