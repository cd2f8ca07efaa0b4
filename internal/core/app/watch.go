package app

import (
	"context"
	"log/slog"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/watcher"
	"nsresolve/internal/shared/util"
)

// StartWatcher follows the workspace roots and keeps the index and tracked
// documents in step with the disk.
func (a *App) StartWatcher(ctx context.Context) error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher != nil {
		return domainErrors.New(domainErrors.CodeConflict, "watcher already running")
	}

	w, err := watcher.NewWatcher(
		a.Config.Index.FileDebounce,
		a.Config.Watch.ExcludeDirs,
		nil,
		func(ev watcher.Event) { a.HandleChange(ctx, ev) },
	)
	if err != nil {
		return err
	}
	if err := w.Watch(a.Paths.Roots); err != nil {
		w.Close()
		return err
	}
	a.activeWatcher = w
	slog.Info("watching workspace", "roots", a.Paths.Roots)
	return nil
}

// Watch runs the watcher until ctx is done.
func (a *App) Watch(ctx context.Context) error {
	if err := a.StartWatcher(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return a.stopWatcher()
}

// HandleChange applies one settled file event.
func (a *App) HandleChange(ctx context.Context, ev watcher.Event) {
	uri := util.FileID(ev.Path)
	a.Docs.Forget(uri)

	switch ev.Op {
	case watcher.OpDeleted:
		a.Index.Remove(uri)
		a.Diagnostics.Untrack(uri)
		return
	case watcher.OpChanged:
		if !a.Index.Tracks(uri) {
			return
		}
		if err := a.Index.Reindex(ctx, uri); err != nil {
			slog.Warn("failed to reindex file", "path", uri, "error", err)
			return
		}
	}

	if !a.Diagnostics.Tracks(uri) {
		return
	}
	doc, err := a.Docs.Open(ctx, uri)
	if err != nil {
		slog.Debug("tracked document unreadable", "path", uri, "error", err)
		return
	}
	a.Diagnostics.Update(doc)
}

func (a *App) stopWatcher() error {
	a.watchMu.Lock()
	defer a.watchMu.Unlock()
	if a.activeWatcher == nil {
		return nil
	}
	err := a.activeWatcher.Close()
	a.activeWatcher = nil
	return err
}
