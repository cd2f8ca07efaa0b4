package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/php"
	"nsresolve/internal/shared/observability"
	"nsresolve/internal/shared/util"
)

// Initialize loads the persisted index and refreshes it incrementally, or
// rebuilds from scratch when nothing usable was stored. The result is
// persisted before returning.
func (x *Index) Initialize(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "index.Initialize")
	defer span.End()

	x.state.Store(int32(Loading))
	start := time.Now()

	mode := "full"
	if baseline, ok := x.loadBaseline(ctx); ok {
		mode = "incremental"
		x.replay(baseline)
		if err := x.incrementalUpdate(ctx); err != nil {
			x.state.Store(int32(Uninitialized))
			return err
		}
	} else if err := x.fullBuild(ctx); err != nil {
		x.state.Store(int32(Uninitialized))
		return err
	}

	elapsed := time.Since(start)
	x.lastBuild.Store(int64(elapsed))
	observability.IndexBuildDuration.WithLabelValues(mode).Observe(elapsed.Seconds())
	span.SetAttributes(attribute.String("mode", mode))
	x.updateGauges()

	if err := x.persistNow(ctx); err != nil {
		slog.Warn("failed to persist namespace index", "error", err)
	}
	x.state.Store(int32(Ready))
	x.generation.Add(1)
	slog.Info("namespace index ready", "mode", mode, "files", x.Status().Files, "duration", elapsed)
	x.notify(EventBuilt, "")
	return nil
}

func (x *Index) loadBaseline(ctx context.Context) (*persistedIndex, bool) {
	if x.store == nil {
		return nil, false
	}
	data, err := x.store.Load(ctx)
	if err != nil {
		if !errors.Is(err, ports.ErrBlobNotFound) {
			slog.Warn("failed to load persisted index", "error", err)
		}
		return nil, false
	}
	baseline, err := decodePersisted(data)
	if err != nil {
		slog.Warn("discarding persisted index", "error", err)
		return nil, false
	}
	return baseline, true
}

func (x *Index) replay(p *persistedIndex) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.cache = make(map[string][]CacheEntry)
	x.files = make(map[string]fileRecord, len(p.Files))
	for _, uri := range util.SortedStringKeys(p.Files) {
		file := p.Files[uri]
		rec := fileRecord{MTime: int64(file.MTime), Entries: make([]CacheEntry, 0, len(file.Entries))}
		for _, e := range file.Entries {
			rec.Entries = append(rec.Entries, CacheEntry{FQCN: e.FQCN, URI: uri, ClassName: e.ClassName})
		}
		x.setFile(uri, rec)
	}
}

func (x *Index) enumerate(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, root := range x.opts.Roots {
		found, err := x.fs.Enumerate(ctx, root, x.opts.Include, x.opts.Exclude)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("failed to enumerate workspace root", "root", root, "error", err)
			continue
		}
		for _, id := range found {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (x *Index) fullBuild(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "index.fullBuild")
	defer span.End()

	x.indexed.Store(false)
	defer x.indexed.Store(true)

	x.mu.Lock()
	x.cache = make(map[string][]CacheEntry)
	x.files = make(map[string]fileRecord)
	x.mu.Unlock()

	ids, err := x.enumerate(ctx)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.Int("files", len(ids)))
	_, err = x.indexFiles(ctx, ids)
	return err
}

func (x *Index) incrementalUpdate(ctx context.Context) error {
	ctx, span := observability.Tracer.Start(ctx, "index.incrementalUpdate")
	defer span.End()

	ids, err := x.enumerate(ctx)
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		present[id] = struct{}{}
	}
	x.mu.Lock()
	removed := 0
	for _, uri := range util.SortedStringKeys(x.files) {
		if _, ok := present[uri]; !ok {
			x.removeFile(uri)
			removed++
		}
	}
	x.mu.Unlock()

	var stale []string
	for start := 0; start < len(ids); start += x.opts.StatBatchSize {
		end := min(start+x.opts.StatBatchSize, len(ids))
		batch := ids[start:end]
		stats := make([]statResult, len(batch))

		g, gCtx := errgroup.WithContext(ctx)
		for i, id := range batch {
			g.Go(func() error {
				st, err := x.fs.Stat(gCtx, id)
				stats[i] = statResult{stat: st, err: err}
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return err
		}

		x.mu.RLock()
		for i, id := range batch {
			if stats[i].err != nil {
				observability.IndexFileErrorsTotal.WithLabelValues("stat").Inc()
				slog.Warn("failed to stat file", "path", id, "error", stats[i].err)
				continue
			}
			rec, ok := x.files[id]
			if !ok || rec.MTime != stats[i].stat.MTime {
				stale = append(stale, id)
			}
		}
		x.mu.RUnlock()
	}

	span.SetAttributes(attribute.Int("stale", len(stale)), attribute.Int("removed", removed))
	changed, err := x.indexFiles(ctx, stale)
	if err != nil {
		return err
	}
	if changed > 0 || removed > 0 {
		x.dirty.Store(true)
	}
	slog.Debug("incremental index update", "files", len(ids), "reindexed", len(stale), "changed", changed, "removed", removed)
	return nil
}

type statResult struct {
	stat ports.FileStat
	err  error
}

type readResult struct {
	id    string
	stat  ports.FileStat
	hash  uint64
	decls []php.Declared
	err   error
	stage string
}

// indexFiles reads ids in sequential batches with concurrent reads inside a
// batch, then applies each batch under the lock. It returns how many files
// changed their entries.
func (x *Index) indexFiles(ctx context.Context, ids []string) (int, error) {
	changed := 0
	for start := 0; start < len(ids); start += x.opts.BatchSize {
		end := min(start+x.opts.BatchSize, len(ids))
		batch := ids[start:end]
		results := make([]readResult, len(batch))

		g, gCtx := errgroup.WithContext(ctx)
		for i, id := range batch {
			g.Go(func() error {
				results[i] = x.readFile(gCtx, id)
				return nil
			})
		}
		_ = g.Wait()
		if err := ctx.Err(); err != nil {
			return changed, err
		}

		x.mu.Lock()
		for _, res := range results {
			if res.err != nil {
				observability.IndexFileErrorsTotal.WithLabelValues(res.stage).Inc()
				slog.Warn("failed to index file", "path", res.id, "stage", res.stage, "error", res.err)
				continue
			}
			if x.setFile(res.id, newRecord(res)) {
				changed++
			}
		}
		x.mu.Unlock()
	}
	return changed, nil
}

func (x *Index) readFile(ctx context.Context, id string) readResult {
	res := readResult{id: id}
	if err := x.opts.Limiter.Wait(ctx, 1); err != nil {
		res.err, res.stage = err, "throttle"
		return res
	}
	st, err := x.fs.Stat(ctx, id)
	if err != nil {
		res.err, res.stage = err, "stat"
		return res
	}
	data, err := x.fs.ReadFile(ctx, id)
	if err != nil {
		res.err, res.stage = err, "read"
		return res
	}
	res.stat = st
	res.hash = util.ContentHash(data)
	res.decls = php.ExtractDeclarations(string(data))
	return res
}

func newRecord(res readResult) fileRecord {
	rec := fileRecord{MTime: res.stat.MTime, Hash: res.hash, Entries: make([]CacheEntry, 0, len(res.decls))}
	for _, d := range res.decls {
		rec.Entries = append(rec.Entries, CacheEntry{FQCN: d.FQCN, URI: res.id, ClassName: d.ClassName})
	}
	return rec
}

// Reindex refreshes one file after it was created or changed. A file that
// no longer exists is removed instead.
func (x *Index) Reindex(ctx context.Context, uri string) error {
	ctx, span := observability.Tracer.Start(ctx, "index.Reindex")
	defer span.End()

	uri = util.FileID(uri)
	res := x.readFile(ctx, uri)
	if res.err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if res.stage == "stat" || res.stage == "read" {
			if x.Remove(uri) {
				return nil
			}
		}
		observability.IndexFileErrorsTotal.WithLabelValues(res.stage).Inc()
		slog.Warn("failed to reindex file", "path", uri, "stage", res.stage, "error", res.err)
		return nil
	}

	x.mu.Lock()
	old, existed := x.files[uri]
	if existed && old.Hash == res.hash && old.Hash != 0 {
		old.MTime = res.stat.MTime
		x.files[uri] = old
		x.mu.Unlock()
		x.schedulePersist()
		return nil
	}
	changed := x.setFile(uri, newRecord(res))
	x.mu.Unlock()

	x.schedulePersist()
	if !changed {
		return nil
	}
	x.generation.Add(1)
	x.updateGauges()
	x.notify(EventUpdated, uri)
	return nil
}

// Remove forgets a deleted file. It reports whether the file was indexed.
func (x *Index) Remove(uri string) bool {
	uri = util.FileID(uri)
	x.mu.Lock()
	removed := x.removeFile(uri)
	x.mu.Unlock()
	if !removed {
		return false
	}
	x.schedulePersist()
	x.generation.Add(1)
	x.updateGauges()
	x.notify(EventRemoved, uri)
	return true
}

func (x *Index) schedulePersist() {
	x.dirty.Store(true)
	x.persister.Trigger("persist", func() {
		if err := x.persistNow(context.Background()); err != nil {
			slog.Warn("failed to persist namespace index", "error", err)
		}
	})
}

// Persist writes the index now, outside the debounce window.
func (x *Index) Persist(ctx context.Context) error {
	return x.persistNow(ctx)
}

func (x *Index) persistNow(ctx context.Context) error {
	if x.store == nil {
		x.dirty.Store(false)
		return nil
	}
	x.persistMu.Lock()
	defer x.persistMu.Unlock()

	x.dirty.Store(false)
	x.mu.RLock()
	data, err := encodePersisted(x.files)
	x.mu.RUnlock()
	if err != nil {
		observability.IndexPersistTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("encode index: %w", err)
	}
	if err := x.store.Save(ctx, data); err != nil {
		x.dirty.Store(true)
		observability.IndexPersistTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.IndexPersistTotal.WithLabelValues("ok").Inc()
	return nil
}
