// Package index maintains the workspace-wide map from short class names to
// the fully qualified classes declared in workspace files.
package index

import (
	"context"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/shared/debounce"
	"nsresolve/internal/shared/observability"
	"nsresolve/internal/shared/util"
)

type State int32

const (
	Uninitialized State = iota
	Loading
	Ready
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	default:
		return "uninitialized"
	}
}

// CacheEntry is one class-like declaration found in a workspace file.
type CacheEntry struct {
	FQCN      string `json:"fqcn"`
	URI       string `json:"uri"`
	ClassName string `json:"className"`
}

type EventKind string

const (
	EventBuilt   EventKind = "built"
	EventUpdated EventKind = "updated"
	EventRemoved EventKind = "removed"
)

// Event is delivered to subscribers after the index changed.
type Event struct {
	Kind       EventKind
	URI        string
	Generation uint64
}

type Options struct {
	Roots   []string
	Include []string
	Exclude []string

	BatchSize       int
	StatBatchSize   int
	PersistDebounce time.Duration
	Limiter         *util.Limiter
}

const (
	defaultBatchSize     = 64
	defaultStatBatchSize = 256
)

type fileRecord struct {
	MTime   int64
	Hash    uint64
	Entries []CacheEntry
}

type Index struct {
	fs    ports.FileSystem
	store ports.BlobStore
	opts  Options

	mu    sync.RWMutex
	cache map[string][]CacheEntry
	files map[string]fileRecord

	state      atomic.Int32
	indexed    atomic.Bool
	generation atomic.Uint64
	dirty      atomic.Bool
	lastBuild  atomic.Int64

	persister *debounce.Debouncer
	persistMu sync.Mutex

	listenersMu  sync.Mutex
	listeners    map[int]func(Event)
	nextListener int
}

func New(fsys ports.FileSystem, store ports.BlobStore, opts Options) *Index {
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	if opts.StatBatchSize <= 0 {
		opts.StatBatchSize = defaultStatBatchSize
	}
	if opts.PersistDebounce <= 0 {
		opts.PersistDebounce = 2 * time.Second
	}
	if len(opts.Include) == 0 {
		opts.Include = []string{"**/*.php"}
	}
	if len(opts.Roots) == 0 {
		opts.Roots = []string{"."}
	}
	roots := make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		roots = append(roots, util.FileID(root))
	}
	opts.Roots = roots

	idx := &Index{
		fs:        fsys,
		store:     store,
		opts:      opts,
		cache:     make(map[string][]CacheEntry),
		files:     make(map[string]fileRecord),
		persister: debounce.New(opts.PersistDebounce),
		listeners: make(map[int]func(Event)),
	}
	idx.indexed.Store(true)
	return idx
}

// Lookup returns the entries declared under className. It never waits for
// indexing in progress.
func (x *Index) Lookup(className string) []CacheEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	entries := x.cache[className]
	if len(entries) == 0 {
		return []CacheEntry{}
	}
	out := make([]CacheEntry, len(entries))
	copy(out, entries)
	return out
}

// Has reports whether fqcn is declared anywhere in the workspace.
func (x *Index) Has(fqcn string) bool {
	for _, entry := range x.Lookup(shortName(fqcn)) {
		if entry.FQCN == fqcn {
			return true
		}
	}
	return false
}

// Indexed is false while a full build is running.
func (x *Index) Indexed() bool { return x.indexed.Load() }

func (x *Index) State() State { return State(x.state.Load()) }

// Generation increases on every change to the indexed entries.
func (x *Index) Generation() uint64 { return x.generation.Load() }

// Keys returns the indexed short class names in sorted order.
func (x *Index) Keys() []string {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return util.SortedStringKeys(x.cache)
}

// FileEntries returns the entries indexed for one file.
func (x *Index) FileEntries(uri string) []CacheEntry {
	x.mu.RLock()
	defer x.mu.RUnlock()
	rec, ok := x.files[uri]
	if !ok {
		return nil
	}
	out := make([]CacheEntry, len(rec.Entries))
	copy(out, rec.Entries)
	return out
}

// Tracks reports whether uri lies under a workspace root and matches the
// include and exclude globs.
func (x *Index) Tracks(uri string) bool {
	uri = util.FileID(uri)
	for _, root := range x.opts.Roots {
		if !util.HasPathPrefix(uri, root) {
			continue
		}
		rel, err := filepath.Rel(filepath.FromSlash(root), filepath.FromSlash(uri))
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if util.MatchGlobs(x.opts.Include, rel) && !util.MatchGlobs(x.opts.Exclude, rel) {
			return true
		}
	}
	return false
}

// Roots returns the normalized workspace roots.
func (x *Index) Roots() []string {
	return append([]string(nil), x.opts.Roots...)
}

// Subscribe registers fn for index events and returns its cancel function.
func (x *Index) Subscribe(fn func(Event)) func() {
	x.listenersMu.Lock()
	defer x.listenersMu.Unlock()
	id := x.nextListener
	x.nextListener++
	x.listeners[id] = fn
	return func() {
		x.listenersMu.Lock()
		delete(x.listeners, id)
		x.listenersMu.Unlock()
	}
}

func (x *Index) notify(kind EventKind, uri string) {
	ev := Event{Kind: kind, URI: uri, Generation: x.Generation()}
	x.listenersMu.Lock()
	fns := make([]func(Event), 0, len(x.listeners))
	ids := make([]int, 0, len(x.listeners))
	for id := range x.listeners {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		fns = append(fns, x.listeners[id])
	}
	x.listenersMu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

type Status struct {
	State      string        `json:"state"`
	Indexed    bool          `json:"indexed"`
	Files      int           `json:"files"`
	Classes    int           `json:"classes"`
	Entries    int           `json:"entries"`
	Generation uint64        `json:"generation"`
	LastBuild  time.Duration `json:"lastBuildNanos"`
	HeapMB     float64       `json:"heapMB"`
}

func (x *Index) Status() Status {
	x.mu.RLock()
	files := len(x.files)
	classes := len(x.cache)
	entries := 0
	for _, list := range x.cache {
		entries += len(list)
	}
	x.mu.RUnlock()
	return Status{
		State:      x.State().String(),
		Indexed:    x.Indexed(),
		Files:      files,
		Classes:    classes,
		Entries:    entries,
		Generation: x.Generation(),
		LastBuild:  time.Duration(x.lastBuild.Load()),
		HeapMB:     util.GetHeapAllocMB(),
	}
}

// Close drops pending timers and listeners and writes unsaved changes.
func (x *Index) Close(ctx context.Context) error {
	x.persister.Stop()
	x.listenersMu.Lock()
	x.listeners = make(map[int]func(Event))
	x.listenersMu.Unlock()
	if x.dirty.Load() {
		return x.persistNow(ctx)
	}
	return nil
}

// setFile replaces the entries of uri. Callers hold x.mu.
func (x *Index) setFile(uri string, rec fileRecord) bool {
	old, existed := x.files[uri]
	changed := !existed || !sameEntries(old.Entries, rec.Entries)
	if existed {
		x.dropEntries(uri, old.Entries)
	}
	for _, entry := range rec.Entries {
		x.cache[entry.ClassName] = append(x.cache[entry.ClassName], entry)
	}
	x.files[uri] = rec
	return changed
}

// removeFile forgets uri. Callers hold x.mu.
func (x *Index) removeFile(uri string) bool {
	old, ok := x.files[uri]
	if !ok {
		return false
	}
	x.dropEntries(uri, old.Entries)
	delete(x.files, uri)
	return true
}

func (x *Index) dropEntries(uri string, entries []CacheEntry) {
	for _, entry := range entries {
		list := x.cache[entry.ClassName]
		kept := list[:0]
		for _, e := range list {
			if e.URI != uri {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(x.cache, entry.ClassName)
		} else {
			x.cache[entry.ClassName] = kept
		}
	}
}

func (x *Index) updateGauges() {
	x.mu.RLock()
	observability.IndexFiles.Set(float64(len(x.files)))
	observability.IndexClasses.Set(float64(len(x.cache)))
	x.mu.RUnlock()
}

func sameEntries(a, b []CacheEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func shortName(fqcn string) string {
	for i := len(fqcn) - 1; i >= 0; i-- {
		if fqcn[i] == '\\' {
			return fqcn[i+1:]
		}
	}
	return fqcn
}
