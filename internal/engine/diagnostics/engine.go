// Package diagnostics reconciles the classes a document uses with the
// classes it imports.
package diagnostics

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/index"
	"nsresolve/internal/shared/debounce"
	"nsresolve/internal/shared/observability"
)

// Index is the part of the namespace index diagnostics depend on.
type Index interface {
	Lookup
	Indexed() bool
	Generation() uint64
	Subscribe(fn func(index.Event)) func()
}

// Publisher receives the diagnostics computed for uri.
type Publisher func(uri string, diags []Diagnostic)

type EngineOptions struct {
	Debounce    time.Duration
	NotImported bool
	NotUsed     bool
	IgnoreList  []string
}

// token identifies the inputs a result was computed from.
type token struct {
	version    int64
	generation uint64
}

type tracked struct {
	doc      ports.Document
	stamp    token
	computed bool
	last     []Diagnostic
}

// Engine keeps the diagnostics of tracked documents current. Document
// changes recompute after a quiet period, index changes recompute at once.
type Engine struct {
	idx     Index
	opts    EngineOptions
	publish Publisher

	debouncer   *debounce.Debouncer
	unsubscribe func()

	mu   sync.Mutex
	docs map[string]*tracked
}

func NewEngine(idx Index, opts EngineOptions, publish Publisher) *Engine {
	if opts.Debounce <= 0 {
		opts.Debounce = 800 * time.Millisecond
	}
	if publish == nil {
		publish = func(string, []Diagnostic) {}
	}
	e := &Engine{
		idx:       idx,
		opts:      opts,
		publish:   publish,
		debouncer: debounce.New(opts.Debounce),
		docs:      make(map[string]*tracked),
	}
	e.unsubscribe = idx.Subscribe(e.OnIndexEvent)
	return e
}

// Update records a new snapshot of a document and schedules a debounced
// recomputation.
func (e *Engine) Update(doc ports.Document) {
	uri := doc.URI()
	e.mu.Lock()
	t, ok := e.docs[uri]
	if !ok {
		t = &tracked{}
		e.docs[uri] = t
	}
	t.doc = doc
	e.mu.Unlock()
	e.debouncer.Trigger(uri, func() { e.Refresh(context.Background(), uri) })
}

// Activate records doc and recomputes immediately.
func (e *Engine) Activate(ctx context.Context, doc ports.Document) []Diagnostic {
	uri := doc.URI()
	e.mu.Lock()
	t, ok := e.docs[uri]
	if !ok {
		t = &tracked{}
		e.docs[uri] = t
	}
	t.doc = doc
	e.mu.Unlock()
	e.debouncer.Cancel(uri)
	return e.Refresh(ctx, uri)
}

// Untrack forgets uri and publishes an empty result for it.
func (e *Engine) Untrack(uri string) {
	e.debouncer.Cancel(uri)
	e.mu.Lock()
	_, ok := e.docs[uri]
	delete(e.docs, uri)
	e.mu.Unlock()
	if ok {
		e.publish(uri, nil)
	}
}

// OnIndexEvent recomputes every tracked document.
func (e *Engine) OnIndexEvent(index.Event) {
	e.mu.Lock()
	uris := make([]string, 0, len(e.docs))
	for uri := range e.docs {
		uris = append(uris, uri)
	}
	e.mu.Unlock()
	for _, uri := range uris {
		e.Refresh(context.Background(), uri)
	}
}

// Tracks reports whether uri is kept current.
func (e *Engine) Tracks(uri string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	_, ok := e.docs[uri]
	return ok
}

// Diagnostics returns the last published result for uri.
func (e *Engine) Diagnostics(uri string) []Diagnostic {
	e.mu.Lock()
	defer e.mu.Unlock()
	if t, ok := e.docs[uri]; ok {
		return append([]Diagnostic(nil), t.last...)
	}
	return nil
}

// Refresh recomputes uri unless nothing changed since the last result, and
// returns the current diagnostics. A result whose inputs moved on while it
// was computed is discarded.
func (e *Engine) Refresh(ctx context.Context, uri string) []Diagnostic {
	e.mu.Lock()
	t, ok := e.docs[uri]
	if !ok {
		e.mu.Unlock()
		return nil
	}
	doc := t.doc
	tok := token{version: doc.Version(), generation: e.idx.Generation()}
	if t.computed && t.stamp == tok {
		last := append([]Diagnostic(nil), t.last...)
		e.mu.Unlock()
		return last
	}
	e.mu.Unlock()

	_, span := observability.Tracer.Start(ctx, "diagnostics.Refresh")
	start := time.Now()
	diags := Compute(doc, e.idx, Options{
		NotImported: e.opts.NotImported,
		NotUsed:     e.opts.NotUsed,
		IgnoreList:  e.opts.IgnoreList,
		Indexed:     e.idx.Indexed,
	})
	observability.DiagnosticsDuration.Observe(time.Since(start).Seconds())
	span.SetAttributes(attribute.Int("diagnostics", len(diags)))
	span.End()

	e.mu.Lock()
	current, ok := e.docs[uri]
	if !ok || current.doc.Version() != tok.version || e.idx.Generation() != tok.generation {
		e.mu.Unlock()
		observability.DiagnosticsStaleTotal.Inc()
		return nil
	}
	current.stamp = tok
	current.computed = true
	current.last = diags
	e.mu.Unlock()

	e.publish(uri, diags)
	return append([]Diagnostic(nil), diags...)
}

// Close stops pending recomputations and the index subscription.
func (e *Engine) Close() {
	if e.unsubscribe != nil {
		e.unsubscribe()
	}
	e.debouncer.Stop()
}
