package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/shared/util"
)

// TextDocument is an immutable snapshot of a file's content.
type TextDocument struct {
	uri     string
	version int64
	text    string
	lines   []string
}

func NewTextDocument(uri, text string, version int64) *TextDocument {
	return &TextDocument{
		uri:     uri,
		version: version,
		text:    text,
		lines:   strings.Split(text, "\n"),
	}
}

func (d *TextDocument) URI() string    { return d.uri }
func (d *TextDocument) Version() int64 { return d.version }
func (d *TextDocument) LineCount() int { return len(d.lines) }
func (d *TextDocument) Text() string   { return d.text }

// LineAt returns line i without its terminator, or "" when out of range.
func (d *TextDocument) LineAt(i int) string {
	if i < 0 || i >= len(d.lines) {
		return ""
	}
	return strings.TrimSuffix(d.lines[i], "\r")
}

type docEntry struct {
	doc   *TextDocument
	hash  uint64
	stale bool
}

// DocumentStore hands out document snapshots backed by files on disk. A
// document's version only moves when its content hash changes.
type DocumentStore struct {
	fs ports.FileSystem

	mu   sync.RWMutex
	docs map[string]docEntry
}

func NewDocumentStore(fsys ports.FileSystem) *DocumentStore {
	return &DocumentStore{fs: fsys, docs: make(map[string]docEntry)}
}

// Open reads path and returns its current snapshot.
func (s *DocumentStore) Open(ctx context.Context, path string) (*TextDocument, error) {
	uri := util.FileID(path)
	data, err := s.fs.ReadFile(ctx, uri)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return s.put(uri, string(data)), nil
}

// Update replaces the content of uri without touching the disk.
func (s *DocumentStore) Update(uri, text string) *TextDocument {
	return s.put(util.FileID(uri), text)
}

// Write stores text at uri atomically, keeping the file mode, and returns
// the new snapshot.
func (s *DocumentStore) Write(ctx context.Context, uri, text string) (*TextDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	uri = util.FileID(uri)
	perm := os.FileMode(0o644)
	if info, err := os.Stat(uri); err == nil {
		perm = info.Mode().Perm()
	}
	if err := util.WriteFileAtomic(uri, []byte(text), perm); err != nil {
		return nil, fmt.Errorf("write %s: %w", uri, err)
	}
	return s.put(uri, text), nil
}

// Get returns the cached snapshot of uri.
func (s *DocumentStore) Get(uri string) (*TextDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.docs[util.FileID(uri)]
	if !ok || e.stale {
		return nil, false
	}
	return e.doc, true
}

// Forget drops the cached content of uri. Its version keeps counting so a
// later snapshot never reuses an old version.
func (s *DocumentStore) Forget(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uri = util.FileID(uri)
	if e, ok := s.docs[uri]; ok {
		e.stale = true
		s.docs[uri] = e
	}
}

func (s *DocumentStore) put(uri, text string) *TextDocument {
	hash := util.ContentHash([]byte(text))
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.docs[uri]
	if ok && !prev.stale && prev.hash == hash {
		return prev.doc
	}
	version := int64(1)
	if ok {
		version = prev.doc.version + 1
	}
	doc := NewTextDocument(uri, text, version)
	s.docs[uri] = docEntry{doc: doc, hash: hash}
	return doc
}
