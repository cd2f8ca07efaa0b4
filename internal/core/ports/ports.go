package ports

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by BlobStore.Load when nothing was saved yet.
var ErrBlobNotFound = errors.New("blob not found")

// Document is a read-only snapshot of one open file. Lines are 0-based and
// carry no terminator. Version increases whenever the content changes.
type Document interface {
	URI() string
	Version() int64
	LineCount() int
	LineAt(i int) string
	Text() string
}

// FileStat is the subset of file metadata the index compares.
type FileStat struct {
	// MTime is the modification time in Unix milliseconds.
	MTime int64
	Size  int64
}

// FileSystem enumerates and reads workspace files. Errors are per file and
// must never abort a batch.
type FileSystem interface {
	// Enumerate returns the file identifiers under root matching any include
	// glob and no exclude glob.
	Enumerate(ctx context.Context, root string, include, exclude []string) ([]string, error)
	ReadFile(ctx context.Context, id string) ([]byte, error)
	Stat(ctx context.Context, id string) (FileStat, error)
}

// BlobStore keeps the single persisted index blob.
type BlobStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
	Close() error
}

// Picker asks the user to choose one option. ok is false when cancelled.
type Picker interface {
	Pick(ctx context.Context, title string, options []string) (choice string, ok bool, err error)
}

// Prompter asks the user for a free-form value. ok is false when cancelled.
type Prompter interface {
	Prompt(ctx context.Context, title, placeholder string) (value string, ok bool, err error)
}

// TextEdit replaces the 0-based range [Start, End) with NewText. Lines and
// characters follow the Document line model.
type TextEdit struct {
	StartLine int    `json:"startLine"`
	StartChar int    `json:"startChar"`
	EndLine   int    `json:"endLine"`
	EndChar   int    `json:"endChar"`
	NewText   string `json:"newText"`
}
