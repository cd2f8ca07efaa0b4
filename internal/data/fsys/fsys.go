// Package fsys is the operating-system implementation of ports.FileSystem.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	ignore "github.com/sabhiram/go-gitignore"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/shared/util"
)

var skipDirs = map[string]struct{}{
	".git":       {},
	".hg":        {},
	".svn":       {},
	".nsresolve": {},
}

type Options struct {
	RespectGitignore bool
}

type OS struct {
	opts Options
}

func New(opts Options) *OS {
	return &OS{opts: opts}
}

// Enumerate walks root and returns the ids of files whose root-relative path
// matches an include glob and no exclude glob. Unreadable entries are skipped.
func (o *OS) Enumerate(ctx context.Context, root string, include, exclude []string) ([]string, error) {
	root = filepath.Clean(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root %q: %w", root, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root %q is not a directory", root)
	}

	var gi *ignore.GitIgnore
	if o.opts.RespectGitignore {
		gi = loadGitignore(root)
	}

	var ids []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			slog.Debug("skipping unreadable path", "path", path, "error", walkErr)
			if d != nil && d.IsDir() && path != root {
				return filepath.SkipDir
			}
			return nil
		}
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := skipDirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}
		if !util.MatchGlobs(include, rel) || util.MatchGlobs(exclude, rel) {
			return nil
		}
		ids = append(ids, util.FileID(path))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

func (o *OS) ReadFile(ctx context.Context, id string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return os.ReadFile(filepath.FromSlash(id))
}

func (o *OS) Stat(ctx context.Context, id string) (ports.FileStat, error) {
	if err := ctx.Err(); err != nil {
		return ports.FileStat{}, err
	}
	info, err := os.Stat(filepath.FromSlash(id))
	if err != nil {
		return ports.FileStat{}, err
	}
	if info.IsDir() {
		return ports.FileStat{}, fmt.Errorf("%s is a directory", id)
	}
	return ports.FileStat{MTime: info.ModTime().UnixMilli(), Size: info.Size()}, nil
}

// IsNotExist reports whether err means the file is gone.
func IsNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
