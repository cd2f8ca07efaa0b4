// Package resolver turns short class names into fully qualified candidates.
package resolver

import (
	"context"
	"log/slog"
	"sort"

	"github.com/hbollon/go-edlib"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/index"
	"nsresolve/internal/engine/php"
	"nsresolve/internal/shared/observability"
)

type Source string

const (
	SourceProject Source = "project"
	SourceBuiltin Source = "builtin"
	SourceGlobal  Source = "global"
)

type ResolvedNamespace struct {
	FQCN   string `json:"fqcn"`
	Source Source `json:"source"`
	URI    string `json:"uri,omitempty"`
}

// Index is the part of the namespace index the resolver reads.
type Index interface {
	Lookup(className string) []index.CacheEntry
	Keys() []string
}

type Options struct {
	Roots   []string
	Exclude []string
}

type Resolver struct {
	idx  Index
	fs   ports.FileSystem
	opts Options
}

func New(idx Index, fsys ports.FileSystem, opts Options) *Resolver {
	return &Resolver{idx: idx, fs: fsys, opts: opts}
}

// Resolve returns the candidates for className. A built-in class always
// comes first. Workspace files named after the class are searched when the
// index knows nothing about it.
func (r *Resolver) Resolve(ctx context.Context, className string) ([]ResolvedNamespace, error) {
	ctx, span := observability.Tracer.Start(ctx, "resolver.Resolve")
	defer span.End()

	className = php.LastSegment(className)
	if className == "" {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "class name must not be empty")
	}

	var found []ResolvedNamespace
	for _, entry := range r.idx.Lookup(className) {
		found = append(found, ResolvedNamespace{FQCN: entry.FQCN, Source: SourceProject, URI: entry.URI})
	}
	if len(found) == 0 {
		searched, err := r.searchFiles(ctx, className)
		if err != nil {
			return nil, err
		}
		found = searched
	}
	if php.IsBuiltinClass(className) {
		found = append([]ResolvedNamespace{{FQCN: className, Source: SourceBuiltin}}, found...)
	}

	out := dedupe(found)
	if len(out) > 0 {
		observability.ResolveTotal.WithLabelValues(string(out[0].Source)).Inc()
	} else {
		observability.ResolveTotal.WithLabelValues("none").Inc()
	}
	return out, nil
}

func (r *Resolver) searchFiles(ctx context.Context, className string) ([]ResolvedNamespace, error) {
	if r.fs == nil {
		return nil, nil
	}
	include := []string{"**/" + className + ".php"}
	var out []ResolvedNamespace
	for _, root := range r.opts.Roots {
		ids, err := r.fs.Enumerate(ctx, root, include, r.opts.Exclude)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("class file search failed", "root", root, "class", className, "error", err)
			continue
		}
		for _, id := range ids {
			data, err := r.fs.ReadFile(ctx, id)
			if err != nil {
				slog.Warn("failed to read class file", "path", id, "error", err)
				continue
			}
			if ns := php.ExtractNamespace(string(data)); ns != "" {
				out = append(out, ResolvedNamespace{FQCN: ns + `\` + className, Source: SourceProject, URI: id})
			} else {
				out = append(out, ResolvedNamespace{FQCN: className, Source: SourceGlobal, URI: id})
			}
		}
	}
	return out, nil
}

func dedupe(in []ResolvedNamespace) []ResolvedNamespace {
	seen := make(map[string]bool, len(in))
	out := make([]ResolvedNamespace, 0, len(in))
	for _, r := range in {
		if seen[r.FQCN] {
			continue
		}
		seen[r.FQCN] = true
		out = append(out, r)
	}
	return out
}

// PickNamespace returns the only candidate or asks picker to choose. ok is
// false when there is nothing to choose or the user cancelled.
func PickNamespace(ctx context.Context, candidates []ResolvedNamespace, picker ports.Picker) (ResolvedNamespace, bool, error) {
	switch len(candidates) {
	case 0:
		return ResolvedNamespace{}, false, nil
	case 1:
		return candidates[0], true, nil
	}
	if picker == nil {
		return ResolvedNamespace{}, false, domainErrors.New(domainErrors.CodeConflict, "several namespaces match and no picker is available")
	}
	options := make([]string, 0, len(candidates))
	for _, c := range candidates {
		options = append(options, c.FQCN)
	}
	choice, ok, err := picker.Pick(ctx, "Select namespace", options)
	if err != nil || !ok {
		return ResolvedNamespace{}, false, err
	}
	for _, c := range candidates {
		if c.FQCN == choice {
			return c, true, nil
		}
	}
	return ResolvedNamespace{}, false, domainErrors.Newf(domainErrors.CodeNotFound, "picked namespace %q is not a candidate", choice)
}

// Suggest returns indexed class names similar to className, best first.
func (r *Resolver) Suggest(className string, limit int) []string {
	type scored struct {
		name  string
		score float32
	}
	var hits []scored
	for _, key := range r.idx.Keys() {
		if key == className {
			continue
		}
		score, err := edlib.StringsSimilarity(className, key, edlib.JaroWinkler)
		if err != nil || score < 0.85 {
			continue
		}
		hits = append(hits, scored{name: key, score: score})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].name < hits[j].name
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.name)
	}
	return out
}
