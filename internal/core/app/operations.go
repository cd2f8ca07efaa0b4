package app

import (
	"context"
	"log/slog"
	"strings"
	"unicode/utf8"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/diagnostics"
	"nsresolve/internal/engine/edits"
	"nsresolve/internal/engine/index"
	"nsresolve/internal/engine/php"
	"nsresolve/internal/engine/resolver"
	"nsresolve/internal/shared/util"
)

// Result is the outcome of an editing operation. Edits apply to the document
// as it was read; Text is the content after them.
type Result struct {
	Path      string           `json:"path"`
	Text      string           `json:"text"`
	Edits     []ports.TextEdit `json:"edits"`
	FQCN      string           `json:"fqcn,omitempty"`
	Alias     string           `json:"alias,omitempty"`
	Imported  []string         `json:"imported,omitempty"`
	Removed   []string         `json:"removed,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
	Written   bool             `json:"written,omitempty"`
}

// Changed reports whether the operation produced any edit.
func (r Result) Changed() bool { return len(r.Edits) > 0 }

// Resolve returns the candidates for className. An unknown class fails with
// CodeNotFound carrying close indexed names as suggestions.
func (a *App) Resolve(ctx context.Context, className string) ([]resolver.ResolvedNamespace, error) {
	candidates, err := a.Resolver.Resolve(ctx, className)
	if err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		return candidates, nil
	}
	name := php.LastSegment(strings.TrimSpace(className))
	err = domainErrors.Newf(domainErrors.CodeNotFound, "no namespace found for %s", name)
	if suggestions := a.Resolver.Suggest(name, 3); len(suggestions) > 0 {
		err = domainErrors.AddContext(err, "suggestions", strings.Join(suggestions, ", "))
	}
	return nil, err
}

// Diagnose computes the diagnostics of the file at path right away.
func (a *App) Diagnose(ctx context.Context, path string) ([]diagnostics.Diagnostic, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	return a.Diagnostics.Activate(ctx, doc), nil
}

// ImportRequest names the class to import into the file at Path. A
// non-empty Alias is used as given instead of asking the prompter.
type ImportRequest struct {
	Path  string
	Class string
	Alias string
	Write bool
}

// ImportClass adds a use statement for the requested class. A short name is
// resolved first and ambiguity goes to the picker. When the short name is
// already taken the prompter is asked for an alias.
func (a *App) ImportClass(ctx context.Context, req ImportRequest) (Result, error) {
	doc, err := a.Docs.Open(ctx, req.Path)
	if err != nil {
		return Result{}, err
	}

	fqcn, ok, err := a.choose(ctx, req.Class)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Path: doc.URI(), Text: doc.Text(), Cancelled: true}, nil
	}

	alias := strings.TrimSpace(req.Alias)
	if alias == "" && edits.NeedsAlias(doc, fqcn) {
		alias, ok, err = a.askAlias(ctx, fqcn)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			return Result{Path: doc.URI(), Text: doc.Text(), FQCN: fqcn, Cancelled: true}, nil
		}
	}

	es, err := edits.ImportClass(doc, fqcn, edits.ImportOptions{
		Alias:            alias,
		LeadingSeparator: a.Config.Imports.LeadingSeparator,
	})
	if err != nil {
		return Result{}, domainErrors.AddContext(err, domainErrors.CtxPath, doc.URI())
	}
	res, err := a.finish(ctx, doc, es, true, req.Write)
	if err != nil {
		return Result{}, err
	}
	res.FQCN = fqcn
	res.Alias = alias
	return res, nil
}

// ImportAll imports every class the file uses without importing it.
// Classes with no candidate are skipped, several candidates go to the
// picker and a cancelled pick skips that class.
func (a *App) ImportAll(ctx context.Context, path string, write bool) (Result, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	found := diagnostics.Compute(doc, a.Index, diagnostics.Options{
		NotImported: true,
		IgnoreList:  a.Config.Diagnostics.IgnoreList,
		Indexed:     a.Index.Indexed,
	})

	seen := make(map[string]bool)
	var names []string
	for _, d := range found {
		if d.Kind != diagnostics.KindNotImported || seen[d.ClassName] {
			continue
		}
		seen[d.ClassName] = true
		names = append(names, d.ClassName)
	}

	var current ports.Document = doc
	var imported []string
	for _, name := range names {
		candidates, err := a.Resolver.Resolve(ctx, name)
		if err != nil {
			return Result{}, err
		}
		if len(candidates) == 0 {
			slog.Debug("no namespace found", "class", name)
			continue
		}
		picked, ok, err := resolver.PickNamespace(ctx, candidates, a.picker)
		if err != nil {
			return Result{}, err
		}
		if !ok {
			continue
		}
		es, err := edits.ImportClass(current, picked.FQCN, edits.ImportOptions{LeadingSeparator: a.Config.Imports.LeadingSeparator})
		if domainErrors.IsCode(err, domainErrors.CodeAlreadyImported) {
			continue
		}
		if err != nil {
			return Result{}, err
		}
		text, err := edits.Apply(current.Text(), es)
		if err != nil {
			return Result{}, err
		}
		current = NewTextDocument(doc.URI(), text, current.Version()+1)
		imported = append(imported, picked.FQCN)
	}

	var es []ports.TextEdit
	if len(imported) > 0 {
		es = []ports.TextEdit{replaceAll(doc, current.Text())}
	}
	res, err := a.finish(ctx, doc, es, true, write)
	if err != nil {
		return Result{}, err
	}
	res.Imported = imported
	return res, nil
}

// Expand replaces the class name at (line, char), 0-based, with its fully
// qualified name.
func (a *App) Expand(ctx context.Context, path string, line, char int, write bool) (Result, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	word := edits.WordAt(doc, line, char)
	if word == "" {
		return Result{}, domainErrors.New(domainErrors.CodeValidationError, "no class name at the cursor")
	}
	fqcn, ok, err := a.choose(ctx, word)
	if err != nil {
		return Result{}, err
	}
	if !ok {
		return Result{Path: doc.URI(), Text: doc.Text(), Cancelled: true}, nil
	}
	es, err := edits.ExpandClass(doc, line, char, fqcn, a.Config.Imports.LeadingSeparator)
	if err != nil {
		return Result{}, err
	}
	res, err := a.finish(ctx, doc, es, false, write)
	if err != nil {
		return Result{}, err
	}
	res.FQCN = fqcn
	return res, nil
}

// Sort orders the file's imports. An empty mode uses the configured one.
func (a *App) Sort(ctx context.Context, path, mode string, write bool) (Result, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	if mode == "" {
		mode = a.Config.Imports.SortMode
	}
	es, err := edits.SortImports(doc, edits.SortMode(mode))
	if err != nil {
		return Result{}, err
	}
	return a.finish(ctx, doc, es, false, write)
}

// RemoveUnused deletes the imports the file never references.
func (a *App) RemoveUnused(ctx context.Context, path string, write bool) (Result, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	var unused []string
	for _, d := range diagnostics.Compute(doc, a.Index, diagnostics.Options{NotUsed: true}) {
		unused = append(unused, d.ClassName)
	}
	es, err := edits.RemoveUnused(doc, unused)
	if err != nil {
		return Result{}, err
	}
	res, err := a.finish(ctx, doc, es, false, write)
	if err != nil {
		return Result{}, err
	}
	if len(es) > 0 {
		res.Removed = unused
	}
	return res, nil
}

// GenerateNamespace sets the file's namespace from the nearest
// composer.json autoload mappings.
func (a *App) GenerateNamespace(ctx context.Context, path string, write bool) (Result, error) {
	doc, err := a.Docs.Open(ctx, path)
	if err != nil {
		return Result{}, err
	}
	ns, err := resolver.GenerateNamespace(ctx, a.fs, util.FileID(path), a.Paths.ProjectRoot)
	if err != nil {
		return Result{}, err
	}
	es, err := edits.NamespaceEdit(doc, ns)
	if err != nil {
		return Result{}, err
	}
	res, err := a.finish(ctx, doc, es, false, write)
	if err != nil {
		return Result{}, err
	}
	res.FQCN = ns
	return res, nil
}

func (a *App) Status() index.Status {
	return a.Index.Status()
}

// choose resolves name to one fully qualified class. Names that already
// carry a namespace are taken as they are.
func (a *App) choose(ctx context.Context, name string) (string, bool, error) {
	name = strings.TrimSpace(name)
	if strings.Contains(strings.TrimPrefix(name, `\`), `\`) {
		return strings.TrimPrefix(name, `\`), true, nil
	}
	candidates, err := a.Resolve(ctx, name)
	if err != nil {
		return "", false, err
	}
	picked, ok, err := resolver.PickNamespace(ctx, candidates, a.picker)
	if err != nil || !ok {
		return "", false, err
	}
	return picked.FQCN, true, nil
}

func (a *App) askAlias(ctx context.Context, fqcn string) (string, bool, error) {
	if a.prompter == nil {
		return "", false, domainErrors.Newf(domainErrors.CodeConflict, "%s is already imported under its short name and no alias was given", php.LastSegment(fqcn))
	}
	alias, ok, err := a.prompter.Prompt(ctx, "Alias for "+fqcn, php.LastSegment(fqcn))
	if err != nil || !ok {
		return "", false, err
	}
	alias = strings.TrimSpace(alias)
	if alias == "" {
		return "", false, domainErrors.New(domainErrors.CodeValidationError, "alias must not be empty")
	}
	return alias, true, nil
}

// finish applies es to doc, sorts the imports afterwards when autoSort is
// set and configured, and writes the result when write is set.
func (a *App) finish(ctx context.Context, doc ports.Document, es []ports.TextEdit, autoSort, write bool) (Result, error) {
	res := Result{Path: doc.URI(), Text: doc.Text(), Edits: es}
	if len(es) == 0 {
		return res, nil
	}
	text, err := edits.Apply(doc.Text(), es)
	if err != nil {
		return Result{}, err
	}

	if autoSort && a.Config.Imports.AutoSort {
		next := NewTextDocument(doc.URI(), text, doc.Version()+1)
		sorted, err := edits.SortImports(next, edits.SortMode(a.Config.Imports.SortMode))
		switch {
		case domainErrors.IsCode(err, domainErrors.CodeNothingToSort):
		case err != nil:
			return Result{}, err
		case len(sorted) > 0:
			if text, err = edits.Apply(text, sorted); err != nil {
				return Result{}, err
			}
			res.Edits = []ports.TextEdit{replaceAll(doc, text)}
		}
	}
	res.Text = text

	if write {
		written, err := a.Docs.Write(ctx, doc.URI(), text)
		if err != nil {
			return Result{}, err
		}
		res.Written = true
		if a.Diagnostics.Tracks(written.URI()) {
			a.Diagnostics.Update(written)
		}
	}
	return res, nil
}

// replaceAll is one edit turning doc into text.
func replaceAll(doc ports.Document, text string) ports.TextEdit {
	last := doc.LineCount() - 1
	return ports.TextEdit{
		StartLine: 0,
		StartChar: 0,
		EndLine:   last,
		EndChar:   utf8.RuneCountInString(doc.LineAt(last)),
		NewText:   text,
	}
}
