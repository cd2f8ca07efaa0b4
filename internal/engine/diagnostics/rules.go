package diagnostics

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/php"
)

type Kind string

const (
	KindNotImported Kind = "not-imported"
	KindNotUsed     Kind = "not-used"
)

// Diagnostic is one finding. Line and characters are 0-based and characters
// count runes; EndCharacter is exclusive.
type Diagnostic struct {
	ID           string `json:"id"`
	Kind         Kind   `json:"kind"`
	ClassName    string `json:"className"`
	FQCN         string `json:"fqcn,omitempty"`
	Line         int    `json:"line"`
	Character    int    `json:"character"`
	EndCharacter int    `json:"endCharacter"`
	Message      string `json:"message"`
}

// Lookup answers whether a fully qualified class exists in the workspace.
type Lookup interface {
	Has(fqcn string) bool
}

type Options struct {
	NotImported bool
	NotUsed     bool
	IgnoreList  []string
	// Indexed reports whether the index is complete. Not-imported findings
	// are skipped while it returns false.
	Indexed func() bool
}

// Compute returns the diagnostics for doc.
func Compute(doc ports.Document, lookup Lookup, opts Options) []Diagnostic {
	src := php.NewSource(doc.Text())
	decl, _ := php.Parse(doc, "")
	if decl == nil {
		return nil
	}

	var out []Diagnostic
	if opts.NotImported && (opts.Indexed == nil || opts.Indexed()) {
		out = append(out, NotImported(src, decl, lookup, opts.IgnoreList)...)
	}
	if opts.NotUsed {
		out = append(out, NotUsed(doc, src, decl)...)
	}
	return out
}

// NotImported reports every occurrence of a detected class that is neither
// imported, declared in the file, resolvable in the file's namespace nor
// ignored.
func NotImported(src *php.Source, decl *php.Declarations, lookup Lookup, ignore []string) []Diagnostic {
	skip := make(map[string]bool)
	for _, name := range decl.ImportedClassNames() {
		skip[name] = true
	}
	for _, d := range php.ExtractDeclarations(src.Text) {
		skip[d.ClassName] = true
	}
	for _, name := range ignore {
		skip[strings.TrimSpace(name)] = true
	}

	missing := make(map[string]bool)
	for _, name := range src.DetectAll() {
		if skip[name] || resolvableInNamespace(decl.Namespace, name, lookup) {
			continue
		}
		missing[name] = true
	}
	if len(missing) == 0 {
		return nil
	}

	var out []Diagnostic
	for _, occ := range src.DetectAllWithPositions() {
		if !missing[occ.Name] {
			continue
		}
		out = append(out, Diagnostic{
			ID:           uuid.NewString(),
			Kind:         KindNotImported,
			ClassName:    occ.Name,
			Line:         occ.Line,
			Character:    occ.Character,
			EndCharacter: occ.Character + utf8.RuneCountInString(occ.Name),
			Message:      fmt.Sprintf("Class '%s' is not imported.", occ.Name),
		})
	}
	return out
}

func resolvableInNamespace(namespace, name string, lookup Lookup) bool {
	if namespace == "" {
		return php.IsBuiltinClass(name)
	}
	return lookup != nil && lookup.Has(namespace+`\`+name)
}

// NotUsed reports class imports whose name is never detected as a class
// reference nor starts a qualified name. Properties, constants and functions
// sharing the name do not count as uses.
func NotUsed(doc ports.Document, src *php.Source, decl *php.Declarations) []Diagnostic {
	detected := make(map[string]bool)
	for _, name := range src.DetectAll() {
		detected[name] = true
	}

	var out []Diagnostic
	for _, use := range decl.UseStatements {
		if use.Kind != php.UseClass {
			continue
		}
		if detected[use.ClassName] || src.HasPrefixReference(use.ClassName) {
			continue
		}
		line := use.Line - 1
		start, end := useRange(doc, line, use)
		out = append(out, Diagnostic{
			ID:           uuid.NewString(),
			Kind:         KindNotUsed,
			ClassName:    use.ClassName,
			FQCN:         use.FQCN,
			Line:         line,
			Character:    start,
			EndCharacter: end,
			Message:      fmt.Sprintf("Class '%s' is not used.", use.ClassName),
		})
	}
	return out
}

// useRange covers a single-import statement entirely and only the imported
// name when the statement imports several classes. Members of a multi-line
// group fall back to the opening line.
func useRange(doc ports.Document, line int, use php.UseStatement) (int, int) {
	if line < 0 || line >= doc.LineCount() {
		return 0, 0
	}
	text := strings.TrimRight(doc.LineAt(line), " \t\r")
	trimmed := strings.TrimLeft(text, " \t")
	lineStart := utf8.RuneCountInString(text[:len(text)-len(trimmed)])
	lineEnd := utf8.RuneCountInString(text)

	if trimmed == strings.TrimSpace(use.Text) && !strings.ContainsAny(trimmed, ",{") {
		return lineStart, lineEnd
	}
	if idx := nameIndex(text, use.ClassName); idx >= 0 {
		start := utf8.RuneCountInString(text[:idx])
		return start, start + utf8.RuneCountInString(use.ClassName)
	}
	return lineStart, lineEnd
}

// nameIndex finds name as a whole segment of an import line.
func nameIndex(text, name string) int {
	for from := 0; from < len(text); {
		idx := strings.Index(text[from:], name)
		if idx < 0 {
			return -1
		}
		idx += from
		end := idx + len(name)
		before := idx == 0 || strings.ContainsRune(" \t,{\\", rune(text[idx-1]))
		after := end == len(text) || strings.ContainsRune(" \t,;}", rune(text[end]))
		if before && after {
			return idx
		}
		from = idx + 1
	}
	return -1
}
