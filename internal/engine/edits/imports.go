package edits

import (
	"sort"
	"strings"
	"unicode"

	domainErrors "nsresolve/internal/core/errors"
	"nsresolve/internal/core/ports"
	"nsresolve/internal/engine/php"
)

type SortMode string

const (
	SortLength       SortMode = "length"
	SortAlphabetical SortMode = "alphabetical"
	SortNatural      SortMode = "natural"
)

type ImportOptions struct {
	Alias            string
	LeadingSeparator bool
}

// UseStatementText renders the import line for fqcn.
func UseStatementText(fqcn string, opts ImportOptions) string {
	fqcn = strings.TrimPrefix(fqcn, `\`)
	if opts.LeadingSeparator {
		fqcn = `\` + fqcn
	}
	if opts.Alias != "" {
		return "use " + fqcn + " as " + opts.Alias + ";"
	}
	return "use " + fqcn + ";"
}

// ImportClass inserts a use statement for fqcn at the position the
// declarations dictate. It fails with CodeAlreadyImported when the exact
// statement is present.
func ImportClass(doc ports.Document, fqcn string, opts ImportOptions) ([]ports.TextEdit, error) {
	fqcn = strings.TrimPrefix(strings.TrimSpace(fqcn), `\`)
	if fqcn == "" {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "class name must not be empty")
	}
	decl, err := php.Parse(doc, fqcn)
	if err != nil {
		return nil, err
	}
	if use, ok := decl.FindImport(aliasOrShort(fqcn, opts.Alias)); ok && use.FQCN == fqcn {
		return nil, domainErrors.Newf(domainErrors.CodeAlreadyImported, "%s is already imported", fqcn)
	}

	pos := php.GetInsertPosition(decl.Lines)
	newText := pos.Prepend + UseStatementText(fqcn, opts) + pos.Append
	if pos.Line >= doc.LineCount() {
		newText = "\n" + newText
	}
	return []ports.TextEdit{{StartLine: pos.Line, EndLine: pos.Line, NewText: newText}}, nil
}

// NeedsAlias reports whether importing fqcn under its short name would clash
// with an existing import or a class declared in doc.
func NeedsAlias(doc ports.Document, fqcn string) bool {
	fqcn = strings.TrimPrefix(fqcn, `\`)
	short := php.LastSegment(fqcn)
	decl, err := php.Parse(doc, "")
	if err != nil {
		return false
	}
	if use, ok := decl.FindImport(short); ok && use.FQCN != fqcn {
		return true
	}
	for _, d := range php.ExtractDeclarations(doc.Text()) {
		if d.ClassName == short && d.FQCN != fqcn {
			return true
		}
	}
	return false
}

func aliasOrShort(fqcn, alias string) string {
	if alias != "" {
		return alias
	}
	return php.LastSegment(fqcn)
}

// ExpandClass replaces the class name under (line, char) with its fully
// qualified form.
func ExpandClass(doc ports.Document, line, char int, fqcn string, leadingSeparator bool) ([]ports.TextEdit, error) {
	if line < 0 || line >= doc.LineCount() {
		return nil, domainErrors.Newf(domainErrors.CodeValidationError, "line %d is outside the document", line)
	}
	text := []rune(doc.LineAt(line))
	start, end := wordAt(text, char)
	if start == end {
		return nil, domainErrors.New(domainErrors.CodeNotFound, "no class name at the cursor")
	}
	fqcn = strings.TrimPrefix(fqcn, `\`)
	if leadingSeparator {
		fqcn = `\` + fqcn
	}
	return []ports.TextEdit{{StartLine: line, StartChar: start, EndLine: line, EndChar: end, NewText: fqcn}}, nil
}

// WordAt returns the identifier touching char on line, or "".
func WordAt(doc ports.Document, line, char int) string {
	if line < 0 || line >= doc.LineCount() {
		return ""
	}
	text := []rune(doc.LineAt(line))
	start, end := wordAt(text, char)
	return string(text[start:end])
}

func wordAt(text []rune, char int) (int, int) {
	if char < 0 {
		char = 0
	}
	if char > len(text) {
		char = len(text)
	}
	start, end := char, char
	for start > 0 && isWordRune(text[start-1]) {
		start--
	}
	for end < len(text) && isWordRune(text[end]) {
		end++
	}
	return start, end
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type importLine struct {
	line int
	text string
}

// SortImports reorders single-line use statements in place. Fewer than two
// statements fail with CodeNothingToSort.
func SortImports(doc ports.Document, mode SortMode) ([]ports.TextEdit, error) {
	decl, err := php.Parse(doc, "")
	if err != nil {
		return nil, err
	}
	var lines []importLine
	seen := make(map[int]bool)
	for _, use := range decl.UseStatements {
		idx := use.Line - 1
		if seen[idx] || idx < 0 || idx >= doc.LineCount() {
			continue
		}
		seen[idx] = true
		text := strings.TrimSpace(doc.LineAt(idx))
		if !strings.HasPrefix(text, "use ") || !strings.HasSuffix(text, ";") {
			continue
		}
		lines = append(lines, importLine{line: idx, text: doc.LineAt(idx)})
	}
	if len(lines) < 2 {
		return nil, domainErrors.New(domainErrors.CodeNothingToSort, "nothing to sort")
	}

	sorted := make([]importLine, len(lines))
	copy(sorted, lines)
	less := lessFunc(mode)
	sort.SliceStable(sorted, func(i, j int) bool {
		return less(strings.TrimSpace(sorted[i].text), strings.TrimSpace(sorted[j].text))
	})

	var out []ports.TextEdit
	for i, l := range lines {
		if sorted[i].text == l.text {
			continue
		}
		out = append(out, ports.TextEdit{
			StartLine: l.line,
			EndLine:   l.line,
			EndChar:   runeLen(l.text),
			NewText:   sorted[i].text,
		})
	}
	return out, nil
}

func lessFunc(mode SortMode) func(a, b string) bool {
	switch mode {
	case SortAlphabetical:
		return func(a, b string) bool { return strings.ToLower(a) < strings.ToLower(b) }
	case SortNatural:
		return naturalLess
	default:
		return func(a, b string) bool {
			if len(a) != len(b) {
				return len(a) < len(b)
			}
			return strings.ToLower(a) < strings.ToLower(b)
		}
	}
}

// naturalLess compares case-insensitively, ordering digit runs by value.
func naturalLess(a, b string) bool {
	a, b = strings.ToLower(a), strings.ToLower(b)
	for a != "" && b != "" {
		da, db := leadingDigits(a), leadingDigits(b)
		if da != "" && db != "" {
			na, nb := strings.TrimLeft(da, "0"), strings.TrimLeft(db, "0")
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}
			a, b = a[len(da):], b[len(db):]
			continue
		}
		if a[0] != b[0] {
			return a[0] < b[0]
		}
		a, b = a[1:], b[1:]
	}
	return len(a) < len(b)
}

func leadingDigits(s string) string {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	return s[:i]
}

// RemoveUnused deletes the import lines whose class imports are all in
// unused. Lines that still import a used name are left alone.
func RemoveUnused(doc ports.Document, unused []string) ([]ports.TextEdit, error) {
	decl, err := php.Parse(doc, "")
	if err != nil {
		return nil, err
	}
	drop := make(map[string]bool, len(unused))
	for _, name := range unused {
		drop[name] = true
	}

	byLine := make(map[int][]php.UseStatement)
	var order []int
	for _, use := range decl.UseStatements {
		if _, ok := byLine[use.Line]; !ok {
			order = append(order, use.Line)
		}
		byLine[use.Line] = append(byLine[use.Line], use)
	}

	var out []ports.TextEdit
	for _, line := range order {
		uses := byLine[line]
		all := true
		for _, use := range uses {
			if use.Kind != php.UseClass || !drop[use.ClassName] {
				all = false
				break
			}
		}
		idx := line - 1
		if !all || idx < 0 || idx >= doc.LineCount() {
			continue
		}
		text := strings.TrimSpace(doc.LineAt(idx))
		if !strings.HasSuffix(text, ";") {
			continue
		}
		out = append(out, ports.TextEdit{StartLine: idx, EndLine: idx + 1, NewText: ""})
	}
	return out, nil
}

// NamespaceEdit sets the namespace declaration of doc to namespace,
// replacing an existing one or inserting one after the open tag.
func NamespaceEdit(doc ports.Document, namespace string) ([]ports.TextEdit, error) {
	namespace = strings.Trim(strings.TrimSpace(namespace), `\`)
	if namespace == "" {
		return nil, domainErrors.New(domainErrors.CodeValidationError, "namespace must not be empty")
	}
	decl, err := php.Parse(doc, "")
	if err != nil {
		return nil, err
	}
	statement := "namespace " + namespace + ";"

	if decl.Lines.Namespace != 0 {
		idx := decl.Lines.Namespace - 1
		text := doc.LineAt(idx)
		start := strings.Index(text, "namespace")
		if start < 0 {
			return nil, domainErrors.New(domainErrors.CodeInternal, "namespace line moved")
		}
		end := strings.Index(text[start:], ";")
		if end < 0 {
			return nil, domainErrors.New(domainErrors.CodeConflict, "namespace uses block syntax")
		}
		end += start + 1
		return []ports.TextEdit{{
			StartLine: idx,
			StartChar: runeLen(text[:start]),
			EndLine:   idx,
			EndChar:   runeLen(text[:end]),
			NewText:   statement,
		}}, nil
	}

	if decl.Lines.PHPTag == 0 {
		return []ports.TextEdit{{NewText: "<?php\n\n" + statement + "\n\n"}}, nil
	}
	newText := "\n" + statement + "\n"
	if decl.Lines.PHPTag >= doc.LineCount() {
		newText = "\n" + newText
	}
	return []ports.TextEdit{{StartLine: decl.Lines.PHPTag, EndLine: decl.Lines.PHPTag, NewText: newText}}, nil
}
