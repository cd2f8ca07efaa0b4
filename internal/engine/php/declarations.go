package php

import (
	"regexp"
	"strings"

	domainErrors "nsresolve/internal/core/errors"
)

// Lines is the read-only view of a document the parser needs.
type Lines interface {
	LineCount() int
	LineAt(i int) string
}

type textLines []string

func (t textLines) LineCount() int      { return len(t) }
func (t textLines) LineAt(i int) string { return t[i] }

// TextLines splits text on '\n' into a Lines view. Trailing '\r' is dropped.
func TextLines(text string) Lines {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	return textLines(lines)
}

// UseKind tells class imports apart from `use function` and `use const`.
type UseKind string

const (
	UseClass    UseKind = "class"
	UseFunction UseKind = "function"
	UseConst    UseKind = "const"
)

// UseStatement is one imported name. ClassName is Alias when set, otherwise
// the last segment of FQCN. Line is 1-based.
type UseStatement struct {
	Text      string  `json:"text"`
	Line      int     `json:"line"`
	FQCN      string  `json:"fqcn"`
	Alias     string  `json:"alias,omitempty"`
	ClassName string  `json:"className"`
	Kind      UseKind `json:"kind"`
}

// DeclarationLines holds 1-based anchor lines, 0 when absent.
type DeclarationLines struct {
	PHPTag            int `json:"phpTag"`
	Namespace         int `json:"namespace"`
	FirstUseStatement int `json:"firstUseStatement"`
	LastUseStatement  int `json:"lastUseStatement"`
	ClassDeclaration  int `json:"classDeclaration"`
}

// Declarations is the result of one parse.
type Declarations struct {
	UseStatements []UseStatement
	Lines         DeclarationLines
	Namespace     string
}

var (
	namespaceLinePattern = regexp.MustCompile(`^(?:<\?php\s+)?namespace(?:\s+\\?([A-Za-z_][\w\\]*))?\s*(?:[;{]|$)`)
	useLinePattern       = regexp.MustCompile(`^use\s+[^(\s]`)
	useBodyPattern       = regexp.MustCompile(`^use\s+(?:(function|const)\s+)?([\s\S]+?)\s*;`)
	useClausePattern     = regexp.MustCompile(`^(?:(function|const)\s+)?\\?([A-Za-z_][\w\\]*)(?:\s+as\s+([A-Za-z_]\w*))?$`)
	typeDeclPattern      = regexp.MustCompile(`^(?:(?:abstract|final|readonly)\s+)*(?:class|trait|interface|enum)\s+[A-Za-z_]`)
)

// Parse scans doc top to bottom for the open tag, namespace, use statements
// and the first type declaration. Scanning ends at the type declaration since
// `use` lines after it belong to the class body. When pickedClass is set, a
// line reading exactly `use pickedClass;` fails the parse with
// CodeAlreadyImported.
func Parse(doc Lines, pickedClass string) (*Declarations, error) {
	n := doc.LineCount()
	raw := make([]string, n)
	for i := 0; i < n; i++ {
		raw[i] = doc.LineAt(i)
	}
	code := strings.Split(Sanitize(strings.Join(raw, "\n")), "\n")

	picked := ""
	if pickedClass != "" {
		picked = "use " + strings.TrimPrefix(pickedClass, `\`) + ";"
	}

	decl := &Declarations{UseStatements: []UseStatement{}}
	for i := 0; i < n; i++ {
		lineNo := i + 1
		original := strings.TrimSpace(raw[i])
		trimmed := strings.TrimSpace(code[i])

		if picked != "" && original == picked {
			return nil, domainErrors.AddContext(
				domainErrors.Newf(domainErrors.CodeAlreadyImported, "%s is already imported", strings.TrimPrefix(pickedClass, `\`)),
				domainErrors.CtxLine, lineNo)
		}
		if trimmed == "" {
			continue
		}

		if decl.Lines.PHPTag == 0 && strings.HasPrefix(trimmed, "<?php") {
			decl.Lines.PHPTag = lineNo
		}

		if m := namespaceLinePattern.FindStringSubmatch(trimmed); m != nil {
			if decl.Lines.Namespace == 0 {
				decl.Lines.Namespace = lineNo
				decl.Namespace = m[1]
			}
			continue
		}

		if useLinePattern.MatchString(trimmed) {
			statement, last := joinStatement(code, raw, i)
			uses := ParseUseLine(statement)
			for k := range uses {
				uses[k].Line = lineNo
			}
			if len(uses) > 0 {
				if decl.Lines.FirstUseStatement == 0 {
					decl.Lines.FirstUseStatement = lineNo
				}
				decl.Lines.LastUseStatement = last + 1
				decl.UseStatements = append(decl.UseStatements, uses...)
			}
			i = last
			continue
		}

		if typeDeclPattern.MatchString(trimmed) {
			decl.Lines.ClassDeclaration = lineNo
			break
		}
	}
	return decl, nil
}

// joinStatement returns the use statement starting at line i, following it
// across lines until its terminating ';', and the index of its last line.
func joinStatement(code, raw []string, i int) (string, int) {
	if strings.Contains(code[i], ";") {
		return strings.TrimSpace(raw[i]), i
	}
	parts := []string{strings.TrimSpace(raw[i])}
	for j := i + 1; j < len(code); j++ {
		parts = append(parts, strings.TrimSpace(raw[j]))
		if strings.Contains(code[j], ";") {
			return strings.Join(parts, " "), j
		}
	}
	return strings.TrimSpace(raw[i]), i
}

// ParseUseLine parses one use statement, which may import several names
// through a comma list or a `Prefix\{A, B as C}` group.
func ParseUseLine(text string) []UseStatement {
	text = strings.TrimSpace(text)
	m := useBodyPattern.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	kind := useKind(m[1])
	body := m[2]

	var clauses []string
	prefix := ""
	if open := strings.IndexByte(body, '{'); open >= 0 {
		closeAt := strings.LastIndexByte(body, '}')
		if closeAt < open {
			return nil
		}
		prefix = strings.TrimPrefix(strings.TrimSpace(body[:open]), `\`)
		clauses = strings.Split(body[open+1:closeAt], ",")
	} else {
		clauses = strings.Split(body, ",")
	}

	var out []UseStatement
	for _, clause := range clauses {
		clause = strings.Join(strings.Fields(clause), " ")
		if clause == "" {
			continue
		}
		cm := useClausePattern.FindStringSubmatch(clause)
		if cm == nil {
			continue
		}
		clauseKind := kind
		if cm[1] != "" {
			clauseKind = useKind(cm[1])
		}
		fqcn := prefix + cm[2]
		out = append(out, UseStatement{
			Text:      text,
			FQCN:      fqcn,
			Alias:     cm[3],
			ClassName: shortName(fqcn, cm[3]),
			Kind:      clauseKind,
		})
	}
	return out
}

// ParseUseStatement parses a single-name use statement such as
// `use App\Models\User as AppUser;`.
func ParseUseStatement(text string) (UseStatement, error) {
	uses := ParseUseLine(text)
	if len(uses) != 1 {
		return UseStatement{}, domainErrors.Newf(domainErrors.CodeValidationError, "not a single use statement: %q", text)
	}
	return uses[0], nil
}

// GetImportedClassNames returns the short names and aliases of the class
// imports declared before the first type declaration.
func GetImportedClassNames(doc Lines) []string {
	decl, err := Parse(doc, "")
	if err != nil {
		return nil
	}
	return decl.ImportedClassNames()
}

// ImportedClassNames returns ClassName of every class-kind use statement.
func (d *Declarations) ImportedClassNames() []string {
	names := make([]string, 0, len(d.UseStatements))
	for _, use := range d.UseStatements {
		if use.Kind == UseClass {
			names = append(names, use.ClassName)
		}
	}
	return names
}

// FindImport returns the class import bound to className, if any.
func (d *Declarations) FindImport(className string) (UseStatement, bool) {
	for _, use := range d.UseStatements {
		if use.Kind == UseClass && use.ClassName == className {
			return use, true
		}
	}
	return UseStatement{}, false
}

func useKind(word string) UseKind {
	switch word {
	case "function":
		return UseFunction
	case "const":
		return UseConst
	default:
		return UseClass
	}
}

func shortName(fqcn, alias string) string {
	if alias != "" {
		return alias
	}
	return LastSegment(fqcn)
}

// LastSegment returns the part of a qualified name after its last '\'.
func LastSegment(name string) string {
	if idx := strings.LastIndexByte(name, '\\'); idx >= 0 {
		return name[idx+1:]
	}
	return name
}
